package database_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
	emailsvc "github.com/chetansharma-meta/Exam-Portal/services/email"
	"github.com/chetansharma-meta/Exam-Portal/storage/database"
	inmemdb "github.com/chetansharma-meta/Exam-Portal/storage/database/inmem"
	testutil "github.com/chetansharma-meta/Exam-Portal/tests"
)

func TestSeed(t *testing.T) {
	conf := core.NewTestConfig()
	db := testutil.PrepareDB(t)

	seeded, err := database.Seed(db)
	require.NoError(t, err)
	assert.True(t, seeded)

	state := db.Snapshot()
	assert.Len(t, state.Users, 2)
	require.Len(t, state.Exams, 1)
	assert.Equal(t, "Science Test", state.Exams[0].Title)
	assert.True(t, state.Exams[0].IsActive)
	assert.Len(t, state.Exams[0].Questions, 2)

	usrSvc := user.NewServiceMock(inmemdb.NewUserRepository(db), emailsvc.NewConsoleServiceMock(conf), conf)
	teacher, err := usrSvc.AuthenticateTeacher(database.DemoTeacherUsername, database.DemoTeacherPassword)
	require.NoError(t, err)
	assert.Equal(t, state.Exams[0].CreatedBy, teacher.ID)

	_, err = usrSvc.AuthenticateStudent(database.DemoStudentRollNo, database.DemoStudentPassword)
	assert.NoError(t, err)

	// only once
	seeded, err = database.Seed(db)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Len(t, db.Snapshot().Users, 2)
}

func TestSeed_NotEmpty(t *testing.T) {
	db := testutil.PrepareDB(t)
	testutil.CreateTeacher(t, inmemdb.NewUserRepository(db), "Grace", "grace", "", "compilers-rule", true)

	seeded, err := database.Seed(db)
	require.NoError(t, err)
	assert.False(t, seeded)
	assert.Len(t, db.Snapshot().Exams, 0)
}

func TestOpen(t *testing.T) {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)

	t.Run("memory", func(t *testing.T) {
		conf.Database.Engine = core.EngineMemory
		db, closer, err := database.Open(conf, logger)
		require.NoError(t, err)
		assert.True(t, db.IsEmpty())
		assert.NoError(t, closer.Close())
	})

	t.Run("bolt", func(t *testing.T) {
		conf.Database.Engine = core.EngineBolt
		conf.Database.Path = filepath.Join(t.TempDir(), "portal.db")
		conf.Database.Namespace = "exam-portal"
		conf.Database.OpenTimeout = time.Second

		db, closer, err := database.Open(conf, logger)
		require.NoError(t, err)
		seeded, err := database.Seed(db)
		require.NoError(t, err)
		require.True(t, seeded)
		require.NoError(t, closer.Close())

		db, closer, err = database.Open(conf, logger)
		require.NoError(t, err)
		defer closer.Close()
		exams, err := inmemdb.NewExamRepository(db).FilterExams(&exam.QueryFilter{}, nil)
		require.NoError(t, err)
		require.Len(t, exams, 1)
		assert.Equal(t, "Science Test", exams[0].Title)
	})

	t.Run("unknown engine", func(t *testing.T) {
		conf.Database.Engine = "postgres"
		_, _, err := database.Open(conf, logger)
		assert.EqualError(t, err, `unknown database engine "postgres"`)
	})
}
