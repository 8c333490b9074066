package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
	inmemdb "github.com/chetansharma-meta/Exam-Portal/storage/database/inmem"
)

// Demo accounts
const (
	DemoTeacherUsername = "admin"
	DemoTeacherPassword = "teacher123"
	DemoStudentRollNo   = "211550001"
	DemoStudentPassword = "student123"
)

// Seed fills an empty DB with a demo teacher, a demo student and a published exam.
// It reports whether anything was written.
func Seed(db *inmemdb.DB) (bool, error) {
	if !db.IsEmpty() {
		return false, nil
	}
	usrRepo := inmemdb.NewUserRepository(db)
	examRepo := inmemdb.NewExamRepository(db)
	now := time.Now().UTC()

	teacher := user.User{
		ID:         uuid.New().String(),
		Name:       "Admin Teacher",
		Role:       user.RoleTeacher,
		Username:   DemoTeacherUsername,
		Department: "Science",
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	student := user.User{
		ID:         uuid.New().String(),
		Name:       "John Student",
		Role:       user.RoleStudent,
		RollNo:     DemoStudentRollNo,
		Department: "Science",
		Semester:   "1",
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, seed := range []struct {
		usr *user.User
		pwd string
	}{{&teacher, DemoTeacherPassword}, {&student, DemoStudentPassword}} {
		if err := seed.usr.SetPassword(seed.pwd); err != nil {
			return false, errors.Wrap(err, "hashing password")
		}
		if _, err := usrRepo.CreateUser(*seed.usr); err != nil {
			return false, errors.Wrapf(err, "creating %s", seed.usr.Name)
		}
	}

	_, err := examRepo.CreateExam(exam.Exam{
		ID:        uuid.New().String(),
		Title:     "Science Test",
		Subject:   "Science",
		CreatedBy: teacher.ID,
		Questions: []exam.Question{
			{ID: uuid.New().String(), Text: "What are the main causes of climate change?", Difficulty: exam.DifficultyMedium},
			{ID: uuid.New().String(), Text: "Explain the process of photosynthesis.", Difficulty: exam.DifficultyHard},
		},
		Duration:  3600,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return false, errors.Wrap(err, "creating demo exam")
	}
	return true, nil
}
