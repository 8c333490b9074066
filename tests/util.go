package testutil

import (
	"fmt"
	"io/ioutil"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
	logsvc "github.com/chetansharma-meta/Exam-Portal/services/logger"
	inmemdb "github.com/chetansharma-meta/Exam-Portal/storage/database/inmem"
)

// NewLogger returns a silent logger with error reporting disabled.
func NewLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	logger.Enable(false)
	return logger
}

// PrepareDB returns an empty in-memory DB.
func PrepareDB(t *testing.T) *inmemdb.DB {
	db, err := inmemdb.Open(nil)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func ResetDB(t *testing.T, db *inmemdb.DB) {
	if err := db.Reset(); err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

func createUser(t *testing.T, repo user.Repository, usr user.User, pwd string, createdAt []time.Time) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr.ID = uuid.New().String()
	usr.CreatedAt = tstamp
	usr.UpdatedAt = tstamp
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateStudent(
	t *testing.T,
	repo user.Repository,
	name, rollNo, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	return createUser(t, repo, user.User{
		Name:     name,
		Role:     user.RoleStudent,
		RollNo:   rollNo,
		Email:    email,
		IsActive: isActive,
	}, pwd, createdAt)
}

func CreateTeacher(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	return createUser(t, repo, user.User{
		Name:     name,
		Role:     user.RoleTeacher,
		Username: uname,
		Email:    email,
		IsActive: isActive,
	}, pwd, createdAt)
}

// Questions builds questions with ids "q1", "q2", ... of the given difficulties.
func Questions(difficulties ...string) []exam.Question {
	qs := make([]exam.Question, 0, len(difficulties))
	for i, d := range difficulties {
		n := i + 1
		qs = append(qs, exam.Question{
			ID:         fmt.Sprintf("q%d", n),
			Text:       fmt.Sprintf("Question number %d?", n),
			Difficulty: d,
		})
	}
	return qs
}

func CreateExam(
	t *testing.T,
	repo exam.Repository,
	author user.User,
	title, subject string,
	isActive bool,
	questions []exam.Question,
	createdAt ...time.Time,
) exam.Exam {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	ex, err := repo.CreateExam(exam.Exam{
		ID:        uuid.New().String(),
		Title:     title,
		Subject:   subject,
		CreatedBy: author.ID,
		Questions: questions,
		Duration:  3600,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	})
	if err != nil {
		t.Fatalf("CreateExam() failed: %v", err)
	}
	return ex
}

// CreateSubmission records answers of student, one per exam question, in question order.
func CreateSubmission(
	t *testing.T,
	repo submission.Repository,
	ex exam.Exam,
	student user.User,
	texts ...string,
) submission.Submission {
	answers := make([]submission.Answer, len(ex.Questions))
	for i, q := range ex.Questions {
		answers[i].QuestionID = q.ID
		if i < len(texts) {
			answers[i].Text = texts[i]
		}
	}
	sub, err := repo.CreateSubmission(submission.Submission{
		ID:          uuid.New().String(),
		ExamID:      ex.ID,
		StudentID:   student.ID,
		StudentName: student.Name,
		RollNo:      student.RollNo,
		Answers:     answers,
		SubmittedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreateSubmission() failed: %v", err)
	}
	return sub
}

func CreatePdf(
	t *testing.T,
	repo submission.Repository,
	sub submission.Submission,
	payload []byte,
) submission.PdfSubmission {
	pdf, err := repo.CreatePdf(submission.PdfSubmission{
		ID:           uuid.New().String(),
		ExamID:       sub.ExamID,
		StudentID:    sub.StudentID,
		SubmissionID: sub.ID,
		FileName:     submission.PdfFileName(sub.StudentName, sub.RollNo, sub.ExamID),
		Payload:      payload,
		Size:         len(payload),
		SubmittedAt:  sub.SubmittedAt,
	})
	if err != nil {
		t.Fatalf("CreatePdf() failed: %v", err)
	}
	return pdf
}
