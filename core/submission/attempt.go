package submission

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

// Attempt statuses
const (
	AttemptInProgress = "in_progress"
	AttemptSubmitted  = "submitted"
	AttemptExpired    = "expired" // the exam went away before the attempt could be submitted
)

// Attempt is a running exam session of a student. Its Deadline drives the countdown.
type Attempt struct {
	ID           string    `json:"id"`
	ExamID       string    `json:"exam_id"`
	StudentID    string    `json:"student_id"`
	StartedAt    time.Time `json:"started_at"` // UTC
	Deadline     time.Time `json:"deadline"`   // UTC
	Answers      []Answer  `json:"answers"`
	Status       string    `json:"status"`
	SubmissionID string    `json:"submission_id,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

func (a *Attempt) InProgress() bool { return a.Status == AttemptInProgress }

func (a *Attempt) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"attempt_id": a.ID,
		"exam_id":    a.ExamID,
		"student_id": a.StudentID,
		"deadline":   a.Deadline,
	}
}

// RemainingSeconds is the countdown value at now, never negative.
func (a *Attempt) RemainingSeconds(now time.Time) int {
	secs := int(math.Ceil(a.Deadline.Sub(now).Seconds()))
	if secs < 0 || !a.InProgress() {
		return 0
	}
	return secs
}

// AttemptView is an Attempt along with its countdown.
type AttemptView struct {
	Attempt
	RemainingSeconds int    `json:"remaining_seconds"`
	TimeLeft         string `json:"time_left"`
}

func NewAttemptView(a Attempt, now time.Time) AttemptView {
	secs := a.RemainingSeconds(now)
	return AttemptView{Attempt: a, RemainingSeconds: secs, TimeLeft: FormatTimeLeft(secs)}
}

// FormatTimeLeft formats seconds as H:MM:SS, or M:SS under an hour.
func FormatTimeLeft(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// AttemptAnswers are draft answers saved while the countdown runs.
type AttemptAnswers struct {
	Answers []NewAnswer `json:"answers" validate:"dive"`
}

func (aa *AttemptAnswers) Validate(validate *validator.Validate) error {
	cleanAnswers(aa.Answers)
	return validate.Struct(aa)
}

// AttemptSubmission closes an attempt. AutoSubmitted is set by clients submitting at zero.
type AttemptSubmission struct {
	Answers       []NewAnswer `json:"answers" validate:"dive"`
	AutoSubmitted bool        `json:"auto_submitted"`
}

func (as *AttemptSubmission) Validate(validate *validator.Validate) error {
	cleanAnswers(as.Answers)
	return validate.Struct(as)
}
