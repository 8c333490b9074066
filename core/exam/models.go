package exam

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/chetansharma-meta/Exam-Portal/core"
)

// Difficulties
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// Statuses as shown in previews.
const (
	StatusPublished = "Published"
	StatusDraft     = "Draft"
)

var Difficulties = []string{DifficultyEasy, DifficultyMedium, DifficultyHard}

type Question struct {
	ID          string   `json:"id"`
	Text        string   `json:"text"`
	Difficulty  string   `json:"difficulty"`
	Points      float64  `json:"points,omitempty"`
	Options     []string `json:"options,omitempty"`
	Explanation string   `json:"explanation,omitempty"`
}

type Exam struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Subject   string     `json:"subject,omitempty"`
	CreatedBy string     `json:"created_by"`
	Questions []Question `json:"questions"`
	Duration  int        `json:"duration"` // seconds
	IsActive  bool       `json:"is_active"`
	CreatedAt time.Time  `json:"created_at"` // UTC
	UpdatedAt time.Time  `json:"updated_at"` // UTC
}

func (ex *Exam) DurationTime() time.Duration {
	return time.Duration(ex.Duration) * time.Second
}

// QuestionIndex returns the position of the question with the given id, or -1.
func (ex *Exam) QuestionIndex(id string) int {
	for i, q := range ex.Questions {
		if q.ID == id {
			return i
		}
	}
	return -1
}

func (ex *Exam) LogFields() map[string]interface{} {
	return map[string]interface{}{"exam_id": ex.ID, "exam_title": ex.Title}
}

func (ex *Exam) Status() string {
	if ex.IsActive {
		return StatusPublished
	}
	return StatusDraft
}

// Preview summarises an exam the way it is shown to its author before publishing.
type Preview struct {
	Title           string         `json:"title"`
	Subject         string         `json:"subject,omitempty"`
	DurationMinutes int            `json:"duration_minutes"`
	QuestionCount   int            `json:"question_count"`
	Difficulties    map[string]int `json:"difficulties"`
	Status          string         `json:"status"`
}

func (ex *Exam) Preview() Preview {
	counts := make(map[string]int, len(Difficulties))
	for _, d := range Difficulties {
		counts[d] = 0
	}
	for _, q := range ex.Questions {
		counts[q.Difficulty]++
	}
	return Preview{
		Title:           ex.Title,
		Subject:         ex.Subject,
		DurationMinutes: ex.Duration / 60,
		QuestionCount:   len(ex.Questions),
		Difficulties:    counts,
		Status:          ex.Status(),
	}
}

type NewQuestion struct {
	ID          string   `json:"id"`
	Text        string   `json:"text" validate:"required"`
	Difficulty  string   `json:"difficulty" validate:"required,difficulty"`
	Points      float64  `json:"points" validate:"gte=0"`
	Options     []string `json:"options"`
	Explanation string   `json:"explanation"`
}

func (nq *NewQuestion) clean() {
	nq.ID = core.CleanString(nq.ID)
	nq.Text = core.CleanString(nq.Text)
	nq.Difficulty = core.CleanString(nq.Difficulty, true /* lower */)
	nq.Explanation = core.CleanString(nq.Explanation)
	opts := make([]string, 0, len(nq.Options))
	for _, opt := range nq.Options {
		if opt = core.CleanString(opt); opt != "" {
			opts = append(opts, opt)
		}
	}
	nq.Options = opts
}

func cleanQuestions(qs []NewQuestion) {
	for i := range qs {
		qs[i].clean()
	}
}

// NewExam contains information needed to create a new Exam.
type NewExam struct {
	Title     string        `json:"title" validate:"required"`
	Subject   string        `json:"subject"`
	Duration  int           `json:"duration" validate:"gt=0"` // seconds
	IsActive  bool          `json:"is_active"`
	Questions []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (ne *NewExam) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Subject = core.CleanString(ne.Subject)
	cleanQuestions(ne.Questions)
	return validate.Struct(ne)
}

// UpdateExam defines what information may be provided to modify an existing Exam.
// Questions, when provided, replace the existing ones.
type UpdateExam struct {
	Title     *string       `json:"title" validate:"omitempty,min=1"`
	Subject   *string       `json:"subject"`
	Duration  *int          `json:"duration" validate:"omitempty,gt=0"`
	IsActive  *bool         `json:"is_active"`
	Questions []NewQuestion `json:"questions" validate:"omitempty,min=1,dive"`
}

func (ue *UpdateExam) Validate(validate *validator.Validate) error {
	if ue.Title != nil {
		title := core.CleanString(*ue.Title)
		ue.Title = &title
	}
	if ue.Subject != nil {
		subject := core.CleanString(*ue.Subject)
		ue.Subject = &subject
	}
	cleanQuestions(ue.Questions)
	return validate.Struct(ue)
}

type QueryFilter struct {
	CreatedBy string `query:"created_by"`
	IsActive  *bool  `query:"is_active"`
	Subject   string `query:"subject"`
	// Search does a case-insensitive match on the title or the subject.
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.CreatedBy = core.CleanString(qf.CreatedBy)
	qf.Subject = core.CleanString(qf.Subject)
	qf.Search = core.CleanString(qf.Search)
}

func (qf *QueryFilter) Match(ex Exam) bool {
	if qf.CreatedBy != "" && ex.CreatedBy != qf.CreatedBy {
		return false
	}
	if qf.IsActive != nil && ex.IsActive != *qf.IsActive {
		return false
	}
	if qf.Subject != "" && !strings.EqualFold(ex.Subject, qf.Subject) {
		return false
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !strings.Contains(strings.ToLower(ex.Title), s) && !strings.Contains(strings.ToLower(ex.Subject), s) {
			return false
		}
	}
	return true
}

// QuestionFilter filters the question catalogue.
type QuestionFilter struct {
	Subject    string `json:"subject" query:"subject"`
	Difficulty string `json:"difficulty" query:"difficulty" validate:"omitempty,difficulty"`
}

func (qf *QuestionFilter) Validate(validate *validator.Validate) error {
	qf.Subject = core.CleanString(qf.Subject)
	qf.Difficulty = core.CleanString(qf.Difficulty, true /* lower */)
	return validate.Struct(qf)
}

// CatalogQuestion is a question of an active exam, listed with its exam.
type CatalogQuestion struct {
	Question
	ExamID    string `json:"exam_id"`
	ExamTitle string `json:"exam_title"`
	Subject   string `json:"subject,omitempty"`
}
