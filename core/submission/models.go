package submission

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
)

type Answer struct {
	QuestionID string `json:"question_id"`
	Text       string `json:"text,omitempty"`
	ImageData  string `json:"image_data,omitempty"` // data URL, e.g. data:image/png;base64,...
	IsCorrect  *bool  `json:"is_correct,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
}

func (a Answer) IsEmpty() bool { return a.Text == "" && a.ImageData == "" }

// Result statuses
const (
	ResultPending = "Pending"
	ResultPass    = "Pass"
	ResultFail    = "Fail"
)

type Submission struct {
	ID            string     `json:"id"`
	ExamID        string     `json:"exam_id"`
	StudentID     string     `json:"student_id"`
	StudentName   string     `json:"student_name"`
	RollNo        string     `json:"roll_no"`
	Answers       []Answer   `json:"answers"`
	SubmittedAt   time.Time  `json:"submitted_at"` // UTC
	AutoSubmitted bool       `json:"auto_submitted"`
	Evaluated     bool       `json:"evaluated"`
	Marks         *float64   `json:"marks,omitempty"`
	Feedback      string     `json:"feedback,omitempty"`
	Percentage    *float64   `json:"percentage,omitempty"`
	Passed        *bool      `json:"passed,omitempty"` // set on evaluation
	EvaluatedAt   *time.Time `json:"evaluated_at,omitempty"` // UTC
}

// QuestionCount is the number of questions of the exam at submission time.
func (s *Submission) QuestionCount() int { return len(s.Answers) }

func (s *Submission) LogFields() map[string]interface{} {
	return map[string]interface{}{
		"submission_id": s.ID,
		"exam_id":       s.ExamID,
		"student_id":    s.StudentID,
		"roll_no":       s.RollNo,
	}
}

func (s *Submission) Status() string {
	if !s.Evaluated || s.Passed == nil {
		return ResultPending
	}
	if *s.Passed {
		return ResultPass
	}
	return ResultFail
}

// PdfSubmission is the rendered answer sheet of a submission.
type PdfSubmission struct {
	ID           string    `json:"id"`
	ExamID       string    `json:"exam_id"`
	StudentID    string    `json:"student_id"`
	SubmissionID string    `json:"submission_id"`
	FileName     string    `json:"file_name"`
	Payload      []byte    `json:"-"`
	Size         int       `json:"size"`
	SubmittedAt  time.Time `json:"submitted_at"` // UTC
}

// PdfFileName builds "<name without whitespace>_<rollNo>_<examID>.pdf".
func PdfFileName(studentName, rollNo, examID string) string {
	name := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, studentName)
	return fmt.Sprintf("%s_%s_%s.pdf", name, rollNo, examID)
}

type NewAnswer struct {
	QuestionID string `json:"question_id" validate:"required"`
	Text       string `json:"text"`
	ImageData  string `json:"image_data" validate:"omitempty,datauri"`
}

// NewSubmission contains the answers of a student for an exam.
type NewSubmission struct {
	ExamID  string      `json:"exam_id" validate:"required"`
	Answers []NewAnswer `json:"answers" validate:"dive"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.ExamID = core.CleanString(ns.ExamID)
	cleanAnswers(ns.Answers)
	return validate.Struct(ns)
}

func cleanAnswers(answers []NewAnswer) {
	for i := range answers {
		answers[i].QuestionID = core.CleanString(answers[i].QuestionID)
		answers[i].Text = strings.TrimSpace(answers[i].Text)
		answers[i].ImageData = strings.TrimSpace(answers[i].ImageData)
	}
}

type AnswerEvaluation struct {
	QuestionID string `json:"question_id" validate:"required"`
	IsCorrect  *bool  `json:"is_correct"`
	Feedback   string `json:"feedback"`
}

// Evaluation is the grading of a submission by a teacher.
type Evaluation struct {
	Marks    *float64           `json:"marks" validate:"required,gte=0"`
	Feedback string             `json:"feedback"`
	Answers  []AnswerEvaluation `json:"answers" validate:"dive"`
}

func (ev *Evaluation) Validate(validate *validator.Validate) error {
	ev.Feedback = strings.TrimSpace(ev.Feedback)
	for i := range ev.Answers {
		ev.Answers[i].QuestionID = core.CleanString(ev.Answers[i].QuestionID)
		ev.Answers[i].Feedback = strings.TrimSpace(ev.Answers[i].Feedback)
	}
	return validate.Struct(ev)
}

type QueryFilter struct {
	ExamID    string `query:"exam_id"`
	StudentID string `query:"student_id"`
	Evaluated *bool  `query:"evaluated"`
}

func (qf *QueryFilter) Clean() {
	qf.ExamID = core.CleanString(qf.ExamID)
	qf.StudentID = core.CleanString(qf.StudentID)
}

func (qf *QueryFilter) Match(sub Submission) bool {
	if qf.ExamID != "" && sub.ExamID != qf.ExamID {
		return false
	}
	if qf.StudentID != "" && sub.StudentID != qf.StudentID {
		return false
	}
	if qf.Evaluated != nil && sub.Evaluated != *qf.Evaluated {
		return false
	}
	return true
}

type PdfFilter struct {
	ExamID    string `query:"exam_id"`
	StudentID string `query:"student_id"`
}

func (pf *PdfFilter) Clean() {
	pf.ExamID = core.CleanString(pf.ExamID)
	pf.StudentID = core.CleanString(pf.StudentID)
}

func (pf *PdfFilter) Match(pdf PdfSubmission) bool {
	if pf.ExamID != "" && pdf.ExamID != pf.ExamID {
		return false
	}
	if pf.StudentID != "" && pdf.StudentID != pf.StudentID {
		return false
	}
	return true
}

// orderAnswers returns one answer per exam question, in question order.
// Missing answers are left empty; answers to unknown questions are rejected.
func orderAnswers(ex exam.Exam, answers []NewAnswer) ([]Answer, error) {
	ordered := make([]Answer, len(ex.Questions))
	for i, q := range ex.Questions {
		ordered[i].QuestionID = q.ID
	}
	for i, a := range answers {
		idx := ex.QuestionIndex(a.QuestionID)
		if idx < 0 {
			return nil, core.NewValidationError(ErrUnknownQuestion, core.FieldError{
				Field: fmt.Sprintf("answers[%d].question_id", i),
				Error: ErrUnknownQuestion.Error(),
			})
		}
		ordered[idx].Text = a.Text
		ordered[idx].ImageData = a.ImageData
	}
	return ordered, nil
}

// mergeAnswers overwrites the draft answers with the provided ones and keeps question order.
func mergeAnswers(ex exam.Exam, draft []Answer, answers []NewAnswer) ([]Answer, error) {
	merged := make([]NewAnswer, 0, len(draft)+len(answers))
	for _, a := range draft {
		if ex.QuestionIndex(a.QuestionID) >= 0 {
			merged = append(merged, NewAnswer{QuestionID: a.QuestionID, Text: a.Text, ImageData: a.ImageData})
		}
	}
	ordered, err := orderAnswers(ex, merged)
	if err != nil {
		return nil, err
	}
	newOnes, err := orderAnswers(ex, answers)
	if err != nil {
		return nil, err
	}
	provided := make(map[string]struct{}, len(answers))
	for _, a := range answers {
		provided[a.QuestionID] = struct{}{}
	}
	for i, a := range newOnes {
		if _, ok := provided[a.QuestionID]; ok {
			ordered[i] = a
		}
	}
	return ordered, nil
}
