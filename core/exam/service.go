package exam

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("exam")
	ErrHasSubmissions = errors.New("exam already has submissions")
	ErrNotTeacher     = errors.New("only teachers can author exams")
)

type (
	Repository interface {
		CreateExam(ex Exam) (Exam, error)
		GetExamByID(id string) (Exam, error)
		// FilterExams applies AND operation on available QueryFilter fields.
		FilterExams(filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error)
		UpdateExam(ex Exam) (Exam, error)
		// DeleteExam returns ErrHasSubmissions when the exam has been submitted at least once.
		DeleteExam(id string) error
	}

	Service interface {
		Create(author user.User, ne NewExam) (Exam, error)
		Update(ex Exam, ue UpdateExam) (Exam, error)
		SetActive(ex Exam, active bool) (Exam, error)
		Get(id string) (Exam, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error)
		Delete(ex Exam) error
		Questions(filter QuestionFilter) ([]CatalogQuestion, error)
		Subjects() ([]string, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func buildQuestions(nqs []NewQuestion) []Question {
	qs := make([]Question, 0, len(nqs))
	for _, nq := range nqs {
		id := nq.ID
		if id == "" {
			id = uuid.New().String()
		}
		qs = append(qs, Question{
			ID:          id,
			Text:        nq.Text,
			Difficulty:  nq.Difficulty,
			Points:      nq.Points,
			Options:     nq.Options,
			Explanation: nq.Explanation,
		})
	}
	return qs
}

func (svc *service) Create(author user.User, ne NewExam) (Exam, error) {
	if !author.IsTeacher() {
		return Exam{}, ErrNotTeacher
	}
	now := time.Now().UTC()
	return svc.repo.CreateExam(Exam{
		ID:        uuid.New().String(),
		Title:     ne.Title,
		Subject:   ne.Subject,
		CreatedBy: author.ID,
		Questions: buildQuestions(ne.Questions),
		Duration:  ne.Duration,
		IsActive:  ne.IsActive,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Update(ex Exam, ue UpdateExam) (Exam, error) {
	if ue.Title != nil {
		ex.Title = *ue.Title
	}
	if ue.Subject != nil {
		ex.Subject = *ue.Subject
	}
	if ue.Duration != nil {
		ex.Duration = *ue.Duration
	}
	if ue.IsActive != nil {
		ex.IsActive = *ue.IsActive
	}
	if ue.Questions != nil {
		ex.Questions = buildQuestions(ue.Questions)
	}
	ex.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateExam(ex)
}

func (svc *service) SetActive(ex Exam, active bool) (Exam, error) {
	ex.IsActive = active
	ex.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateExam(ex)
}

func (svc *service) Get(id string) (Exam, error) {
	return svc.repo.GetExamByID(id)
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Exam, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.FilterExams(filter, ordering)
}

func (svc *service) Delete(ex Exam) error {
	err := svc.repo.DeleteExam(ex.ID)
	if err == ErrHasSubmissions {
		return core.NewValidationError(err)
	}
	return err
}

func (svc *service) activeExams(subject string) ([]Exam, error) {
	active := true
	return svc.repo.FilterExams(
		&QueryFilter{IsActive: &active, Subject: subject},
		[]core.DBOrdering{{Field: "created_at", Ascending: true}},
	)
}

func (svc *service) Questions(filter QuestionFilter) ([]CatalogQuestion, error) {
	exams, err := svc.activeExams(filter.Subject)
	if err != nil {
		return nil, err
	}
	qs := make([]CatalogQuestion, 0)
	for _, ex := range exams {
		for _, q := range ex.Questions {
			if filter.Difficulty != "" && q.Difficulty != filter.Difficulty {
				continue
			}
			qs = append(qs, CatalogQuestion{Question: q, ExamID: ex.ID, ExamTitle: ex.Title, Subject: ex.Subject})
		}
	}
	return qs, nil
}

func (svc *service) Subjects() ([]string, error) {
	exams, err := svc.activeExams("")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	subjects := make([]string, 0)
	for _, ex := range exams {
		key := strings.ToLower(ex.Subject)
		if ex.Subject == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		subjects = append(subjects, ex.Subject)
	}
	sort.Strings(subjects)
	return subjects, nil
}
