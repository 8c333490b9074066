package inmemdb

import (
	"strings"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
)

var examOrderingFields = map[string]comparator[exam.Exam]{
	"id":         func(a, b exam.Exam) int { return strings.Compare(a.ID, b.ID) },
	"title":      func(a, b exam.Exam) int { return compareStrings(a.Title, b.Title) },
	"subject":    func(a, b exam.Exam) int { return compareStrings(a.Subject, b.Subject) },
	"duration":   func(a, b exam.Exam) int { return a.Duration - b.Duration },
	"is_active":  func(a, b exam.Exam) int { return compareBools(a.IsActive, b.IsActive) },
	"created_at": func(a, b exam.Exam) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b exam.Exam) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
}

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) exam.Repository {
	return &examRepository{db: db}
}

func (repo *examRepository) CreateExam(ex exam.Exam) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	stored := cloneExam(ex)
	repo.db.exams[ex.ID] = &stored
	if err := repo.db.commit(func() { delete(repo.db.exams, ex.ID) }, ExamsCollection); err != nil {
		return exam.Exam{}, err
	}
	return ex, nil
}

func (repo *examRepository) GetExamByID(id string) (exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if ex, ok := repo.db.exams[id]; ok {
		return cloneExam(*ex), nil
	}
	return exam.Exam{}, exam.ErrNotFound
}

func (repo *examRepository) FilterExams(filter *exam.QueryFilter, ordering []core.DBOrdering) ([]exam.Exam, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	exams := make([]exam.Exam, 0)
	for _, ex := range repo.db.exams {
		if filter.Match(*ex) {
			exams = append(exams, cloneExam(*ex))
		}
	}
	sortRecords(exams, ordering, examOrderingFields, core.DBOrdering{Field: "created_at"})
	return exams, nil
}

func (repo *examRepository) UpdateExam(ex exam.Exam) (exam.Exam, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.exams[ex.ID]
	if !ok {
		return exam.Exam{}, exam.ErrNotFound
	}
	ex.CreatedBy = orig.CreatedBy
	ex.CreatedAt = orig.CreatedAt

	stored := cloneExam(ex)
	repo.db.exams[ex.ID] = &stored
	if err := repo.db.commit(func() { repo.db.exams[ex.ID] = orig }, ExamsCollection); err != nil {
		return exam.Exam{}, err
	}
	return ex, nil
}

func (repo *examRepository) DeleteExam(id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.exams[id]
	if !ok {
		return exam.ErrNotFound
	}
	for _, sub := range repo.db.submissions {
		if sub.ExamID == id {
			return exam.ErrHasSubmissions
		}
	}
	delete(repo.db.exams, id)
	return repo.db.commit(func() { repo.db.exams[id] = orig }, ExamsCollection)
}
