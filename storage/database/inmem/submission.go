package inmemdb

import (
	"strings"
	"time"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
)

var (
	submissionOrderingFields = map[string]comparator[submission.Submission]{
		"id":           func(a, b submission.Submission) int { return strings.Compare(a.ID, b.ID) },
		"student_name": func(a, b submission.Submission) int { return compareStrings(a.StudentName, b.StudentName) },
		"roll_no":      func(a, b submission.Submission) int { return compareStrings(a.RollNo, b.RollNo) },
		"submitted_at": func(a, b submission.Submission) int { return compareTimes(a.SubmittedAt, b.SubmittedAt) },
		"evaluated":    func(a, b submission.Submission) int { return compareBools(a.Evaluated, b.Evaluated) },
		"marks":        func(a, b submission.Submission) int { return compareFloats(floatOrZero(a.Marks), floatOrZero(b.Marks)) },
		"percentage": func(a, b submission.Submission) int {
			return compareFloats(floatOrZero(a.Percentage), floatOrZero(b.Percentage))
		},
	}

	pdfOrderingFields = map[string]comparator[submission.PdfSubmission]{
		"id":           func(a, b submission.PdfSubmission) int { return strings.Compare(a.ID, b.ID) },
		"file_name":    func(a, b submission.PdfSubmission) int { return compareStrings(a.FileName, b.FileName) },
		"size":         func(a, b submission.PdfSubmission) int { return a.Size - b.Size },
		"submitted_at": func(a, b submission.PdfSubmission) int { return compareTimes(a.SubmittedAt, b.SubmittedAt) },
	}
)

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

type submissionRepository struct {
	db *DB
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(db *DB) submission.Repository {
	return &submissionRepository{db: db}
}

// hasSubmitted must be called with the lock held.
func (repo *submissionRepository) hasSubmitted(studentID, examID string) bool {
	for _, sub := range repo.db.submissions {
		if sub.StudentID == studentID && sub.ExamID == examID {
			return true
		}
	}
	return false
}

// insertSubmission must be called with the write lock held.
func (repo *submissionRepository) insertSubmission(sub submission.Submission) error {
	if repo.hasSubmitted(sub.StudentID, sub.ExamID) {
		return submission.ErrAlreadySubmitted
	}
	stored := cloneSubmission(sub)
	repo.db.submissions[sub.ID] = &stored
	return nil
}

func (repo *submissionRepository) CreateSubmission(sub submission.Submission) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.insertSubmission(sub); err != nil {
		return submission.Submission{}, err
	}
	closed := make(map[*submission.Attempt]submission.Attempt)
	for _, att := range repo.db.attempts {
		if att.StudentID == sub.StudentID && att.ExamID == sub.ExamID && att.InProgress() {
			closed[att] = *att
			att.Status = submission.AttemptSubmitted
			att.SubmissionID = sub.ID
			att.UpdatedAt = sub.SubmittedAt
		}
	}
	err := repo.db.commit(func() {
		delete(repo.db.submissions, sub.ID)
		for att, prev := range closed {
			*att = prev
		}
	}, SubmissionsCollection, AttemptsCollection)
	if err != nil {
		return submission.Submission{}, err
	}
	return sub, nil
}

func (repo *submissionRepository) GetSubmissionByID(id string) (submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if sub, ok := repo.db.submissions[id]; ok {
		return cloneSubmission(*sub), nil
	}
	return submission.Submission{}, submission.ErrNotFound
}

func (repo *submissionRepository) FilterSubmissions(
	filter *submission.QueryFilter,
	ordering []core.DBOrdering,
) ([]submission.Submission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]submission.Submission, 0)
	for _, sub := range repo.db.submissions {
		if filter.Match(*sub) {
			subs = append(subs, cloneSubmission(*sub))
		}
	}
	sortRecords(subs, ordering, submissionOrderingFields, core.DBOrdering{Field: "submitted_at"})
	return subs, nil
}

func (repo *submissionRepository) UpdateSubmission(sub submission.Submission) (submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.submissions[sub.ID]
	if !ok {
		return submission.Submission{}, submission.ErrNotFound
	}
	// the submission owner never changes
	sub.ExamID = orig.ExamID
	sub.StudentID = orig.StudentID
	sub.SubmittedAt = orig.SubmittedAt

	stored := cloneSubmission(sub)
	repo.db.submissions[sub.ID] = &stored
	if err := repo.db.commit(func() { repo.db.submissions[sub.ID] = orig }, SubmissionsCollection); err != nil {
		return submission.Submission{}, err
	}
	return sub, nil
}

func (repo *submissionRepository) CreatePdf(pdf submission.PdfSubmission) (submission.PdfSubmission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.db.persister != nil {
		if err := repo.db.persister.SavePdfPayload(pdf.ID, pdf.Payload); err != nil {
			return submission.PdfSubmission{}, err
		}
	}
	repo.db.payloads[pdf.ID] = pdf.Payload

	stored := pdf
	stored.Payload = nil
	repo.db.pdfs[pdf.ID] = &stored
	err := repo.db.commit(func() {
		delete(repo.db.pdfs, pdf.ID)
		delete(repo.db.payloads, pdf.ID)
	}, PdfSubmissionsCollection)
	if err != nil {
		return submission.PdfSubmission{}, err
	}
	return pdf, nil
}

func (repo *submissionRepository) GetPdfByID(id string, withPayload bool) (submission.PdfSubmission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	pdf, ok := repo.db.pdfs[id]
	if !ok {
		return submission.PdfSubmission{}, submission.ErrPdfNotFound
	}
	res := *pdf
	if withPayload {
		res.Payload = repo.db.payloads[id]
	}
	return res, nil
}

func (repo *submissionRepository) FilterPdfs(
	filter *submission.PdfFilter,
	ordering []core.DBOrdering,
) ([]submission.PdfSubmission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	pdfs := make([]submission.PdfSubmission, 0)
	for _, pdf := range repo.db.pdfs {
		if filter.Match(*pdf) {
			pdfs = append(pdfs, *pdf)
		}
	}
	sortRecords(pdfs, ordering, pdfOrderingFields, core.DBOrdering{Field: "submitted_at"})
	return pdfs, nil
}

// Attempts

func (repo *submissionRepository) CreateAttempt(att submission.Attempt) (submission.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.hasSubmitted(att.StudentID, att.ExamID) {
		return submission.Attempt{}, submission.ErrAlreadySubmitted
	}
	for _, existing := range repo.db.attempts {
		if existing.StudentID == att.StudentID && existing.ExamID == att.ExamID && existing.InProgress() {
			return cloneAttempt(*existing), nil
		}
	}
	stored := cloneAttempt(att)
	repo.db.attempts[att.ID] = &stored
	if err := repo.db.commit(func() { delete(repo.db.attempts, att.ID) }, AttemptsCollection); err != nil {
		return submission.Attempt{}, err
	}
	return att, nil
}

func (repo *submissionRepository) GetAttemptByID(id string) (submission.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if att, ok := repo.db.attempts[id]; ok {
		return cloneAttempt(*att), nil
	}
	return submission.Attempt{}, submission.ErrAttemptNotFound
}

func (repo *submissionRepository) GetAttemptInProgress(studentID, examID string) (submission.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, att := range repo.db.attempts {
		if att.StudentID == studentID && att.ExamID == examID && att.InProgress() {
			return cloneAttempt(*att), nil
		}
	}
	return submission.Attempt{}, submission.ErrAttemptNotFound
}

func (repo *submissionRepository) UpdateAttempt(att submission.Attempt) (submission.Attempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.attempts[att.ID]
	if !ok {
		return submission.Attempt{}, submission.ErrAttemptNotFound
	}
	if !orig.InProgress() {
		return submission.Attempt{}, submission.ErrAttemptClosed
	}
	// the countdown cannot be tampered with
	att.ExamID = orig.ExamID
	att.StudentID = orig.StudentID
	att.StartedAt = orig.StartedAt
	att.Deadline = orig.Deadline

	stored := cloneAttempt(att)
	repo.db.attempts[att.ID] = &stored
	if err := repo.db.commit(func() { repo.db.attempts[att.ID] = orig }, AttemptsCollection); err != nil {
		return submission.Attempt{}, err
	}
	return att, nil
}

func (repo *submissionRepository) ExpiredAttempts(t time.Time) ([]submission.Attempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	atts := make([]submission.Attempt, 0)
	for _, att := range repo.db.attempts {
		if att.InProgress() && att.Deadline.Before(t) {
			atts = append(atts, cloneAttempt(*att))
		}
	}
	return atts, nil
}

func (repo *submissionRepository) CloseAttempt(
	attemptID string,
	sub submission.Submission,
) (submission.Attempt, submission.Submission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	att, ok := repo.db.attempts[attemptID]
	if !ok {
		return submission.Attempt{}, submission.Submission{}, submission.ErrAttemptNotFound
	}
	if !att.InProgress() {
		return submission.Attempt{}, submission.Submission{}, submission.ErrAttemptClosed
	}
	if err := repo.insertSubmission(sub); err != nil {
		return submission.Attempt{}, submission.Submission{}, err
	}
	prev := *att
	att.Status = submission.AttemptSubmitted
	att.SubmissionID = sub.ID
	att.Answers = cloneAnswers(sub.Answers)
	att.UpdatedAt = sub.SubmittedAt
	err := repo.db.commit(func() {
		delete(repo.db.submissions, sub.ID)
		*att = prev
	}, SubmissionsCollection, AttemptsCollection)
	if err != nil {
		return submission.Attempt{}, submission.Submission{}, err
	}
	return cloneAttempt(*att), sub, nil
}
