package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strconv"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("submission")
	ErrPdfNotFound      = core.NewNotFoundError("pdf submission")
	ErrAttemptNotFound  = core.NewNotFoundError("attempt")
	ErrAlreadySubmitted = errors.New("exam already submitted")
	ErrAttemptClosed    = errors.New("attempt is no longer in progress")
	ErrTimeUp           = errors.New("time is up")
	ErrUnknownQuestion  = errors.New("question does not belong to this exam")
	ErrNotStudent       = errors.New("only students can take exams")

	errMarksRequired = errors.New("marks are required")
)

type (
	Repository interface {
		// CreateSubmission inserts atomically and returns ErrAlreadySubmitted when the student already
		// submitted the exam. An in-progress attempt of the student for the exam is closed along.
		CreateSubmission(sub Submission) (Submission, error)
		GetSubmissionByID(id string) (Submission, error)
		FilterSubmissions(filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error)
		UpdateSubmission(sub Submission) (Submission, error)

		CreatePdf(pdf PdfSubmission) (PdfSubmission, error)
		// GetPdfByID only loads the payload when withPayload is set.
		GetPdfByID(id string, withPayload bool) (PdfSubmission, error)
		FilterPdfs(filter *PdfFilter, ordering []core.DBOrdering) ([]PdfSubmission, error)

		// CreateAttempt returns the in-progress attempt of the student for the exam when there is one.
		// It returns ErrAlreadySubmitted when the student already submitted the exam.
		CreateAttempt(att Attempt) (Attempt, error)
		GetAttemptByID(id string) (Attempt, error)
		// GetAttemptInProgress returns the running attempt of the student for the exam, or ErrAttemptNotFound.
		GetAttemptInProgress(studentID, examID string) (Attempt, error)
		UpdateAttempt(att Attempt) (Attempt, error)
		// ExpiredAttempts lists the in-progress attempts whose deadline is before t.
		ExpiredAttempts(t time.Time) ([]Attempt, error)
		// CloseAttempt atomically records sub and marks the attempt as submitted.
		// It returns ErrAttemptClosed when the attempt is not in progress anymore.
		CloseAttempt(attemptID string, sub Submission) (Attempt, Submission, error)
	}

	// PDFRenderer renders answer sheets and result reports.
	PDFRenderer interface {
		SubmissionPDF(sub Submission, ex exam.Exam) ([]byte, error)
		ResultPDF(sub Submission, ex exam.Exam) ([]byte, error)
		ResultsPDF(ex exam.Exam, subs []Submission) ([]byte, error)
	}

	Service interface {
		Submit(student user.User, ns NewSubmission) (Submission, error)
		Evaluate(sub Submission, ev Evaluation) (Submission, error)
		Get(id string) (Submission, error)
		Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error)

		SavePdf(pdf PdfSubmission) (PdfSubmission, error)
		QueryPdfs(filter *PdfFilter, ordering []core.DBOrdering) ([]PdfSubmission, error)
		GetPdf(id string) (PdfSubmission, error)
		PdfsByExam(examID string) ([]PdfSubmission, error)
		// ResultPDF returns the file name and content of the result report of a submission.
		ResultPDF(sub Submission) (string, []byte, error)
		// ResultsPDF returns the file name and content of the results report of an exam.
		ResultsPDF(ex exam.Exam) (string, []byte, error)

		StartAttempt(student user.User, examID string) (Attempt, error)
		GetAttempt(id string) (Attempt, error)
		SaveAnswers(att Attempt, aa AttemptAnswers) (Attempt, error)
		SubmitAttempt(att Attempt, as AttemptSubmission) (Submission, error)
		// AutoSubmitExpired submits the attempts whose countdown (plus grace period) ran out.
		AutoSubmitExpired(ctx context.Context) (int, error)
	}

	service struct {
		repo        Repository
		examSvc     exam.Service
		usrSvc      user.Service
		renderer    PDFRenderer
		mailSvc     core.EmailService
		logger      core.Logger
		gracePeriod time.Duration
		passPct     float64
		nowFunc     func() time.Time
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	examSvc exam.Service,
	usrSvc user.Service,
	renderer PDFRenderer,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:        repo,
		examSvc:     examSvc,
		usrSvc:      usrSvc,
		renderer:    renderer,
		mailSvc:     mailSvc,
		logger:      logger,
		gracePeriod: conf.Exam.GracePeriod,
		passPct:     conf.Exam.PassPercentage,
		nowFunc:     time.Now,
	}
}

func (svc *service) now() time.Time { return svc.nowFunc().UTC() }

// openExam returns the exam if students can currently take it.
func (svc *service) openExam(id string) (exam.Exam, error) {
	ex, err := svc.examSvc.Get(id)
	if err != nil {
		return exam.Exam{}, err
	}
	if !ex.IsActive {
		return exam.Exam{}, exam.ErrNotFound
	}
	return ex, nil
}

func alreadySubmittedError() error {
	return core.NewValidationError(ErrAlreadySubmitted)
}

func (svc *service) Submit(student user.User, ns NewSubmission) (Submission, error) {
	if !student.IsStudent() {
		return Submission{}, ErrNotStudent
	}
	ex, err := svc.openExam(ns.ExamID)
	if err != nil {
		return Submission{}, err
	}

	// a running countdown keeps its deadline
	att, err := svc.repo.GetAttemptInProgress(student.ID, ex.ID)
	switch {
	case err == nil:
		return svc.SubmitAttempt(att, AttemptSubmission{Answers: ns.Answers})
	case !core.IsNotFound(err):
		return Submission{}, pkgerrors.Wrap(err, "finding attempt")
	}

	answers, err := orderAnswers(ex, ns.Answers)
	if err != nil {
		return Submission{}, err
	}

	sub, err := svc.repo.CreateSubmission(svc.newSubmission(student, ex, answers, false))
	if err != nil {
		if err == ErrAlreadySubmitted {
			return Submission{}, alreadySubmittedError()
		}
		return Submission{}, pkgerrors.Wrap(err, "creating submission")
	}
	svc.afterSubmit(sub, ex)
	return sub, nil
}

func (svc *service) newSubmission(student user.User, ex exam.Exam, answers []Answer, auto bool) Submission {
	return Submission{
		ID:            uuid.New().String(),
		ExamID:        ex.ID,
		StudentID:     student.ID,
		StudentName:   student.Name,
		RollNo:        student.RollNo,
		Answers:       answers,
		SubmittedAt:   svc.now(),
		AutoSubmitted: auto,
	}
}

type submissionReceivedData struct {
	TeacherName   string
	StudentName   string
	RollNo        string
	ExamID        string
	ExamTitle     string
	FileName      string
	AutoSubmitted bool
}

// afterSubmit renders and stores the answer sheet, then mails it to the exam author.
// Failures are logged: the submission itself is already recorded.
func (svc *service) afterSubmit(sub Submission, ex exam.Exam) {
	content, err := svc.renderer.SubmissionPDF(sub, ex)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("rendering pdf of submission %s: %v", sub.ID, err), err, &sub, &ex)
		return
	}
	pdf, err := svc.SavePdf(PdfSubmission{
		ID:           uuid.New().String(),
		ExamID:       sub.ExamID,
		StudentID:    sub.StudentID,
		SubmissionID: sub.ID,
		FileName:     PdfFileName(sub.StudentName, sub.RollNo, sub.ExamID),
		Payload:      content,
		SubmittedAt:  sub.SubmittedAt,
	})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("saving pdf of submission %s: %v", sub.ID, err), err, &sub)
		return
	}

	teacher, err := svc.usrSvc.GetByID(ex.CreatedBy)
	if err != nil {
		if !core.IsNotFound(err) {
			svc.logger.Error(fmt.Sprintf("finding author of exam %s: %v", ex.ID, err), err, &ex)
		}
		return
	}
	to, ok := teacher.MailAddress()
	if !ok {
		return
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      fmt.Sprintf("New submission: %s", ex.Title),
		TemplateName: "submission_received",
		TemplateData: submissionReceivedData{
			TeacherName:   teacher.Name,
			StudentName:   sub.StudentName,
			RollNo:        sub.RollNo,
			ExamID:        ex.ID,
			ExamTitle:     ex.Title,
			FileName:      pdf.FileName,
			AutoSubmitted: sub.AutoSubmitted,
		},
	}
	if err = msg.Attach(bytes.NewReader(content), pdf.FileName, "application/pdf"); err != nil {
		svc.logger.Error(fmt.Sprintf("attaching pdf of submission %s: %v", sub.ID, err), err, &sub)
		return
	}
	svc.mailSvc.SendMessages(msg)
}

type submissionEvaluatedData struct {
	StudentName  string
	SubmissionID string
	ExamTitle    string
	Marks        string
	Total        int
	Percentage   string
	Status       string
	Feedback     string
}

func (svc *service) Evaluate(sub Submission, ev Evaluation) (Submission, error) {
	if ev.Marks == nil {
		return Submission{}, core.NewValidationError(errMarksRequired, core.FieldError{
			Field: "marks",
			Error: "this field is required",
		})
	}
	total := sub.QuestionCount()
	marks := *ev.Marks
	if marks > float64(total) {
		msg := fmt.Sprintf("marks cannot exceed %d", total)
		return Submission{}, core.NewValidationError(errors.New(msg), core.FieldError{Field: "marks", Error: msg})
	}

	for i, ae := range ev.Answers {
		idx := -1
		for j, a := range sub.Answers {
			if a.QuestionID == ae.QuestionID {
				idx = j
				break
			}
		}
		if idx < 0 {
			return Submission{}, core.NewValidationError(ErrUnknownQuestion, core.FieldError{
				Field: fmt.Sprintf("answers[%d].question_id", i),
				Error: ErrUnknownQuestion.Error(),
			})
		}
		sub.Answers[idx].IsCorrect = ae.IsCorrect
		sub.Answers[idx].Feedback = ae.Feedback
	}

	var pct float64
	if total > 0 {
		pct = marks / float64(total) * 100
	}
	passed := pct >= svc.passPct
	now := svc.now()
	sub.Evaluated = true
	sub.Marks = &marks
	sub.Percentage = &pct
	sub.Passed = &passed
	sub.Feedback = ev.Feedback
	sub.EvaluatedAt = &now

	sub, err := svc.repo.UpdateSubmission(sub)
	if err != nil {
		return Submission{}, pkgerrors.Wrap(err, "updating submission")
	}
	svc.sendEvaluatedMail(sub)
	return sub, nil
}

func (svc *service) sendEvaluatedMail(sub Submission) {
	student, err := svc.usrSvc.GetByID(sub.StudentID)
	if err != nil {
		if !core.IsNotFound(err) {
			svc.logger.Error(fmt.Sprintf("finding student %s: %v", sub.StudentID, err), err, &sub)
		}
		return
	}
	to, ok := student.MailAddress()
	if !ok {
		return
	}
	var title string
	if ex, err := svc.examSvc.Get(sub.ExamID); err == nil {
		title = ex.Title
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{to},
		Subject:      fmt.Sprintf("Your result: %s", title),
		TemplateName: "submission_evaluated",
		TemplateData: submissionEvaluatedData{
			StudentName:  sub.StudentName,
			SubmissionID: sub.ID,
			ExamTitle:    title,
			Marks:        strconv.FormatFloat(*sub.Marks, 'f', -1, 64),
			Total:        sub.QuestionCount(),
			Percentage:   strconv.FormatFloat(*sub.Percentage, 'f', 2, 64),
			Status:       sub.Status(),
			Feedback:     sub.Feedback,
		},
	})
}

func (svc *service) Get(id string) (Submission, error) {
	return svc.repo.GetSubmissionByID(id)
}

func (svc *service) Query(filter *QueryFilter, ordering []core.DBOrdering) ([]Submission, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.FilterSubmissions(filter, ordering)
}

func (svc *service) SavePdf(pdf PdfSubmission) (PdfSubmission, error) {
	if pdf.ID == "" {
		pdf.ID = uuid.New().String()
	}
	if pdf.SubmittedAt.IsZero() {
		pdf.SubmittedAt = svc.now()
	}
	pdf.Size = len(pdf.Payload)
	return svc.repo.CreatePdf(pdf)
}

func (svc *service) QueryPdfs(filter *PdfFilter, ordering []core.DBOrdering) ([]PdfSubmission, error) {
	if filter == nil {
		filter = new(PdfFilter)
	}
	filter.Clean()
	return svc.repo.FilterPdfs(filter, ordering)
}

func (svc *service) GetPdf(id string) (PdfSubmission, error) {
	return svc.repo.GetPdfByID(id, true /* withPayload */)
}

func (svc *service) PdfsByExam(examID string) ([]PdfSubmission, error) {
	return svc.QueryPdfs(&PdfFilter{ExamID: examID}, []core.DBOrdering{{Field: "submitted_at", Ascending: true}})
}

func (svc *service) ResultPDF(sub Submission) (string, []byte, error) {
	ex, err := svc.examSvc.Get(sub.ExamID)
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "finding exam")
	}
	content, err := svc.renderer.ResultPDF(sub, ex)
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "rendering result pdf")
	}
	name := "result_" + PdfFileName(sub.StudentName, sub.RollNo, sub.ExamID)
	return name, content, nil
}

func (svc *service) ResultsPDF(ex exam.Exam) (string, []byte, error) {
	subs, err := svc.Query(&QueryFilter{ExamID: ex.ID}, []core.DBOrdering{{Field: "roll_no", Ascending: true}})
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "querying submissions")
	}
	content, err := svc.renderer.ResultsPDF(ex, subs)
	if err != nil {
		return "", nil, pkgerrors.Wrap(err, "rendering results pdf")
	}
	return fmt.Sprintf("results_%s.pdf", ex.ID), content, nil
}

// Attempts

func (svc *service) StartAttempt(student user.User, examID string) (Attempt, error) {
	if !student.IsStudent() {
		return Attempt{}, ErrNotStudent
	}
	ex, err := svc.openExam(examID)
	if err != nil {
		return Attempt{}, err
	}
	now := svc.now()
	att, err := svc.repo.CreateAttempt(Attempt{
		ID:        uuid.New().String(),
		ExamID:    ex.ID,
		StudentID: student.ID,
		StartedAt: now,
		Deadline:  now.Add(ex.DurationTime()),
		Answers:   make([]Answer, 0),
		Status:    AttemptInProgress,
		UpdatedAt: now,
	})
	if err != nil {
		if err == ErrAlreadySubmitted {
			return Attempt{}, alreadySubmittedError()
		}
		return Attempt{}, pkgerrors.Wrap(err, "creating attempt")
	}
	return att, nil
}

func (svc *service) GetAttempt(id string) (Attempt, error) {
	return svc.repo.GetAttemptByID(id)
}

func (svc *service) SaveAnswers(att Attempt, aa AttemptAnswers) (Attempt, error) {
	if !att.InProgress() {
		return Attempt{}, core.NewValidationError(ErrAttemptClosed)
	}
	now := svc.now()
	if now.After(att.Deadline) {
		return Attempt{}, core.NewValidationError(ErrTimeUp)
	}
	ex, err := svc.examSvc.Get(att.ExamID)
	if err != nil {
		return Attempt{}, pkgerrors.Wrap(err, "finding exam")
	}
	answers, err := mergeAnswers(ex, att.Answers, aa.Answers)
	if err != nil {
		return Attempt{}, err
	}
	att.Answers = answers
	att.UpdatedAt = now
	return svc.repo.UpdateAttempt(att)
}

func (svc *service) SubmitAttempt(att Attempt, as AttemptSubmission) (Submission, error) {
	if !att.InProgress() {
		return Submission{}, core.NewValidationError(ErrAttemptClosed)
	}
	now := svc.now()
	if now.After(att.Deadline.Add(svc.gracePeriod)) {
		return Submission{}, core.NewValidationError(ErrTimeUp)
	}
	ex, err := svc.examSvc.Get(att.ExamID)
	if err != nil {
		return Submission{}, pkgerrors.Wrap(err, "finding exam")
	}
	answers, err := mergeAnswers(ex, att.Answers, as.Answers)
	if err != nil {
		return Submission{}, err
	}
	auto := as.AutoSubmitted || now.After(att.Deadline)
	return svc.closeAttempt(att, ex, answers, auto)
}

func (svc *service) closeAttempt(att Attempt, ex exam.Exam, answers []Answer, auto bool) (Submission, error) {
	student, err := svc.usrSvc.GetByID(att.StudentID)
	if err != nil {
		if !core.IsNotFound(err) {
			return Submission{}, pkgerrors.Wrap(err, "finding student")
		}
		student = user.User{ID: att.StudentID, Role: user.RoleStudent}
	}
	_, sub, err := svc.repo.CloseAttempt(att.ID, svc.newSubmission(student, ex, answers, auto))
	if err != nil {
		switch err {
		case ErrAttemptClosed:
			return Submission{}, core.NewValidationError(err)
		case ErrAlreadySubmitted:
			return Submission{}, alreadySubmittedError()
		}
		return Submission{}, pkgerrors.Wrap(err, "closing attempt")
	}
	svc.afterSubmit(sub, ex)
	return sub, nil
}

func (svc *service) AutoSubmitExpired(ctx context.Context) (int, error) {
	expired, err := svc.repo.ExpiredAttempts(svc.now().Add(-svc.gracePeriod))
	if err != nil {
		return 0, pkgerrors.Wrap(err, "querying expired attempts")
	}

	var count int
	for _, att := range expired {
		if err = ctx.Err(); err != nil {
			return count, err
		}

		ex, err := svc.examSvc.Get(att.ExamID)
		if err != nil {
			if !core.IsNotFound(err) {
				return count, pkgerrors.Wrap(err, "finding exam")
			}
			att.Status = AttemptExpired
			att.UpdatedAt = svc.now()
			if _, err = svc.repo.UpdateAttempt(att); err != nil {
				return count, pkgerrors.Wrap(err, "expiring attempt")
			}
			svc.logger.Warn(fmt.Sprintf("attempt %s expired: its exam was deleted", att.ID), &att)
			continue
		}

		answers, err := mergeAnswers(ex, att.Answers, nil)
		if err != nil {
			return count, pkgerrors.Wrap(err, "merging answers")
		}
		if _, err = svc.closeAttempt(att, ex, answers, true /* auto */); err != nil {
			var vErr *core.ValidationError
			if errors.As(err, &vErr) {
				continue // submitted concurrently
			}
			return count, err
		}
		count++
	}
	return count, nil
}
