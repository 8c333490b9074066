package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

const (
	ctxExamKey       = "exam"
	ctxSubmissionKey = "submission"
	ctxAttemptKey    = "attempt"
	ctxPdfKey        = "pdf"
)

var errObjNotFoundInCtx = errors.New("object not found in echo.Context")

// activeUserMiddleware rejects tokens of deleted or deactivated users.
func activeUserMiddleware(svc user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx, svc)
			if err != nil {
				return err
			}
			if !usr.IsActive {
				return errAccountDeactivated
			}
			return next(ctx)
		}
	}
}

func roleMiddleware(role string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.Role != role {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

func teacherMiddleware() echo.MiddlewareFunc { return roleMiddleware(user.RoleTeacher) }
func studentMiddleware() echo.MiddlewareFunc { return roleMiddleware(user.RoleStudent) }

// examMiddleware loads the exam identified by the "id" path param.
// Students only see active exams. With ownerOnly, only the author gets through.
func examMiddleware(usrSvc user.Service, examSvc exam.Service, ownerOnly bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return err
			}
			ex, err := examSvc.Get(ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding exam by ID")
			}
			if ctxUsr.IsStudent() && !ex.IsActive {
				return exam.ErrNotFound
			}
			if ownerOnly && ex.CreatedBy != ctxUsr.ID {
				return errHttpForbidden
			}
			ctx.Set(ctxExamKey, ex)
			return next(ctx)
		}
	}
}

// submissionMiddleware loads the submission identified by the "id" path param.
// Students only see their own submissions.
func submissionMiddleware(usrSvc user.Service, subSvc submission.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return err
			}
			sub, err := subSvc.Get(ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding submission by ID")
			}
			if ctxUsr.IsStudent() && sub.StudentID != ctxUsr.ID {
				return submission.ErrNotFound
			}
			ctx.Set(ctxSubmissionKey, sub)
			return next(ctx)
		}
	}
}

// attemptMiddleware loads the attempt identified by the "id" path param. Attempts are private to their student.
func attemptMiddleware(usrSvc user.Service, subSvc submission.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return err
			}
			att, err := subSvc.GetAttempt(ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding attempt by ID")
			}
			if att.StudentID != ctxUsr.ID {
				return submission.ErrAttemptNotFound
			}
			ctx.Set(ctxAttemptKey, att)
			return next(ctx)
		}
	}
}

// pdfMiddleware loads the pdf submission identified by the "id" path param, payload included.
// Students only see their own answer sheets.
func pdfMiddleware(usrSvc user.Service, subSvc submission.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			ctxUsr, err := getContextUser(ctx, usrSvc)
			if err != nil {
				return err
			}
			pdf, err := subSvc.GetPdf(ctx.Param("id"))
			if err != nil {
				return errors.Wrap(err, "finding pdf submission by ID")
			}
			if ctxUsr.IsStudent() && pdf.StudentID != ctxUsr.ID {
				return submission.ErrPdfNotFound
			}
			ctx.Set(ctxPdfKey, pdf)
			return next(ctx)
		}
	}
}

func ctxExam(ctx echo.Context) (exam.Exam, error) {
	if ex, ok := ctx.Get(ctxExamKey).(exam.Exam); ok {
		return ex, nil
	}
	return exam.Exam{}, errors.Wrap(errObjNotFoundInCtx, "retrieving exam from context")
}

func ctxSubmission(ctx echo.Context) (submission.Submission, error) {
	if sub, ok := ctx.Get(ctxSubmissionKey).(submission.Submission); ok {
		return sub, nil
	}
	return submission.Submission{}, errors.Wrap(errObjNotFoundInCtx, "retrieving submission from context")
}

func ctxAttempt(ctx echo.Context) (submission.Attempt, error) {
	if att, ok := ctx.Get(ctxAttemptKey).(submission.Attempt); ok {
		return att, nil
	}
	return submission.Attempt{}, errors.Wrap(errObjNotFoundInCtx, "retrieving attempt from context")
}

func ctxPdf(ctx echo.Context) (submission.PdfSubmission, error) {
	if pdf, ok := ctx.Get(ctxPdfKey).(submission.PdfSubmission); ok {
		return pdf, nil
	}
	return submission.PdfSubmission{}, errors.Wrap(errObjNotFoundInCtx, "retrieving pdf submission from context")
}
