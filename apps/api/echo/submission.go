package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

type submissionApi struct {
	usrSvc   user.Service
	examSvc  exam.Service
	svc      submission.Service
	validate *validator.Validate
}

func registerSubmissionAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	examSvc exam.Service,
	svc submission.Service,
	validate *validator.Validate,
) {
	api := submissionApi{usrSvc: usrSvc, examSvc: examSvc, svc: svc, validate: validate}

	g.POST("/exams/:id/submissions", api.create, jwt, activeUserMiddleware(usrSvc), studentMiddleware())

	sg := g.Group("/submissions", jwt, activeUserMiddleware(usrSvc))
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve, submissionMiddleware(usrSvc, svc))
	sg.POST("/:id/evaluate", api.evaluate, teacherMiddleware(), submissionMiddleware(usrSvc, svc))
	sg.GET("/:id/result.pdf", api.resultPDF, submissionMiddleware(usrSvc, svc))
}

// Handlers

func (api *submissionApi) create(ctx echo.Context) error {
	var data submission.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	data.ExamID = ctx.Param("id")
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	sub, err := api.svc.Submit(ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "submitting exam")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

// query lists any submission for teachers; students only get their own.
func (api *submissionApi) query(ctx echo.Context) error {
	filter := new(submission.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []submission.Submission{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if ctxUsr.IsStudent() {
		filter.StudentID = ctxUsr.ID
	}

	subs, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying submissions")
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *submissionApi) retrieve(ctx echo.Context) error {
	sub, err := ctxSubmission(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sub)
}

// evaluate grades a submission. Only the author of the exam may grade it.
func (api *submissionApi) evaluate(ctx echo.Context) error {
	sub, err := ctxSubmission(ctx)
	if err != nil {
		return err
	}
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	ex, err := api.examSvc.Get(sub.ExamID)
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding exam by ID")
	}
	if err != nil || ex.CreatedBy != ctxUsr.ID {
		return errHttpForbidden
	}

	var data submission.Evaluation
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Evaluation")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err = api.svc.Evaluate(sub, data)
	if err != nil {
		return errors.Wrap(err, "evaluating submission")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *submissionApi) resultPDF(ctx echo.Context) error {
	sub, err := ctxSubmission(ctx)
	if err != nil {
		return err
	}
	name, content, err := api.svc.ResultPDF(sub)
	if err != nil {
		return errors.Wrap(err, "exporting result")
	}
	return sendPDF(ctx, name, content)
}
