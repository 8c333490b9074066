package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

// attemptApi drives the exam countdown: attempts are started, saved as drafts, then submitted.
type attemptApi struct {
	usrSvc   user.Service
	svc      submission.Service
	validate *validator.Validate
}

func registerAttemptAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	svc submission.Service,
	validate *validator.Validate,
) {
	api := attemptApi{usrSvc: usrSvc, svc: svc, validate: validate}

	g.POST("/exams/:id/attempts", api.start, jwt, activeUserMiddleware(usrSvc), studentMiddleware())

	ag := g.Group("/attempts", jwt, activeUserMiddleware(usrSvc), studentMiddleware())
	ag.GET("/:id", api.retrieve, attemptMiddleware(usrSvc, svc))
	ag.PUT("/:id/answers", api.saveAnswers, attemptMiddleware(usrSvc, svc))
	ag.POST("/:id/submit", api.submit, attemptMiddleware(usrSvc, svc))
}

func attemptView(att submission.Attempt) submission.AttemptView {
	return submission.NewAttemptView(att, time.Now().UTC())
}

// Handlers

// start begins the countdown of an exam, or resumes the running one.
func (api *attemptApi) start(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	att, err := api.svc.StartAttempt(ctxUsr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	return ctx.JSON(http.StatusCreated, attemptView(att))
}

func (api *attemptApi) retrieve(ctx echo.Context) error {
	att, err := ctxAttempt(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, attemptView(att))
}

func (api *attemptApi) saveAnswers(ctx echo.Context) error {
	att, err := ctxAttempt(ctx)
	if err != nil {
		return err
	}

	var data submission.AttemptAnswers
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttemptAnswers")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	att, err = api.svc.SaveAnswers(att, data)
	if err != nil {
		return errors.Wrap(err, "saving answers")
	}
	return ctx.JSON(http.StatusOK, attemptView(att))
}

func (api *attemptApi) submit(ctx echo.Context) error {
	att, err := ctxAttempt(ctx)
	if err != nil {
		return err
	}

	var data submission.AttemptSubmission
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AttemptSubmission")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	sub, err := api.svc.SubmitAttempt(att, data)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusCreated, sub)
}
