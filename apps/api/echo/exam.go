package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

type examApi struct {
	usrSvc   user.Service
	svc      exam.Service
	subSvc   submission.Service
	validate *validator.Validate
}

func registerExamAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	svc exam.Service,
	subSvc submission.Service,
	validate *validator.Validate,
) {
	api := examApi{usrSvc: usrSvc, svc: svc, subSvc: subSvc, validate: validate}

	eg := g.Group("/exams", jwt, activeUserMiddleware(usrSvc))
	eg.POST("", api.create, teacherMiddleware())
	eg.GET("", api.query)

	// detail endpoints
	owner := []echo.MiddlewareFunc{teacherMiddleware(), examMiddleware(usrSvc, svc, true /* ownerOnly */)}
	eg.GET("/:id", api.retrieve, examMiddleware(usrSvc, svc, false))
	eg.PUT("/:id", api.update, owner...)
	eg.PATCH("/:id/active", api.setActive, owner...)
	eg.DELETE("/:id", api.destroy, owner...)
	eg.GET("/:id/preview", api.preview, owner...)
	eg.GET("/:id/results.pdf", api.resultsPDF, owner...)
}

// Handlers

func (api *examApi) create(ctx echo.Context) error {
	var data exam.NewExam
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewExam")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	ex, err := api.svc.Create(ctxUsr, data)
	if err != nil {
		return errors.Wrap(err, "creating exam")
	}
	return ctx.JSON(http.StatusCreated, ex)
}

// query lists the exams of the teacher (unless created_by says otherwise), or the active exams for students.
func (api *examApi) query(ctx echo.Context) error {
	filter := new(exam.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []exam.Exam{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	ctxUsr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return err
	}
	if ctxUsr.IsStudent() {
		active := true
		filter.IsActive = &active
	} else if filter.CreatedBy == "" {
		filter.CreatedBy = ctxUsr.ID
	}

	exams, err := api.svc.Query(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying exams")
	}
	return ctx.JSON(http.StatusOK, exams)
}

func (api *examApi) retrieve(ctx echo.Context) error {
	ex, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) update(ctx echo.Context) error {
	ex, err := ctxExam(ctx)
	if err != nil {
		return err
	}

	var data exam.UpdateExam
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateExam")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ex, err = api.svc.Update(ex, data)
	if err != nil {
		return errors.Wrap(err, "updating exam")
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) setActive(ctx echo.Context) error {
	ex, err := ctxExam(ctx)
	if err != nil {
		return err
	}

	var data SetActiveRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetActiveRequest")
	}
	if err = api.validate.Struct(&data); err != nil {
		return err
	}

	ex, err = api.svc.SetActive(ex, *data.IsActive)
	if err != nil {
		return errors.Wrap(err, "setting exam active status")
	}
	return ctx.JSON(http.StatusOK, ex)
}

func (api *examApi) destroy(ctx echo.Context) error {
	ex, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.Delete(ex); err != nil {
		return errors.Wrap(err, "deleting exam")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *examApi) preview(ctx echo.Context) error {
	ex, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ex.Preview())
}

func (api *examApi) resultsPDF(ctx echo.Context) error {
	ex, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	name, content, err := api.subSvc.ResultsPDF(ex)
	if err != nil {
		return errors.Wrap(err, "exporting results")
	}
	return sendPDF(ctx, name, content)
}

type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}
