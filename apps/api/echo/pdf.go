package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

const mimeApplicationPDF = "application/pdf"

type pdfApi struct {
	usrSvc user.Service
	svc    submission.Service
}

func registerPdfAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	usrSvc user.Service,
	examSvc exam.Service,
	svc submission.Service,
) {
	api := pdfApi{usrSvc: usrSvc, svc: svc}

	g.GET("/exams/:id/pdf-submissions", api.queryByExam,
		jwt, activeUserMiddleware(usrSvc), teacherMiddleware(), examMiddleware(usrSvc, examSvc, true /* ownerOnly */))

	pg := g.Group("/pdf-submissions", jwt, activeUserMiddleware(usrSvc))
	pg.GET("", api.query, teacherMiddleware())
	pg.GET("/:id", api.retrieve, pdfMiddleware(usrSvc, svc))
	pg.GET("/:id/download", api.download, pdfMiddleware(usrSvc, svc))
}

func sendPDF(ctx echo.Context, name string, content []byte) error {
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return ctx.Blob(http.StatusOK, mimeApplicationPDF, content)
}

// Handlers

func (api *pdfApi) query(ctx echo.Context) error {
	filter := new(submission.PdfFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []submission.PdfSubmission{})
	}
	ordering := new(Ordering)
	ordering.Bind(ctx)

	pdfs, err := api.svc.QueryPdfs(filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying pdf submissions")
	}
	return ctx.JSON(http.StatusOK, pdfs)
}

func (api *pdfApi) queryByExam(ctx echo.Context) error {
	ex, err := ctxExam(ctx)
	if err != nil {
		return err
	}
	pdfs, err := api.svc.PdfsByExam(ex.ID)
	if err != nil {
		return errors.Wrap(err, "querying pdf submissions of exam")
	}
	return ctx.JSON(http.StatusOK, pdfs)
}

func (api *pdfApi) retrieve(ctx echo.Context) error {
	pdf, err := ctxPdf(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, pdf)
}

func (api *pdfApi) download(ctx echo.Context) error {
	pdf, err := ctxPdf(ctx)
	if err != nil {
		return err
	}
	if len(pdf.Payload) == 0 {
		return submission.ErrPdfNotFound
	}
	return sendPDF(ctx, pdf.FileName, pdf.Payload)
}
