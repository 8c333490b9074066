package submission

import (
	"time"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

// NewServiceMock returns a Service reading the time from nowFunc.
func NewServiceMock(
	repo Repository,
	examSvc exam.Service,
	usrSvc user.Service,
	renderer PDFRenderer,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
	nowFunc func() time.Time,
) Service {
	svc := NewService(repo, examSvc, usrSvc, renderer, mailSvc, logger, conf).(*service)
	svc.nowFunc = nowFunc
	return svc
}
