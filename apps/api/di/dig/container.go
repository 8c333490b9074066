package dig_container

import (
	"fmt"
	"io"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/chetansharma-meta/Exam-Portal/apps/api/echo"
	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
	emailsvc "github.com/chetansharma-meta/Exam-Portal/services/email"
	logsvc "github.com/chetansharma-meta/Exam-Portal/services/logger"
	pdfsvc "github.com/chetansharma-meta/Exam-Portal/services/pdf"
	"github.com/chetansharma-meta/Exam-Portal/storage/database"
	inmemdb "github.com/chetansharma-meta/Exam-Portal/storage/database/inmem"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// Storage is the opened DB along with the closer of its backing file.
type Storage struct {
	DB     *inmemdb.DB
	Closer io.Closer
}

type ServerParams struct {
	dig.In
	Conf          *core.Config
	Logger        core.Logger
	Validate      *validator.Validate
	Translator    ut.Translator
	UserSvc       user.Service
	ExamSvc       exam.Service
	SubmissionSvc submission.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!(conf.Debug || conf.TestMode))
	return logger
}

func newStorage(conf *core.Config, loggerParam DBLoggerParam) Storage {
	logger := loggerParam.Logger

	db, closer, err := database.Open(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	if conf.SeedDemoData {
		seeded, err := database.Seed(db)
		if err != nil {
			logger.Fatal(fmt.Sprintf("seeding database: %v", err), err)
		}
		if seeded {
			logger.Info("database seeded with demo data")
		}
	}
	return Storage{DB: db, Closer: closer}
}

func newUserRepository(s Storage) user.Repository { return inmemdb.NewUserRepository(s.DB) }

func newExamRepository(s Storage) exam.Repository { return inmemdb.NewExamRepository(s.DB) }

func newSubmissionRepository(s Storage) submission.Repository {
	return inmemdb.NewSubmissionRepository(s.DB)
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newPDFRenderer(conf *core.Config) submission.PDFRenderer {
	return pdfsvc.NewRenderer(conf.AppName)
}

func newServer(p ServerParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Deps{
		Conf:          p.Conf,
		Logger:        p.Logger,
		Validate:      p.Validate,
		Translator:    p.Translator,
		UserSvc:       p.UserSvc,
		ExamSvc:       p.ExamSvc,
		SubmissionSvc: p.SubmissionSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newStorage))
	must(c.Provide(newEmailService))
	must(c.Provide(newPDFRenderer))
	must(c.Provide(newUserRepository))
	must(c.Provide(newExamRepository))
	must(c.Provide(newSubmissionRepository))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(exam.NewService))
	must(c.Provide(submission.NewService))
	must(c.Provide(submission.NewProctor))
	must(c.Provide(newServer))

	return c
}

// Visualize writes the dependency graph in DOT format.
func Visualize(c *dig.Container, w io.Writer) error {
	return dig.Visualize(c, w)
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
