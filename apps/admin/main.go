package main

import (
	"log"
	"os"

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

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf := core.NewConfig()
	svcLogger := logsvc.NewRollbarLogger(logger, conf)
	svcLogger.Enable(false)

	// set up DB; the API must be stopped when using the bolt engine
	db, closer, err := database.Open(conf, svcLogger)
	errAndDie(err)

	// set up services
	mailSvc := emailsvc.NewConsoleService(conf, svcLogger)
	usrSvc := user.NewService(inmemdb.NewUserRepository(db), mailSvc, conf)
	examSvc := exam.NewService(inmemdb.NewExamRepository(db))
	subSvc := submission.NewService(
		inmemdb.NewSubmissionRepository(db),
		examSvc,
		usrSvc,
		pdfsvc.NewRenderer(conf.AppName),
		mailSvc,
		svcLogger,
		conf,
	)

	// start CLI
	cli := commandLine{
		usrSvc:  usrSvc,
		examSvc: examSvc,
		subSvc:  subSvc,
		out:     os.Stdout,
	}
	err = cli.run(os.Args)
	if cerr := closer.Close(); cerr != nil {
		logger.Printf("closing database: %v", cerr)
	}
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
