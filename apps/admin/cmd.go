package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"golang.org/x/term"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc  user.Service
	examSvc exam.Service
	subSvc  submission.Service
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  adduser -role student|teacher -name NAME -rollno ROLLNO|-username USERNAME [-email EMAIL] - create or reactivate a user")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword -username ROLLNO|USERNAME|EMAIL - reset user's password")
	_, _ = fmt.Fprintln(cli.out, "  exams [-teacher USERNAME] - list exams")
	_, _ = fmt.Fprintln(cli.out, "  results -exam ID - list the results of an exam")
	_, _ = fmt.Fprintln(cli.out, "  exportpdf -exam ID|-pdf ID -out FILE - export the results of an exam or a stored answer sheet")
}

func (cli *commandLine) readPassword(usage func()) (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserRole := addUserCmd.String("role", user.RoleStudent, "student or teacher.")
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserRollNo := addUserCmd.String("rollno", "", "The student's roll number.")
	addUserUname := addUserCmd.String("username", "", "The teacher's username.")
	addUserEmail := addUserCmd.String("email", "", "The user's email (optional).")
	addUserDept := addUserCmd.String("department", "", "The user's department (optional).")
	addUserSem := addUserCmd.String("semester", "", "The student's semester (optional).")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's roll number, username or email. The password will be prompted next.")

	examsCmd := flag.NewFlagSet("exams", flag.ContinueOnError)
	examsTeacher := examsCmd.String("teacher", "", "Only list the exams of this teacher (username).")

	resultsCmd := flag.NewFlagSet("results", flag.ContinueOnError)
	resultsExam := resultsCmd.String("exam", "", "The exam ID.")

	exportCmd := flag.NewFlagSet("exportpdf", flag.ContinueOnError)
	exportExam := exportCmd.String("exam", "", "Export the results of this exam.")
	exportPdf := exportCmd.String("pdf", "", "Export this stored answer sheet.")
	exportOut := exportCmd.String("out", "", "The output file.")

	for _, fs := range []*flag.FlagSet{addUserCmd, resetPasswordCmd, examsCmd, resultsCmd, exportCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		nu := newUser{
			role:       *addUserRole,
			name:       *addUserName,
			rollNo:     *addUserRollNo,
			username:   *addUserUname,
			email:      *addUserEmail,
			department: *addUserDept,
			semester:   *addUserSem,
		}
		if !nu.valid() {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(nu, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.readPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordUname, pwd)

	case "exams":
		if err := examsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.listExams(*examsTeacher)

	case "results":
		if err := resultsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *resultsExam == "" {
			resultsCmd.Usage()
			return errHelp
		}
		return cli.listResults(*resultsExam)

	case "exportpdf":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportOut == "" || (*exportExam == "") == (*exportPdf == "") {
			exportCmd.Usage()
			return errHelp
		}
		if *exportExam != "" {
			return cli.exportResults(*exportExam, *exportOut)
		}
		return cli.exportAnswerSheet(*exportPdf, *exportOut)

	default:
		cli.printUsage()
		return errHelp
	}
}
