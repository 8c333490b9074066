package submission_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
	emailsvc "github.com/chetansharma-meta/Exam-Portal/services/email"
	pdfsvc "github.com/chetansharma-meta/Exam-Portal/services/pdf"
	inmemdb "github.com/chetansharma-meta/Exam-Portal/storage/database/inmem"
	"github.com/chetansharma-meta/Exam-Portal/tests"
)

type testEnv struct {
	conf     *core.Config
	usrRepo  user.Repository
	examRepo exam.Repository
	subRepo  submission.Repository
	examSvc  exam.Service
	svc      submission.Service
	now      time.Time

	teacher user.User
	student user.User
	ex      exam.Exam
}

func setup(t *testing.T) *testEnv {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(conf, logger)
	emailsvc.ResetSentMessages()

	db := testutil.PrepareDB(t)
	env := &testEnv{
		conf:     conf,
		usrRepo:  inmemdb.NewUserRepository(db),
		examRepo: inmemdb.NewExamRepository(db),
		subRepo:  inmemdb.NewSubmissionRepository(db),
		now:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	usrSvc := user.NewServiceMock(env.usrRepo, mailSvc, conf)
	env.examSvc = exam.NewService(env.examRepo)
	env.svc = submission.NewServiceMock(
		env.subRepo, env.examSvc, usrSvc, pdfsvc.NewRenderer(conf.AppName), mailSvc, logger, conf,
		func() time.Time { return env.now },
	)

	env.teacher = testutil.CreateTeacher(t, env.usrRepo, "Teacher", "teach", "teach@test.cd", "pwd", true)
	env.student = testutil.CreateStudent(t, env.usrRepo, "Good Student", "2001", "student@test.cd", "pwd", true)
	env.ex = testutil.CreateExam(t, env.examRepo, env.teacher, "Algebra", "Maths", true,
		testutil.Questions(exam.DifficultyEasy, exam.DifficultyMedium, exam.DifficultyHard))
	return env
}

func validationCause(t *testing.T, err error) error {
	t.Helper()
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T (%v)", err, err)
	return vErr.Err
}

func pngDataURL(t *testing.T) string {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.Black)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestService_Submit(t *testing.T) {
	env := setup(t)
	draft := testutil.CreateExam(t, env.examRepo, env.teacher, "Draft", "Maths", false, testutil.Questions(exam.DifficultyEasy))

	_, err := env.svc.Submit(env.teacher, submission.NewSubmission{ExamID: env.ex.ID})
	assert.Equal(t, submission.ErrNotStudent, err)

	_, err = env.svc.Submit(env.student, submission.NewSubmission{ExamID: draft.ID})
	assert.Equal(t, exam.ErrNotFound, err, "inactive exams cannot be submitted")

	_, err = env.svc.Submit(env.student, submission.NewSubmission{ExamID: "lol"})
	assert.True(t, core.IsNotFound(err))

	_, err = env.svc.Submit(env.student, submission.NewSubmission{
		ExamID:  env.ex.ID,
		Answers: []submission.NewAnswer{{QuestionID: "lol", Text: "?"}},
	})
	assert.Equal(t, submission.ErrUnknownQuestion, validationCause(t, err))

	sub, err := env.svc.Submit(env.student, submission.NewSubmission{
		ExamID: env.ex.ID,
		Answers: []submission.NewAnswer{
			{QuestionID: "q3", Text: "third"},
			{QuestionID: "q1", ImageData: pngDataURL(t)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, env.student.ID, sub.StudentID)
	assert.Equal(t, "Good Student", sub.StudentName)
	assert.Equal(t, "2001", sub.RollNo)
	assert.Equal(t, env.now, sub.SubmittedAt)
	assert.False(t, sub.AutoSubmitted)
	assert.False(t, sub.Evaluated)
	require.Len(t, sub.Answers, 3)
	assert.Equal(t, []string{"q1", "q2", "q3"}, []string{sub.Answers[0].QuestionID, sub.Answers[1].QuestionID, sub.Answers[2].QuestionID})
	assert.NotEmpty(t, sub.Answers[0].ImageData)
	assert.True(t, sub.Answers[1].IsEmpty())
	assert.Equal(t, "third", sub.Answers[2].Text)

	// the answer sheet is rendered and stored
	pdfs, err := env.svc.PdfsByExam(env.ex.ID)
	require.NoError(t, err)
	require.Len(t, pdfs, 1)
	assert.Equal(t, "GoodStudent_2001_"+env.ex.ID+".pdf", pdfs[0].FileName)
	assert.Equal(t, sub.ID, pdfs[0].SubmissionID)
	pdf, err := env.svc.GetPdf(pdfs[0].ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf.Payload, []byte("%PDF-")))
	assert.Equal(t, len(pdf.Payload), pdf.Size)

	// and mailed to the author of the exam
	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no email sent")
	assert.Equal(t, "teach@test.cd", msg.To[0].Address)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, pdf.FileName, msg.Attachments[0].Filename)
	assert.Contains(t, msg.TextContent, "Good Student")

	// only once
	_, err = env.svc.Submit(env.student, submission.NewSubmission{ExamID: env.ex.ID})
	assert.Equal(t, submission.ErrAlreadySubmitted, validationCause(t, err))
}

func TestService_Evaluate(t *testing.T) {
	env := setup(t)
	sub := testutil.CreateSubmission(t, env.subRepo, env.ex, env.student, "a", "b")
	fPtr := func(f float64) *float64 { return &f }
	bPtr := func(b bool) *bool { return &b }

	_, err := env.svc.Evaluate(sub, submission.Evaluation{Feedback: "no marks"})
	require.Error(t, err)
	vErr, ok := errors.Cause(err).(*core.ValidationError)
	require.True(t, ok, "want *core.ValidationError, got %T (%v)", err, err)
	require.Len(t, vErr.Fields, 1)
	assert.Equal(t, "marks", vErr.Fields[0].Field)
	assert.Equal(t, submission.ResultPending, sub.Status())

	_, err = env.svc.Evaluate(sub, submission.Evaluation{Marks: fPtr(4)})
	require.Error(t, err)
	assert.Equal(t, "marks cannot exceed 3", err.Error())

	_, err = env.svc.Evaluate(sub, submission.Evaluation{
		Marks:   fPtr(1),
		Answers: []submission.AnswerEvaluation{{QuestionID: "lol"}},
	})
	assert.Equal(t, submission.ErrUnknownQuestion, validationCause(t, err))

	emailsvc.ResetSentMessages()
	evaluated, err := env.svc.Evaluate(sub, submission.Evaluation{
		Marks:    fPtr(1.5),
		Feedback: "Keep going",
		Answers: []submission.AnswerEvaluation{
			{QuestionID: "q2", IsCorrect: bPtr(true), Feedback: "good"},
			{QuestionID: "q1", IsCorrect: bPtr(false)},
		},
	})
	require.NoError(t, err)
	assert.True(t, evaluated.Evaluated)
	assert.Equal(t, 1.5, *evaluated.Marks)
	assert.Equal(t, 50.0, *evaluated.Percentage)
	assert.False(t, *evaluated.Passed, "below the pass percentage")
	assert.Equal(t, submission.ResultFail, evaluated.Status())
	assert.Equal(t, "Keep going", evaluated.Feedback)
	assert.Equal(t, env.now, *evaluated.EvaluatedAt)
	assert.False(t, *evaluated.Answers[0].IsCorrect)
	assert.True(t, *evaluated.Answers[1].IsCorrect)
	assert.Equal(t, "good", evaluated.Answers[1].Feedback)
	assert.Nil(t, evaluated.Answers[2].IsCorrect)

	stored, err := env.svc.Get(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, evaluated, stored)

	msg, ok := emailsvc.LastSentMessage()
	require.True(t, ok, "no email sent")
	assert.Equal(t, "student@test.cd", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "1.5 / 3 (50.00%)")
	assert.Contains(t, msg.TextContent, "Result: Fail")

	// re-evaluation above the pass percentage
	evaluated, err = env.svc.Evaluate(stored, submission.Evaluation{Marks: fPtr(2)})
	require.NoError(t, err)
	assert.InDelta(t, 66.67, *evaluated.Percentage, 0.01)
	assert.True(t, *evaluated.Passed)
	assert.Equal(t, submission.ResultPass, evaluated.Status())
}

func TestService_ResultPDFs(t *testing.T) {
	env := setup(t)
	sub := testutil.CreateSubmission(t, env.subRepo, env.ex, env.student, "a")

	name, content, err := env.svc.ResultPDF(sub)
	require.NoError(t, err)
	assert.Equal(t, "result_GoodStudent_2001_"+env.ex.ID+".pdf", name)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))

	name, content, err = env.svc.ResultsPDF(env.ex)
	require.NoError(t, err)
	assert.Equal(t, "results_"+env.ex.ID+".pdf", name)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
}

func TestService_Attempts(t *testing.T) {
	env := setup(t)
	started := env.now

	_, err := env.svc.StartAttempt(env.teacher, env.ex.ID)
	assert.Equal(t, submission.ErrNotStudent, err)

	att, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.AttemptInProgress, att.Status)
	assert.Equal(t, started, att.StartedAt)
	assert.Equal(t, started.Add(time.Hour), att.Deadline)

	// resuming keeps the countdown
	env.now = started.Add(10 * time.Minute)
	resumed, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)
	assert.Equal(t, att.ID, resumed.ID)
	assert.Equal(t, att.Deadline, resumed.Deadline)
	assert.Equal(t, 50*60, submission.NewAttemptView(resumed, env.now).RemainingSeconds)

	att, err = env.svc.SaveAnswers(att, submission.AttemptAnswers{Answers: []submission.NewAnswer{
		{QuestionID: "q2", Text: "draft"},
	}})
	require.NoError(t, err)
	att, err = env.svc.SaveAnswers(att, submission.AttemptAnswers{Answers: []submission.NewAnswer{
		{QuestionID: "q1", Text: "first"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "first", att.Answers[0].Text)
	assert.Equal(t, "draft", att.Answers[1].Text)

	// drafts cannot be saved once the countdown ran out
	env.now = att.Deadline.Add(time.Second)
	_, err = env.svc.SaveAnswers(att, submission.AttemptAnswers{})
	assert.Equal(t, submission.ErrTimeUp, validationCause(t, err))

	// but the attempt may still be submitted during the grace period
	sub, err := env.svc.SubmitAttempt(att, submission.AttemptSubmission{Answers: []submission.NewAnswer{
		{QuestionID: "q3", Text: "last"},
	}})
	require.NoError(t, err)
	assert.True(t, sub.AutoSubmitted)
	assert.Equal(t, []string{"first", "draft", "last"}, []string{sub.Answers[0].Text, sub.Answers[1].Text, sub.Answers[2].Text})

	closed, err := env.svc.GetAttempt(att.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.AttemptSubmitted, closed.Status)
	assert.Equal(t, sub.ID, closed.SubmissionID)

	_, err = env.svc.SubmitAttempt(closed, submission.AttemptSubmission{})
	assert.Equal(t, submission.ErrAttemptClosed, validationCause(t, err))

	_, err = env.svc.StartAttempt(env.student, env.ex.ID)
	assert.Equal(t, submission.ErrAlreadySubmitted, validationCause(t, err))
}

func TestService_Submit_runningAttempt(t *testing.T) {
	env := setup(t)
	started := env.now
	answers := []submission.NewAnswer{{QuestionID: "q2", Text: "final"}}

	att, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)
	_, err = env.svc.SaveAnswers(att, submission.AttemptAnswers{Answers: []submission.NewAnswer{
		{QuestionID: "q1", Text: "draft"},
	}})
	require.NoError(t, err)

	// past the deadline and the grace period
	env.now = att.Deadline.Add(env.conf.Exam.GracePeriod + time.Hour)
	_, err = env.svc.Submit(env.student, submission.NewSubmission{ExamID: env.ex.ID, Answers: answers})
	assert.Equal(t, submission.ErrTimeUp, validationCause(t, err))

	// within the grace period: flagged as late, drafts kept
	env.now = att.Deadline.Add(time.Second)
	sub, err := env.svc.Submit(env.student, submission.NewSubmission{ExamID: env.ex.ID, Answers: answers})
	require.NoError(t, err)
	assert.True(t, sub.AutoSubmitted)
	assert.Equal(t, "draft", sub.Answers[0].Text)
	assert.Equal(t, "final", sub.Answers[1].Text)

	closed, err := env.svc.GetAttempt(att.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.AttemptSubmitted, closed.Status)
	assert.Equal(t, sub.ID, closed.SubmissionID)

	// before the deadline
	other := testutil.CreateStudent(t, env.usrRepo, "Other", "2002", "", "pwd", true)
	env.now = started
	att, err = env.svc.StartAttempt(other, env.ex.ID)
	require.NoError(t, err)
	env.now = started.Add(20 * time.Minute)
	sub, err = env.svc.Submit(other, submission.NewSubmission{ExamID: env.ex.ID, Answers: answers})
	require.NoError(t, err)
	assert.False(t, sub.AutoSubmitted)
	assert.Equal(t, env.now, sub.SubmittedAt)

	closed, err = env.svc.GetAttempt(att.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.AttemptSubmitted, closed.Status)
}

func TestService_SubmitAttempt_timeUp(t *testing.T) {
	env := setup(t)

	att, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)

	env.now = att.Deadline.Add(env.conf.Exam.GracePeriod + time.Second)
	_, err = env.svc.SubmitAttempt(att, submission.AttemptSubmission{})
	assert.Equal(t, submission.ErrTimeUp, validationCause(t, err))
}

func TestService_SubmitAttempt_onTime(t *testing.T) {
	env := setup(t)

	att, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)

	env.now = env.now.Add(30 * time.Minute)
	sub, err := env.svc.SubmitAttempt(att, submission.AttemptSubmission{})
	require.NoError(t, err)
	assert.False(t, sub.AutoSubmitted)

	sub2, err := env.svc.Get(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, env.now, sub2.SubmittedAt)

	// a client submitting at zero flags the submission itself
	other := testutil.CreateStudent(t, env.usrRepo, "Other", "2002", "", "pwd", true)
	att, err = env.svc.StartAttempt(other, env.ex.ID)
	require.NoError(t, err)
	sub, err = env.svc.SubmitAttempt(att, submission.AttemptSubmission{AutoSubmitted: true})
	require.NoError(t, err)
	assert.True(t, sub.AutoSubmitted)
}

func TestProctor_Sweep(t *testing.T) {
	env := setup(t)
	proctor := submission.NewProctor(env.svc, testutil.NewLogger(env.conf), env.conf)
	ctx := context.Background()

	late := testutil.CreateStudent(t, env.usrRepo, "Late", "2002", "", "pwd", true)
	lateAtt, err := env.svc.StartAttempt(late, env.ex.ID)
	require.NoError(t, err)
	_, err = env.svc.SaveAnswers(lateAtt, submission.AttemptAnswers{Answers: []submission.NewAnswer{
		{QuestionID: "q1", Text: "saved before time ran out"},
	}})
	require.NoError(t, err)

	env.now = env.now.Add(30 * time.Minute)
	onTimeAtt, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, proctor.Sweep(ctx), "nothing expired yet")

	// within the grace period
	env.now = lateAtt.Deadline.Add(time.Second)
	assert.Equal(t, 0, proctor.Sweep(ctx))

	env.now = lateAtt.Deadline.Add(env.conf.Exam.GracePeriod + time.Second)
	assert.Equal(t, 1, proctor.Sweep(ctx))
	assert.Equal(t, 0, proctor.Sweep(ctx), "already submitted")

	subs, err := env.svc.Query(&submission.QueryFilter{StudentID: late.ID}, nil)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].AutoSubmitted)
	assert.Equal(t, "saved before time ran out", subs[0].Answers[0].Text)

	stillRunning, err := env.svc.GetAttempt(onTimeAtt.ID)
	require.NoError(t, err)
	assert.True(t, stillRunning.InProgress())
}

func TestProctor_Run(t *testing.T) {
	env := setup(t)
	proctor := submission.NewProctor(env.svc, testutil.NewLogger(env.conf), env.conf)

	att, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)
	env.now = att.Deadline.Add(env.conf.Exam.GracePeriod + time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		proctor.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		closed, err := env.svc.GetAttempt(att.ID)
		return err == nil && closed.Status == submission.AttemptSubmitted
	}, time.Second, env.conf.Exam.SweepInterval)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run() did not return after the context was cancelled")
	}

	subs, err := env.svc.Query(&submission.QueryFilter{StudentID: env.student.ID}, nil)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.True(t, subs[0].AutoSubmitted)
}

func TestService_AutoSubmitExpired_examDeleted(t *testing.T) {
	env := setup(t)

	att, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)
	require.NoError(t, env.examSvc.Delete(env.ex))

	env.now = att.Deadline.Add(env.conf.Exam.GracePeriod + time.Second)
	n, err := env.svc.AutoSubmitExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	expired, err := env.svc.GetAttempt(att.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.AttemptExpired, expired.Status)
}

func TestService_AutoSubmitExpired_cancelled(t *testing.T) {
	env := setup(t)

	_, err := env.svc.StartAttempt(env.student, env.ex.ID)
	require.NoError(t, err)
	env.now = env.now.Add(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := env.svc.AutoSubmitExpired(ctx)
	assert.Equal(t, context.Canceled, err)
	assert.Equal(t, 0, n)
}
