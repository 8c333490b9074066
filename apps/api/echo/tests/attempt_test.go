package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/core/user"
	"github.com/chetansharma-meta/Exam-Portal/tests"
)

// createAttempt stores an in-progress attempt whose deadline is deadlineIn from now.
func createAttempt(t *testing.T, ex exam.Exam, student user.User, deadlineIn time.Duration) submission.Attempt {
	now := time.Now().UTC()
	att, err := subRepo.CreateAttempt(submission.Attempt{
		ID:        uuid.New().String(),
		ExamID:    ex.ID,
		StudentID: student.ID,
		StartedAt: now.Add(deadlineIn - ex.DurationTime()),
		Deadline:  now.Add(deadlineIn),
		Answers:   make([]submission.Answer, 0),
		Status:    submission.AttemptInProgress,
		UpdatedAt: now,
	})
	require.NoError(t, err)
	return att
}

func Test_attemptApi_flow(t *testing.T) {
	testutil.ResetDB(t, db)

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "", "", true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "2001", "", "", true)
	other := testutil.CreateStudent(t, usrRepo, "King", "2002", "", "", true)
	ex := testutil.CreateExam(t, examRepo, teacher, "Algebra", "Maths", true, testutil.Questions(exam.DifficultyEasy, exam.DifficultyHard))
	draft := testutil.CreateExam(t, examRepo, teacher, "Optics", "Physics", false, testutil.Questions(exam.DifficultyEasy))
	token := getToken(t, student)

	// start
	tests := []httpTest{
		{name: "Auth required", path: "/v1/exams/" + ex.ID + "/attempts", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Student required", path: "/v1/exams/" + ex.ID + "/attempts", token: getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Draft exams cannot be taken", path: "/v1/exams/" + draft.ID + "/attempts", token: token,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errExamNotFound),
		},
	}
	runTests(t, http.MethodPost, tests)

	req, rec := newAuthRequest(http.MethodPost, "/v1/exams/"+ex.ID+"/attempts", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var view submission.AttemptView
	unmarshal(t, rec, &view)
	assert.Equal(t, ex.ID, view.ExamID)
	assert.Equal(t, submission.AttemptInProgress, view.Status)
	assert.InDelta(t, ex.Duration, view.RemainingSeconds, 5)
	assert.Equal(t, ex.Duration, int(view.Deadline.Sub(view.StartedAt).Seconds()))

	// starting again resumes the running attempt
	req, rec = newAuthRequest(http.MethodPost, "/v1/exams/"+ex.ID+"/attempts", token)
	app.ServeHTTP(rec, req)
	var resumed submission.AttemptView
	unmarshal(t, rec, &resumed)
	assert.Equal(t, view.ID, resumed.ID)

	path := "/v1/attempts/" + view.ID
	tests = []httpTest{
		{
			name: "Other students cannot see the attempt", path: path, token: getToken(t, other), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "attempt not found"}),
		},
		{name: "Unknown attempt", path: "/v1/attempts/lol", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "attempt not found"})},
		{name: "Retrieved", path: path, token: token},
	}
	runTests(t, http.MethodGet, tests)

	// save drafts
	tests = []httpTest{
		{
			name: "Unknown question", token: token, body: []byte(`{"answers":[{"question_id":"lol","text":"?"}]}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"answers[0].question_id": submission.ErrUnknownQuestion.Error()}),
		},
		{
			name: "Invalid image", token: token, body: []byte(`{"answers":[{"question_id":"q1","image_data":"lol"}]}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"answers[0].image_data": "image_data must be a data URL"}),
		},
		{name: "First answer", token: token, body: []byte(`{"answers":[{"question_id":"q1","text":"one"}]}`)},
		{name: "Second answer", token: token, body: []byte(`{"answers":[{"question_id":"q2","text":"two"}]}`)},
	}
	for i := range tests {
		tests[i].path = path + "/answers"
	}
	runTests(t, http.MethodPut, tests)

	att, err := subRepo.GetAttemptByID(view.ID)
	require.NoError(t, err)
	require.Len(t, att.Answers, 2)
	assert.Equal(t, "one", att.Answers[0].Text, "drafts are merged")
	assert.Equal(t, "two", att.Answers[1].Text)

	// submit
	req, rec = newAuthRequest(http.MethodPost, path+"/submit", token, []byte(`{"answers":[{"question_id":"q2","text":"2"}]}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub submission.Submission
	unmarshal(t, rec, &sub)
	assert.Equal(t, student.ID, sub.StudentID)
	assert.Equal(t, "2001", sub.RollNo)
	assert.False(t, sub.AutoSubmitted)
	require.Len(t, sub.Answers, 2)
	assert.Equal(t, "one", sub.Answers[0].Text)
	assert.Equal(t, "2", sub.Answers[1].Text)

	att, err = subRepo.GetAttemptByID(view.ID)
	require.NoError(t, err)
	assert.Equal(t, submission.AttemptSubmitted, att.Status)
	assert.Equal(t, sub.ID, att.SubmissionID)

	closed := marchallObj(t, httpErr{Error: submission.ErrAttemptClosed.Error()})
	tests = []httpTest{
		{name: "Submitted attempts are closed", path: path + "/submit", body: []byte(`{}`), token: token, wantCode: http.StatusBadRequest, wantData: closed},
		{name: "No more drafts", method: http.MethodPut, path: path + "/answers", body: []byte(`{}`), token: token, wantCode: http.StatusBadRequest, wantData: closed},
		{
			name: "One submission per exam", path: "/v1/exams/" + ex.ID + "/attempts", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: submission.ErrAlreadySubmitted.Error()}),
		},
	}
	runTests(t, http.MethodPost, tests)

	req, rec = newAuthRequest(http.MethodGet, path, token)
	app.ServeHTTP(rec, req)
	unmarshal(t, rec, &view)
	assert.Equal(t, 0, view.RemainingSeconds)
	assert.Equal(t, "0:00", view.TimeLeft)
}

func Test_attemptApi_timeUp(t *testing.T) {
	testutil.ResetDB(t, db)

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "", "", true)
	late := testutil.CreateStudent(t, usrRepo, "Late", "2001", "", "", true)
	tooLate := testutil.CreateStudent(t, usrRepo, "Too Late", "2002", "", "", true)
	ex := testutil.CreateExam(t, examRepo, teacher, "Algebra", "Maths", true, testutil.Questions(exam.DifficultyEasy))

	lateAtt := createAttempt(t, ex, late, -5*time.Second)
	tooLateAtt := createAttempt(t, ex, tooLate, -conf.Exam.GracePeriod-time.Minute)
	timeUp := marchallObj(t, httpErr{Error: submission.ErrTimeUp.Error()})

	tests := []httpTest{
		{
			name: "No drafts after the deadline", method: http.MethodPut, path: "/v1/attempts/" + lateAtt.ID + "/answers",
			token: getToken(t, late), body: []byte(`{"answers":[{"question_id":"q1","text":"late"}]}`), wantCode: http.StatusBadRequest, wantData: timeUp,
		},
		{
			name: "No submission after the grace period", path: "/v1/attempts/" + tooLateAtt.ID + "/submit",
			token: getToken(t, tooLate), body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: timeUp,
		},
		{
			name: "Countdown at zero", method: http.MethodGet, path: "/v1/attempts/" + lateAtt.ID, token: getToken(t, late),
			wantData: marchallObj(t, submission.NewAttemptView(lateAtt, time.Now())),
		},
	}
	runTests(t, http.MethodPost, tests)

	// within the grace period, late submissions are flagged
	req, rec := newAuthRequest(http.MethodPost, "/v1/attempts/"+lateAtt.ID+"/submit", getToken(t, late), []byte(`{"answers":[{"question_id":"q1","text":"late"}]}`))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub submission.Submission
	unmarshal(t, rec, &sub)
	assert.True(t, sub.AutoSubmitted)
	assert.Equal(t, "late", sub.Answers[0].Text)
}
