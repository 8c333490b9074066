package tests

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
	"github.com/chetansharma-meta/Exam-Portal/services/email"
	"github.com/chetansharma-meta/Exam-Portal/tests"
)

var errSubmissionNotFound = httpErr{Error: "submission not found"}

func Test_submissionApi_create(t *testing.T) {
	testutil.ResetDB(t, db)
	emailsvc.ResetSentMessages()

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "teach@test.cd", "", true)
	student := testutil.CreateStudent(t, usrRepo, "Good Student", "2001", "", "", true)
	ex := testutil.CreateExam(t, examRepo, teacher, "Algebra", "Maths", true, testutil.Questions(exam.DifficultyEasy, exam.DifficultyHard))
	path := "/v1/exams/" + ex.ID + "/submissions"
	token := getToken(t, student)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Student required", token: getToken(t, teacher), body: []byte(`{}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "Unknown exam", path: "/v1/exams/lol/submissions", token: token, body: []byte(`{}`), wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errExamNotFound),
		},
		{
			name: "Unknown question", token: token, body: []byte(`{"answers":[{"question_id":"q1"},{"question_id":"lol"}]}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"answers[1].question_id": submission.ErrUnknownQuestion.Error()}),
		},
		{
			name: "Question required", token: token, body: []byte(`{"answers":[{"text":"?"}]}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"answers[0].question_id": "this field is required"}),
		},
		{name: "Submitted", token: token, body: []byte(`{"answers":[{"question_id":"q2","text":"4"}]}`), wantCode: http.StatusCreated},
		{
			name: "One submission per exam", token: token, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: submission.ErrAlreadySubmitted.Error()}),
		},
	}
	for i := range tests {
		if tests[i].path == "" {
			tests[i].path = path
		}
	}
	runTests(t, http.MethodPost, tests)

	subs, err := subRepo.FilterSubmissions(&submission.QueryFilter{ExamID: ex.ID}, nil)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	sub := subs[0]
	assert.Equal(t, "Good Student", sub.StudentName)
	require.Len(t, sub.Answers, 2, "one answer per question")
	assert.Equal(t, "q1", sub.Answers[0].QuestionID)
	assert.True(t, sub.Answers[0].IsEmpty())
	assert.Equal(t, "4", sub.Answers[1].Text)

	// the answer sheet is rendered and mailed to the author
	pdfs, err := subRepo.FilterPdfs(&submission.PdfFilter{ExamID: ex.ID}, nil)
	require.NoError(t, err)
	require.Len(t, pdfs, 1)
	assert.Equal(t, "GoodStudent_2001_"+ex.ID+".pdf", pdfs[0].FileName)
	assert.Equal(t, sub.ID, pdfs[0].SubmissionID)

	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent, "no email sent")
	assert.Equal(t, "teach@test.cd", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, `submitted "Algebra"`)
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, pdfs[0].FileName, msg.Attachments[0].Filename)
}

func Test_submissionApi_query(t *testing.T) {
	testutil.ResetDB(t, db)

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "", "", true)
	hero := testutil.CreateStudent(t, usrRepo, "Hero", "2001", "", "", true)
	king := testutil.CreateStudent(t, usrRepo, "King", "2002", "", "", true)
	algebra := testutil.CreateExam(t, examRepo, teacher, "Algebra", "Maths", true, testutil.Questions(exam.DifficultyEasy))
	optics := testutil.CreateExam(t, examRepo, teacher, "Optics", "Physics", true, testutil.Questions(exam.DifficultyEasy))

	sub1 := testutil.CreateSubmission(t, subRepo, algebra, hero, "a")
	time.Sleep(time.Millisecond)
	sub2 := testutil.CreateSubmission(t, subRepo, algebra, king, "b")
	time.Sleep(time.Millisecond)
	sub3 := testutil.CreateSubmission(t, subRepo, optics, hero, "c")

	teacherToken := getToken(t, teacher)
	heroToken := getToken(t, hero)

	tests := []httpTest{
		{name: "Auth required", path: "/v1/submissions", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Teacher sees all", path: "/v1/submissions", token: teacherToken, wantData: marchallList(t, sub3, sub2, sub1)},
		{name: "by exam", path: "/v1/submissions?exam_id=" + algebra.ID, token: teacherToken, wantData: marchallList(t, sub2, sub1)},
		{name: "by roll number", path: "/v1/submissions?exam_id=" + algebra.ID + "&ordering=roll_no", token: teacherToken, wantData: marchallList(t, sub1, sub2)},
		{name: "not evaluated", path: "/v1/submissions?evaluated=true", token: teacherToken, wantData: marchallList(t)},
		{name: "Student sees own", path: "/v1/submissions", token: heroToken, wantData: marchallList(t, sub3, sub1)},
		{name: "Student cannot peek", path: "/v1/submissions?student_id=" + king.ID, token: heroToken, wantData: marchallList(t, sub3, sub1)},
		{name: "Retrieve own", path: "/v1/submissions/" + sub1.ID, token: heroToken, wantData: marchallObj(t, sub1)},
		{
			name: "Retrieve other", path: "/v1/submissions/" + sub2.ID, token: heroToken, wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errSubmissionNotFound),
		},
		{name: "Teacher retrieves any", path: "/v1/submissions/" + sub2.ID, token: teacherToken, wantData: marchallObj(t, sub2)},
	}
	runTests(t, http.MethodGet, tests)
}

func Test_submissionApi_evaluate(t *testing.T) {
	testutil.ResetDB(t, db)
	emailsvc.ResetSentMessages()

	teacher := testutil.CreateTeacher(t, usrRepo, "Teacher", "teach", "", "", true)
	other := testutil.CreateTeacher(t, usrRepo, "Other", "other", "", "", true)
	student := testutil.CreateStudent(t, usrRepo, "Hero", "2001", "hero@test.cd", "", true)
	ex := testutil.CreateExam(t, examRepo, teacher, "Algebra", "Maths", true, testutil.Questions(exam.DifficultyEasy, exam.DifficultyHard))
	sub := testutil.CreateSubmission(t, subRepo, ex, student, "2", "5")
	path := "/v1/submissions/" + sub.ID + "/evaluate"
	token := getToken(t, teacher)

	tests := []httpTest{
		{name: "Teacher required", token: getToken(t, student), body: []byte(`{"marks":2}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "Author required", token: getToken(t, other), body: []byte(`{"marks":2}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "Unknown submission", path: "/v1/submissions/lol/evaluate", token: token, body: []byte(`{"marks":2}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, errSubmissionNotFound),
		},
		{
			name: "Marks required", token: token, body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"marks": "this field is required"}),
		},
		{
			name: "Too many marks", token: token, body: []byte(`{"marks":3}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"marks": "marks cannot exceed 2"}),
		},
		{
			name: "Unknown question", token: token, body: []byte(`{"marks":1,"answers":[{"question_id":"lol","is_correct":true}]}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"answers[0].question_id": submission.ErrUnknownQuestion.Error()}),
		},
		{
			name: "Evaluated", token: token,
			body: []byte(`{"marks":1.5,"feedback":" Nice try ","answers":[{"question_id":"q1","is_correct":true},{"question_id":"q2","is_correct":false,"feedback":"2 + 2 = 4"}]}`),
		},
	}
	for i := range tests {
		if tests[i].path == "" {
			tests[i].path = path
		}
	}
	runTests(t, http.MethodPost, tests)

	evaluated, err := subRepo.GetSubmissionByID(sub.ID)
	require.NoError(t, err)
	assert.True(t, evaluated.Evaluated)
	require.NotNil(t, evaluated.Marks)
	assert.Equal(t, 1.5, *evaluated.Marks)
	assert.Equal(t, 75.0, *evaluated.Percentage)
	require.NotNil(t, evaluated.Passed)
	assert.True(t, *evaluated.Passed)
	assert.Equal(t, "Nice try", evaluated.Feedback)
	assert.True(t, *evaluated.Answers[0].IsCorrect)
	assert.False(t, *evaluated.Answers[1].IsCorrect)
	assert.Equal(t, "2 + 2 = 4", evaluated.Answers[1].Feedback)

	msg, sent := emailsvc.LastSentMessage()
	require.True(t, sent, "no email sent")
	assert.Equal(t, "hero@test.cd", msg.To[0].Address)
	assert.Contains(t, msg.TextContent, "Marks: 1.5 / 2 (75.00%)")
	assert.Contains(t, msg.TextContent, "Result: Pass")

	// the student downloads the result
	req, rec := newAuthRequest(http.MethodGet, "/v1/submissions/"+sub.ID+"/result.pdf", getToken(t, student))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="result_Hero_2001_`+ex.ID+`.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")), "not a pdf")
}
