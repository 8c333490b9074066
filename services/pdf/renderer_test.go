package pdfsvc

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
)

func pngDataURL(t *testing.T) string {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

func testExam() exam.Exam {
	return exam.Exam{
		ID:    "exam-1",
		Title: "Algébra",
		Questions: []exam.Question{
			{ID: "q1", Text: "Draw a square.", Difficulty: exam.DifficultyEasy},
			{ID: "q2", Text: "Explain, at length, why the sum of the angles of a triangle is 180 degrees. " +
				"Use as many words as needed so that this question spans several lines of the page.", Difficulty: exam.DifficultyHard},
			{ID: "q3", Text: "Anything else?", Difficulty: exam.DifficultyMedium},
			{ID: "q4", Text: "Broken canvas?", Difficulty: exam.DifficultyMedium},
		},
	}
}

func TestDecodeImage(t *testing.T) {
	data, imgType, err := decodeImage(pngDataURL(t))
	require.NoError(t, err)
	assert.Equal(t, "PNG", imgType)
	assert.NotEmpty(t, data)

	for _, bad := range []string{
		"lol",
		"data:image/png,abc",
		"data:image/png;base64,!!!",
		"data:text/plain;base64," + base64.StdEncoding.EncodeToString([]byte("hello")),
	} {
		_, _, err = decodeImage(bad)
		assert.Error(t, err, bad)
	}
}

func TestRenderer_SubmissionPDF(t *testing.T) {
	r := NewRenderer("Exam Portal")
	ex := testExam()
	sub := submission.Submission{
		ID:          "sub-1",
		ExamID:      ex.ID,
		StudentName: "Good Student",
		RollNo:      "2001",
		SubmittedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Answers: []submission.Answer{
			{QuestionID: "q1", ImageData: pngDataURL(t)},
			{QuestionID: "q2", Text: "Because parallel lines.\nAnd Euclid said so."},
			{QuestionID: "q3"},
			{QuestionID: "q4", ImageData: "data:image/png;base64,bG9s"},
		},
	}

	doc, err := r.renderSubmission(sub, ex)
	require.NoError(t, err)
	assert.Equal(t, 1+len(ex.Questions), doc.PageCount(), "a header page then one page per question")

	content, err := r.SubmissionPDF(sub, ex)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")), "not a pdf")

	// answers of unknown questions are ignored; missing ones are rendered empty
	sub.Answers = []submission.Answer{{QuestionID: "lol", Text: "?"}}
	doc, err = r.renderSubmission(sub, ex)
	require.NoError(t, err)
	assert.Equal(t, 5, doc.PageCount())
}

func TestRenderer_Results(t *testing.T) {
	r := NewRenderer("Exam Portal")
	ex := testExam()
	marks, pct := 3.5, 87.5
	yes, no := true, false
	evaluated := submission.Submission{
		StudentName: "Good Student",
		RollNo:      "2001",
		SubmittedAt: time.Now().UTC(),
		Evaluated:   true,
		Marks:       &marks,
		Percentage:  &pct,
		Passed:      &yes,
		Feedback:    "Well done",
		Answers: []submission.Answer{
			{QuestionID: "q1", IsCorrect: &yes},
			{QuestionID: "q2", IsCorrect: &no, Feedback: "Not quite"},
			{QuestionID: "q3"},
			{QuestionID: "q4"},
		},
	}
	pending := submission.Submission{StudentName: "Late Student", RollNo: "2002", SubmittedAt: time.Now().UTC(), Answers: make([]submission.Answer, 4)}

	m, p := formatMarks(evaluated)
	assert.Equal(t, "3.5 / 4", m)
	assert.Equal(t, "87.50%", p)
	m, p = formatMarks(pending)
	assert.Equal(t, "-", m)
	assert.Equal(t, "-", p)

	content, err := r.ResultPDF(evaluated, ex)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))

	for _, subs := range [][]submission.Submission{nil, {evaluated, pending}} {
		content, err = r.ResultsPDF(ex, subs)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(content, []byte("%PDF-")))
	}

	lowMarks, lowPct := 1.0, 25.0
	failed := evaluated
	failed.StudentName = "Bad Student"
	failed.Marks, failed.Percentage, failed.Passed = &lowMarks, &lowPct, &no

	for sub, want := range map[*submission.Submission]string{&evaluated: "Result: Pass", &failed: "Result: Fail", &pending: "Result: Pending"} {
		text := uncompressed(t, r.renderResult(*sub, ex))
		assert.Contains(t, text, want, sub.StudentName)
	}

	text := uncompressed(t, r.renderResults(ex, []submission.Submission{evaluated, failed, pending}))
	for _, want := range []string{"(Result)", "(Pass)", "(Fail)", "(Pending)"} {
		assert.Contains(t, text, want)
	}
}

func uncompressed(t *testing.T, doc *document) string {
	doc.SetCompression(false)
	content, err := doc.output()
	require.NoError(t, err)
	return string(content)
}

func TestDocument_Overflow(t *testing.T) {
	r := NewRenderer("Exam Portal")
	doc := r.newDocument("overflow")
	doc.AddPage()
	doc.SetFont(fontFamily, "", 12)

	y, cut := doc.lines(marginLeft, 30, pageBottom, "Short enough.")
	assert.False(t, cut)
	assert.Equal(t, 30+lineHeight, y)

	essay := strings.Repeat("All work and no play makes Jack a dull boy. ", 300)
	y, cut = doc.lines(marginLeft, 30, pageBottom, essay)
	assert.True(t, cut)
	assert.LessOrEqual(t, y-lineHeight, pageBottom, "nothing is written below the page")

	assert.Equal(t, "Good Student", doc.fit("Good Student", 45))
	short := doc.fit(essay, 45)
	assert.True(t, strings.HasSuffix(short, ellipsis))
	assert.LessOrEqual(t, doc.GetStringWidth(short), 45.0)

	// long questions and answers stay on their page, with a visible marker
	ex := testExam()
	ex.Questions[1].Text = essay
	sub := submission.Submission{
		StudentName: "Verbose Student",
		RollNo:      "2003",
		SubmittedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Answers:     []submission.Answer{{QuestionID: "q3", Text: essay}},
	}
	doc, err := r.renderSubmission(sub, ex)
	require.NoError(t, err)
	assert.Equal(t, 1+len(ex.Questions), doc.PageCount())
	text := uncompressed(t, doc)
	assert.Equal(t, 2, strings.Count(text, "("+truncatedMarker+")"))
}
