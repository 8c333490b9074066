package pdfsvc

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"

	"github.com/chetansharma-meta/Exam-Portal/core/exam"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
)

const (
	fontFamily = "Helvetica"
	pageCenter = 105.0 // A4 width / 2, in mm
	marginLeft = 20.0
	textWidth  = 170.0
	lineHeight = 6.0
	pageBottom = 282.0 // A4 height minus the bottom margin, in mm

	answerTop       = 50.0
	answerWidth     = 160.0
	answerHeight    = 120.0
	minAnswerHeight = 40.0

	dateLayout = "Jan 2, 2006 15:04 MST"

	noAnswerText    = "No answer provided"
	badAnswerImage  = "Error rendering canvas image"
	truncatedMarker = "[... truncated]"
	ellipsis        = "..."
)

var errNoPDFImage = errors.New("not a supported image data URL")

// Renderer renders answer sheets and result reports as A4 PDF documents.
type Renderer struct {
	author string
}

var _ submission.PDFRenderer = (*Renderer)(nil) // interface compliance check

func NewRenderer(appName string) *Renderer {
	return &Renderer{author: appName}
}

type document struct {
	*fpdf.Fpdf
	tr func(string) string
}

func (r *Renderer) newDocument(title string) *document {
	pdf := fpdf.New("P", "mm", "A4", "")
	doc := &document{Fpdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}
	pdf.SetTitle(title, true)
	pdf.SetAuthor(r.author, true)
	pdf.SetCreator(r.author, true)
	return doc
}

func (doc *document) text(x, y float64, s string) {
	doc.Text(x, y, doc.tr(s))
}

func (doc *document) centeredText(y float64, s string) {
	s = doc.tr(s)
	doc.Text(pageCenter-doc.GetStringWidth(s)/2, y, s)
}

// lines writes s wrapped to textWidth from (x, y) without going below maxY. It returns the y
// below the last line and whether s had to be cut, in which case the last line is truncatedMarker.
func (doc *document) lines(x, y, maxY float64, s string) (float64, bool) {
	split := doc.SplitText(doc.tr(s), textWidth)
	for i, line := range split {
		if y+lineHeight > maxY && i < len(split)-1 {
			doc.Text(x, y, truncatedMarker)
			return y + lineHeight, true
		}
		doc.Text(x, y, line)
		y += lineHeight
	}
	return y, false
}

// fit shortens s with an ellipsis until it fits in a table cell of width w.
func (doc *document) fit(s string, w float64) string {
	s = doc.tr(s)
	w -= 2 * doc.GetCellMargin()
	if doc.GetStringWidth(s) <= w {
		return s
	}
	for len(s) > 0 && doc.GetStringWidth(s+ellipsis) > w {
		s = s[:len(s)-1]
	}
	return s + ellipsis
}

func (doc *document) output() ([]byte, error) {
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "writing pdf")
	}
	return buf.Bytes(), nil
}

// decodeImage extracts the image of a data URL and returns its fpdf image type.
func decodeImage(dataURL string) ([]byte, string, error) {
	if !strings.HasPrefix(dataURL, "data:") {
		return nil, "", errNoPDFImage
	}
	idx := strings.Index(dataURL, ",")
	if idx < 0 || !strings.HasSuffix(dataURL[:idx], ";base64") {
		return nil, "", errNoPDFImage
	}
	data, err := base64.StdEncoding.DecodeString(dataURL[idx+1:])
	if err != nil {
		return nil, "", errors.Wrap(err, "decoding base64")
	}

	// fpdf errors are sticky: make sure the image is readable before registering it
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", errors.Wrap(err, "decoding image")
	}
	switch format {
	case "png", "gif":
		return data, strings.ToUpper(format), nil
	case "jpeg":
		return data, "JPG", nil
	}
	return nil, "", errNoPDFImage
}

// SubmissionPDF renders a header page then one page per question with its answer.
func (r *Renderer) SubmissionPDF(sub submission.Submission, ex exam.Exam) ([]byte, error) {
	doc, err := r.renderSubmission(sub, ex)
	if err != nil {
		return nil, err
	}
	return doc.output()
}

func (r *Renderer) renderSubmission(sub submission.Submission, ex exam.Exam) (*document, error) {
	doc := r.newDocument(fmt.Sprintf("%s - %s", ex.Title, sub.StudentName))

	// header page
	doc.AddPage()
	doc.SetFont(fontFamily, "B", 18)
	doc.centeredText(20, "Exam Submission")
	doc.SetFont(fontFamily, "", 12)
	doc.text(marginLeft, 40, "Name: "+sub.StudentName)
	doc.text(marginLeft, 50, "Roll Number: "+sub.RollNo)
	doc.text(marginLeft, 60, "Exam: "+ex.Title)
	doc.text(marginLeft, 70, "Date: "+sub.SubmittedAt.Format(dateLayout))

	answers := make(map[string]submission.Answer, len(sub.Answers))
	for _, a := range sub.Answers {
		answers[a.QuestionID] = a
	}

	for i, q := range ex.Questions {
		doc.AddPage()
		doc.SetFont(fontFamily, "B", 14)
		doc.text(marginLeft, 20, fmt.Sprintf("Question %d:", i+1))
		doc.SetFont(fontFamily, "", 12)
		y, _ := doc.lines(marginLeft, 30, pageBottom-minAnswerHeight, q.Text)

		top := answerTop
		if y+lineHeight > top {
			top = y + lineHeight
		}
		doc.renderAnswer(fmt.Sprintf("answer-%d", i+1), answers[q.ID], top)

		if err := doc.Error(); err != nil {
			return nil, errors.Wrapf(err, "rendering question %d", i+1)
		}
	}
	return doc, nil
}

func (doc *document) renderAnswer(name string, a submission.Answer, top float64) {
	if a.ImageData != "" {
		data, imgType, err := decodeImage(a.ImageData)
		if err == nil {
			opts := fpdf.ImageOptions{ImageType: imgType}
			doc.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
			if doc.Ok() {
				w, h := answerWidth, answerHeight
				if top+h > pageBottom {
					h = pageBottom - top
					w = answerWidth * h / answerHeight
				}
				doc.ImageOptions(name, marginLeft, top, w, h, false, opts, 0, "")
				return
			}
			doc.ClearError()
		}
		doc.text(marginLeft, top, badAnswerImage)
		return
	}
	if a.Text != "" {
		doc.lines(marginLeft, top, pageBottom, a.Text)
		return
	}
	doc.text(marginLeft, top, noAnswerText)
}

func formatMarks(sub submission.Submission) (marks, pct string) {
	if !sub.Evaluated || sub.Marks == nil {
		return "-", "-"
	}
	marks = fmt.Sprintf("%s / %d", strconv.FormatFloat(*sub.Marks, 'f', -1, 64), sub.QuestionCount())
	if sub.Percentage != nil {
		pct = strconv.FormatFloat(*sub.Percentage, 'f', 2, 64) + "%"
	}
	return marks, pct
}

// ResultPDF renders the result of a single student.
func (r *Renderer) ResultPDF(sub submission.Submission, ex exam.Exam) ([]byte, error) {
	return r.renderResult(sub, ex).output()
}

func (r *Renderer) renderResult(sub submission.Submission, ex exam.Exam) *document {
	doc := r.newDocument(fmt.Sprintf("Result - %s - %s", ex.Title, sub.StudentName))
	doc.AddPage()
	doc.SetFont(fontFamily, "B", 18)
	doc.centeredText(20, "Exam Result")

	marks, pct := formatMarks(sub)

	doc.SetFont(fontFamily, "", 12)
	y := 40.0
	for _, line := range []string{
		"Name: " + sub.StudentName,
		"Roll Number: " + sub.RollNo,
		"Exam: " + ex.Title,
		"Submitted: " + sub.SubmittedAt.Format(dateLayout),
		"Result: " + sub.Status(),
		"Marks: " + marks,
		"Percentage: " + pct,
	} {
		doc.text(marginLeft, y, line)
		y += 10
	}
	if sub.Feedback != "" {
		y, _ = doc.lines(marginLeft, y, pageBottom/2, "Feedback: "+sub.Feedback)
		y += lineHeight
	}

	// per question table
	doc.SetXY(marginLeft, y)
	doc.SetFont(fontFamily, "B", 11)
	doc.SetFillColor(230, 230, 230)
	doc.CellFormat(25, 8, "Question", "1", 0, "C", true, 0, "")
	doc.CellFormat(25, 8, "Correct", "1", 0, "C", true, 0, "")
	doc.CellFormat(120, 8, "Feedback", "1", 1, "L", true, 0, "")
	doc.SetFont(fontFamily, "", 11)
	for i, a := range sub.Answers {
		correct := "-"
		if a.IsCorrect != nil {
			correct = "No"
			if *a.IsCorrect {
				correct = "Yes"
			}
		}
		doc.SetX(marginLeft)
		doc.CellFormat(25, 8, strconv.Itoa(i+1), "1", 0, "C", false, 0, "")
		doc.CellFormat(25, 8, correct, "1", 0, "C", false, 0, "")
		doc.CellFormat(120, 8, doc.fit(a.Feedback, 120), "1", 1, "L", false, 0, "")
	}
	return doc
}

// ResultsPDF renders the results of every student of an exam, one row per submission.
func (r *Renderer) ResultsPDF(ex exam.Exam, subs []submission.Submission) ([]byte, error) {
	return r.renderResults(ex, subs).output()
}

func (r *Renderer) renderResults(ex exam.Exam, subs []submission.Submission) *document {
	doc := r.newDocument("Results - " + ex.Title)
	doc.AddPage()
	doc.SetFont(fontFamily, "B", 18)
	doc.centeredText(20, "Exam Results")
	doc.SetFont(fontFamily, "", 12)
	doc.text(marginLeft, 32, "Exam: "+ex.Title)
	doc.text(marginLeft, 40, fmt.Sprintf("Questions: %d    Submissions: %d", len(ex.Questions), len(subs)))

	widths := []float64{25, 45, 32, 23, 25, 20}
	header := []string{"Roll Number", "Name", "Submitted", "Marks", "Percentage", "Result"}

	printHeader := func() {
		doc.SetX(marginLeft)
		doc.SetFont(fontFamily, "B", 10)
		doc.SetFillColor(230, 230, 230)
		for i, h := range header {
			doc.CellFormat(widths[i], 8, h, "1", 0, "C", true, 0, "")
		}
		doc.Ln(-1)
		doc.SetFont(fontFamily, "", 10)
	}

	doc.SetY(48)
	printHeader()
	if len(subs) == 0 {
		doc.SetX(marginLeft)
		doc.CellFormat(170, 8, "No submissions yet", "1", 1, "C", false, 0, "")
	}
	_, pageHeight := doc.GetPageSize()
	_, _, _, bottom := doc.GetMargins()
	for _, sub := range subs {
		if doc.GetY()+8 > pageHeight-bottom {
			doc.AddPage()
			printHeader()
		}
		marks, pct := formatMarks(sub)
		row := []string{sub.RollNo, sub.StudentName, sub.SubmittedAt.Format("2006-01-02 15:04"), marks, pct, sub.Status()}
		doc.SetX(marginLeft)
		for i, cell := range row {
			doc.CellFormat(widths[i], 8, doc.fit(cell, widths[i]), "1", 0, "L", false, 0, "")
		}
		doc.Ln(-1)
	}
	return doc
}
