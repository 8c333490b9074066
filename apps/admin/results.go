package main

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/submission"
)

func formatPercentage(pct *float64) string {
	if pct == nil {
		return "-"
	}
	return strconv.FormatFloat(*pct, 'f', 2, 64) + "%"
}

func colorResult(sub submission.Submission) string {
	switch status := sub.Status(); status {
	case submission.ResultPass:
		return color.GreenString(status)
	case submission.ResultFail:
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

func (cli *commandLine) listResults(examID string) error {
	ex, err := cli.examSvc.Get(examID)
	if err != nil {
		return err
	}
	subs, err := cli.subSvc.Query(
		&submission.QueryFilter{ExamID: ex.ID},
		[]core.DBOrdering{{Field: "roll_no", Ascending: true}},
	)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(cli.out, "%s (%d questions)\n", ex.Title, len(ex.Questions))

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"Roll Number", "Name", "Submitted", "Auto", "Marks", "Percentage", "Result"})
	table.SetAutoWrapText(false)
	for _, sub := range subs {
		auto := ""
		if sub.AutoSubmitted {
			auto = "yes"
		}
		marks := "-"
		if sub.Evaluated && sub.Marks != nil {
			marks = fmt.Sprintf("%s / %d", strconv.FormatFloat(*sub.Marks, 'f', -1, 64), sub.QuestionCount())
		}
		table.Append([]string{
			sub.RollNo,
			sub.StudentName,
			sub.SubmittedAt.Format("2006-01-02 15:04"),
			auto,
			marks,
			formatPercentage(sub.Percentage),
			colorResult(sub),
		})
	}
	table.Render()
	return nil
}
