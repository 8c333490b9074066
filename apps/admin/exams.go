package main

import (
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/chetansharma-meta/Exam-Portal/core"
	"github.com/chetansharma-meta/Exam-Portal/core/exam"
)

func (cli *commandLine) listExams(teacher string) error {
	filter := new(exam.QueryFilter)
	if teacher != "" {
		usr, err := cli.usrSvc.GetByLogin(teacher)
		if err != nil {
			return err
		}
		filter.CreatedBy = usr.ID
	}

	exams, err := cli.examSvc.Query(filter, []core.DBOrdering{{Field: "created_at"}})
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(cli.out)
	table.SetHeader([]string{"ID", "Title", "Subject", "Questions", "Duration (min)", "Status"})
	table.SetAutoWrapText(false)
	for _, ex := range exams {
		table.Append([]string{
			ex.ID,
			ex.Title,
			ex.Subject,
			strconv.Itoa(len(ex.Questions)),
			strconv.Itoa(ex.Duration / 60),
			ex.Status(),
		})
	}
	table.SetFooter([]string{"", "", "", "", "Total", strconv.Itoa(len(exams))})
	table.Render()
	return nil
}
