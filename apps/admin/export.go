package main

import (
	"fmt"
	"io/ioutil"

	"github.com/pkg/errors"
)

func (cli *commandLine) writeFile(path string, content []byte) error {
	if err := ioutil.WriteFile(path, content, 0644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	_, _ = fmt.Fprintf(cli.out, "%s written (%d bytes)\n", path, len(content))
	return nil
}

func (cli *commandLine) exportResults(examID, path string) error {
	ex, err := cli.examSvc.Get(examID)
	if err != nil {
		return err
	}
	_, content, err := cli.subSvc.ResultsPDF(ex)
	if err != nil {
		return err
	}
	return cli.writeFile(path, content)
}

func (cli *commandLine) exportAnswerSheet(pdfID, path string) error {
	pdf, err := cli.subSvc.GetPdf(pdfID)
	if err != nil {
		return err
	}
	return cli.writeFile(path, pdf.Payload)
}
