package export

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"vhrscraper/internal/report"

	"github.com/nao1215/markdown"
)

// MarkdownWriter renders a run as a markdown document: a summary table
// followed by one section per report.
type MarkdownWriter struct {
	output io.Writer
}

func NewMarkdownWriter(output io.Writer) MarkdownWriter {
	return MarkdownWriter{output: output}
}

// Write renders reports under a heading naming the run.
func (w MarkdownWriter) Write(runId string, date time.Time, reports []report.VehicleReport) error {
	md := markdown.NewMarkdown(w.output)

	md.H1("Vehicle History Reports")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + runId + "`"},
			{"Date", date.Format("2006-01-02 15:04:05 MST")},
			{"Reports", strconv.Itoa(len(reports))},
		},
	})
	md.PlainText("")

	w.writeSummary(md, reports)
	for _, r := range reports {
		w.writeReport(md, r)
	}

	err := md.Build()
	if err != nil {
		return fmt.Errorf("export markdown: %w", err)
	}
	return nil
}

func (w MarkdownWriter) writeSummary(md *markdown.Markdown, reports []report.VehicleReport) {
	md.H2("Summary")
	md.PlainText("")

	if len(reports) == 0 {
		md.PlainText("No reports.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(reports))
	failed := 0
	for i, r := range reports {
		rows[i] = []string{
			"`" + r.VIN + "`",
			VehicleName(r.Vehicle),
			orDash(r.Owners),
			orDash(r.Accidents),
			r.Mileage,
			r.TitleStatus,
			Status(r),
		}
		if r.Failed() {
			failed++
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"VIN", "Vehicle", "Owners", "Accidents", "Mileage", "Title", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	if failed > 0 {
		md.Warningf("%d of %d reports could not be scraped.", failed, len(reports))
	} else {
		md.Tip("Every report was scraped.")
	}
	md.PlainText("")
}

func (w MarkdownWriter) writeReport(md *markdown.Markdown, r report.VehicleReport) {
	md.H2(r.VIN)
	md.PlainText("")

	if r.Failed() {
		md.Cautionf("%s", r.Error)
		md.PlainText("")
		return
	}

	row := r.Row()
	rows := make([][]string, 0, len(report.Columns))
	for i, column := range report.Columns {
		if column == "vin" || column == "error" || row[i] == "" {
			continue
		}
		rows = append(rows, []string{column, row[i]})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Field", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	fields := r.RawData.Fields()
	if len(fields) == 0 {
		return
	}
	items := make([]string, len(fields))
	for i, field := range fields {
		value, _ := r.RawData.Get(field)
		items[i] = fmt.Sprintf("%s: %s", field, value)
	}
	md.BulletList(items...)
	md.PlainText("")
}
