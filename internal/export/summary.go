package export

import (
	"fmt"
	"io"
	"strconv"

	"vhrscraper/internal/report"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// statusErrorWidth is how much of an error the summary shows.
const statusErrorWidth = 20

func NewTable(output io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(output)
	return t
}

func orDash(n *int) string {
	if n == nil {
		return "-"
	}
	return strconv.Itoa(*n)
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}

// VehicleName is "year make model" with unknown parts shown as "?".
func VehicleName(v report.Vehicle) string {
	return fmt.Sprintf("%s %s %s", orUnknown(v.Year), orUnknown(v.Make), orUnknown(v.Model))
}

// Status is "ok" or the start of the error.
func Status(r report.VehicleReport) string {
	if !r.Failed() {
		return "ok"
	}
	runes := []rune(r.Error)
	if len(runes) <= statusErrorWidth {
		return "error: " + r.Error
	}
	return "error: " + string(runes[:statusErrorWidth]) + "..."
}

// RenderSummary prints a table of reports followed by success and failure
// counts.
func RenderSummary(output io.Writer, reports []report.VehicleReport) {
	if len(reports) == 0 {
		fmt.Fprintln(output, "no reports")
		return
	}

	t := NewTable(output)
	t.Style().Format.Footer = text.FormatDefault
	t.SetTitle("Report summary")
	t.AppendHeader(table.Row{"VIN", "Vehicle", "Owners", "Accidents", "Mileage", "Title", "Status"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Owners", Align: text.AlignCenter},
		{Name: "Accidents", Align: text.AlignCenter},
		{Name: "Mileage", Align: text.AlignRight},
	})

	succeeded := 0
	for _, r := range reports {
		if !r.Failed() {
			succeeded++
		}
		t.AppendRow(table.Row{
			r.VIN,
			VehicleName(r.Vehicle),
			orDash(r.Owners),
			orDash(r.Accidents),
			r.Mileage,
			r.TitleStatus,
			Status(r),
		})
	}
	t.AppendFooter(table.Row{
		"total", len(reports),
		"", "", "", "succeeded " + strconv.Itoa(succeeded),
		"failed " + strconv.Itoa(len(reports)-succeeded),
	})
	t.Render()
}
