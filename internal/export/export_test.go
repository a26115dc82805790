package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vhrscraper/internal/report"

	"github.com/stretchr/testify/require"
)

var testDate = time.Date(2024, 5, 14, 9, 30, 5, 0, time.UTC)

func testReports() []report.VehicleReport {
	ok := report.NewVehicleReport("WBAVC73518KA12345", testDate)
	ok.Vehicle = report.Vehicle{Year: "2008", Make: "BMW", Model: "3", Trim: "SERIES 328XI"}
	ok.Owners = report.Int(2)
	ok.Accidents = report.Int(0)
	ok.Mileage = "108,487"
	ok.TitleStatus = report.TitleClean
	ok.RawData.Set(report.RawFuelType, "Gasoline")

	failed := report.NewVehicleReport("1HGCM82633A004352", testDate)
	failed.Error = "carfax client: fetch report: report not found"

	return []report.VehicleReport{ok, failed}
}

func readCSV(t *testing.T, path string) (string, [][]string) {
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(contents), bom))).ReadAll()
	require.NoError(t, err)
	return string(contents), rows
}

func TestResolvePath(t *testing.T) {
	testCases := []struct {
		dir      string
		name     string
		expected string
	}{
		{dir: "output", name: "", expected: filepath.Join("output", "carfax_reports_20240514_093005.csv")},
		{dir: "output", name: "batch", expected: filepath.Join("output", "batch.csv")},
		{dir: "output", name: "batch.CSV", expected: filepath.Join("output", "batch.CSV")},
		{dir: "output", name: "/tmp/abs.csv", expected: "/tmp/abs.csv"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, ResolvePath(tc.dir, tc.name, testDate))
	}
}

func TestCSVWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reports.csv")
	reports := testReports()

	w := CSVWriter{Path: path, Columns: report.Columns}
	require.NoError(t, w.Write(Rows(reports)))

	contents, rows := readCSV(t, path)
	require.True(t, strings.HasPrefix(contents, bom))
	require.Len(t, rows, 3)
	require.Equal(t, report.Columns, rows[0])
	require.Equal(t, []string{
		"WBAVC73518KA12345", "2008", "BMW", "3", "SERIES 328XI",
		"2", "0", "", "108,487", report.TitleClean, "2024-05-14", "",
	}, rows[1])
	require.Equal(t, "", rows[2][5])
	require.Equal(t, "carfax client: fetch report: report not found", rows[2][11])

	t.Run("append skips header", func(t *testing.T) {
		w := CSVWriter{Path: path, Columns: report.Columns, Append: true}
		require.NoError(t, w.Write(Rows(reports[:1])))

		contents, rows := readCSV(t, path)
		require.Len(t, rows, 4)
		require.Equal(t, 1, strings.Count(contents, bom))
		require.Equal(t, "WBAVC73518KA12345", rows[3][0])
	})

	t.Run("overwrite", func(t *testing.T) {
		w := CSVWriter{Path: path, Columns: report.Columns}
		require.NoError(t, w.Write(Rows(reports[1:])))

		_, rows := readCSV(t, path)
		require.Len(t, rows, 2)
	})

	t.Run("append to empty file writes header", func(t *testing.T) {
		empty := filepath.Join(t.TempDir(), "empty.csv")
		require.NoError(t, os.WriteFile(empty, nil, 0644))

		w := CSVWriter{Path: empty, Columns: report.Columns, Append: true}
		require.NoError(t, w.Write(Rows(reports)))

		_, rows := readCSV(t, empty)
		require.Equal(t, report.Columns, rows[0])
	})

	t.Run("no rows", func(t *testing.T) {
		w := CSVWriter{Path: filepath.Join(t.TempDir(), "none.csv"), Columns: report.Columns}
		require.ErrorIs(t, w.Write(nil), ErrNoRows)
		_, err := os.Stat(w.Path)
		require.True(t, os.IsNotExist(err))
	})
}

func TestCSVWriterFull(t *testing.T) {
	full := report.NewFullReport("WBAVC73518KA12345", testDate)
	full.Retail = "$7,350"
	full.FuelType = "Gasoline"
	full.TitleStatus = report.TitleClean

	path := filepath.Join(t.TempDir(), "full.csv")
	w := CSVWriter{Path: path, Columns: report.FullColumns}
	require.NoError(t, w.Write(Rows([]report.FullReport{full})))

	_, rows := readCSV(t, path)
	require.Equal(t, report.FullColumns, rows[0])
	require.Len(t, rows[1], len(report.FullColumns))

	t.Run("append full rows to full layout", func(t *testing.T) {
		w := CSVWriter{Path: path, Columns: report.FullColumns, Append: true}
		require.NoError(t, w.Write(Rows([]report.FullReport{full})))
		_, rows := readCSV(t, path)
		require.Len(t, rows, 3)
	})

	t.Run("append summary rows to full layout", func(t *testing.T) {
		w := CSVWriter{Path: path, Columns: report.Columns, Append: true}
		err := w.Write(Rows(testReports()))
		require.ErrorIs(t, err, ErrHeaderMismatch)
		_, rows := readCSV(t, path)
		require.Len(t, rows, 3)
	})

	t.Run("append full rows to summary layout", func(t *testing.T) {
		summaryPath := filepath.Join(t.TempDir(), "summary.csv")
		require.NoError(t, CSVWriter{Path: summaryPath, Columns: report.Columns}.Write(Rows(testReports())))

		w := CSVWriter{Path: summaryPath, Columns: report.FullColumns, Append: true}
		require.ErrorIs(t, w.Write(Rows([]report.FullReport{full})), ErrHeaderMismatch)
	})
}

func TestJSONWriter(t *testing.T) {
	reports := testReports()

	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter(&buf, WithIndent("  ")).Write([]any{reports[0], reports[1]}))
	require.True(t, strings.Contains(buf.String(), "\n  {"))

	var decoded []report.VehicleReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 2)
	require.Equal(t, "BMW", decoded[0].Make)
	require.Equal(t, 2, *decoded[0].Owners)
	require.Equal(t, reports[1].Error, decoded[1].Error)

	buf.Reset()
	require.NoError(t, NewJSONWriter(&buf).Write(nil))
	require.Equal(t, "[]\n", buf.String())
}

func TestMarkdownWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).Write("run00001", testDate, testReports()))

	out := buf.String()
	for _, expected := range []string{
		"# Vehicle History Reports",
		"`run00001`",
		"## Summary",
		"2008 BMW 3",
		"## WBAVC73518KA12345",
		"108,487",
		"fuel_type: Gasoline",
		"## 1HGCM82633A004352",
		"report not found",
		"1 of 2 reports could not be scraped.",
	} {
		require.Contains(t, out, expected)
	}
}

func TestRenderSummary(t *testing.T) {
	var buf bytes.Buffer
	RenderSummary(&buf, testReports())

	out := buf.String()
	require.Contains(t, out, "Report summary")
	require.Contains(t, out, "2008 BMW 3")
	require.Contains(t, out, "error: carfax client: fetch...")
	require.Contains(t, out, "succeeded 1")
	require.Contains(t, out, "failed 1")

	buf.Reset()
	RenderSummary(&buf, nil)
	require.Equal(t, "no reports\n", buf.String())
}

func TestStatus(t *testing.T) {
	testCases := []struct {
		err      string
		expected string
	}{
		{err: "", expected: "ok"},
		{err: report.ErrLoginRequired, expected: "error: login required"},
		{err: "session invalid or expired", expected: "error: session invalid or e..."},
	}
	for _, tc := range testCases {
		r := report.VehicleReport{Error: tc.err}
		require.Equal(t, tc.expected, Status(r))
	}
}
