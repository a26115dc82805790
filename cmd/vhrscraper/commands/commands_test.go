package commands

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const (
	testVin    = "WBAVC73518KA12345"
	invalidVin = "WBAVC73518KO12345"
)

const reportPage = `<html><body>
<div>2008 BMW 3 SERIES 328XI ... 2 Previous owners ... No accidents or damage reported ... 108,487 Last reported odometer reading ... Guaranteed No Problem</div>
</body></html>`

func write(t *testing.T, path, contents string) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0777))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
}

// workspace writes a config pointing every path into a temp dir and the
// portal at baseUrl.
func workspace(t *testing.T, baseUrl string) (string, string) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vhrscraper.json5")
	write(t, path, fmt.Sprintf(`{
		base_url: %q,
		cookies_file: %q,
		tokens_file: %q,
		output_dir: %q,
		min_delay: 0.001,
		max_delay: 0.001,
		requests_per_second: 100,
		database: { file: %q },
	}`,
		baseUrl,
		filepath.Join(dir, "cookies.txt"),
		filepath.Join(dir, "tokens.json"),
		filepath.Join(dir, "output"),
		filepath.Join(dir, "reports.db"),
	))
	return dir, path
}

func execute(t *testing.T, args ...string) string {
	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.ExecuteContext(context.Background()))
	return out.String()
}

func TestReadVins(t *testing.T) {
	file := filepath.Join(t.TempDir(), "vins.txt")
	write(t, file, "# lot 12\n1HGCM82633A004352\n\n  2HGES16575H591234  \n#WBAVC73518KA00000\n")

	vins, err := readVins([]string{testVin, " "}, file)
	require.NoError(t, err)
	require.Equal(t, []string{testVin, "1HGCM82633A004352", "2HGES16575H591234"}, vins)

	vins, err = readVins([]string{testVin}, "")
	require.NoError(t, err)
	require.Equal(t, []string{testVin}, vins)

	_, err = readVins(nil, filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
}

func TestOutputPath(t *testing.T) {
	now := time.Date(2024, 5, 14, 9, 30, 5, 0, time.UTC)
	testCases := []struct {
		name     string
		format   string
		expected string
	}{
		{name: "", format: formatCSV, expected: "output/carfax_reports_20240514_093005.csv"},
		{name: "", format: formatJSON, expected: "output/carfax_reports_20240514_093005.json"},
		{name: "lot12", format: formatMarkdown, expected: "output/lot12.md"},
		{name: "lot12.JSON", format: formatJSON, expected: "output/lot12.JSON"},
		{name: "/tmp/lot12", format: formatJSON, expected: "/tmp/lot12.json"},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, outputPath("output", tc.name, tc.format, now))
	}
}

func TestScrapeFlagsValidate(t *testing.T) {
	testCases := []struct {
		flags scrapeFlags
		valid bool
	}{
		{flags: scrapeFlags{format: formatCSV, appendCSV: true}, valid: true},
		{flags: scrapeFlags{format: formatMarkdown, concurrency: 4}, valid: true},
		{flags: scrapeFlags{format: "xlsx"}},
		{flags: scrapeFlags{format: formatJSON, appendCSV: true}},
		{flags: scrapeFlags{format: formatCSV, concurrency: -1}},
	}
	for _, tc := range testCases {
		err := tc.flags.validate()
		if tc.valid {
			require.NoError(t, err)
		} else {
			require.Error(t, err)
		}
	}
}

func TestScrapeAndHistory(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/vhr/"+testVin {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(reportPage))
	}))
	defer server.Close()

	dir, config := workspace(t, server.URL)
	write(t, filepath.Join(dir, "cookies.txt"), strings.Join([]string{
		"# Netscape HTTP Cookie File",
		"127.0.0.1\tFALSE\t/\tFALSE\t0\tauth0.u0ERZlg3gng09tmcfxmz3YesyFWWmloM.is.authenticated\ttrue",
		"",
	}, "\n"))

	out := execute(t, "--config", config, "scrape", "--vin", testVin+","+invalidVin, "--db")
	require.Contains(t, out, "Report summary")
	require.Contains(t, out, "succeeded 1")
	require.Contains(t, out, "failed 1")

	files, err := filepath.Glob(filepath.Join(dir, "output", "carfax_reports_*.csv"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	contents, err := os.ReadFile(files[0])
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(contents), "\ufeffvin,year,make"))
	require.Len(t, strings.Split(strings.TrimSpace(string(contents)), "\n"), 3)

	out = execute(t, "--config", config, "history", testVin, "--json")
	require.Contains(t, out, `"make": "BMW"`)
	require.Contains(t, out, `"mileage": "108,487"`)

	out = execute(t, "--config", config, "status")
	require.Contains(t, out, "authenticated (1 cookies)")
	require.NotContains(t, out, "not authenticated")
}

func TestExtractCommand(t *testing.T) {
	_, config := workspace(t, "http://127.0.0.1:1")
	page := filepath.Join(t.TempDir(), "report.html")
	write(t, page, reportPage)

	out := execute(t, "--config", config, "extract", page, "--vin", testVin)
	require.Contains(t, out, `"vin": "`+testVin+`"`)
	require.Contains(t, out, `"owners": 2`)
	require.Contains(t, out, `"title_status": "Clean"`)
}
