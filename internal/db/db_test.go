package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"vhrscraper/internal/report"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 5, 14, 9, 30, 0, 0, time.UTC)

func setup(t testing.TB) (*sql.DB, *Queries) {
	ctx := context.Background()
	sqlite, err := Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })
	return sqlite, New(sqlite)
}

func summaryReport(vin string) report.VehicleReport {
	r := report.NewVehicleReport(vin, testNow)
	r.Vehicle = report.Vehicle{Year: "2008", Make: "BMW", Model: "3", Trim: "SERIES 328XI"}
	r.Owners = report.Int(2)
	r.Accidents = report.Int(0)
	r.Mileage = "108,487"
	r.TitleStatus = report.TitleClean
	r.RawData.Set(report.RawFuelType, "Gasoline")
	return r
}

func insert(t *testing.T, q *Queries, runId string, r report.VehicleReport, scrapedAt time.Time) int64 {
	params, err := ReportParams(runId, r, r, false, scrapedAt)
	require.NoError(t, err)
	id, err := q.InsertReport(context.Background(), params)
	require.NoError(t, err)
	return id
}

func TestConfigDSN(t *testing.T) {
	testCases := []struct {
		config   Config
		expected string
	}{
		{config: Config{File: "state/reports.db"}, expected: "state/reports.db"},
		{config: Config{File: "state/reports.db", Url: "libsql://reports.turso.io"}, expected: "libsql://reports.turso.io"},
		{
			config:   Config{Url: "libsql://reports.turso.io", AuthToken: "secret"},
			expected: "libsql://reports.turso.io?authToken=secret",
		},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, tc.config.DSN())
	}
	require.True(t, remote("https://reports.turso.io"))
	require.False(t, remote("reports.db"))
}

func TestOpenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "reports.db")
	sqlite, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer sqlite.Close()

	var mode string
	require.NoError(t, sqlite.QueryRow("PRAGMA journal_mode").Scan(&mode))
	require.Equal(t, "wal", mode)

	// schema creation is idempotent
	again, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestReports(t *testing.T) {
	_, q := setup(t)
	ctx := context.Background()

	first := summaryReport("WBAVC73518KA12345")
	failed := report.NewVehicleReport("WBAVC73518KA12345", testNow)
	failed.Error = report.ErrLoginRequired
	other := summaryReport("1HGCM82633A004352")

	insert(t, q, "run00001", first, testNow)
	insert(t, q, "run00002", failed, testNow.Add(time.Hour))
	insert(t, q, "run00002", other, testNow.Add(time.Hour))

	rows, err := q.ReportsForVin(ctx, "WBAVC73518KA12345")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "run00002", rows[0].RunID)
	require.Equal(t, report.ErrLoginRequired, rows[0].Error)
	require.False(t, rows[0].Owners.Valid)
	require.Equal(t, testNow.Add(time.Hour).Unix(), rows[0].ScrapedTime().Unix())

	decoded, err := rows[1].VehicleReport()
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(first, decoded))

	latest, err := q.LatestReports(ctx, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	require.Equal(t, "1HGCM82633A004352", latest[0].Vin)

	run, err := q.ReportsForRun(ctx, "run00002")
	require.NoError(t, err)
	require.Len(t, run, 2)

	deleted, err := q.DeleteRun(ctx, "run00002")
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)

	rows, err = q.ReportsForVin(ctx, "WBAVC73518KA12345")
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestFullReport(t *testing.T) {
	_, q := setup(t)
	ctx := context.Background()

	full := report.NewFullReport("WBAVC73518KA12345", testNow)
	full.Vehicle = report.Vehicle{Year: "2008", Make: "BMW", Model: "3"}
	full.Retail = "$7,350"
	full.DamageReported = true
	full.DetailedHistory = []report.HistoryEntry{
		{Date: "03/15/2009", Mileage: "12,000", Events: []string{"Vehicle serviced"}},
	}

	params, err := ReportParams("run00001", full.VehicleReport, full, true, testNow)
	require.NoError(t, err)
	_, err = q.InsertReport(ctx, params)
	require.NoError(t, err)

	rows, err := q.ReportsForVin(ctx, full.VIN)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.True(t, rows[0].Detailed)

	decoded, err := rows[0].FullReport()
	require.NoError(t, err)
	require.Empty(t, cmp.Diff(full, decoded))

	summary, err := rows[0].VehicleReport()
	require.NoError(t, err)
	require.Equal(t, "BMW", summary.Make)
}

func TestFullReportRejectsSummary(t *testing.T) {
	_, q := setup(t)
	insert(t, q, "run00001", summaryReport("WBAVC73518KA12345"), testNow)

	rows, err := q.ReportsForVin(context.Background(), "WBAVC73518KA12345")
	require.NoError(t, err)
	_, err = rows[0].FullReport()
	require.Error(t, err)
}

func TestMakeTx(t *testing.T) {
	sqlite, q := setup(t)
	makeTx := NewMakeTx(sqlite)
	ctx := context.Background()

	tx, discard, _, err := makeTx(ctx)
	require.NoError(t, err)
	insert(t, tx, "run00001", summaryReport("WBAVC73518KA12345"), testNow)
	require.NoError(t, discard())

	rows, err := q.LatestReports(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, rows)

	tx, _, commit, err := makeTx(ctx)
	require.NoError(t, err)
	insert(t, tx, "run00001", summaryReport("WBAVC73518KA12345"), testNow)
	require.NoError(t, commit())

	rows, err = q.LatestReports(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
