package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type Report struct {
	ID             int64
	RunID          string
	Vin            string
	Detailed       bool
	Year           string
	Make           string
	Model          string
	Trim           string
	Owners         sql.NullInt64
	Accidents      sql.NullInt64
	ServiceRecords sql.NullInt64
	Mileage        string
	TitleStatus    string
	ReportDate     string
	Error          string
	Body           string
	ScrapedAt      int64
}

const reportColumns = `id, run_id, vin, detailed, year, make, model, trim, owners, accidents, service_records, mileage, title_status, report_date, error, body, scraped_at`

func scanReports(rows *sql.Rows) ([]Report, error) {
	defer rows.Close()
	var items []Report
	for rows.Next() {
		var i Report
		if err := rows.Scan(
			&i.ID,
			&i.RunID,
			&i.Vin,
			&i.Detailed,
			&i.Year,
			&i.Make,
			&i.Model,
			&i.Trim,
			&i.Owners,
			&i.Accidents,
			&i.ServiceRecords,
			&i.Mileage,
			&i.TitleStatus,
			&i.ReportDate,
			&i.Error,
			&i.Body,
			&i.ScrapedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertReport = `-- name: InsertReport :one
insert into report (
    run_id, vin, detailed, year, make, model, trim, owners, accidents,
    service_records, mileage, title_status, report_date, error, body, scraped_at
) values (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
returning id
`

type InsertReportParams struct {
	RunID          string
	Vin            string
	Detailed       bool
	Year           string
	Make           string
	Model          string
	Trim           string
	Owners         sql.NullInt64
	Accidents      sql.NullInt64
	ServiceRecords sql.NullInt64
	Mileage        string
	TitleStatus    string
	ReportDate     string
	Error          string
	Body           string
	ScrapedAt      int64
}

func (q *Queries) InsertReport(ctx context.Context, arg InsertReportParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, insertReport,
		arg.RunID,
		arg.Vin,
		arg.Detailed,
		arg.Year,
		arg.Make,
		arg.Model,
		arg.Trim,
		arg.Owners,
		arg.Accidents,
		arg.ServiceRecords,
		arg.Mileage,
		arg.TitleStatus,
		arg.ReportDate,
		arg.Error,
		arg.Body,
		arg.ScrapedAt,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const reportsForVin = `-- name: ReportsForVin :many
select ` + reportColumns + ` from report
where vin = ?
order by scraped_at desc, id desc
`

func (q *Queries) ReportsForVin(ctx context.Context, vin string) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, reportsForVin, vin)
	if err != nil {
		return nil, err
	}
	return scanReports(rows)
}

const latestReports = `-- name: LatestReports :many
select ` + reportColumns + ` from report
order by scraped_at desc, id desc
limit ?
`

func (q *Queries) LatestReports(ctx context.Context, limit int64) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, latestReports, limit)
	if err != nil {
		return nil, err
	}
	return scanReports(rows)
}

const reportsForRun = `-- name: ReportsForRun :many
select ` + reportColumns + ` from report
where run_id = ?
order by id
`

func (q *Queries) ReportsForRun(ctx context.Context, runID string) ([]Report, error) {
	rows, err := q.db.QueryContext(ctx, reportsForRun, runID)
	if err != nil {
		return nil, err
	}
	return scanReports(rows)
}

const deleteRun = `-- name: DeleteRun :execrows
delete from report where run_id = ?
`

func (q *Queries) DeleteRun(ctx context.Context, runID string) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteRun, runID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
