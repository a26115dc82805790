package db

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"vhrscraper/internal/report"
)

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func fromNullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	return report.Int(int(n.Int64))
}

// ReportParams flattens a report into a row. body is the value that gets
// stored as json, either the summary or the detailed report.
func ReportParams(runId string, r report.VehicleReport, body any, detailed bool, scrapedAt time.Time) (InsertReportParams, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return InsertReportParams{}, fmt.Errorf("encode report %s: %w", r.VIN, err)
	}
	return InsertReportParams{
		RunID:          runId,
		Vin:            r.VIN,
		Detailed:       detailed,
		Year:           r.Year,
		Make:           r.Make,
		Model:          r.Model,
		Trim:           r.Trim,
		Owners:         nullInt(r.Owners),
		Accidents:      nullInt(r.Accidents),
		ServiceRecords: nullInt(r.ServiceRecords),
		Mileage:        r.Mileage,
		TitleStatus:    r.TitleStatus,
		ReportDate:     r.ReportDate.String(),
		Error:          r.Error,
		Body:           string(encoded),
		ScrapedAt:      scrapedAt.Unix(),
	}, nil
}

// VehicleReport rebuilds the summary from the flat columns, raw data comes
// from the stored body.
func (r Report) VehicleReport() (report.VehicleReport, error) {
	out := report.VehicleReport{
		VIN: r.Vin,
		Vehicle: report.Vehicle{
			Year:  r.Year,
			Make:  r.Make,
			Model: r.Model,
			Trim:  r.Trim,
		},
		Owners:         fromNullInt(r.Owners),
		Accidents:      fromNullInt(r.Accidents),
		ServiceRecords: fromNullInt(r.ServiceRecords),
		Mileage:        r.Mileage,
		TitleStatus:    r.TitleStatus,
		Error:          r.Error,
	}
	err := out.ReportDate.UnmarshalText([]byte(r.ReportDate))
	if err != nil {
		return report.VehicleReport{}, fmt.Errorf("report %d: %w", r.ID, err)
	}

	var body struct {
		RawData report.RawData `json:"raw_data"`
	}
	err = json.Unmarshal([]byte(r.Body), &body)
	if err != nil {
		return report.VehicleReport{}, fmt.Errorf("report %d: %w", r.ID, err)
	}
	out.RawData = body.RawData
	return out, nil
}

// FullReport decodes the stored body of a detailed report.
func (r Report) FullReport() (report.FullReport, error) {
	if !r.Detailed {
		return report.FullReport{}, fmt.Errorf("report %d is not detailed", r.ID)
	}
	var out report.FullReport
	err := json.Unmarshal([]byte(r.Body), &out)
	if err != nil {
		return report.FullReport{}, fmt.Errorf("report %d: %w", r.ID, err)
	}
	return out, nil
}

// ScrapedTime is ScrapedAt as a time.
func (r Report) ScrapedTime() time.Time {
	return time.Unix(r.ScrapedAt, 0)
}
