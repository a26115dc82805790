// Package report holds the normalized vehicle history records produced by extraction.
package report

import (
	"strconv"
	"time"
)

// DateLayout is how report dates are rendered.
const DateLayout = "2006-01-02"

// Title statuses.
const (
	TitleClean   = "Clean"
	TitleSalvage = "Salvage"
	TitleRebuilt = "Rebuilt"
	TitleFlood   = "Flood"
	TitleLemon   = "Lemon"
	TitleJunk    = "Junk"
	TitleUnknown = "Unknown"
)

// Errors attached to reports that never reached extraction.
const (
	ErrInvalidIdentifier = "invalid identifier"
	ErrNoDocument        = "no document"
	ErrLoginRequired     = "login required"
	ErrSessionInvalid    = "session invalid or expired"
)

// Vehicle is the year/make/model/trim tuple, set as a whole.
type Vehicle struct {
	Year  string `json:"year,omitempty"`
	Make  string `json:"make,omitempty"`
	Model string `json:"model,omitempty"`
	Trim  string `json:"trim,omitempty"`
}

func (v Vehicle) IsZero() bool {
	return v == Vehicle{}
}

// VehicleReport is the summary variant of a vehicle history report.
type VehicleReport struct {
	VIN string `json:"vin"`
	Vehicle
	Owners         *int    `json:"owners,omitempty"`
	Accidents      *int    `json:"accidents,omitempty"`
	ServiceRecords *int    `json:"service_records,omitempty"`
	Mileage        string  `json:"mileage,omitempty"`
	TitleStatus    string  `json:"title_status,omitempty"`
	ReportDate     Date    `json:"report_date"`
	RawData        RawData `json:"raw_data,omitempty"`
	Error          string  `json:"error,omitempty"`
}

// NewVehicleReport creates an empty report dated at now.
func NewVehicleReport(vin string, now time.Time) VehicleReport {
	return VehicleReport{VIN: vin, ReportDate: NewDate(now)}
}

// Failed reports whether an error is attached.
func (r VehicleReport) Failed() bool {
	return r.Error != ""
}

// Extracted reports whether any field was read from the page.
func (r VehicleReport) Extracted() bool {
	return !r.Vehicle.IsZero() ||
		r.Owners != nil ||
		r.Accidents != nil ||
		r.ServiceRecords != nil ||
		r.Mileage != "" ||
		r.TitleStatus != ""
}

// Int returns a pointer to n, for optional count fields.
func Int(n int) *int {
	return &n
}

func formatOptional(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

// Date is a calendar date that serializes as YYYY-MM-DD.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, t.Location())}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := time.Parse(DateLayout, string(text))
	if err != nil {
		return err
	}
	*d = Date{Time: parsed}
	return nil
}

// MarshalJSON shadows time.Time's so dates render without a clock.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(d.String())), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	text, err := strconv.Unquote(string(data))
	if err != nil {
		return err
	}
	return d.UnmarshalText([]byte(text))
}

// Equal compares calendar days, it lets go-cmp compare reports.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}
