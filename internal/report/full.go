package report

import "time"

// Title flag values.
const (
	FlagNoIssuesReported  = "No Issues Reported"
	FlagNoIssuesIndicated = "No Issues Indicated"
	WarrantyExpired       = "Expired"
	WarrantyActive        = "Active"
	RecallsNoneReported   = "No Recalls Reported"
)

// ServiceRecord is a dated history entry attributed to one owner.
type ServiceRecord struct {
	Date     string   `json:"date"`
	Mileage  string   `json:"mileage,omitempty"`
	Comments []string `json:"comments,omitempty"`
}

// OwnerHistory describes a single ownership period.
type OwnerHistory struct {
	OwnerNumber       int             `json:"owner_number"`
	YearPurchased     string          `json:"year_purchased,omitempty"`
	OwnerType         string          `json:"owner_type,omitempty"`
	LengthOfOwnership string          `json:"length_of_ownership,omitempty"`
	MilesPerYear      string          `json:"miles_per_year,omitempty"`
	ServiceRecords    []ServiceRecord `json:"service_records,omitempty"`
}

// HistoryEntry is a dated line of the detailed history with the events
// recognized near it.
type HistoryEntry struct {
	Date    string   `json:"date"`
	Mileage string   `json:"mileage,omitempty"`
	Events  []string `json:"events"`
}

// Pricing holds the valuation figures, each rendered as "$N,NNN".
type Pricing struct {
	Retail       string `json:"retail_value,omitempty"`
	Wholesale    string `json:"wholesale_value,omitempty"`
	TradeIn      string `json:"trade_in_value,omitempty"`
	PrivateParty string `json:"private_party_value,omitempty"`
}

// Specs holds the physical description of the vehicle.
type Specs struct {
	BodyType  string `json:"body_type,omitempty"`
	Engine    string `json:"engine,omitempty"`
	FuelType  string `json:"fuel_type,omitempty"`
	DriveType string `json:"drive_type,omitempty"`
}

// TitleFlags are the sub-flags reported next to the title status.
type TitleFlags struct {
	TotalLoss        string `json:"total_loss,omitempty"`
	StructuralDamage string `json:"structural_damage,omitempty"`
	AirbagDeployment string `json:"airbag_deployment,omitempty"`
	OdometerStatus   string `json:"odometer_status,omitempty"`
	BasicWarranty    string `json:"basic_warranty,omitempty"`
	Recalls          string `json:"recalls,omitempty"`
}

// FullReport is the detailed variant, a superset of VehicleReport.
// Mileage carries the last reported odometer reading and TitleStatus is never
// empty once extraction ran.
type FullReport struct {
	VehicleReport
	Pricing
	Specs
	TitleFlags
	LastState       string         `json:"last_state,omitempty"`
	DamageReported  bool           `json:"damage_reported"`
	OwnerHistory    []OwnerHistory `json:"owner_history,omitempty"`
	DetailedHistory []HistoryEntry `json:"detailed_history,omitempty"`
}

// NewFullReport creates an empty detailed report dated at now.
func NewFullReport(vin string, now time.Time) FullReport {
	return FullReport{VehicleReport: NewVehicleReport(vin, now)}
}
