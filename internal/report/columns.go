package report

// Columns is the tabular layout of a VehicleReport.
var Columns = []string{
	"vin", "year", "make", "model", "trim",
	"owners", "accidents", "service_records",
	"mileage", "title_status", "report_date", "error",
}

// Row renders the report in Columns order, absent values are empty strings.
func (r VehicleReport) Row() []string {
	return []string{
		r.VIN, r.Year, r.Make, r.Model, r.Trim,
		formatOptional(r.Owners),
		formatOptional(r.Accidents),
		formatOptional(r.ServiceRecords),
		r.Mileage, r.TitleStatus, r.ReportDate.String(), r.Error,
	}
}

// FullColumns is the tabular layout of a FullReport.
var FullColumns = []string{
	"vin", "year", "make", "model", "trim",
	"body_type", "engine", "fuel_type", "drive_type",
	"retail_value", "wholesale_value", "trade_in_value", "private_party_value",
	"total_owners", "accidents_reported", "service_records_count",
	"last_odometer", "last_state", "title_status",
	"total_loss", "structural_damage", "airbag_deployment",
	"odometer_status", "basic_warranty", "recalls",
	"report_date", "error",
}

// Row renders the report in FullColumns order.
func (r FullReport) Row() []string {
	return []string{
		r.VIN, r.Year, r.Make, r.Model, r.Trim,
		r.BodyType, r.Engine, r.FuelType, r.DriveType,
		r.Retail, r.Wholesale, r.TradeIn, r.PrivateParty,
		formatOptional(r.Owners),
		formatOptional(r.Accidents),
		formatOptional(r.ServiceRecords),
		r.Mileage, r.LastState, r.TitleStatus,
		r.TotalLoss, r.StructuralDamage, r.AirbagDeployment,
		r.OdometerStatus, r.BasicWarranty, r.Recalls,
		r.ReportDate.String(), r.Error,
	}
}
