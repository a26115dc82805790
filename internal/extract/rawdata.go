package extract

import "vhrscraper/internal/report"

// RawData collects the ancillary fields of the summary report.
func RawData(doc *Document) report.RawData {
	var data report.RawData
	if retail, ok := retailChain.Run(doc); ok {
		data.Set(report.RawRetailValue, retail)
	}
	if kind, ok := VehicleType(doc); ok {
		data.Set(report.RawVehicleType, kind)
	}
	if fuel, ok := firstKeyword(fuelTypes, doc.Text); ok {
		data.Set(report.RawFuelType, fuel)
	}
	if drive, ok := firstKeyword(driveTypes, doc.Text); ok {
		data.Set(report.RawDriveType, drive)
	}
	if state, ok := LastState(doc); ok {
		data.Set(report.RawLastState, state)
	}
	return data
}
