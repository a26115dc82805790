package report

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RawField names an ancillary value that is not promoted to a report field.
type RawField string

const (
	RawRetailValue    RawField = "retail_value"
	RawVehicleType    RawField = "vehicle_type"
	RawFuelType       RawField = "fuel_type"
	RawDriveType      RawField = "drive_type"
	RawLastState      RawField = "last_state"
	RawDamageReported RawField = "damage_reported"
)

// RawFields lists every known field in a stable order.
var RawFields = []RawField{
	RawRetailValue,
	RawVehicleType,
	RawFuelType,
	RawDriveType,
	RawLastState,
	RawDamageReported,
}

func (f RawField) Valid() bool {
	for _, known := range RawFields {
		if f == known {
			return true
		}
	}
	return false
}

// RawData is a side table restricted to the RawField enumeration.
type RawData map[RawField]string

// Set stores value under field, empty values and unknown fields are ignored.
func (d *RawData) Set(field RawField, value string) {
	if value == "" || !field.Valid() {
		return
	}
	if *d == nil {
		*d = RawData{}
	}
	(*d)[field] = value
}

func (d RawData) Get(field RawField) (string, bool) {
	value, ok := d[field]
	return value, ok
}

// Fields returns the fields present, in RawFields order.
func (d RawData) Fields() []RawField {
	var out []RawField
	for _, f := range RawFields {
		if _, ok := d[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

func (d *RawData) UnmarshalJSON(data []byte) error {
	var plain map[string]string
	err := json.Unmarshal(data, &plain)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(plain))
	for k := range plain {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := RawData{}
	for _, k := range keys {
		field := RawField(k)
		if !field.Valid() {
			return fmt.Errorf("unknown raw data field %q", k)
		}
		out[field] = plain[k]
	}
	*d = out
	return nil
}
