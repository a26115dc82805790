package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestVehicleReportRow(t *testing.T) {
	r := NewVehicleReport("WBAVC73518KX12345", time.Date(2024, 5, 14, 18, 0, 0, 0, time.UTC))
	r.Vehicle = Vehicle{Year: "2008", Make: "BMW", Model: "3", Trim: "SERIES 328XI"}
	r.Owners = Int(2)
	r.Accidents = Int(0)
	r.Mileage = "108,487"
	r.TitleStatus = TitleClean

	row := r.Row()
	require.Len(t, row, len(Columns))
	require.Equal(t, []string{
		"WBAVC73518KX12345", "2008", "BMW", "3", "SERIES 328XI",
		"2", "0", "", "108,487", "Clean", "2024-05-14", "",
	}, row)
}

func TestFullReportRow(t *testing.T) {
	r := NewFullReport("WBAVC73518KX12345", time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC))
	r.Retail = "$7,150"
	r.TotalLoss = FlagNoIssuesReported
	r.TitleStatus = TitleUnknown

	row := r.Row()
	require.Len(t, row, len(FullColumns))
	index := func(name string) int {
		for i, c := range FullColumns {
			if c == name {
				return i
			}
		}
		t.Fatalf("no column %s", name)
		return -1
	}
	require.Equal(t, "$7,150", row[index("retail_value")])
	require.Equal(t, FlagNoIssuesReported, row[index("total_loss")])
	require.Equal(t, TitleUnknown, row[index("title_status")])
	require.Equal(t, "", row[index("total_owners")])
}

func TestDateJSON(t *testing.T) {
	d := NewDate(time.Date(2024, 5, 14, 23, 59, 0, 0, time.UTC))
	encoded, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"2024-05-14"`, string(encoded))

	var decoded Date
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.True(t, decoded.Equal(d))

	require.NoError(t, json.Unmarshal([]byte(`""`), &decoded))
	require.True(t, decoded.IsZero())
}

func TestRawData(t *testing.T) {
	var data RawData
	data.Set(RawFuelType, "Gasoline")
	data.Set(RawDriveType, "")
	data.Set(RawField("color"), "red")
	data.Set(RawRetailValue, "$7,150")

	require.Equal(t, []RawField{RawRetailValue, RawFuelType}, data.Fields())
	value, ok := data.Get(RawFuelType)
	require.True(t, ok)
	require.Equal(t, "Gasoline", value)

	var decoded RawData
	require.Error(t, json.Unmarshal([]byte(`{"color":"red"}`), &decoded))
	require.NoError(t, json.Unmarshal([]byte(`{"fuel_type":"Diesel"}`), &decoded))
	require.Equal(t, RawData{RawFuelType: "Diesel"}, decoded)
}

func TestReportJSON(t *testing.T) {
	r := NewVehicleReport("WBAVC73518KX12345", time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC))
	r.Vehicle = Vehicle{Year: "2008", Make: "BMW"}
	r.Owners = Int(1)
	r.RawData.Set(RawLastState, "Texas")

	encoded, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded VehicleReport
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Empty(t, cmp.Diff(r, decoded))
}
