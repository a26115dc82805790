package extract

import (
	"regexp"
	"strconv"
	"strings"

	"vhrscraper/internal/report"
	"vhrscraper/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// KnownMakes are the manufacturer names a year/make/model match must name.
// Multi word names come before the single word they start with.
var KnownMakes = []string{
	"Honda", "Toyota", "Ford", "Chevrolet", "Chevy", "BMW",
	"Mercedes-Benz", "Mercedes", "Audi", "Volkswagen", "VW", "Nissan",
	"Hyundai", "Kia", "Mazda", "Subaru", "Lexus", "Acura", "Infiniti",
	"Jeep", "Dodge", "Ram", "Chrysler", "GMC", "Cadillac", "Buick",
	"Lincoln", "Volvo", "Porsche", "Tesla", "Mitsubishi", "Suzuki", "Fiat",
	"Alfa Romeo", "Alfa", "Jaguar", "Land Rover", "Land", "Range", "Mini",
	"Smart", "Scion", "Saturn", "Pontiac", "Oldsmobile", "Mercury",
	"Hummer", "Saab", "Isuzu", "Daewoo", "Genesis", "Polestar",
}

// Plausible model years.
const (
	MinModelYear = 1980
	MaxModelYear = 2026
)

// LookupMake returns the canonical spelling of a known make.
func LookupMake(name string) (string, bool) {
	name = strings.Join(strings.Fields(name), " ")
	for _, known := range KnownMakes {
		if strings.EqualFold(known, name) {
			return known, true
		}
	}
	return "", false
}

func plausibleYear(s string) bool {
	year, err := strconv.Atoi(s)
	if err != nil {
		return false
	}
	return year >= MinModelYear && year <= MaxModelYear
}

const vehicleTitleSelector = `.vehicle-title, .vehicle-header, [class*="year-make-model"], .vhr-title, .report-title`

var (
	titleElementPattern = mustPattern(`^(\d{4})\s+([A-Za-z-]+(?:\s+(?:Rover|Romeo))?)\s+(.+)$`)
	yearPattern         = mustPattern(`\b(19[89]\d|20[0-2]\d)\b`)
	makePatterns        = compileMakePatterns()
)

// compileMakePatterns builds one "<year> <make> <model> [trim...]" pattern
// per make. The model and up to two trim words have to be on the same line.
func compileMakePatterns() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(KnownMakes))
	for i, name := range KnownMakes {
		quoted := strings.ReplaceAll(regexp.QuoteMeta(name), " ", `\s+`)
		out[i] = mustPattern(`(?i)\b(\d{4})\s+` + quoted + `\s+([A-Za-z0-9-]+(?:[ \t]+[A-Za-z0-9-]+){0,2})`)
	}
	return out
}

func splitModel(year, manufacturer, rest string) report.Vehicle {
	words := strings.Fields(rest)
	v := report.Vehicle{Year: year, Make: manufacturer}
	if len(words) > 0 {
		v.Model = words[0]
		v.Trim = strings.Join(words[1:], " ")
	}
	return v
}

var vehicleChain = Chain[report.Vehicle]{
	{
		Name:   "json vehicle",
		Signal: SignalJSON,
		Extract: func(doc *Document) (report.Vehicle, bool) {
			raw, ok := doc.JSONValue("vehicle")
			if !ok {
				return report.Vehicle{}, false
			}
			fields, ok := raw.(map[string]any)
			if !ok {
				return report.Vehicle{}, false
			}
			var v report.Vehicle
			v.Year, _ = jsonString(fields["year"])
			v.Make, _ = jsonString(fields["make"])
			v.Model, _ = jsonString(fields["model"])
			v.Trim, _ = jsonString(fields["trim"])
			if !plausibleYear(v.Year) {
				return report.Vehicle{}, false
			}
			if known, ok := LookupMake(v.Make); ok {
				v.Make = known
			}
			return v, true
		},
	},
	{
		Name:   "title element",
		Signal: SignalLabeled,
		Extract: func(doc *Document) (report.Vehicle, bool) {
			var (
				out   report.Vehicle
				found bool
			)
			doc.Find(vehicleTitleSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				text := htmlutil.CollapseWhitespace(s.Text())
				text = strings.Join(strings.Fields(text), " ")
				match := titleElementPattern.FindStringSubmatch(text)
				if match == nil || !plausibleYear(match[1]) {
					return true
				}
				manufacturer, ok := LookupMake(match[2])
				if !ok {
					return true
				}
				out, found = splitModel(match[1], manufacturer, match[3]), true
				return false
			})
			return out, found
		},
	},
	{
		Name:   "make scan",
		Signal: SignalText,
		Extract: func(doc *Document) (report.Vehicle, bool) {
			for i, re := range makePatterns {
				for _, match := range re.FindAllStringSubmatch(doc.Text, -1) {
					if !plausibleYear(match[1]) {
						continue
					}
					return splitModel(match[1], KnownMakes[i], match[2]), true
				}
			}
			return report.Vehicle{}, false
		},
	},
	{
		Name:   "year region",
		Signal: SignalLabeled,
		Extract: func(doc *Document) (report.Vehicle, bool) {
			var (
				out   report.Vehicle
				found bool
			)
			doc.Find(`[class*="year"], [class*="vehicle"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				for _, match := range yearPattern.FindAllStringSubmatch(s.Text(), -1) {
					if plausibleYear(match[1]) {
						out, found = report.Vehicle{Year: match[1]}, true
						return false
					}
				}
				return true
			})
			return out, found
		},
	},
}

// VehicleInfo extracts the year/make/model/trim tuple as a whole, a later
// strategy never fills in fields an earlier one left empty.
func VehicleInfo(doc *Document) (report.Vehicle, bool) {
	return vehicleChain.Run(doc)
}
