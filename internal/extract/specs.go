package extract

import (
	"regexp"
	"strings"

	"vhrscraper/internal/report"
)

type keyword struct {
	pattern *regexp.Regexp
	value   string
}

// keywords compiles whole word, case insensitive matchers for each term.
// A term maps to itself unless display names it differently.
func keywords(terms []string, display map[string]string) []keyword {
	out := make([]keyword, len(terms))
	for i, term := range terms {
		value := term
		if d, ok := display[term]; ok {
			value = d
		}
		pattern := strings.ReplaceAll(regexp.QuoteMeta(term), " ", `\s+`)
		out[i] = keyword{pattern: mustPattern(`(?i)\b` + pattern + `\b`), value: value}
	}
	return out
}

func firstKeyword(list []keyword, text string) (string, bool) {
	for _, k := range list {
		if k.pattern.MatchString(text) {
			return k.value, true
		}
	}
	return "", false
}

var (
	vehicleTypes = keywords([]string{
		"SEDAN", "SUV", "COUPE", "TRUCK", "VAN", "WAGON", "CONVERTIBLE", "HATCHBACK",
	}, nil)
	bodyTypes = keywords([]string{
		"SEDAN", "SUV", "COUPE", "TRUCK", "VAN", "WAGON", "CONVERTIBLE", "HATCHBACK",
		"4 DR", "2 DR",
	}, nil)
	fuelTypes = keywords([]string{
		"GASOLINE", "DIESEL", "ELECTRIC", "HYBRID", "FLEX FUEL",
	}, map[string]string{
		"GASOLINE":  "Gasoline",
		"DIESEL":    "Diesel",
		"ELECTRIC":  "Electric",
		"HYBRID":    "Hybrid",
		"FLEX FUEL": "Flex Fuel",
	})
	driveTypes = keywords([]string{
		"ALL WHEEL DRIVE", "FRONT WHEEL DRIVE", "REAR WHEEL DRIVE",
		"4WD", "AWD", "FWD", "RWD",
	}, nil)

	enginePattern    = mustPattern(`(?i)\b(\d+\.\d+L(?:[ \t]+[A-Z0-9]+){0,4})`)
	lastStatePattern = mustPattern(`(?i)Last\s+owned\s+in[ \t]+([A-Za-z][A-Za-z \t]*)`)
)

// VehicleType is the coarse body style, one of SEDAN, SUV, COUPE, ...
func VehicleType(doc *Document) (string, bool) {
	return firstKeyword(vehicleTypes, doc.Text)
}

// LastState is the state the vehicle was last owned in.
func LastState(doc *Document) (string, bool) {
	match, ok := firstGroup(lastStatePattern, doc.Text)
	if !ok {
		return "", false
	}
	match = strings.Join(strings.Fields(match), " ")
	return match, match != ""
}

// Specs extracts the physical description of the vehicle.
func Specs(doc *Document) report.Specs {
	var s report.Specs
	s.BodyType, _ = firstKeyword(bodyTypes, doc.Text)
	if engine, ok := firstGroup(enginePattern, doc.Text); ok {
		s.Engine = strings.TrimSpace(engine)
	}
	s.FuelType, _ = firstKeyword(fuelTypes, doc.Text)
	s.DriveType, _ = firstKeyword(driveTypes, doc.Text)
	return s
}

var (
	totalLossPattern        = mustPattern(`(?i)\bNo\s*total\s*loss`)
	structuralDamagePattern = mustPattern(`(?i)\bNo\s*structural\s*damage`)
	airbagPattern           = mustPattern(`(?i)\bNo\s*airbag\s*deployment`)
	rollbackPattern         = mustPattern(`(?i)\bNo\s*indication\s*of\s*(?:an\s*)?odometer\s*rollback`)
	warrantyExpiredPattern  = mustPattern(`(?i)warranty\s*expired`)
	warrantyActivePattern   = mustPattern(`(?i)warranty[^\n]*\bactive\b`)
	noRecallsPattern        = mustPattern(`(?i)\bNo\s*(?:open\s*)?recalls?\s*reported`)
)

// TitleFlags extracts the title sub-flags, warranty and recall status. A flag
// is only set when the page states it explicitly.
func TitleFlags(doc *Document) report.TitleFlags {
	var f report.TitleFlags
	if totalLossPattern.MatchString(doc.Text) {
		f.TotalLoss = report.FlagNoIssuesReported
	}
	if structuralDamagePattern.MatchString(doc.Text) {
		f.StructuralDamage = report.FlagNoIssuesReported
	}
	if airbagPattern.MatchString(doc.Text) {
		f.AirbagDeployment = report.FlagNoIssuesReported
	}
	if rollbackPattern.MatchString(doc.Text) {
		f.OdometerStatus = report.FlagNoIssuesIndicated
	}
	switch {
	case warrantyExpiredPattern.MatchString(doc.Text):
		f.BasicWarranty = report.WarrantyExpired
	case warrantyActivePattern.MatchString(doc.Text):
		f.BasicWarranty = report.WarrantyActive
	}
	if noRecallsPattern.MatchString(doc.Text) {
		f.Recalls = report.RecallsNoneReported
	}
	return f
}
