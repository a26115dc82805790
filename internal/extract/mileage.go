package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Bounds of a plausible odometer reading, both exclusive.
const (
	MinMileage = 100
	MaxMileage = 1_000_000
)

// plausibleMileage validates a reading with its separators stripped and
// returns it with the separators kept.
func plausibleMileage(raw string) (string, bool) {
	raw = strings.Trim(strings.TrimSpace(raw), ",")
	n, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return "", false
	}
	if n <= MinMileage || n >= MaxMileage {
		return "", false
	}
	return raw, true
}

// MileageValue validates a decoded json reading. Numbers are rendered with
// thousands separators, strings are kept as sent.
func MileageValue(value any) (string, bool) {
	switch v := value.(type) {
	case float64:
		if _, ok := plausibleMileage(strconv.Itoa(int(v))); ok {
			return GroupThousands(int(v)), true
		}
	case string:
		return plausibleMileage(v)
	}
	return "", false
}

func firstPlausible(re *regexp.Regexp, s string) (string, bool) {
	for _, match := range re.FindAllStringSubmatch(s, -1) {
		if value, ok := plausibleMileage(match[1]); ok {
			return value, true
		}
	}
	return "", false
}

func textMileage(name string, signal Signal, pattern string) Strategy[string] {
	re := mustPattern(pattern)
	return Strategy[string]{
		Name:   name,
		Signal: signal,
		Extract: func(doc *Document) (string, bool) {
			return firstPlausible(re, doc.Text)
		},
	}
}

func markupMileage(name string, signal Signal, pattern string) Strategy[string] {
	re := mustPattern(pattern)
	return Strategy[string]{
		Name:   name,
		Signal: signal,
		Extract: func(doc *Document) (string, bool) {
			return firstPlausible(re, doc.HTML)
		},
	}
}

// GroupThousands renders n with comma separators.
func GroupThousands(n int) string {
	digits := strconv.Itoa(n)
	var out strings.Builder
	for i, c := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out.WriteByte(',')
		}
		out.WriteRune(c)
	}
	return out.String()
}

var regionDigits = mustPattern(`([\d,]+)`)

var mileageChain = Chain[string]{
	{
		Name:   "json odometer",
		Signal: SignalJSON,
		Extract: func(doc *Document) (string, bool) {
			for _, key := range []string{"lastReportedOdometer", "lastOdometer", "lastReading"} {
				value, ok := doc.JSONValue(key)
				if !ok {
					continue
				}
				if reading, ok := MileageValue(value); ok {
					return reading, true
				}
			}
			return "", false
		},
	},
	markupMileage("json odometer markup", SignalJSON, `(?i)"lastReportedOdometer"[:\s]*"?([\d,]+)`),
	markupMileage("json last odometer markup", SignalJSON, `(?i)\blastOdometer"?[:\s]*"?([\d,]+)`),
	markupMileage("json strong text", SignalJSON, `"text"\s*:\s*"<strong>([\d,]+)</strong>`),
	markupMileage("strong odometer", SignalLabeled, `(?i)<strong>\s*([\d,]+)\s*</strong>\s*Last\s*reported\s*odometer`),
	markupMileage("strong last reported", SignalLabeled, `(?i)>([\d,]+)</strong>\s*Last\s*reported`),
	textMileage("last reported odometer", SignalLabeled, `(?i)([\d,]+)\s*Last\s*reported\s*odometer`),
	textMileage("odometer reading label", SignalLabeled, `(?i)Last\s*reported\s*odometer\s*reading[:\s]*([\d,]+)`),
	{
		Name:   "odometer region",
		Signal: SignalLabeled,
		Extract: func(doc *Document) (string, bool) {
			var (
				out   string
				found bool
			)
			doc.Find(`[class*="mileage"], [class*="odometer"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				out, found = firstPlausible(regionDigits, s.Text())
				return !found
			})
			return out, found
		},
	},
	textMileage("odometer", SignalText, `(?i)odometer[:\s]*([\d,]+)`),
	textMileage("miles", SignalText, `(?i)([\d,]+)\s*(?:miles|mi)\b`),
	textMileage("mileage", SignalText, `(?i)mileage[:\s]*([\d,]+)`),
}

// Mileage extracts the last reported odometer reading, keeping its
// thousands separators. Readings outside (MinMileage, MaxMileage) are
// rejected.
func Mileage(doc *Document) (string, bool) {
	return mileageChain.Run(doc)
}
