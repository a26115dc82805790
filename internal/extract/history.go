package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"vhrscraper/internal/report"
)

// MaxOwnerSegments is the highest owner index looked for.
const MaxOwnerSegments = 9

// HistoryContextLimit caps the text following a date that is scanned for
// events.
const HistoryContextLimit = 500

// HistoryDateLayout is the layout of history dates.
const HistoryDateLayout = "01/02/2006"

var (
	ownerMarkers        = compileOwnerMarkers()
	purchasedPattern    = mustPattern(`(?i)(?:Year\s*)?purchased[:\s]*(\d{4})`)
	ownershipPattern    = mustPattern(`(?i)\b(\d+[ \t]*(?:years?|yrs?)\b\.?(?:[ \t]*\d+[ \t]*(?:months?|mo)\b\.?)?)`)
	milesPerYearPattern = mustPattern(`(?i)([\d,]+)\s*(?:per\s*year|/\s*yr)`)
	historyDatePattern  = mustPattern(`\b(\d{2}/\d{2}/\d{4})\b`)
	historyMilesPattern = mustPattern(`(?i)(\d[\d,]*)\s*(?:miles?|mi)\b`)
	groupedNumber       = mustPattern(`\b(\d{1,3}(?:,\d{3})+)\b`)
)

// ownerTypes are checked in order, "Personal lease" has to win over
// "Personal".
var ownerTypes = []string{"Personal lease", "Personal", "Corporate"}

// HistoryEvents is the vocabulary recognized in detailed history entries.
var HistoryEvents = []string{
	"Vehicle serviced",
	"Oil and filter changed",
	"Title issued",
	"Registration",
	"Inspection",
	"Brake",
	"Tire",
	"Battery",
	"Sold",
	"Offered for sale",
	"Certified Pre-Owned",
}

var historyEventPatterns = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(HistoryEvents))
	for i, event := range HistoryEvents {
		out[i] = mustPattern(`(?i)` + regexp.QuoteMeta(event))
	}
	return out
}()

// compileOwnerMarkers returns the "Owner N" marker for 1..MaxOwnerSegments+1,
// index 0 is unused.
func compileOwnerMarkers() []*regexp.Regexp {
	out := make([]*regexp.Regexp, MaxOwnerSegments+2)
	for i := 1; i < len(out); i++ {
		out[i] = mustPattern(fmt.Sprintf(`(?i)\bOwner\s*%d\b`, i))
	}
	return out
}

// ownerSegment isolates the text from "Owner n" up to "Owner n+1" or the
// end of the text.
func ownerSegment(text string, n int) (string, bool) {
	start := ownerMarkers[n].FindStringIndex(text)
	if start == nil {
		return "", false
	}
	rest := text[start[0]:]
	end := ownerMarkers[n+1].FindStringIndex(rest[start[1]-start[0]:])
	if end == nil {
		return rest, true
	}
	return rest[:start[1]-start[0]+end[0]], true
}

// OwnerHistory extracts one entry per "Owner N" segment. history is used to
// attach the dated entries found inside each segment.
func OwnerHistory(doc *Document, history []report.HistoryEntry) []report.OwnerHistory {
	var out []report.OwnerHistory
	for n := 1; n <= MaxOwnerSegments; n++ {
		segment, ok := ownerSegment(doc.Text, n)
		if !ok {
			continue
		}

		owner := report.OwnerHistory{OwnerNumber: n}
		owner.YearPurchased, _ = firstGroup(purchasedPattern, segment)
		for _, kind := range ownerTypes {
			if strings.Contains(segment, kind) {
				owner.OwnerType = kind
				break
			}
		}
		if length, ok := firstGroup(ownershipPattern, segment); ok {
			owner.LengthOfOwnership = strings.TrimSpace(length)
		}
		owner.MilesPerYear, _ = firstGroup(milesPerYearPattern, segment)

		for _, entry := range history {
			if !strings.Contains(segment, entry.Date) {
				continue
			}
			owner.ServiceRecords = append(owner.ServiceRecords, report.ServiceRecord{
				Date:     entry.Date,
				Mileage:  entry.Mileage,
				Comments: entry.Events,
			})
		}

		out = append(out, owner)
	}
	return out
}

// historyContext returns up to HistoryContextLimit bytes following the first
// occurrence of date, stopping at the next date token.
func historyContext(text string, at int, date string) string {
	rest := text[at+len(date):]
	if next := historyDatePattern.FindStringIndex(rest); next != nil {
		rest = rest[:next[0]]
	}
	if len(rest) > HistoryContextLimit {
		rest = rest[:HistoryContextLimit]
	}
	return rest
}

// DetailedHistory collects the dated entries of the page. Dates are
// deduplicated and sorted, dates that do not parse keep their page order
// after the ones that do.
func DetailedHistory(doc *Document) []report.HistoryEntry {
	type dated struct {
		entry  report.HistoryEntry
		parsed time.Time
		valid  bool
	}

	seen := map[string]bool{}
	var entries []dated
	for _, loc := range historyDatePattern.FindAllStringSubmatchIndex(doc.Text, -1) {
		date := doc.Text[loc[2]:loc[3]]
		if seen[date] {
			continue
		}
		seen[date] = true

		context := historyContext(doc.Text, loc[2], date)
		var events []string
		for i, re := range historyEventPatterns {
			if re.MatchString(context) {
				events = append(events, HistoryEvents[i])
			}
		}
		if len(events) == 0 {
			continue
		}

		mileage, ok := firstGroup(historyMilesPattern, context)
		if !ok {
			mileage, _ = firstGroup(groupedNumber, context)
		}

		parsed, err := time.Parse(HistoryDateLayout, date)
		entries = append(entries, dated{
			entry: report.HistoryEntry{
				Date:    date,
				Mileage: strings.Trim(mileage, ","),
				Events:  events,
			},
			parsed: parsed,
			valid:  err == nil,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.valid != b.valid {
			return a.valid
		}
		return a.valid && a.parsed.Before(b.parsed)
	})

	out := make([]report.HistoryEntry, len(entries))
	for i, e := range entries {
		out[i] = e.entry
	}
	return out
}
