package extract

import (
	"regexp"
	"strings"

	"vhrscraper/internal/report"
	"vhrscraper/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

type titleRule struct {
	status  string
	pattern *regexp.Regexp
}

// titleRules are in priority order, the first rule with an affirmative
// match decides the status.
var titleRules = []titleRule{
	{report.TitleClean, mustPattern(`(?i)guaranteed\s*no\s*problem`)},
	{report.TitleClean, mustPattern(`(?i)\bclean\s*title\b`)},
	{report.TitleClean, mustPattern(`(?i)\btitle\b[^\n]{0,40}?(?:\n[^\n]{0,40}?)?\bclean\b`)},
	{report.TitleSalvage, mustPattern(`(?i)\bsalvage\b`)},
	{report.TitleRebuilt, mustPattern(`(?i)\brebuilt\b`)},
	{report.TitleFlood, mustPattern(`(?i)\bflood\b`)},
	{report.TitleLemon, mustPattern(`(?i)\blemon\b`)},
	{report.TitleJunk, mustPattern(`(?i)\bjunk\b`)},
}

var (
	genericNoIssues = mustPattern(`(?i)\bNo\s*(?:Issues\s*)?(?:Problems?|Reported)\b`)
	// A negation up to two words ahead of the keyword on the same line, as
	// in "no salvage" or "not a salvage vehicle".
	negated = mustPattern(`(?i)\b(?:no|not|never|without)\b(?:[ \t]+[\w-]+){0,2}[ \t]*$`)
)

// affirmative reports whether re matches somewhere in text without being
// preceded by a nearby negation.
func affirmative(re *regexp.Regexp, text string) bool {
	for _, loc := range re.FindAllStringIndex(text, -1) {
		start := loc[0] - 40
		if start < 0 {
			start = 0
		}
		if negated.MatchString(text[start:loc[0]]) {
			continue
		}
		return true
	}
	return false
}

var knownTitles = []string{
	report.TitleClean,
	report.TitleSalvage,
	report.TitleRebuilt,
	report.TitleFlood,
	report.TitleLemon,
	report.TitleJunk,
}

var titleChain = Chain[string]{
	{
		Name:   "json title status",
		Signal: SignalJSON,
		Extract: func(doc *Document) (string, bool) {
			value, ok := doc.JSONValue("titleStatus")
			if !ok {
				return "", false
			}
			status, ok := jsonString(value)
			if !ok {
				return "", false
			}
			return CanonicalTitle(status)
		},
	},
	{
		Name:   "title region",
		Signal: SignalLabeled,
		Extract: func(doc *Document) (string, bool) {
			var (
				out   string
				found bool
			)
			doc.Find(`[class*="title"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				for _, node := range s.Nodes {
					out, found = regionTitle(htmlutil.VisibleText(node))
					if found {
						break
					}
				}
				return !found
			})
			return out, found
		},
	},
	{
		Name:   "title keywords",
		Signal: SignalLabeled,
		Extract: func(doc *Document) (string, bool) {
			for _, rule := range titleRules {
				if affirmative(rule.pattern, doc.Text) {
					return rule.status, true
				}
			}
			return "", false
		},
	},
	{
		Name:   "title cell markup",
		Signal: SignalText,
		Extract: func(doc *Document) (string, bool) {
			return report.TitleClean, titleCellClean.MatchString(doc.HTML)
		},
	},
	{
		Name:   "no issues reported",
		Signal: SignalText,
		Extract: func(doc *Document) (string, bool) {
			return report.TitleClean, genericNoIssues.MatchString(doc.Text)
		},
	},
}

// titleCellClean matches a "Title" label element followed by a "Clean" value
// element.
var titleCellClean = mustPattern(`(?i)>\s*title(?:\s+status)?\s*:?\s*(?:<[^>]*>\s*){1,4}clean\b`)

var regionKeywords = []titleRule{
	{report.TitleClean, mustPattern(`(?i)\bclean\b`)},
	{report.TitleSalvage, mustPattern(`(?i)\bsalvage\b`)},
	{report.TitleRebuilt, mustPattern(`(?i)\brebuilt\b`)},
	{report.TitleFlood, mustPattern(`(?i)\bflood\b`)},
	{report.TitleLemon, mustPattern(`(?i)\blemon\b`)},
	{report.TitleJunk, mustPattern(`(?i)\bjunk\b`)},
}

// regionTitle classifies the text of an element labeled as a title, where a
// bare "Clean" is enough.
func regionTitle(text string) (string, bool) {
	for _, rule := range regionKeywords {
		if affirmative(rule.pattern, text) {
			return rule.status, true
		}
	}
	return "", false
}

// CanonicalTitle maps free text such as "SALVAGE" or "clean title" onto a
// known status.
func CanonicalTitle(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, status := range knownTitles {
		if strings.Contains(lower, strings.ToLower(status)) {
			return status, true
		}
	}
	return "", false
}

// TitleStatus classifies the title, absent when nothing on the page
// indicates a status.
func TitleStatus(doc *Document) (string, bool) {
	return titleChain.Run(doc)
}

// FullTitleStatus is TitleStatus with report.TitleUnknown instead of absence.
func FullTitleStatus(doc *Document) string {
	status, ok := TitleStatus(doc)
	if !ok {
		return report.TitleUnknown
	}
	return status
}
