package extract

import (
	"strings"

	"vhrscraper/internal/report"
)

func formatDollars(digits string) string {
	return "$" + strings.Trim(digits, ",")
}

func dollarKey(name, key string) Strategy[string] {
	return Strategy[string]{
		Name:   name,
		Signal: SignalJSON,
		Extract: func(doc *Document) (string, bool) {
			value, ok := doc.JSONValue(key)
			if !ok {
				return "", false
			}
			s, ok := jsonString(value)
			if !ok {
				return "", false
			}
			digits, ok := firstGroup(bareDollars, "$"+strings.TrimPrefix(s, "$"))
			if !ok {
				return "", false
			}
			return formatDollars(digits), true
		},
	}
}

func dollarPattern(name string, signal Signal, markup bool, pattern string) Strategy[string] {
	re := mustPattern(pattern)
	return Strategy[string]{
		Name:   name,
		Signal: signal,
		Extract: func(doc *Document) (string, bool) {
			source := doc.Text
			if markup {
				source = doc.HTML
			}
			digits, ok := firstGroup(re, source)
			if !ok || strings.Trim(digits, ",") == "" {
				return "", false
			}
			return formatDollars(digits), true
		},
	}
}

var bareDollars = mustPattern(`\$\s*(\d[\d,]*)`)

// priceChain builds the chain for one valuation: the JSON key, the same key
// matched in raw markup, a value/text JSON pair carrying the label, the
// labeled value and finally a dollar amount followed by the label.
func priceChain(key, label string) Chain[string] {
	return Chain[string]{
		dollarKey("json "+key, key),
		dollarPattern("json "+key+" markup", SignalJSON, true, `(?i)"`+key+`"\s*:\s*"\$?(\d[\d,]*)"`),
		dollarPattern("json "+key+" value text", SignalJSON, true, `(?i)"value"\s*:\s*"\$?(\d[\d,]*)"[^}]*"text"\s*:\s*"[^"]*`+label),
		dollarPattern(key+" label", SignalLabeled, false, `(?i)`+label+`\s+Value[:\s]*\$\s*(\d[\d,]*)`),
		dollarPattern(key+" suffix", SignalText, false, `(?i)\$\s*(\d[\d,]*)\s*`+label),
	}
}

func concat[T any](chains ...Chain[T]) Chain[T] {
	var out Chain[T]
	for _, c := range chains {
		out = append(out, c...)
	}
	return out
}

var (
	retailChain = concat(
		Chain[string]{
			dollarKey("json carfaxPrice", "carfaxPrice"),
			dollarPattern("json carfaxPrice markup", SignalJSON, true, `(?i)"carfaxPrice"\s*:\s*"\$?(\d[\d,]*)"`),
		},
		priceChain("retailPrice", `(?:CARFAX\s+)?Retail`),
		Chain[string]{
			dollarPattern("first dollar amount", SignalText, false, `\$\s*(\d[\d,]*)`),
		},
	)
	wholesaleChain    = priceChain("wholesalePrice", `Wholesale`)
	tradeInChain      = priceChain("tradeInPrice", `Trade[\s-]?In`)
	privatePartyChain = priceChain("privatePartyPrice", `Private\s+Party`)
)

// Pricing extracts the four valuations independently. Retail falls back to
// the first dollar amount on the page.
func Pricing(doc *Document) report.Pricing {
	var p report.Pricing
	p.Retail, _ = retailChain.Run(doc)
	p.Wholesale, _ = wholesaleChain.Run(doc)
	p.TradeIn, _ = tradeInChain.Run(doc)
	p.PrivateParty, _ = privatePartyChain.Run(doc)
	return p
}
