package extract

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Signal is how strong the evidence behind a strategy is.
type Signal int

const (
	// SignalJSON reads a keyed value out of embedded structured data.
	SignalJSON Signal = iota
	// SignalLabeled reads a value next to its label or inside a labeled region.
	SignalLabeled
	// SignalText matches loose patterns against the page.
	SignalText
)

func (s Signal) String() string {
	switch s {
	case SignalJSON:
		return "json"
	case SignalLabeled:
		return "labeled"
	case SignalText:
		return "text"
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// Strategy is one way of finding a field.
type Strategy[T any] struct {
	Name    string
	Signal  Signal
	Extract func(doc *Document) (T, bool)
}

// Chain tries strategies in order and stops at the first that succeeds.
type Chain[T any] []Strategy[T]

func (c Chain[T]) Run(doc *Document) (T, bool) {
	value, _, ok := c.Trace(doc)
	return value, ok
}

// Trace is Run but also returns the name of the strategy that matched.
func (c Chain[T]) Trace(doc *Document) (T, string, bool) {
	for _, s := range c {
		value, ok := s.Extract(doc)
		if ok {
			return value, s.Name, true
		}
	}
	var zero T
	return zero, "", false
}

func mustPattern(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

func parseCount(s string) (int, bool) {
	n, err := strconv.Atoi(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func firstGroup(re *regexp.Regexp, s string) (string, bool) {
	match := re.FindStringSubmatch(s)
	if match == nil {
		return "", false
	}
	return match[1], true
}

func textCount(name string, signal Signal, pattern string) Strategy[int] {
	re := mustPattern(pattern)
	return Strategy[int]{
		Name:   name,
		Signal: signal,
		Extract: func(doc *Document) (int, bool) {
			group, ok := firstGroup(re, doc.Text)
			if !ok {
				return 0, false
			}
			return parseCount(group)
		},
	}
}

func markupCount(name string, pattern string) Strategy[int] {
	re := mustPattern(pattern)
	return Strategy[int]{
		Name:   name,
		Signal: SignalText,
		Extract: func(doc *Document) (int, bool) {
			group, ok := firstGroup(re, doc.HTML)
			if !ok {
				return 0, false
			}
			return parseCount(group)
		},
	}
}

func regionCount(name, selector, pattern string) Strategy[int] {
	re := mustPattern(pattern)
	return Strategy[int]{
		Name:   name,
		Signal: SignalLabeled,
		Extract: func(doc *Document) (int, bool) {
			var (
				out   int
				found bool
			)
			doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
				group, ok := firstGroup(re, s.Text())
				if !ok {
					return true
				}
				out, found = parseCount(group)
				return !found
			})
			return out, found
		},
	}
}

func jsonCount(name string, keys ...string) Strategy[int] {
	return Strategy[int]{
		Name:   name,
		Signal: SignalJSON,
		Extract: func(doc *Document) (int, bool) {
			for _, key := range keys {
				value, ok := doc.JSONValue(key)
				if !ok {
					continue
				}
				if n, ok := jsonNumber(value); ok {
					return n, true
				}
			}
			return 0, false
		},
	}
}

func jsonNumber(value any) (int, bool) {
	switch v := value.(type) {
	case float64:
		if v < 0 {
			return 0, false
		}
		return int(v), true
	case string:
		return parseCount(v)
	}
	return 0, false
}

func jsonString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}
