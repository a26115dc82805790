// Package extract turns a fetched report page into a normalized report.
package extract

import (
	"strings"
	"sync"

	"vhrscraper/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// Document is a report page with its markup and visible text. The parsed
// tree and embedded JSON are computed on first use.
type Document struct {
	HTML string
	Text string

	parseOnce sync.Once
	dom       *goquery.Document
	blobs     []any
}

// NewDocument parses markup and derives the visible text from it.
func NewDocument(markup string) *Document {
	doc := &Document{HTML: markup}
	doc.parse()
	if doc.dom != nil && len(doc.dom.Nodes) > 0 {
		doc.Text = htmlutil.VisibleText(doc.dom.Nodes[0])
	}
	return doc
}

// NewTextDocument uses text as the visible text instead of deriving it,
// unless text is blank.
func NewTextDocument(text, markup string) *Document {
	if strings.TrimSpace(text) == "" {
		return NewDocument(markup)
	}
	return &Document{HTML: markup, Text: text}
}

func (d *Document) parse() {
	d.parseOnce.Do(func() {
		dom, err := goquery.NewDocumentFromReader(strings.NewReader(d.HTML))
		if err != nil {
			return
		}
		d.dom = dom
		d.blobs = htmlutil.EmbeddedJSON(dom)
	})
}

// Empty reports whether there is nothing to extract from.
func (d *Document) Empty() bool {
	return d == nil || (strings.TrimSpace(d.HTML) == "" && strings.TrimSpace(d.Text) == "")
}

// Find runs a css selector against the markup.
func (d *Document) Find(selector string) *goquery.Selection {
	d.parse()
	if d.dom == nil {
		return &goquery.Selection{}
	}
	return d.dom.Find(selector)
}

// JSON returns the embedded JSON blocks of the page.
func (d *Document) JSON() []any {
	d.parse()
	return d.blobs
}

// JSONValue looks key up across every embedded JSON block.
func (d *Document) JSONValue(key string) (any, bool) {
	for _, blob := range d.JSON() {
		if value, ok := htmlutil.FindKey(blob, key); ok {
			return value, true
		}
	}
	return nil, false
}
