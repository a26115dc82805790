package htmlutil

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var hiddenElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Template: true,
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.P: true, atom.Pre: true,
	atom.Section: true, atom.Table: true, atom.Tbody: true, atom.Td: true,
	atom.Th: true, atom.Thead: true, atom.Title: true, atom.Tr: true, atom.Ul: true,
}

// VisibleText renders the text a reader would see: script and style contents
// are dropped, block elements start new lines and runs of spaces collapse.
func VisibleText(node *html.Node) string {
	var buffer strings.Builder
	visibleTextRecursive(node, &buffer)
	return CollapseWhitespace(buffer.String())
}

func visibleTextRecursive(node *html.Node, buffer *strings.Builder) {
	if node == nil {
		return
	}
	switch node.Type {
	case html.TextNode:
		buffer.WriteString(node.Data)
		return
	case html.CommentNode:
		return
	case html.ElementNode:
		if hiddenElements[node.DataAtom] {
			return
		}
	}

	block := node.Type == html.ElementNode && blockElements[node.DataAtom]
	if block {
		buffer.WriteByte('\n')
	} else if node.Type == html.ElementNode {
		buffer.WriteByte(' ')
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		visibleTextRecursive(child, buffer)
	}
	if block {
		buffer.WriteByte('\n')
	} else if node.Type == html.ElementNode {
		buffer.WriteByte(' ')
	}
}

var innerWhitespace = regexp.MustCompile(`[^\S\n]+`)

func removeNonPrintable(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || unicode.IsPrint(r) {
			return r
		}
		if unicode.IsSpace(r) {
			return ' '
		}
		return -1
	}, s)
}

// CollapseWhitespace trims every line, collapses runs of spaces and drops
// empty lines.
func CollapseWhitespace(s string) string {
	s = removeNonPrintable(s)
	s = innerWhitespace.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// JSONCommentPrefix marks an html comment carrying a JSON payload.
const JSONCommentPrefix = "JSON_DATA:"

// EmbeddedJSON decodes every `<script type="application/json">` block and
// every `<!-- JSON_DATA: ... -->` comment in the document. Blocks that fail
// to decode are skipped.
func EmbeddedJSON(doc *goquery.Document) []any {
	var out []any

	doc.Find(`script[type="application/json"]`).Each(func(_ int, s *goquery.Selection) {
		if blob, ok := decodeJSON(s.Text()); ok {
			out = append(out, blob)
		}
	})

	for _, root := range doc.Nodes {
		collectJSONComments(root, &out)
	}

	return out
}

func collectJSONComments(node *html.Node, out *[]any) {
	if node == nil {
		return
	}
	if node.Type == html.CommentNode {
		data := strings.TrimSpace(node.Data)
		if strings.HasPrefix(data, JSONCommentPrefix) {
			if blob, ok := decodeJSON(strings.TrimPrefix(data, JSONCommentPrefix)); ok {
				*out = append(*out, blob)
			}
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectJSONComments(child, out)
	}
}

func decodeJSON(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	var blob any
	err := json.Unmarshal([]byte(raw), &blob)
	if err != nil {
		return nil, false
	}
	return blob, true
}

// FindKey walks decoded JSON depth first and returns the first value stored
// under key.
func FindKey(blob any, key string) (any, bool) {
	switch v := blob.(type) {
	case map[string]any:
		if value, ok := v[key]; ok && value != nil {
			return value, true
		}
		for _, child := range v {
			if value, ok := FindKey(child, key); ok {
				return value, true
			}
		}
	case []any:
		for _, child := range v {
			if value, ok := FindKey(child, key); ok {
				return value, true
			}
		}
	}
	return nil, false
}
