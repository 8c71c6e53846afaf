// Package extract turns product-page HTML into best-effort product fields.
//
// Every field is resolved by an ordered cascade of strategies over a parsed
// Page: the first strategy that yields a value wins. Nothing in this package
// returns an error for malformed input; a strategy that finds nothing simply
// hands over to the next one.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Page is a parsed document together with the URL it was served from
type Page struct {
	URL string
	Doc *goquery.Document

	text       string
	textBuilt  bool
	candidates []Candidate
	parsed     bool
	state      []Candidate
	stateBuilt bool
}

// NewPage parses rawHTML. The html parser recovers from any markup, so the
// only possible error comes from the reader.
func NewPage(pageURL, rawHTML string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}
	return &Page{URL: pageURL, Doc: doc}, nil
}

// Candidates returns the structured-data candidates of the page, parsed once
func (p *Page) Candidates() []Candidate {
	if !p.parsed {
		p.candidates = ParseStructuredData(p.Doc)
		p.parsed = true
	}
	return p.candidates
}

// StateCandidates returns product-like objects found in inline script state.
// Built on first use because it evaluates scripts.
func (p *Page) StateCandidates() []Candidate {
	if !p.stateBuilt {
		p.state = ScriptStateCandidates(p.Doc)
		p.stateBuilt = true
	}
	return p.state
}

// Meta returns the first non-empty content of a meta tag whose property,
// name or itemprop equals one of keys. Keys are tried in order.
func (p *Page) Meta(keys ...string) string {
	for _, key := range keys {
		var found string
		p.Doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			for _, attr := range []string{"property", "name", "itemprop"} {
				if v, ok := s.Attr(attr); ok && strings.EqualFold(strings.TrimSpace(v), key) {
					if c := strings.TrimSpace(s.AttrOr("content", "")); c != "" {
						found = c
						return false
					}
				}
			}
			return true
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// Text returns the visible text of the body with whitespace collapsed inside
// lines and one line per block element.
func (p *Page) Text() string {
	if !p.textBuilt {
		p.text = buildText(p.Doc)
		p.textBuilt = true
	}
	return p.text
}

var blockElements = map[atom.Atom]bool{
	atom.Address: true, atom.Article: true, atom.Aside: true, atom.Blockquote: true,
	atom.Br: true, atom.Dd: true, atom.Div: true, atom.Dl: true, atom.Dt: true,
	atom.Fieldset: true, atom.Figcaption: true, atom.Figure: true, atom.Footer: true,
	atom.Form: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Header: true, atom.Hr: true, atom.Li: true,
	atom.Main: true, atom.Nav: true, atom.Ol: true, atom.Option: true, atom.P: true,
	atom.Pre: true, atom.Section: true, atom.Select: true, atom.Table: true,
	atom.Td: true, atom.Th: true, atom.Tr: true, atom.Ul: true,
}

var skippedElements = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Noscript: true, atom.Template: true,
	atom.Svg: true, atom.Iframe: true, atom.Head: true,
}

func buildText(doc *goquery.Document) string {
	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
			return
		case html.ElementNode:
			if skippedElements[n.DataAtom] {
				return
			}
		}

		block := n.Type == html.ElementNode && blockElements[n.DataAtom]
		if block {
			b.WriteByte('\n')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			b.WriteByte('\n')
		}
	}
	for _, n := range root.Nodes {
		walk(n)
	}

	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, line := range lines {
		if line = NormalizeSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
