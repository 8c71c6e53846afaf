package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Price is a resolved amount with the currency it was quoted in, if known
type Price struct {
	Amount   decimal.Decimal
	Currency string
}

// currencyAmountRe matches an amount attached to a currency symbol or code
var currencyAmountRe = regexp.MustCompile(
	`(?:US\$|CA\$|AU\$|NZ\$|HK\$|C\$|A\$|R\$|[$£€¥₹])\s?\d[\d.,]*` +
		`|\d[\d.,]*\s?(?:€|£|(?:USD|EUR|GBP|CAD|AUD)\b)`)

// retailerPriceSelectors are known price containers, most specific first
var retailerPriceSelectors = []string{
	"#corePrice_feature_div .a-offscreen",
	"#corePriceDisplay_desktop_feature_div .a-offscreen",
	".a-price .a-offscreen",
	"#priceblock_dealprice",
	"#priceblock_ourprice",
	"#price_inside_buybox",
	".a-price-whole",
	"[data-test=product-price]",
	"[data-testid=product-price]",
	"[itemprop=offers] [itemprop=price]",
}

// stalePriceMarkers flag struck-through or reference prices
var stalePriceMarkers = []string{
	"old", "was", "compare", "strike", "original", "list-price", "listprice", "list_price", "msrp", "rrp",
}

var priceStages = []stage[Price]{
	{"structured_data", func(p *Page) (Price, bool) {
		for _, c := range p.Candidates() {
			if c.Price != nil {
				return Price{Amount: *c.Price, Currency: firstNonEmpty(c.Currency, metaCurrency(p))}, true
			}
		}
		return Price{}, false
	}},
	{"price_meta", func(p *Page) (Price, bool) {
		raw := p.Meta("product:price:amount", "og:price:amount")
		if raw == "" {
			raw = itempropPrice(p.Doc)
		}
		d, ok := ParseDeclaredPrice(raw)
		if !ok {
			return Price{}, false
		}
		return Price{Amount: d, Currency: firstNonEmpty(metaCurrency(p), CurrencyFromSymbol(raw))}, true
	}},
	{"script_state", func(p *Page) (Price, bool) {
		for _, c := range p.StateCandidates() {
			if c.Price != nil {
				return Price{Amount: *c.Price, Currency: firstNonEmpty(c.Currency, metaCurrency(p))}, true
			}
		}
		return Price{}, false
	}},
	{"visible_element", visibleElementPrice},
	{"body_text", func(p *Page) (Price, bool) {
		return matchCurrencyAmount(p, p.Text())
	}},
}

// ResolvePrice returns the first positive price the cascade finds
func ResolvePrice(p *Page) (Price, bool) {
	return cascade("price", p, priceStages)
}

func metaCurrency(p *Page) string {
	if c := NormalizeCurrency(p.Meta("product:price:currency", "og:price:currency", "priceCurrency")); c != "" {
		return c
	}
	return NormalizeCurrency(p.Doc.Find("[itemprop=priceCurrency]").First().AttrOr("content", ""))
}

// itempropPrice reads microdata price, preferring the content attribute
func itempropPrice(doc *goquery.Document) string {
	var raw string
	doc.Find("[itemprop=price]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if v := strings.TrimSpace(s.AttrOr("content", "")); v != "" {
			raw = v
			return false
		}
		if v := elementText(s); v != "" {
			raw = v
			return false
		}
		return true
	})
	return raw
}

// visibleElementPrice scans price-like elements: known retailer containers
// first, then any element with a data-price attribute or "price" in its
// class or id, in document order. Struck-through and reference prices are
// skipped.
func visibleElementPrice(p *Page) (Price, bool) {
	for _, sel := range retailerPriceSelectors {
		var out Price
		var found bool
		p.Doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if isStalePrice(s) {
				return true
			}
			out, found = elementPrice(p, s)
			return !found
		})
		if found {
			return out, true
		}
	}

	var out Price
	var found bool
	p.Doc.Find("[data-price], [class], [id]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		_, hasData := s.Attr("data-price")
		marker := strings.ToLower(s.AttrOr("class", "") + " " + s.AttrOr("id", ""))
		if !hasData && !strings.Contains(marker, "price") {
			return true
		}
		if isStalePrice(s) {
			return true
		}
		out, found = elementPrice(p, s)
		return !found
	})
	return out, found
}

func elementPrice(p *Page, s *goquery.Selection) (Price, bool) {
	if v, ok := s.Attr("data-price"); ok {
		if d, ok := ParseDeclaredPrice(v); ok {
			return Price{Amount: d, Currency: metaCurrency(p)}, true
		}
	}

	text := elementText(s)
	// Containers holding a whole product block are not a price
	if text == "" || len(text) > 40 {
		return Price{}, false
	}
	if pr, ok := matchCurrencyAmount(p, text); ok {
		return pr, true
	}
	// Bare amounts are trusted only inside known price containers
	if s.Is(strings.Join(retailerPriceSelectors, ", ")) {
		if d, ok := ParsePrice(text); ok {
			return Price{Amount: d, Currency: metaCurrency(p)}, true
		}
	}
	return Price{}, false
}

// elementText joins the text nodes under s with spaces so adjacent children
// never run together. A two-digit <sup> right after a whole amount is read as
// cents, as in $1,299<sup>99</sup>.
func elementText(s *goquery.Selection) string {
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
			if n.DataAtom == atom.Sup {
				sup := NormalizeSpace(goquery.NewDocumentFromNode(n).Text())
				before := strings.TrimRight(b.String(), " \t\r\n")
				if sep := centsSeparator(before, sup); sep != "" {
					b.Reset()
					b.WriteString(before + sep + sup + " ")
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return NormalizeSpace(b.String())
}

// centsSeparator returns the decimal mark that joins a superscript to the
// amount before it, or "" when sup is not cents for that amount.
func centsSeparator(before, sup string) string {
	if len(sup) != 2 || !isDigit(sup[0]) || !isDigit(sup[1]) {
		return ""
	}
	runs := numberRunRe.FindAllStringIndex(before, -1)
	if len(runs) == 0 || runs[len(runs)-1][1] != len(before) {
		return ""
	}
	run := before[runs[len(runs)-1][0]:]
	if n := len(run); n >= 3 && (run[n-3] == '.' || run[n-3] == ',') {
		return ""
	}
	if strings.Contains(run, ".") && !strings.Contains(run, ",") {
		return ","
	}
	return "."
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// isStalePrice reports whether s or an ancestor marks a previous price
func isStalePrice(s *goquery.Selection) bool {
	for n := s.Get(0); n != nil; n = n.Parent {
		if n.Type != html.ElementNode {
			continue
		}
		switch n.Data {
		case "del", "s", "strike":
			return true
		case "body":
			return false
		}
		for _, a := range n.Attr {
			if a.Key != "class" && a.Key != "id" && a.Key != "data-a-strike" {
				continue
			}
			if a.Key == "data-a-strike" {
				return true
			}
			v := strings.ToLower(a.Val)
			for _, m := range stalePriceMarkers {
				if containsToken(v, m) {
					return true
				}
			}
		}
	}
	return false
}

// containsToken matches marker as a whole word inside class/id text, where
// words are separated by anything that is not a letter
func containsToken(s, marker string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], marker)
		if j < 0 {
			return false
		}
		start, end := i+j, i+j+len(marker)
		if (start == 0 || !isLetter(s[start-1])) && (end == len(s) || !isLetter(s[end])) {
			return true
		}
		i = start + 1
	}
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func matchCurrencyAmount(p *Page, text string) (Price, bool) {
	for _, m := range currencyAmountRe.FindAllString(text, -1) {
		if d, ok := ParsePrice(m); ok {
			return Price{Amount: d, Currency: firstNonEmpty(CurrencyFromSymbol(m), metaCurrency(p))}, true
		}
	}
	return Price{}, false
}
