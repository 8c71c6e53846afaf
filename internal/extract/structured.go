package extract

import (
	"bytes"
	"encoding/json"
	"html"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Candidate is one product-like object found in embedded structured data
type Candidate struct {
	Name       string
	SKU        string
	Price      *decimal.Decimal
	Currency   string
	Images     []string
	Attributes []Attribute
}

// Attribute is a named product option such as Color or Size
type Attribute struct {
	Label string
	Value string
}

var productTypes = map[string]bool{
	"product":           true,
	"productgroup":      true,
	"individualproduct": true,
	"productmodel":      true,
}

// attributeKeys are the structured properties that describe a variant, in
// output order
var attributeKeys = []struct {
	key   string
	label string
}{
	{"color", "Color"},
	{"size", "Size"},
	{"material", "Material"},
	{"pattern", "Pattern"},
}

// ParseStructuredData returns the product candidates of every JSON-LD block
// in document order. Blocks that do not decode are skipped.
func ParseStructuredData(doc *goquery.Document) []Candidate {
	var out []Candidate

	doc.Find("script").Each(func(i int, s *goquery.Selection) {
		typ := strings.ToLower(strings.TrimSpace(s.AttrOr("type", "")))
		if !strings.HasPrefix(typ, "application/ld+json") {
			return
		}

		v, ok := decodeBlock(s.Text())
		if !ok {
			log.Debug().Int("block", i).Msg("Skipping undecodable structured data block")
			return
		}

		for _, obj := range flattenObjects(v, 0) {
			if c, ok := candidateFrom(obj); ok {
				out = append(out, c)
			}
		}
	})

	return out
}

// decodeBlock decodes a JSON-LD body. Raw control characters inside strings
// are common in the wild, so a failed decode is retried once with them
// replaced by spaces.
func decodeBlock(raw string) (any, bool) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "<!--")
	raw = strings.TrimSuffix(raw, "-->")
	raw = strings.TrimSuffix(strings.TrimSpace(raw), ";")
	if raw == "" {
		return nil, false
	}

	if v, err := decodeJSON(raw); err == nil {
		return v, true
	}

	sanitized := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ").Replace(raw)
	if v, err := decodeJSON(sanitized); err == nil {
		return v, true
	}
	return nil, false
}

func decodeJSON(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// flattenObjects expands arrays, @graph containers and mainEntity references
// into a flat list of objects, preserving document order.
func flattenObjects(v any, depth int) []map[string]any {
	if depth > 6 {
		return nil
	}

	switch t := v.(type) {
	case []any:
		var out []map[string]any
		for _, item := range t {
			out = append(out, flattenObjects(item, depth+1)...)
		}
		return out
	case map[string]any:
		out := []map[string]any{t}
		if graph, ok := t["@graph"]; ok {
			out = append(out, flattenObjects(graph, depth+1)...)
		}
		if main, ok := t["mainEntity"]; ok {
			out = append(out, flattenObjects(main, depth+1)...)
		}
		return out
	}
	return nil
}

func schemaTypes(v any) []string {
	var raw []string
	switch t := v.(type) {
	case string:
		raw = []string{t}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	types := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if i := strings.LastIndexAny(s, "/:"); i >= 0 {
			s = s[i+1:]
		}
		if s != "" {
			types = append(types, strings.ToLower(s))
		}
	}
	return types
}

// candidateFrom accepts objects typed as a product, and untyped objects that
// carry a literal name. Objects typed as anything else (Organization,
// BreadcrumbList, WebSite) are not products even when named.
func candidateFrom(obj map[string]any) (Candidate, bool) {
	types := schemaTypes(obj["@type"])
	name := cleanText(stringValue(obj["name"]))

	isProduct := false
	for _, t := range types {
		if productTypes[t] {
			isProduct = true
			break
		}
	}
	if !isProduct && (len(types) > 0 || name == "") {
		return Candidate{}, false
	}

	c := Candidate{
		Name: name,
		SKU:  firstNonEmpty(stringValue(obj["sku"]), stringValue(obj["productID"])),
	}
	c.Price, c.Currency = offerPrice(obj["offers"], 0)
	c.Images = imageURLs(obj["image"])

	for _, k := range attributeKeys {
		if val := cleanText(attributeValue(obj[k.key])); val != "" {
			c.Attributes = append(c.Attributes, Attribute{Label: k.label, Value: val})
		}
	}

	return c, true
}

// offerPrice returns the first positive price across offers, reading price,
// then lowPrice, then priceSpecification.price of each offer.
func offerPrice(v any, depth int) (*decimal.Decimal, string) {
	if depth > 3 {
		return nil, ""
	}

	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if p, cur := offerPrice(item, depth+1); p != nil {
				return p, cur
			}
		}
	case map[string]any:
		currency := NormalizeCurrency(stringValue(t["priceCurrency"]))
		for _, key := range []string{"price", "lowPrice"} {
			if d, ok := ParseDeclaredPrice(stringValue(t[key])); ok {
				return &d, currency
			}
		}
		if p, cur := specPrice(t["priceSpecification"]); p != nil {
			return p, firstNonEmpty(currency, cur)
		}
		// AggregateOffer may nest its individual offers
		if nested, ok := t["offers"]; ok {
			if p, cur := offerPrice(nested, depth+1); p != nil {
				return p, firstNonEmpty(cur, currency)
			}
		}
	}
	return nil, ""
}

func specPrice(v any) (*decimal.Decimal, string) {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if p, cur := specPrice(item); p != nil {
				return p, cur
			}
		}
	case map[string]any:
		if d, ok := ParseDeclaredPrice(stringValue(t["price"])); ok {
			return &d, NormalizeCurrency(stringValue(t["priceCurrency"]))
		}
	}
	return nil, ""
}

// imageURLs reads a schema image: a URL string, a list, or an ImageObject
func imageURLs(v any) []string {
	var out []string
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			out = append(out, imageURLs(item)...)
		}
	case map[string]any:
		if s := firstNonEmpty(stringValue(t["url"]), stringValue(t["contentUrl"])); s != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

func attributeValue(v any) string {
	switch t := v.(type) {
	case map[string]any:
		return firstNonEmpty(stringValue(t["name"]), stringValue(t["value"]))
	case []any:
		if len(t) > 0 {
			return attributeValue(t[0])
		}
	}
	return stringValue(v)
}

// stringValue renders scalars as text; everything else is empty
func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	}
	return ""
}

func cleanText(s string) string {
	return NormalizeSpace(html.UnescapeString(s))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
