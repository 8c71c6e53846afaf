package extract

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Fields holds the resolved product fields of one page. Empty strings and a
// nil Price mean the field was not found.
type Fields struct {
	Title    string
	Price    *decimal.Decimal
	Currency string
	Image    string
	Variant  string
}

// stage is one strategy of a field cascade
type stage[T any] struct {
	name string
	run  func(p *Page) (T, bool)
}

// cascade returns the value of the first stage that produces one
func cascade[T any](field string, p *Page, stages []stage[T]) (T, bool) {
	for _, s := range stages {
		if v, ok := s.run(p); ok {
			log.Debug().
				Str("url", p.URL).
				Str("field", field).
				Str("stage", s.name).
				Msg("Field resolved")
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Resolve runs every field resolver against the page. canonicalURL is the
// URL the caller asked for; it feeds the URL-parameter variant heuristic.
func Resolve(p *Page, canonicalURL string) Fields {
	f := Fields{Title: ResolveTitle(p)}

	if price, ok := ResolvePrice(p); ok {
		amount := price.Amount
		f.Price = &amount
		f.Currency = price.Currency
	}

	f.Image = ResolveImage(p)
	f.Variant = InferVariant(p, f.Title, canonicalURL)

	return f
}

// FromHTML parses rawHTML served from pageURL and resolves all fields
func FromHTML(pageURL, canonicalURL, rawHTML string) (Fields, error) {
	p, err := NewPage(pageURL, rawHTML)
	if err != nil {
		return Fields{}, err
	}
	return Resolve(p, canonicalURL), nil
}
