package models

import (
	"github.com/shopspring/decimal"
)

// FetchStrategy identifies which fetch strategy produced the HTML behind a record
type FetchStrategy string

const (
	StrategyDirect   FetchStrategy = "direct"
	StrategyRendered FetchStrategy = "rendered"
)

// Confidence reports, per resolvable field, whether a value was resolved.
type Confidence struct {
	Title   bool `json:"title"`
	Price   bool `json:"price"`
	Image   bool `json:"image"`
	Variant bool `json:"variant"`
}

// ProductRecord is the best-effort product data extracted from a single page.
//
// Absent fields are zero values (empty string, nil price). A record is built
// once per extraction and never mutated afterwards. Price goes over the wire
// as a decimal string such as "999.99" so no precision is lost to floats.
type ProductRecord struct {
	URL           string           `json:"url"`
	Store         string           `json:"store"`
	Title         string           `json:"title,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Currency      string           `json:"currency,omitempty"`
	Image         string           `json:"image,omitempty"`
	Variant       string           `json:"variant,omitempty"`
	Confidence    Confidence       `json:"confidence"`
	FetchStrategy FetchStrategy    `json:"fetchStrategy,omitempty"`
}

// NewProductRecord assembles a record and derives its confidence map from
// field presence.
func NewProductRecord(url, store, title string, price *decimal.Decimal, currency, image, variant string, strategy FetchStrategy) ProductRecord {
	if price != nil && price.IsNegative() {
		price = nil
	}
	if price == nil {
		currency = ""
	}
	return ProductRecord{
		URL:      url,
		Store:    store,
		Title:    title,
		Price:    price,
		Currency: currency,
		Image:    image,
		Variant:  variant,
		Confidence: Confidence{
			Title:   title != "",
			Price:   price != nil,
			Image:   image != "",
			Variant: variant != "",
		},
		FetchStrategy: strategy,
	}
}

// EmptyRecord is the degraded record returned when no HTML could be obtained
func EmptyRecord(url, store string) ProductRecord {
	return NewProductRecord(url, store, "", nil, "", "", "", "")
}

// ExtractRequest is the inbound body of the extraction API
type ExtractRequest struct {
	URL string `json:"url" validate:"required,url"`
}

// ExtractResponse is the wire shape of an extraction: the record fields plus ok.
type ExtractResponse struct {
	OK bool `json:"ok"`
	ProductRecord
}

// BatchRequest asks for several extractions at once
type BatchRequest struct {
	URLs []string `json:"urls" validate:"required,min=1,max=50,dive,required,url"`
}

// BatchResponse carries one response per requested URL, in request order
type BatchResponse struct {
	OK      bool              `json:"ok"`
	Results []ExtractResponse `json:"results"`
}

// ErrorResponse is returned for rejected requests
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}
