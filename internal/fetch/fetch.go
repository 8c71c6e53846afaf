// Package fetch retrieves raw product-page HTML, either directly or through a
// rendering strategy that executes page JavaScript.
package fetch

import (
	"context"

	"github.com/law-makers/landed/pkg/models"
)

// Result is the HTML obtained by one strategy
type Result struct {
	URL        string
	FinalURL   string
	HTML       string
	StatusCode int
	Strategy   models.FetchStrategy
}

// Fetcher is implemented by every fetch strategy
type Fetcher interface {
	// Fetch retrieves HTML for rawURL. Failures are *FetchError values.
	Fetch(ctx context.Context, rawURL string) (*Result, error)

	// Name returns the name of the fetcher implementation
	Name() string
}
