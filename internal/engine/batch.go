package engine

import (
	"context"
	"runtime"

	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// OptimalConcurrency picks a batch width for I/O bound extraction
func OptimalConcurrency() int {
	n := runtime.NumCPU() * 2
	if n < 2 {
		n = 2
	}
	if n > 16 {
		n = 16
	}
	return n
}

// Batch extracts every URL with at most concurrency extractions in flight.
// Results are in input order. onDone, when set, is called once per URL as
// it finishes and must be safe for concurrent use.
func (e *Extractor) Batch(ctx context.Context, urls []string, concurrency int, onDone func(i int, rec models.ProductRecord)) []models.ProductRecord {
	if concurrency <= 0 {
		concurrency = OptimalConcurrency()
	}

	results := make([]models.ProductRecord, len(urls))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, u := range urls {
		g.Go(func() error {
			results[i] = e.Extract(ctx, u)
			if onDone != nil {
				onDone(i, results[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	log.Debug().
		Int("urls", len(urls)).
		Int("concurrency", concurrency).
		Msg("Batch completed")

	return results
}
