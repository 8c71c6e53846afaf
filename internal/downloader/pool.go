package downloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog/log"
)

// maxWorkers bounds image downloads in flight
const maxWorkers = 16

type job struct {
	index int
	url   string
	name  string
}

// SaveImages downloads the image of every record that found one into dir.
// Results are index-aligned with records; records without an image get a
// zero Result.
func (d *Downloader) SaveImages(ctx context.Context, records []models.ProductRecord, dir string, concurrency int) []Result {
	results := make([]Result, len(records))
	if len(records) == 0 {
		return results
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	if concurrency > maxWorkers {
		concurrency = maxWorkers
	}

	jobs := make(chan job)
	var wg sync.WaitGroup
	for w := 1; w <= concurrency; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := range jobs {
				log.Debug().Int("worker_id", id).Str("url", j.url).Msg("Downloading image")
				results[j.index] = d.Download(ctx, j.url, dir, j.name)
			}
		}(w)
	}

	names := make(map[string]int)
	for i, rec := range records {
		if !rec.Confidence.Image || rec.Image == "" {
			continue
		}
		name := imageName(rec, names)
		select {
		case jobs <- job{index: i, url: rec.Image, name: name}:
		case <-ctx.Done():
			results[i] = Result{URL: rec.Image, Error: ctx.Err()}
		}
	}
	close(jobs)
	wg.Wait()

	return results
}

// imageName names a record's image after its store and title, numbering
// repeats so files in one batch never collide
func imageName(rec models.ProductRecord, seen map[string]int) string {
	base := sanitizeFilename(rec.Store + " " + rec.Title)
	seen[base]++
	if n := seen[base]; n > 1 {
		return fmt.Sprintf("%s-%d", base, n)
	}
	return base
}
