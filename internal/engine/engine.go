// Package engine orchestrates product extraction: it picks the fetch
// strategy, escalates to rendering when the direct fetch is blocked, resolves
// fields from the HTML and assembles the record.
package engine

import (
	"context"
	"time"

	"github.com/law-makers/landed/internal/cache"
	"github.com/law-makers/landed/internal/extract"
	"github.com/law-makers/landed/internal/fetch"
	"github.com/law-makers/landed/internal/reqctx"
	urlutil "github.com/law-makers/landed/internal/utils/url"
	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one extraction across every fetch strategy
const DefaultTimeout = 90 * time.Second

// Options configures an Extractor
type Options struct {
	Direct          fetch.Fetcher
	Rendered        fetch.Fetcher // optional; without it blocked pages degrade
	Cache           cache.Cache   // optional
	CacheTTL        time.Duration
	Timeout         time.Duration
	EscalateOnShell bool
}

// Extractor turns product URLs into records. It holds no per-request state
// and is safe for concurrent use.
type Extractor struct {
	direct          fetch.Fetcher
	rendered        fetch.Fetcher
	cache           cache.Cache
	cacheTTL        time.Duration
	timeout         time.Duration
	escalateOnShell bool
}

// Result is a record together with the page it was extracted from
type Result struct {
	Record models.ProductRecord
	Page   *fetch.Result // nil when no HTML was obtained or the record came from cache
	Cached bool
}

// New creates an Extractor
func New(opts Options) *Extractor {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Extractor{
		direct:          opts.Direct,
		rendered:        opts.Rendered,
		cache:           opts.Cache,
		cacheTTL:        opts.CacheTTL,
		timeout:         opts.Timeout,
		escalateOnShell: opts.EscalateOnShell,
	}
}

// Extract returns the best-effort record for rawURL. It never fails: when no
// HTML can be obtained the record carries only url and store.
func (e *Extractor) Extract(ctx context.Context, rawURL string) models.ProductRecord {
	return e.Run(ctx, rawURL).Record
}

// Run is Extract that also reports the page the record was built from
func (e *Extractor) Run(ctx context.Context, rawURL string) (res Result) {
	store := urlutil.StoreFromURL(rawURL)
	logger := reqctx.Logger(ctx).With().Str("url", rawURL).Str("store", store).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("Extraction panicked; returning empty record")
			res = Result{Record: models.EmptyRecord(rawURL, store)}
		}
	}()

	key := cache.KeyFromURL(rawURL)
	if e.cache != nil {
		if rec, ok := e.cache.Get(ctx, key); ok {
			return Result{Record: rec, Cached: true}
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	page := e.fetchPage(ctx, rawURL, logger)
	if page == nil {
		logger.Info().Dur("elapsed", time.Since(start)).Msg("No HTML obtained; returning empty record")
		return Result{Record: models.EmptyRecord(rawURL, store)}
	}

	pageURL := page.FinalURL
	if pageURL == "" {
		pageURL = rawURL
	}

	fields, err := extract.FromHTML(pageURL, rawURL, page.HTML)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to parse HTML")
		return Result{Record: models.EmptyRecord(rawURL, store), Page: page}
	}

	rec := models.NewProductRecord(rawURL, store, fields.Title, fields.Price, fields.Currency,
		fields.Image, fields.Variant, page.Strategy)

	logger.Info().
		Str("strategy", string(page.Strategy)).
		Bool("title", rec.Confidence.Title).
		Bool("price", rec.Confidence.Price).
		Bool("image", rec.Confidence.Image).
		Bool("variant", rec.Confidence.Variant).
		Dur("elapsed", time.Since(start)).
		Msg("Extraction completed")

	if e.cache != nil && cacheable(rec) {
		if err := e.cache.Set(ctx, key, rec, e.cacheTTL); err != nil {
			logger.Warn().Err(err).Msg("Failed to cache record")
		}
	}

	return Result{Record: rec, Page: page}
}

// fetchPage applies the escalation policy. Strategies run one after the
// other, never in parallel.
func (e *Extractor) fetchPage(ctx context.Context, rawURL string, logger zerolog.Logger) *fetch.Result {
	direct, err := e.direct.Fetch(ctx, rawURL)
	verdict := fetch.Judge(direct, err, e.escalateOnShell)

	switch verdict {
	case fetch.VerdictUse:
		return direct
	case fetch.VerdictBlocked:
		logger.Debug().Str("reason", "blocked").Err(fetch.BlockedCause(direct, err)).Msg("Direct fetch unusable")
	case fetch.VerdictShell:
		logger.Debug().
			Str("reason", "shell").
			Str("framework", fetch.DetectJavaScriptFramework(direct.HTML)).
			Msg("Direct fetch returned an application shell")
	}

	if ctx.Err() != nil {
		logger.Debug().Err(ctx.Err()).Msg("Skipping escalation; extraction deadline reached")
		return fallback(verdict, direct)
	}
	if e.rendered == nil {
		logger.Debug().Err(fetch.ErrNoRenderer).Msg("Cannot escalate")
		return fallback(verdict, direct)
	}

	logger.Debug().Str("fetcher", e.rendered.Name()).Msg("Escalating to rendered fetch")
	rendered, rerr := e.rendered.Fetch(ctx, rawURL)
	if rerr == nil && rendered != nil && rendered.HTML != "" {
		return rendered
	}

	logger.Debug().Err(rerr).Msg("Rendered fetch failed")
	return fallback(verdict, direct)
}

// fallback keeps an unrendered shell; blocked pages are never used
func fallback(verdict fetch.Verdict, direct *fetch.Result) *fetch.Result {
	if verdict == fetch.VerdictShell {
		return direct
	}
	return nil
}

// cacheable reports whether rec is worth caching: degraded records are
// retried on the next request instead.
func cacheable(rec models.ProductRecord) bool {
	if rec.FetchStrategy == "" {
		return false
	}
	c := rec.Confidence
	return c.Title || c.Price || c.Image || c.Variant
}
