package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/law-makers/landed/internal/cache"
	"github.com/law-makers/landed/internal/fetch"
	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sofaHTML = `<html><head>
<script type="application/ld+json">{"@type":"Product","name":"Blue Sofa","offers":{"price":"999.00","priceCurrency":"USD"},"image":"https://x/img.jpg"}</script>
</head><body><h1>Blue Sofa</h1><p>Ships in two weeks.</p></body></html>`

const challengeHTML = `<html><head><title>Robot Check</title></head>
<body><p>Please solve this CAPTCHA to continue.</p></body></html>`

const shellHTML = `<html><head><title>Store</title></head>
<body><div id="root"></div><script src="/static/app.js"></script></body></html>`

// fakeFetcher returns canned results and counts calls
type fakeFetcher struct {
	name     string
	html     string
	strategy models.FetchStrategy
	err      error
	block    bool // wait for ctx cancellation instead of answering
	panics   bool
	calls    atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Result, error) {
	f.calls.Add(1)
	if f.panics {
		panic("boom")
	}
	if f.block {
		<-ctx.Done()
		return nil, &fetch.FetchError{Kind: fetch.KindTimeout, URL: rawURL, Err: ctx.Err()}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &fetch.Result{URL: rawURL, FinalURL: rawURL, HTML: f.html, StatusCode: 200, Strategy: f.strategy}, nil
}

func (f *fakeFetcher) Name() string { return f.name }

func direct(html string) *fakeFetcher {
	return &fakeFetcher{name: "direct", html: html, strategy: models.StrategyDirect}
}

func rendered(html string) *fakeFetcher {
	return &fakeFetcher{name: "rendered", html: html, strategy: models.StrategyRendered}
}

func failing(name string) *fakeFetcher {
	return &fakeFetcher{name: name, err: &fetch.FetchError{Kind: fetch.KindNetwork, Message: "connection refused"}}
}

func assertConsistent(t *testing.T, rec models.ProductRecord) {
	t.Helper()
	assert.Equal(t, rec.Title != "", rec.Confidence.Title)
	assert.Equal(t, rec.Price != nil, rec.Confidence.Price)
	assert.Equal(t, rec.Image != "", rec.Confidence.Image)
	assert.Equal(t, rec.Variant != "", rec.Confidence.Variant)
	if rec.Price != nil {
		assert.False(t, rec.Price.IsNegative())
	}
}

func TestExtract_DirectSuccess(t *testing.T) {
	d, r := direct(sofaHTML), rendered(sofaHTML)
	e := New(Options{Direct: d, Rendered: r})

	rec := e.Extract(context.Background(), "https://www.sofas.example.com/p/1")

	assert.Equal(t, "sofas.example.com", rec.Store)
	assert.Equal(t, "Blue Sofa", rec.Title)
	require.NotNil(t, rec.Price)
	assert.Equal(t, "999", rec.Price.String())
	assert.Equal(t, "USD", rec.Currency)
	assert.Equal(t, "https://x/img.jpg", rec.Image)
	assert.Equal(t, models.Confidence{Title: true, Price: true, Image: true}, rec.Confidence)
	assert.Equal(t, models.StrategyDirect, rec.FetchStrategy)
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestExtract_CaptchaEscalates(t *testing.T) {
	d, r := direct(challengeHTML), rendered(sofaHTML)
	e := New(Options{Direct: d, Rendered: r})

	rec := e.Extract(context.Background(), "https://shop.example.com/p/1")

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, models.StrategyRendered, rec.FetchStrategy)
	assert.Equal(t, "Blue Sofa", rec.Title)
}

func TestExtract_DirectErrorEscalates(t *testing.T) {
	d, r := failing("direct"), rendered(sofaHTML)
	e := New(Options{Direct: d, Rendered: r})

	rec := e.Extract(context.Background(), "https://shop.example.com/p/1")

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, models.StrategyRendered, rec.FetchStrategy)
	assert.True(t, rec.Confidence.Price)
}

func TestExtract_TotalFailureIsEmptyRecord(t *testing.T) {
	tests := []struct {
		name     string
		direct   *fakeFetcher
		rendered fetch.Fetcher
	}{
		{"both fail", failing("direct"), failing("rendered")},
		{"challenge and no renderer", direct(challengeHTML), nil},
		{"challenge and failed render", direct(challengeHTML), failing("rendered")},
		{"empty body and failed render", direct("   "), failing("rendered")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(Options{Direct: tt.direct, Rendered: tt.rendered})

			rec := e.Extract(context.Background(), "https://www.amazon.com/dp/B000")

			assert.Equal(t, models.EmptyRecord("https://www.amazon.com/dp/B000", "amazon"), rec)
			assert.Equal(t, models.Confidence{}, rec.Confidence)
			assert.Empty(t, rec.FetchStrategy)
		})
	}
}

func TestExtract_ShellFallsBackToDirectHTML(t *testing.T) {
	d, r := direct(shellHTML), failing("rendered")
	e := New(Options{Direct: d, Rendered: r, EscalateOnShell: true})

	rec := e.Extract(context.Background(), "https://shop.example.com/p/1")

	assert.Equal(t, int32(1), r.calls.Load())
	assert.Equal(t, models.StrategyDirect, rec.FetchStrategy)
	assert.Equal(t, "Store", rec.Title)
}

func TestExtract_ShellNotEscalatedWhenDisabled(t *testing.T) {
	d, r := direct(shellHTML), rendered(sofaHTML)
	e := New(Options{Direct: d, Rendered: r, EscalateOnShell: false})

	rec := e.Extract(context.Background(), "https://shop.example.com/p/1")

	assert.Equal(t, int32(0), r.calls.Load())
	assert.Equal(t, models.StrategyDirect, rec.FetchStrategy)
}

// captureLogs points the global logger at a buffer for the rest of the test
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev, prevLevel := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	t.Cleanup(func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(prevLevel)
	})
	return &buf
}

func TestExtract_LogsEscalationCause(t *testing.T) {
	nextShell := `<html><head><title>Store</title></head><body><div id="__next"></div>` +
		`<script id="__NEXT_DATA__" type="application/json">{}</script><script src="/app.js"></script></body></html>`

	tests := []struct {
		name  string
		html  string
		field string
		want  string
	}{
		{"challenge page", challengeHTML, "error", fetch.ErrBlocked.Error()},
		{"empty body", "  ", "error", fetch.ErrEmptyBody.Error()},
		{"next.js shell", nextShell, "framework", "Next.js"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t)
			e := New(Options{Direct: direct(tt.html), Rendered: rendered(sofaHTML), EscalateOnShell: true})

			e.Extract(context.Background(), "https://shop.example.com/p/1")

			var found bool
			for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
				var entry map[string]any
				if json.Unmarshal(line, &entry) != nil {
					continue
				}
				if entry[tt.field] == tt.want {
					found = true
				}
			}
			assert.True(t, found, "no log line with %s=%q in:\n%s", tt.field, tt.want, buf.String())
		})
	}
}

func TestExtract_Idempotent(t *testing.T) {
	pages := []string{sofaHTML, shellHTML, challengeHTML,
		`<html><head><meta property="og:title" content="Red Chair - Walnut"></head><body><p>Sale $149.99</p></body></html>`,
	}

	for i, html := range pages {
		e := New(Options{Direct: direct(html), Rendered: rendered(html)})
		url := fmt.Sprintf("https://shop.example.com/p/%d?color=Oak", i)

		first, err := json.Marshal(e.Extract(context.Background(), url))
		require.NoError(t, err)
		second, err := json.Marshal(e.Extract(context.Background(), url))
		require.NoError(t, err)

		assert.Equal(t, string(first), string(second))
	}
}

func TestExtract_ConfidenceConsistency(t *testing.T) {
	pages := []string{
		sofaHTML,
		shellHTML,
		`<html><body></body></html>`,
		`<html><head><meta property="og:image" content="/img/a.png"></head><body>Color: Oak</body></html>`,
		`<html><body><span class="price">$0.00</span></body></html>`,
	}

	for _, html := range pages {
		e := New(Options{Direct: direct(html)})
		assertConsistent(t, e.Extract(context.Background(), "https://shop.example.com/p/1"))
	}
}

func TestExtract_CachesSuccessfulRecords(t *testing.T) {
	mc := cache.NewMemoryCache(0)
	defer mc.Close()

	d := direct(sofaHTML)
	e := New(Options{Direct: d, Cache: mc, CacheTTL: time.Minute})

	first := e.Run(context.Background(), "https://shop.example.com/p/1")
	second := e.Run(context.Background(), "https://shop.example.com/p/1")

	assert.False(t, first.Cached)
	assert.True(t, second.Cached)
	assert.Nil(t, second.Page)
	assert.Equal(t, first.Record, second.Record)
	assert.Equal(t, int32(1), d.calls.Load())
}

func TestExtract_DoesNotCacheDegradedRecords(t *testing.T) {
	mc := cache.NewMemoryCache(0)
	defer mc.Close()

	d := failing("direct")
	e := New(Options{Direct: d, Cache: mc})

	e.Extract(context.Background(), "https://shop.example.com/p/1")
	e.Extract(context.Background(), "https://shop.example.com/p/1")

	assert.Equal(t, int32(2), d.calls.Load())
	assert.Equal(t, 0, mc.Len())
}

func TestExtract_AggregateTimeout(t *testing.T) {
	d := &fakeFetcher{name: "direct", block: true}
	r := &fakeFetcher{name: "rendered", block: true}
	e := New(Options{Direct: d, Rendered: r, Timeout: 50 * time.Millisecond})

	start := time.Now()
	rec := e.Extract(context.Background(), "https://shop.example.com/p/1")

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.Equal(t, models.Confidence{}, rec.Confidence)
	// The deadline was spent on the direct fetch, so no escalation happens
	assert.Equal(t, int32(0), r.calls.Load())
}

func TestExtract_CallerCancellation(t *testing.T) {
	d := &fakeFetcher{name: "direct", block: true}
	e := New(Options{Direct: d, Rendered: rendered(sofaHTML)})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	rec := e.Extract(ctx, "https://shop.example.com/p/1")
	assert.Empty(t, rec.Title)
}

func TestExtract_RecoversFromPanics(t *testing.T) {
	e := New(Options{Direct: &fakeFetcher{name: "direct", panics: true}})

	var rec models.ProductRecord
	require.NotPanics(t, func() {
		rec = e.Extract(context.Background(), "https://shop.example.com/p/1")
	})
	assert.Equal(t, "shop.example.com", rec.Store)
	assert.Equal(t, models.Confidence{}, rec.Confidence)
}

func TestExtract_WithDirectFetcherAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, `<html><head>
<script type="application/ld+json">{ "@type": "Product", "name": "Broken", </script>
<script type="application/ld+json">{"@type":"Product","name":"Walnut Desk","offers":[{"price":"1,249.50","priceCurrency":"USD"}],"image":"/img/desk.jpg"}</script>
</head><body></body></html>`)
	}))
	defer srv.Close()

	e := New(Options{Direct: fetch.NewDirect(fetch.DirectOptions{})})
	rec := e.Extract(context.Background(), srv.URL+"/dp/ABC?color_name=Forest+Green&size_name=Large")

	assert.Equal(t, "Walnut Desk", rec.Title)
	require.NotNil(t, rec.Price)
	assert.Equal(t, "1249.5", rec.Price.String())
	assert.Equal(t, srv.URL+"/img/desk.jpg", rec.Image)
	assert.Equal(t, "Color: Forest Green, Size: Large", rec.Variant)
	assert.Equal(t, models.StrategyDirect, rec.FetchStrategy)
	assertConsistent(t, rec)
}

func TestBatch_PreservesInputOrder(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := &orderFetcher{inFlight: &inFlight, peak: &peak}
	e := New(Options{Direct: f})

	urls := make([]string, 12)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://shop.example.com/p/%d", i)
	}

	var mu sync.Mutex
	seen := map[int]bool{}
	out := e.Batch(context.Background(), urls, 3, func(i int, _ models.ProductRecord) {
		mu.Lock()
		seen[i] = true
		mu.Unlock()
	})

	require.Len(t, out, len(urls))
	for i, rec := range out {
		assert.Equal(t, urls[i], rec.URL)
		assert.Equal(t, fmt.Sprintf("Item %d", i), rec.Title)
	}
	assert.Len(t, seen, len(urls))
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestBatch_Empty(t *testing.T) {
	e := New(Options{Direct: direct(sofaHTML)})
	assert.Empty(t, e.Batch(context.Background(), nil, 0, nil))
}

func TestOptimalConcurrency(t *testing.T) {
	n := OptimalConcurrency()
	assert.GreaterOrEqual(t, n, 2)
	assert.LessOrEqual(t, n, 16)
}

// orderFetcher answers slower for lower indexes so completion order differs
// from input order
type orderFetcher struct {
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (f *orderFetcher) Fetch(ctx context.Context, rawURL string) (*fetch.Result, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	var i int
	if _, err := fmt.Sscanf(rawURL, "https://shop.example.com/p/%d", &i); err != nil {
		return nil, errors.New("unexpected url")
	}
	time.Sleep(time.Duration(12-i) * time.Millisecond)

	html := fmt.Sprintf(`<html><head><title>Item %d</title></head><body></body></html>`, i)
	return &fetch.Result{URL: rawURL, FinalURL: rawURL, HTML: html, Strategy: models.StrategyDirect}, nil
}

func (f *orderFetcher) Name() string { return "order" }
