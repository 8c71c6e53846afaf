package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/law-makers/landed/internal/quote"
	"github.com/law-makers/landed/pkg/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExtractor struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeExtractor) Extract(_ context.Context, rawURL string) models.ProductRecord {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()

	if strings.Contains(rawURL, "blocked") {
		return models.EmptyRecord(rawURL, "shop.example.com")
	}
	price := decimal.RequireFromString("999.00")
	return models.NewProductRecord(rawURL, "shop.example.com", "Blue Sofa", &price, "USD", "https://x/img.jpg", "", models.StrategyDirect)
}

func (f *fakeExtractor) Batch(ctx context.Context, urls []string, _ int, _ func(int, models.ProductRecord)) []models.ProductRecord {
	out := make([]models.ProductRecord, len(urls))
	for i, u := range urls {
		out[i] = f.Extract(ctx, u)
	}
	return out
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeExtractor) {
	t.Helper()
	calc, err := quote.New(quote.Rates{
		Duty:          decimal.RequireFromString("0.25"),
		FreightPerFt3: decimal.RequireFromString("12"),
		Tax:           decimal.RequireFromString("0.1"),
	})
	require.NoError(t, err)

	fx := &fakeExtractor{}
	srv := httptest.NewServer(New(fx, calc, Options{AllowedOrigins: []string{"https://quotes.example.com"}}).Handler())
	t.Cleanup(srv.Close)
	return srv, fx
}

func post(t *testing.T, url, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestExtract_Post(t *testing.T) {
	srv, fx := newTestServer(t)

	resp, body := post(t, srv.URL+"/api/v1/extract", `{"url":"https://shop.example.com/p/1"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "Blue Sofa", body["title"])
	assert.Equal(t, "999", body["price"])
	assert.Equal(t, "USD", body["currency"])
	assert.Equal(t, "direct", body["fetchStrategy"])
	assert.Equal(t, map[string]interface{}{"title": true, "price": true, "image": true, "variant": false}, body["confidence"])
	assert.Equal(t, []string{"https://shop.example.com/p/1"}, fx.calls)
}

func TestExtract_DegradedRecordIsStill200(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := post(t, srv.URL+"/api/v1/extract", `{"url":"https://shop.example.com/blocked"}`)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "shop.example.com", body["store"])
	assert.NotContains(t, body, "title")
	assert.NotContains(t, body, "price")
	assert.Equal(t, map[string]interface{}{"title": false, "price": false, "image": false, "variant": false}, body["confidence"])
}

func TestExtract_Get(t *testing.T) {
	srv, fx := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/extract?url=" + url.QueryEscape("https://shop.example.com/p/2?color=red"))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{"https://shop.example.com/p/2?color=red"}, fx.calls)
}

func TestExtract_InvalidInput(t *testing.T) {
	srv, fx := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"url":`},
		{"missing url", `{}`},
		{"not a url", `{"url":"not a url"}`},
		{"unsupported scheme", `{"url":"ftp://shop.example.com/p/1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := post(t, srv.URL+"/api/v1/extract", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, false, body["ok"])
			assert.NotEmpty(t, body["error"])
		})
	}

	resp, err := http.Get(srv.URL + "/api/v1/extract")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	assert.Empty(t, fx.calls)
}

func TestExtractBatch(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := post(t, srv.URL+"/api/v1/extract/batch",
		`{"urls":["https://shop.example.com/p/1","https://shop.example.com/blocked"]}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	results := body["results"].([]interface{})
	require.Len(t, results, 2)
	assert.Equal(t, "https://shop.example.com/p/1", results[0].(map[string]interface{})["url"])
	assert.Equal(t, "https://shop.example.com/blocked", results[1].(map[string]interface{})["url"])

	resp, _ = post(t, srv.URL+"/api/v1/extract/batch", `{"urls":[]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = post(t, srv.URL+"/api/v1/extract/batch", `{"urls":["https://ok.example.com","mailto:a@b.c"]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuote(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := post(t, srv.URL+"/api/v1/quote",
		`{"items":[{"description":"Blue Sofa","firstCost":"999.00","qty":2,"volumeFt3":40}]}`)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["ok"])
	q := body["quote"].(map[string]interface{})
	totals := q["totals"].(map[string]interface{})
	assert.Equal(t, "1998", totals["goods"])
	assert.Equal(t, "4754.06", totals["sell"])
}

func TestQuote_Invalid(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, body := range []string{
		`{"items":[]}`,
		`{"items":[{"firstCost":"10","qty":0}]}`,
		`{"items":[{"firstCost":"-10","qty":1}]}`,
	} {
		resp, out := post(t, srv.URL+"/api/v1/quote", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.Equal(t, false, out["ok"])
	}
}

func TestCORS(t *testing.T) {
	srv, _ := newTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/extract", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://quotes.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "https://quotes.example.com", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	s := New(&fakeExtractor{}, nil, Options{Addr: "127.0.0.1:0"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	cancel()
	assert.NoError(t, <-done)
}
