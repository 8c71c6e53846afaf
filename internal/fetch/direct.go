// internal/fetch/direct.go
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/law-makers/landed/internal/proxy"
	"github.com/law-makers/landed/internal/ratelimit"
	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/publicsuffix"
)

const (
	DefaultDirectTimeout = 20 * time.Second
	DefaultMaxRedirects  = 5
	DefaultMaxBodyBytes  = 8 << 20
	DefaultUserAgent     = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

type proxyCtxKey struct{}

// NewTransport returns a pooled transport whose outbound proxy is chosen per
// request by Direct (falling back to the environment proxy settings).
func NewTransport() *http.Transport {
	return &http.Transport{
		Proxy: func(r *http.Request) (*url.URL, error) {
			if p, ok := r.Context().Value(proxyCtxKey{}).(string); ok && p != "" {
				return url.Parse(p)
			}
			return http.ProxyFromEnvironment(r)
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
}

// DirectOptions configures a Direct fetcher
type DirectOptions struct {
	Client       *http.Client
	Limiter      ratelimit.RateLimiter
	Proxies      *proxy.ProxyPool
	Timeout      time.Duration
	UserAgent    string
	MaxRedirects int
	MaxBodyBytes int64
	// Headers are set after the browser defaults and may replace them
	Headers http.Header
}

// Direct fetches pages with a plain HTTP GET that presents a browser identity
type Direct struct {
	client       *http.Client
	limiter      ratelimit.RateLimiter
	proxies      *proxy.ProxyPool
	timeout      time.Duration
	userAgent    string
	maxRedirects int
	maxBodyBytes int64
	headers      http.Header
}

// NewDirect creates a Direct fetcher, filling unset options with defaults
func NewDirect(opts DirectOptions) *Direct {
	if opts.Client == nil {
		opts.Client = &http.Client{Transport: NewTransport()}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultDirectTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &Direct{
		client:       opts.Client,
		limiter:      opts.Limiter,
		proxies:      opts.Proxies,
		timeout:      opts.Timeout,
		userAgent:    opts.UserAgent,
		maxRedirects: opts.MaxRedirects,
		maxBodyBytes: opts.MaxBodyBytes,
		headers:      opts.Headers.Clone(),
	}
}

// Name returns the name of this fetcher
func (d *Direct) Name() string {
	return "DirectFetcher"
}

// UserAgent returns the browser identity sent with each request
func (d *Direct) UserAgent() string {
	return d.userAgent
}

// Fetch issues a single GET. Statuses in [200,400) are success.
func (d *Direct) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	start := time.Now()

	log.Debug().
		Str("url", rawURL).
		Str("fetcher", d.Name()).
		Msg("Starting fetch")

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx, rawURL); err != nil {
			return nil, classifyTransportError(rawURL, err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	proxyURL := d.proxies.GetNext()
	if proxyURL != "" {
		ctx = context.WithValue(ctx, proxyCtxKey{}, proxyURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, newError(KindNetwork, rawURL, fmt.Errorf("%w: %v", ErrInvalidURL, err))
	}

	req.Header.Set("User-Agent", d.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	for key, values := range d.headers {
		req.Header[key] = values
	}

	// Cookies set during the redirect chain stay with this request only
	client := *d.client
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		client.Jar = jar
	}
	client.CheckRedirect = func(r *http.Request, via []*http.Request) error {
		if len(via) >= d.maxRedirects {
			return fmt.Errorf("stopped after %d redirects", d.maxRedirects)
		}
		return nil
	}

	resp, err := client.Do(req)
	if err != nil {
		d.proxies.MarkFailed(proxyURL)
		return nil, classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()
	d.proxies.MarkHealthy(proxyURL)

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, statusError(KindHTTPStatus, rawURL, resp.StatusCode, resp.Status)
	}

	body, err := decodeBody(resp, d.maxBodyBytes)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}

	log.Debug().
		Str("url", rawURL).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Int64("response_time_ms", time.Since(start).Milliseconds()).
		Msg("Fetch completed")

	return &Result{
		URL:        rawURL,
		FinalURL:   resp.Request.URL.String(),
		HTML:       body,
		StatusCode: resp.StatusCode,
		Strategy:   models.StrategyDirect,
	}, nil
}

// decodeBody reads at most limit bytes and converts them to UTF-8 using the
// declared or sniffed charset.
func decodeBody(resp *http.Response, limit int64) (string, error) {
	limited := io.LimitReader(resp.Body, limit)

	reader, err := charset.NewReader(limited, resp.Header.Get("Content-Type"))
	if err != nil {
		// Unknown charset: keep the raw bytes
		raw, readErr := io.ReadAll(limited)
		if readErr != nil {
			return "", readErr
		}
		return string(raw), nil
	}

	decoded, err := io.ReadAll(reader)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
