// internal/fetch/proxy.go
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/law-makers/landed/internal/ratelimit"
	"github.com/law-makers/landed/internal/retry"
	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	DefaultProxyEndpoint = "https://app.scrapingbee.com/api/v1/"
	DefaultProxyWait     = 3 * time.Second
	DefaultProxyTimeout  = 60 * time.Second

	errorSnippetBytes = 512
)

// ErrMissingAPIKey is returned when the rendering proxy has no API key
var ErrMissingAPIKey = errors.New("rendering proxy API key not configured")

// ProxyOptions configures the rendering proxy fetcher
type ProxyOptions struct {
	Endpoint       string
	APIKey         string
	RenderJS       bool
	Wait           time.Duration
	Premium        bool
	Country        string
	BlockResources bool
	Timeout        time.Duration
	MaxBodyBytes   int64

	Retry  retry.Config
	Gate   *ratelimit.Gate
	Client *http.Client
}

// Proxy fetches pages through an external rendering and anti-bot service.
// Rate-limit and 5xx responses from the service are retried with backoff;
// every other failure is terminal.
type Proxy struct {
	opts   ProxyOptions
	client *http.Client
}

// NewProxy creates a rendering-proxy fetcher
func NewProxy(opts ProxyOptions) *Proxy {
	if opts.Endpoint == "" {
		opts.Endpoint = DefaultProxyEndpoint
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProxyTimeout
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry = retry.DefaultConfig()
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{}
	}

	return &Proxy{opts: opts, client: client}
}

// Name returns the name of this fetcher
func (p *Proxy) Name() string {
	return "RenderingProxy"
}

// Fetch asks the rendering service for rawURL with JavaScript executed
func (p *Proxy) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	if p.opts.APIKey == "" {
		return nil, newError(KindProxyError, rawURL, ErrMissingAPIKey)
	}

	var result *Result
	err := retry.Do(ctx, p.opts.Retry, func(ctx context.Context) error {
		r, err := p.attempt(ctx, rawURL)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, err
		}
		return nil, classifyTransportError(rawURL, err)
	}

	return result, nil
}

func (p *Proxy) attempt(ctx context.Context, rawURL string) (*Result, error) {
	release, err := p.opts.Gate.Acquire(ctx)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}
	defer release()

	start := time.Now()

	// The service enforces its own timeout; leave headroom for the response
	ctx, cancel := context.WithTimeout(ctx, p.opts.Timeout+10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.requestURL(rawURL), nil)
	if err != nil {
		return nil, newError(KindProxyError, rawURL, err)
	}
	req.Header.Set("Accept", "text/html,*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorSnippetBytes))
		kind := KindProxyError
		if resp.StatusCode == http.StatusTooManyRequests {
			kind = KindProxyRateLimited
		}

		log.Debug().
			Str("url", rawURL).
			Int("status", resp.StatusCode).
			Str("kind", string(kind)).
			Msg("Rendering proxy returned an error")

		return nil, statusError(kind, rawURL, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	body, err := decodeBody(resp, p.opts.MaxBodyBytes)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}

	status := resp.StatusCode
	if s, err := strconv.Atoi(resp.Header.Get("Spb-Initial-Status-Code")); err == nil && s > 0 {
		status = s
	}
	finalURL := rawURL
	if u := resp.Header.Get("Spb-Resolved-Url"); u != "" {
		finalURL = u
	}

	log.Debug().
		Str("url", rawURL).
		Int("status", status).
		Int("bytes", len(body)).
		Int64("response_time_ms", time.Since(start).Milliseconds()).
		Msg("Rendering proxy fetch completed")

	return &Result{
		URL:        rawURL,
		FinalURL:   finalURL,
		HTML:       body,
		StatusCode: status,
		Strategy:   models.StrategyRendered,
	}, nil
}

func (p *Proxy) requestURL(rawURL string) string {
	q := url.Values{}
	q.Set("api_key", p.opts.APIKey)
	q.Set("url", rawURL)
	q.Set("render_js", strconv.FormatBool(p.opts.RenderJS))
	q.Set("wait", strconv.FormatInt(p.opts.Wait.Milliseconds(), 10))
	q.Set("premium_proxy", strconv.FormatBool(p.opts.Premium))
	if p.opts.Country != "" {
		q.Set("country_code", p.opts.Country)
	}
	q.Set("block_resources", strconv.FormatBool(p.opts.BlockResources))
	q.Set("timeout", strconv.FormatInt(p.opts.Timeout.Milliseconds(), 10))

	sep := "?"
	if strings.Contains(p.opts.Endpoint, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s%s", p.opts.Endpoint, sep, q.Encode())
}
