// internal/fetch/chrome.go
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/law-makers/landed/internal/ratelimit"
	"github.com/law-makers/landed/pkg/models"
	"github.com/rs/zerolog/log"
)

// ChromeOptions configures the local headless renderer
type ChromeOptions struct {
	ExecPath  string
	Headless  bool
	UserAgent string
	Proxy     string
	Wait      time.Duration
	Timeout   time.Duration
	Gate      *ratelimit.Gate
}

// Chrome renders pages in a local headless browser. One browser process is
// started lazily and shared; every fetch runs in its own tab.
type Chrome struct {
	opts ChromeOptions

	once        sync.Once
	allocCtx    context.Context
	allocCancel context.CancelFunc
	mu          sync.Mutex
	closed      bool
}

// NewChrome creates a Chrome render backend. No browser is launched until
// the first fetch.
func NewChrome(opts ChromeOptions) *Chrome {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 45 * time.Second
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	return &Chrome{opts: opts}
}

// Name returns the name of this fetcher
func (c *Chrome) Name() string {
	return "HeadlessChrome"
}

func (c *Chrome) allocator() context.Context {
	c.once.Do(func() {
		execPath := c.opts.ExecPath
		if execPath == "" {
			execPath = FindChrome("")
		}

		allocOpts := []chromedp.ExecAllocatorOption{
			chromedp.NoFirstRun,
			chromedp.NoDefaultBrowserCheck,
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-extensions", true),
			chromedp.Flag("disable-background-networking", true),
			chromedp.Flag("disable-sync", true),
			chromedp.Flag("disable-translate", true),
			chromedp.Flag("mute-audio", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("window-size", "1920,1080"),
			chromedp.UserAgent(c.opts.UserAgent),
		}
		if execPath != "" {
			allocOpts = append([]chromedp.ExecAllocatorOption{chromedp.ExecPath(execPath)}, allocOpts...)
		}
		if c.opts.Headless {
			allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
		} else {
			allocOpts = append(allocOpts, chromedp.Flag("headless", false))
		}
		if c.opts.Proxy != "" {
			allocOpts = append(allocOpts, chromedp.ProxyServer(c.opts.Proxy))
		}

		c.allocCtx, c.allocCancel = chromedp.NewExecAllocator(context.Background(), allocOpts...)
		log.Debug().Str("exec_path", execPath).Msg("Headless browser allocator created")
	})
	return c.allocCtx
}

// Fetch navigates a fresh tab to rawURL, waits for the settle delay and
// returns the rendered document.
func (c *Chrome) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, newError(KindNetwork, rawURL, fmt.Errorf("browser closed"))
	}

	release, err := c.opts.Gate.Acquire(ctx)
	if err != nil {
		return nil, classifyTransportError(rawURL, err)
	}
	defer release()

	start := time.Now()

	tabCtx, cancelTab := chromedp.NewContext(c.allocator())
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	tabCtx, cancel := context.WithTimeout(tabCtx, c.opts.Timeout)
	defer cancel()

	var (
		statusMu   sync.Mutex
		statusCode int64
		finalURL   string
		htmlOut    string
	)

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			statusMu.Lock()
			if statusCode == 0 {
				statusCode = e.Response.Status
			}
			statusMu.Unlock()
		}
	})

	err = chromedp.Run(tabCtx,
		network.Enable(),
		chromedp.Navigate(rawURL),
		chromedp.Sleep(c.opts.Wait),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &htmlOut, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, classifyTransportError(rawURL, ctx.Err())
		}
		return nil, classifyTransportError(rawURL, fmt.Errorf("chromedp execution failed: %w", err))
	}

	statusMu.Lock()
	status := int(statusCode)
	statusMu.Unlock()

	if status >= 400 {
		return nil, statusError(KindHTTPStatus, rawURL, status, "rendered document status")
	}

	log.Debug().
		Str("url", rawURL).
		Int("status", status).
		Int("bytes", len(htmlOut)).
		Int64("response_time_ms", time.Since(start).Milliseconds()).
		Msg("Headless render completed")

	return &Result{
		URL:        rawURL,
		FinalURL:   finalURL,
		HTML:       htmlOut,
		StatusCode: status,
		Strategy:   models.StrategyRendered,
	}, nil
}

// Close shuts the browser down. Safe to call more than once.
func (c *Chrome) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.allocCancel != nil {
		c.allocCancel()
	}
	return nil
}
