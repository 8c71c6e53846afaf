// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/law-makers/landed/internal/cache"
	"github.com/law-makers/landed/internal/config"
	"github.com/law-makers/landed/internal/downloader"
	"github.com/law-makers/landed/internal/engine"
	"github.com/law-makers/landed/internal/fetch"
	"github.com/law-makers/landed/internal/proxy"
	"github.com/law-makers/landed/internal/quote"
	"github.com/law-makers/landed/internal/ratelimit"
	"github.com/law-makers/landed/internal/retry"
	"github.com/law-makers/landed/internal/utils/headers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands and the
// HTTP server. Use Close() to release the browser, cache and connections.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Cache       cache.Cache
	RateLimiter ratelimit.RateLimiter
	Proxies     *proxy.ProxyPool
	HTTPClient  *http.Client
	Direct      *fetch.Direct
	Renderer    fetch.Fetcher // nil when render_backend=none
	Extractor   *engine.Extractor
	Quote       *quote.Calculator
	Images      *downloader.Downloader
	chrome      *fetch.Chrome
	startTime   time.Time
}

// SetupLogger configures the global zerolog logger from cfg and returns it
func SetupLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(level)

	var logWriter io.Writer
	if cfg.JSONLog {
		// JSON logs to stderr
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	}

	log.Logger = zerolog.New(logWriter).With().Timestamp().Logger()
	return log.Logger
}

// New creates and initializes a new Application with all dependencies.
//
// It performs the following initialization steps:
//   - Configures logging based on the provided config
//   - Connects the record cache (Redis when configured, otherwise in-memory)
//   - Creates the per-domain rate limiter and outbound proxy pool
//   - Creates the direct fetcher and the configured render backend
//   - Creates the extractor and the quote calculator
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := SetupLogger(cfg)
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	calc, err := newCalculator(cfg)
	if err != nil {
		return nil, err
	}

	recordCache := newCache(ctx, cfg, logger)

	rateLimiter := ratelimit.NewDomainLimiter(cfg.DirectRPS, cfg.DirectBurst)
	logger.Debug().
		Float64("direct_rps", cfg.DirectRPS).
		Int("direct_burst", cfg.DirectBurst).
		Msg("Rate limiter initialized")

	proxies := proxy.NewProxyPool(cfg.DirectProxies)

	httpClient := &http.Client{Transport: fetch.NewTransport()}

	// Validated by config.Load
	extraHeaders, err := headers.Parse(cfg.ExtraHeaders)
	if err != nil {
		return nil, err
	}

	direct := fetch.NewDirect(fetch.DirectOptions{
		Client:       httpClient,
		Limiter:      rateLimiter,
		Proxies:      proxies,
		Timeout:      cfg.HTTPTimeout,
		UserAgent:    cfg.UserAgent,
		MaxRedirects: cfg.MaxRedirects,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Headers:      extraHeaders,
	})

	images := downloader.New(downloader.Options{
		Client:    httpClient,
		Limiter:   rateLimiter,
		UserAgent: direct.UserAgent(),
		Timeout:   cfg.HTTPTimeout,
	})

	a := &Application{
		Config:      cfg,
		Logger:      &logger,
		Cache:       recordCache,
		RateLimiter: rateLimiter,
		Proxies:     proxies,
		HTTPClient:  httpClient,
		Direct:      direct,
		Quote:       calc,
		Images:      images,
		startTime:   time.Now(),
	}

	gate := ratelimit.NewGate(cfg.ProxyConcurrency, cfg.ProxyRPS)

	switch cfg.RenderBackend {
	case config.BackendProxy:
		rc := retry.DefaultConfig()
		rc.MaxAttempts = cfg.ProxyMaxRetries + 1
		rc.InitialBackoff = cfg.ProxyBackoff

		a.Renderer = fetch.NewProxy(fetch.ProxyOptions{
			Endpoint:       cfg.ProxyEndpoint,
			APIKey:         cfg.ProxyAPIKey,
			RenderJS:       cfg.ProxyRenderJS,
			Wait:           cfg.ProxyWait,
			Premium:        cfg.ProxyPremium,
			Country:        cfg.ProxyCountry,
			BlockResources: cfg.ProxyBlockResources,
			Timeout:        cfg.ProxyTimeout,
			MaxBodyBytes:   cfg.MaxBodyBytes,
			Retry:          rc,
			Gate:           gate,
		})
	case config.BackendChrome:
		execPath := fetch.FindChrome(cfg.ChromePath)
		var browserProxy string
		if len(cfg.DirectProxies) > 0 {
			browserProxy = cfg.DirectProxies[0]
		}
		a.chrome = fetch.NewChrome(fetch.ChromeOptions{
			ExecPath:  execPath,
			Headless:  cfg.BrowserHeadless,
			UserAgent: cfg.UserAgent,
			Proxy:     browserProxy,
			Wait:      cfg.ProxyWait,
			Gate:      gate,
		})
		a.Renderer = a.chrome
	}

	opts := engine.Options{
		Direct:          direct,
		Cache:           recordCache,
		CacheTTL:        cfg.CacheTTL,
		Timeout:         cfg.ExtractTimeout,
		EscalateOnShell: cfg.EscalateOnShell,
	}
	if a.Renderer != nil {
		opts.Rendered = a.Renderer
	}
	a.Extractor = engine.New(opts)

	renderer := "none"
	if a.Renderer != nil {
		renderer = a.Renderer.Name()
	}
	logger.Info().
		Str("renderer", renderer).
		Int("proxies", proxies.Len()).
		Msg("Application initialized successfully")

	return a, nil
}

// newCache connects Redis when configured. A Redis outage at startup falls
// back to the in-memory cache since caching is optional.
func newCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) cache.Cache {
	if cfg.RedisAddr != "" {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		rc, err := cache.NewRedisCache(pingCtx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err == nil {
			logger.Debug().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")
			return rc
		}
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory cache")
	}

	logger.Debug().
		Int64("max_size_bytes", cfg.CacheMaxSizeBytes).
		Msg("Memory cache initialized")
	return cache.NewMemoryCache(cfg.CacheMaxSizeBytes)
}

func newCalculator(cfg *config.Config) (*quote.Calculator, error) {
	tiers, err := quote.ParseTiers(cfg.MarginTiers)
	if err != nil {
		return nil, err
	}
	return quote.New(quote.Rates{
		Duty:          decimal.NewFromFloat(cfg.DutyRate),
		FreightPerFt3: decimal.NewFromFloat(cfg.FreightPerFt3),
		Tax:           decimal.NewFromFloat(cfg.TaxRate),
		Tiers:         tiers,
	})
}

// Close gracefully shuts down the application and all its resources.
// Errors during shutdown are logged but do not prevent other shutdown steps.
func (a *Application) Close(ctx context.Context) error {
	a.Logger.Debug().Msg("Shutting down application")

	if a.chrome != nil {
		if err := a.chrome.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing browser")
		}
	}

	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Error closing cache")
		}
	}

	if a.HTTPClient != nil {
		a.HTTPClient.CloseIdleConnections()
	}

	a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	return nil
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
