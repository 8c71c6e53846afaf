package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/law-makers/landed/internal/quote"
	"github.com/law-makers/landed/internal/utils/headers"
)

// ErrMissingProxyKey is returned when the proxy backend has no API key
var ErrMissingProxyKey = errors.New("proxy API key is required for render_backend=proxy (set LANDED_PROXY_API_KEY or run `landed key set`)")

func validate(c *Config) error {
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log level must be one of debug, info, warn, error")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be > 0")
	}
	if c.ExtractTimeout <= 0 {
		return fmt.Errorf("extract timeout must be > 0")
	}
	if c.MaxRedirects < 1 || c.MaxRedirects > MaxRedirectsLimit {
		return fmt.Errorf("max redirects must be between 1 and %d", MaxRedirectsLimit)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be > 0")
	}
	if c.DirectRPS <= 0 || c.DirectBurst <= 0 {
		return fmt.Errorf("direct rate limit must be > 0")
	}
	if _, err := headers.Parse(c.ExtraHeaders); err != nil {
		return err
	}

	switch c.RenderBackend {
	case BackendProxy:
		if c.ProxyAPIKey == "" {
			return ErrMissingProxyKey
		}
		if c.ProxyTimeout <= 0 {
			return fmt.Errorf("proxy timeout must be > 0")
		}
		if c.ProxyMaxRetries < 0 || c.ProxyMaxRetries > MaxProxyRetriesLimit {
			return fmt.Errorf("proxy max retries must be between 0 and %d", MaxProxyRetriesLimit)
		}
		if c.ProxyConcurrency < 1 {
			return fmt.Errorf("proxy concurrency must be >= 1")
		}
	case BackendChrome, BackendNone:
	default:
		return fmt.Errorf("render backend must be one of %s, %s, %s", BackendProxy, BackendChrome, BackendNone)
	}

	if c.CacheMaxSizeBytes <= 0 {
		return fmt.Errorf("cache max size must be > 0")
	}
	if c.BatchConcurrency < 0 {
		return fmt.Errorf("batch concurrency must be >= 0")
	}
	if c.DutyRate < 0 || c.FreightPerFt3 < 0 || c.TaxRate < 0 {
		return fmt.Errorf("quote rates must not be negative")
	}
	if _, err := quote.ParseTiers(c.MarginTiers); err != nil {
		return err
	}
	return nil
}
