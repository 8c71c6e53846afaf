package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel            = "error"
	DefaultJSONLog             = false
	DefaultHTTPTimeout         = 20 * time.Second
	DefaultExtractTimeout      = 90 * time.Second
	DefaultUserAgent           = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	DefaultMaxRedirects        = 5
	DefaultMaxBodyBytes        = 8 << 20 // 8MiB
	DefaultDirectRPS           = 2.0
	DefaultDirectBurst         = 4
	DefaultEscalateOnShell     = true
	DefaultRenderBackend       = BackendProxy
	DefaultProxyEndpoint       = "https://app.scrapingbee.com/api/v1/"
	DefaultProxyRenderJS       = true
	DefaultProxyWait           = 3 * time.Second
	DefaultProxyBlockResources = true
	DefaultProxyTimeout        = 60 * time.Second
	DefaultProxyMaxRetries     = 2
	DefaultProxyBackoff        = time.Second
	DefaultProxyConcurrency    = 2
	DefaultProxyRPS            = 1.0
	DefaultBrowserHeadless     = true
	DefaultCacheTTL            = 30 * time.Minute
	DefaultCacheMaxSizeBytes   = 32 << 20 // 32MiB
	DefaultListenAddr          = ":8080"
	DefaultDutyRate            = 0.25
	DefaultFreightPerFt3       = 12.0
	DefaultTaxRate             = 0.10
	DefaultMarginTiers         = "500:0.35,2000:0.25,0:0.18"

	MaxRedirectsLimit    = 10
	MaxProxyRetriesLimit = 5
)

// Render backends serving the rendered fetch strategy
const (
	BackendProxy  = "proxy"
	BackendChrome = "chrome"
	BackendNone   = "none"
)

// Defaults returns a Config populated with default values
func Defaults() *Config {
	return &Config{
		LogLevel:            DefaultLogLevel,
		JSONLog:             DefaultJSONLog,
		HTTPTimeout:         DefaultHTTPTimeout,
		ExtractTimeout:      DefaultExtractTimeout,
		UserAgent:           DefaultUserAgent,
		MaxRedirects:        DefaultMaxRedirects,
		MaxBodyBytes:        DefaultMaxBodyBytes,
		DirectRPS:           DefaultDirectRPS,
		DirectBurst:         DefaultDirectBurst,
		EscalateOnShell:     DefaultEscalateOnShell,
		RenderBackend:       DefaultRenderBackend,
		ProxyEndpoint:       DefaultProxyEndpoint,
		ProxyRenderJS:       DefaultProxyRenderJS,
		ProxyWait:           DefaultProxyWait,
		ProxyBlockResources: DefaultProxyBlockResources,
		ProxyTimeout:        DefaultProxyTimeout,
		ProxyMaxRetries:     DefaultProxyMaxRetries,
		ProxyBackoff:        DefaultProxyBackoff,
		ProxyConcurrency:    DefaultProxyConcurrency,
		ProxyRPS:            DefaultProxyRPS,
		BrowserHeadless:     DefaultBrowserHeadless,
		CacheTTL:            DefaultCacheTTL,
		CacheMaxSizeBytes:   DefaultCacheMaxSizeBytes,
		ListenAddr:          DefaultListenAddr,
		AllowedOrigins:      []string{"*"},
		DutyRate:            DefaultDutyRate,
		FreightPerFt3:       DefaultFreightPerFt3,
		TaxRate:             DefaultTaxRate,
		MarginTiers:         DefaultMarginTiers,
	}
}
