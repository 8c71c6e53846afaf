// Package config builds the application configuration from defaults, an
// optional config file, LANDED_* environment variables, CLI flags and the OS
// keyring, and validates it once at startup.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/law-makers/landed/internal/auth"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "LANDED_"

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string `mapstructure:"log_level" env:"LOG_LEVEL"`
	JSONLog  bool   `mapstructure:"json_log" env:"JSON_LOG"`

	// Direct fetch
	HTTPTimeout     time.Duration `mapstructure:"http_timeout" env:"HTTP_TIMEOUT"`
	ExtractTimeout  time.Duration `mapstructure:"extract_timeout" env:"EXTRACT_TIMEOUT"`
	UserAgent       string        `mapstructure:"user_agent" env:"USER_AGENT"`
	MaxRedirects    int           `mapstructure:"max_redirects" env:"MAX_REDIRECTS"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes" env:"MAX_BODY_BYTES"`
	DirectRPS       float64       `mapstructure:"direct_rps" env:"DIRECT_RPS"`
	DirectBurst     int           `mapstructure:"direct_burst" env:"DIRECT_BURST"`
	DirectProxies   []string      `mapstructure:"direct_proxies" env:"DIRECT_PROXIES"`
	EscalateOnShell bool          `mapstructure:"escalate_on_shell" env:"ESCALATE_ON_SHELL"`
	ExtraHeaders    []string      `mapstructure:"extra_headers" env:"EXTRA_HEADERS" envSeparator:"|"`

	// Rendered fetch
	RenderBackend       string        `mapstructure:"render_backend" env:"RENDER_BACKEND"`
	ProxyEndpoint       string        `mapstructure:"proxy_endpoint" env:"PROXY_ENDPOINT"`
	ProxyAPIKey         string        `mapstructure:"proxy_api_key" env:"PROXY_API_KEY"`
	ProxyRenderJS       bool          `mapstructure:"proxy_render_js" env:"PROXY_RENDER_JS"`
	ProxyWait           time.Duration `mapstructure:"proxy_wait" env:"PROXY_WAIT"`
	ProxyPremium        bool          `mapstructure:"proxy_premium" env:"PROXY_PREMIUM"`
	ProxyCountry        string        `mapstructure:"proxy_country" env:"PROXY_COUNTRY"`
	ProxyBlockResources bool          `mapstructure:"proxy_block_resources" env:"PROXY_BLOCK_RESOURCES"`
	ProxyTimeout        time.Duration `mapstructure:"proxy_timeout" env:"PROXY_TIMEOUT"`
	ProxyMaxRetries     int           `mapstructure:"proxy_max_retries" env:"PROXY_MAX_RETRIES"`
	ProxyBackoff        time.Duration `mapstructure:"proxy_backoff" env:"PROXY_BACKOFF"`
	ProxyConcurrency    int           `mapstructure:"proxy_concurrency" env:"PROXY_CONCURRENCY"`
	ProxyRPS            float64       `mapstructure:"proxy_rps" env:"PROXY_RPS"`
	ChromePath          string        `mapstructure:"chrome_path" env:"CHROME_PATH"`
	BrowserHeadless     bool          `mapstructure:"browser_headless" env:"BROWSER_HEADLESS"`

	// Caching
	CacheTTL          time.Duration `mapstructure:"cache_ttl" env:"CACHE_TTL"`
	CacheMaxSizeBytes int64         `mapstructure:"cache_max_size_bytes" env:"CACHE_MAX_SIZE_BYTES"`
	RedisAddr         string        `mapstructure:"redis_addr" env:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"redis_password" env:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"redis_db" env:"REDIS_DB"`

	// HTTP API
	ListenAddr     string   `mapstructure:"listen_addr" env:"LISTEN_ADDR"`
	AllowedOrigins []string `mapstructure:"allowed_origins" env:"ALLOWED_ORIGINS"`

	// Quote
	DutyRate      float64 `mapstructure:"duty_rate" env:"DUTY_RATE"`
	FreightPerFt3 float64 `mapstructure:"freight_per_ft3" env:"FREIGHT_PER_FT3"`
	TaxRate       float64 `mapstructure:"tax_rate" env:"TAX_RATE"`
	MarginTiers   string  `mapstructure:"margin_tiers" env:"MARGIN_TIERS"`

	BatchConcurrency int `mapstructure:"batch_concurrency" env:"BATCH_CONCURRENCY"`
}

// storedProxyKey reads the proxy key saved with `landed key set`
var storedProxyKey = func() (string, error) {
	return auth.Load(auth.ProxyAPIKey)
}

// Load builds a Config by combining defaults, an optional config file,
// environment variables, CLI flags and the keyring, in that order of
// precedence (later wins). cmd may be nil.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()

	if err := loadFile(cfg, flagString(cmd, "config")); err != nil {
		return nil, err
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}

	applyFlags(cfg, cmd)

	if cfg.ProxyAPIKey == "" && cfg.RenderBackend == BackendProxy {
		key, err := storedProxyKey()
		switch {
		case err == nil:
			cfg.ProxyAPIKey = key
		case !errors.Is(err, auth.ErrNotFound):
			log.Debug().Err(err).Msg("Failed to read proxy API key from keyring")
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// loadFile merges an explicit config file, or landed.{yaml,json,toml} from
// the working directory or ~/.landed when present.
func loadFile(cfg *Config, path string) error {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("landed")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.landed")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config file: %w", err)
	}

	log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	return nil
}

// applyFlags overrides values with flags the user actually set
func applyFlags(cfg *Config, cmd *cobra.Command) {
	if cmd == nil {
		return
	}
	flags := cmd.Flags()

	if flagChanged(cmd, "verbose") {
		if v, err := flags.GetBool("verbose"); err == nil && v {
			cfg.LogLevel = "debug"
		}
	}
	if flagChanged(cmd, "quiet") {
		if v, err := flags.GetBool("quiet"); err == nil && v {
			cfg.LogLevel = "error"
		}
	}
	if flagChanged(cmd, "json") {
		if v, err := flags.GetBool("json"); err == nil {
			cfg.JSONLog = v
		}
	}
	if flagChanged(cmd, "timeout") {
		if v, err := flags.GetDuration("timeout"); err == nil {
			cfg.HTTPTimeout = v
		}
	}
	if flagChanged(cmd, "user-agent") {
		cfg.UserAgent = flagString(cmd, "user-agent")
	}
	if flagChanged(cmd, "proxy") {
		if v, err := flags.GetStringSlice("proxy"); err == nil {
			cfg.DirectProxies = v
		}
	}
	if flagChanged(cmd, "header") {
		if v, err := flags.GetStringArray("header"); err == nil {
			cfg.ExtraHeaders = v
		}
	}
	if flagChanged(cmd, "render-backend") {
		cfg.RenderBackend = flagString(cmd, "render-backend")
	}
	if flagChanged(cmd, "addr") {
		cfg.ListenAddr = flagString(cmd, "addr")
	}
	if flagChanged(cmd, "concurrency") {
		if v, err := flags.GetInt("concurrency"); err == nil {
			cfg.BatchConcurrency = v
		}
	}
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil {
		return false
	}
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func flagString(cmd *cobra.Command, name string) string {
	if cmd == nil {
		return ""
	}
	if f := cmd.Flags().Lookup(name); f != nil {
		return f.Value.String()
	}
	return ""
}
