package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Source kinds.
const (
	SourceHTTP     = "http"
	SourcePostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Source    SourceConfig
	View      ViewConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Health    HealthConfig
	Graceful  GracefulConfig
}

// SourceConfig selects where products are read from.
type SourceConfig struct {
	Kind        string        `default:"http" usage:"Product source: http or postgres"`
	BaseURL     string        `default:"https://fakestoreapi.com" usage:"Remote product API base URL" flag:"base-url"`
	Timeout     time.Duration `default:"10s" usage:"Per-request timeout of the remote API client"`
	DatabaseURL string        `usage:"PostgreSQL connection URL of the catalog mirror (STOREFRONT_SOURCE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
}

// ViewConfig tunes every session's view engine.
type ViewConfig struct {
	FetchTimeout time.Duration `default:"15s" usage:"Upper bound for a catalog or detail fetch" flag:"fetch-timeout"`
	FoldCategory bool          `default:"false" usage:"Match the category filter case-insensitively" flag:"fold-category"`
}

// SessionConfig controls shopper session lifetime.
type SessionConfig struct {
	IdleTTL         time.Duration `default:"30m" usage:"Evict sessions idle for this long" flag:"session-ttl"`
	MaxSessions     int           `default:"10000" usage:"Maximum live sessions; 0 is unlimited" flag:"max-sessions"`
	JanitorInterval time.Duration `default:"1m" usage:"How often idle sessions are evicted" flag:"session-janitor-interval"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window; 0 disables limiting"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string      `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool          `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
	MaxAge           time.Duration `default:"24h" usage:"Preflight cache lifetime" flag:"cors-max-age"`
}

// HealthConfig controls background probe checks.
type HealthConfig struct {
	Interval       time.Duration `default:"10s" usage:"Health check interval" flag:"health-interval"`
	MaxGoroutines  int           `default:"10000" usage:"Liveness fails above this goroutine count" flag:"max-goroutines"`
	MaxGCPause     time.Duration `default:"1s" usage:"Liveness fails after a GC pause longer than this" flag:"max-gc-pause"`
	ReadinessProbe bool          `default:"true" usage:"Ping the product source for readiness" flag:"readiness-probe"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from defaults, YAML config files,
// environment variables and flags, then validates it.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the DATABASE_URL and PORT variables set by
// hosting platforms onto the STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.Source.DatabaseURL == "" {
		c.Source.DatabaseURL = getenv("DATABASE_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceHTTP:
		if c.Source.BaseURL == "" {
			return errors.New("source base URL is required for the http source")
		}
	case SourcePostgres:
		if c.Source.DatabaseURL == "" {
			return errors.New("database URL is required for the postgres source: set STOREFRONT_SOURCE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown source kind %q: want %q or %q", c.Source.Kind, SourceHTTP, SourcePostgres)
	}
	if c.RateLimit.Max > 0 && c.RateLimit.Window <= 0 {
		return errors.New("rate limit window must be positive")
	}
	if c.Session.MaxSessions < 0 {
		return errors.New("max sessions must not be negative")
	}
	if c.View.FetchTimeout < 0 || c.Source.Timeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	return nil
}
