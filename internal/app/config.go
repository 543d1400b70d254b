package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything an App needs to run. Fields are populated from
// FLOWDASH_* environment variables and may then be overridden by flags.
type Config struct {
	Addr         string `env:"FLOWDASH_ADDR" envDefault:":8080"`
	PipelinePath string `env:"FLOWDASH_PIPELINE"` // empty uses the built-in pipeline

	LogFormat string `env:"FLOWDASH_LOG_FORMAT" envDefault:"text"`
	LogLevel  string `env:"FLOWDASH_LOG_LEVEL" envDefault:"info"`

	// Seed makes every random source deterministic. Zero means unseeded.
	Seed uint64 `env:"FLOWDASH_SEED"`

	JWTSecret    string        `env:"FLOWDASH_JWT_SECRET"`
	SessionTTL   time.Duration `env:"FLOWDASH_SESSION_TTL" envDefault:"8h"`
	LoginLatency time.Duration `env:"FLOWDASH_LOGIN_LATENCY" envDefault:"500ms"`
	RedisURL     string        `env:"FLOWDASH_REDIS_URL"`

	OTelEndpoint string `env:"FLOWDASH_OTEL_ENDPOINT"`

	MetricsInterval   time.Duration `env:"FLOWDASH_METRICS_INTERVAL" envDefault:"3s"`
	MetricsStaleAfter time.Duration `env:"FLOWDASH_METRICS_STALE_AFTER" envDefault:"2s"`

	SimulateWithoutViewers bool `env:"FLOWDASH_SIMULATE_WITHOUT_VIEWERS"`

	// WatchURL switches the binary into feed-watching mode. Flag only.
	WatchURL string `env:"-"`
}

// Defaults mirrored by the envDefault tags above.
const (
	DefaultAddr              = ":8080"
	DefaultSessionTTL        = 8 * time.Hour
	DefaultLoginLatency      = 500 * time.Millisecond
	DefaultMetricsInterval   = 3 * time.Second
	DefaultMetricsStaleAfter = 2 * time.Second
)

// ConfigFromEnv loads configuration from environment variables.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// NewConfig validates cfg and returns a normalised copy.
func NewConfig(cfg Config) (*Config, error) {
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)

	if cfg.WatchURL == "" && cfg.Addr == "" {
		return nil, errors.New("addr is a required configuration field and cannot be empty")
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return nil, errors.New("invalid log-format: must be 'text' or 'json'")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, errors.New("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("session-ttl must be positive, got %s", cfg.SessionTTL)
	}
	if cfg.LoginLatency < 0 {
		return nil, fmt.Errorf("login latency cannot be negative, got %s", cfg.LoginLatency)
	}
	if cfg.MetricsInterval <= 0 {
		return nil, fmt.Errorf("metrics-interval must be positive, got %s", cfg.MetricsInterval)
	}
	if cfg.MetricsStaleAfter < 0 {
		return nil, fmt.Errorf("metrics stale time cannot be negative, got %s", cfg.MetricsStaleAfter)
	}
	return &cfg, nil
}
