// Package server provides configuration helpers that define runtime defaults,
// validation, and tuning parameters for the chat relay.
package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `env:"RATE_LIMIT_BURST"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL"`
}

// DiscoveryConfig defines how the relay announces itself to the
// service-discovery registry. Registration is skipped when RegistryURL is empty.
type DiscoveryConfig struct {
	RegistryURL string `env:"DISCOVERY_URL"`
	ServiceName string `env:"SERVICE_NAME"`
	ServiceURL  string `env:"SERVICE_URL"`
}

// Config holds the relay configuration settings covering transport,
// persistence, and the message pipelines.
type Config struct {
	Port              string        `env:"SERVER_PORT"`
	AllowedOrigins    []string      `env:"ALLOWED_ORIGINS"`
	MaxMessageSize    int64         `env:"MAX_MESSAGE_SIZE"`
	DatabasePath      string        `env:"DATABASE_PATH"`
	DefaultRoom       string        `env:"DEFAULT_ROOM"`
	IngestConcurrency int           `env:"INGEST_CONCURRENCY"`
	HistoryTimeout    time.Duration `env:"HISTORY_TIMEOUT"`
	RateLimit         RateLimitConfig
	Discovery         DiscoveryConfig
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:    512,
		DatabasePath:      "data/roomchat.db",
		DefaultRoom:       "lobby",
		IngestConcurrency: 3,
		HistoryTimeout:    5 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Discovery: DiscoveryConfig{
			ServiceName: "ChatService",
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}

	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "data/roomchat.db"
	}

	if cfg.DefaultRoom == "" {
		cfg.DefaultRoom = "lobby"
	}

	if cfg.IngestConcurrency <= 0 {
		cfg.IngestConcurrency = 3
	}

	if cfg.HistoryTimeout <= 0 {
		cfg.HistoryTimeout = 5 * time.Second
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := Config{
		Port:              cfg.Port,
		AllowedOrigins:    append([]string(nil), cfg.AllowedOrigins...),
		MaxMessageSize:    cfg.MaxMessageSize,
		DatabasePath:      cfg.DatabasePath,
		DefaultRoom:       cfg.DefaultRoom,
		IngestConcurrency: cfg.IngestConcurrency,
		HistoryTimeout:    cfg.HistoryTimeout,
		RateLimit: RateLimitConfig{
			Burst:          cfg.RateLimit.Burst,
			RefillInterval: cfg.RateLimit.RefillInterval,
		},
		Discovery: cfg.Discovery,
	}
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Unset variables keep their default values.
func NewConfigFromEnv() (*Config, error) {
	cfg := defaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}
	return &cfg, nil
}
