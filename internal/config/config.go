// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store driver names accepted by STORE_DRIVER.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Port            string
	AllowedOrigins  []string
	UpstreamURL     string
	UpstreamAPIKey  string
	UpstreamTimeout time.Duration // 0 = no timeout
	ModelsFile      string
	RecordTTL       time.Duration
	Store           StoreConfig
	RateLimit       RateLimitConfig
	StatusInterval  time.Duration // tick period for the inference status websocket
	TrustProxy      bool          // take the client address from X-Forwarded-For / X-Real-IP
}

// StoreConfig selects and configures the key-value backend.
type StoreConfig struct {
	Driver        string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SQLitePath    string
	SweepInterval time.Duration
}

// RateLimitConfig bounds generation requests per client address.
type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8787"),
		AllowedOrigins:  splitList(getEnv("ALLOWED_ORIGIN", "https://newyears25.pages.dev")),
		UpstreamURL:     getEnv("OPENAI_API_URL", "https://api.openai.com/v1/chat/completions"),
		UpstreamAPIKey:  getEnv("OPENAI_API_KEY", ""),
		UpstreamTimeout: getEnvDuration("UPSTREAM_TIMEOUT", 0),
		ModelsFile:      getEnv("MODELS_FILE", ""),
		RecordTTL:       getEnvDuration("RECORD_TTL", 30*24*time.Hour),
		Store: StoreConfig{
			Driver:        strings.ToLower(getEnv("STORE_DRIVER", StoreSQLite)),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvInt("REDIS_DB", 0),
			SQLitePath:    getEnv("DB_PATH", "./data/records.db"),
			SweepInterval: getEnvDuration("STORE_SWEEP_INTERVAL", 5*time.Minute),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("GENERATE_RATE_PER_MINUTE", 30),
			Burst:             getEnvInt("GENERATE_RATE_BURST", 5),
		},
		StatusInterval: getEnvDuration("STATUS_INTERVAL", time.Second),
		TrustProxy:     getEnvBool("TRUST_PROXY", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.UpstreamURL == "" {
		return fmt.Errorf("OPENAI_API_URL cannot be empty")
	}
	if len(c.AllowedOrigins) == 0 {
		return fmt.Errorf("ALLOWED_ORIGIN cannot be empty")
	}
	if c.RecordTTL <= 0 {
		return fmt.Errorf("RECORD_TTL must be > 0")
	}
	if c.StatusInterval <= 0 {
		return fmt.Errorf("STATUS_INTERVAL must be > 0")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR cannot be empty when STORE_DRIVER=redis")
		}
	case StoreSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("DB_PATH cannot be empty when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver)
	}
	if c.Store.Driver != StoreRedis && c.Store.SweepInterval <= 0 {
		return fmt.Errorf("STORE_SWEEP_INTERVAL must be > 0")
	}
	if c.UpstreamTimeout < 0 {
		return fmt.Errorf("UPSTREAM_TIMEOUT must be >= 0")
	}
	if c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("GENERATE_RATE_PER_MINUTE must be > 0")
	}
	if c.RateLimit.Burst <= 0 {
		return fmt.Errorf("GENERATE_RATE_BURST must be > 0")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
