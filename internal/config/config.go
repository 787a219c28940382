package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the relay's process configuration, read once at startup.
type Config struct {
	HTTPAddr string
	LogLevel slog.Level

	FallbackEnabled  bool
	FallbackEndpoint string
	FallbackAPIKey   string
	FallbackModel    string

	RateLimitPerHour int
	RateLimitBackend string
	RedisURL         string

	// Temperature and MaxTokens are sent upstream only when set.
	Temperature *float64
	MaxTokens   *int
	// UpstreamTimeout of zero leaves the upstream call unbounded.
	UpstreamTimeout time.Duration
}

// Load reads an optional .env file, then the environment. Variables already
// set in the environment win over .env.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	c := Config{
		HTTPAddr:         envOr("HTTP_ADDR", ":8080"),
		FallbackEnabled:  os.Getenv("ENABLE_FALLBACK_LLM") == "true",
		FallbackEndpoint: strings.TrimSpace(os.Getenv("FALLBACK_LLM_ENDPOINT")),
		FallbackAPIKey:   strings.TrimSpace(os.Getenv("FALLBACK_LLM_KEY")),
		FallbackModel:    envOr("FALLBACK_LLM_MODEL", "gpt-4o-mini"),
		RateLimitPerHour: 10,
		RateLimitBackend: strings.ToLower(envOr("RATE_LIMIT_BACKEND", BackendMemory)),
		RedisURL:         envOr("REDIS_URL", "redis://localhost:6379/0"),
	}

	if v := os.Getenv("RATE_LIMIT_PER_HOUR"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid RATE_LIMIT_PER_HOUR %q: must be a positive integer", v)
		}
		c.RateLimitPerHour = n
	}

	switch c.RateLimitBackend {
	case BackendMemory, BackendRedis:
	default:
		return Config{}, fmt.Errorf("invalid RATE_LIMIT_BACKEND %q", c.RateLimitBackend)
	}

	if v := os.Getenv("LLM_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LLM_TEMPERATURE %q: %w", v, err)
		}
		c.Temperature = &f
	}

	if v := os.Getenv("LLM_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("invalid LLM_MAX_TOKENS %q: must be a positive integer", v)
		}
		c.MaxTokens = &n
	}

	if v := os.Getenv("UPSTREAM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid UPSTREAM_TIMEOUT %q: %w", v, err)
		}
		c.UpstreamTimeout = d
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}
	c.LogLevel = level

	return c, nil
}

// FallbackAvailable reports whether the shared credential is fully configured.
func (c Config) FallbackAvailable() bool {
	return c.FallbackEnabled && c.FallbackEndpoint != "" && c.FallbackAPIKey != ""
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid LOG_LEVEL %q", s)
	}
}
