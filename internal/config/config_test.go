package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "ENABLE_FALLBACK_LLM", "FALLBACK_LLM_ENDPOINT", "FALLBACK_LLM_KEY",
		"FALLBACK_LLM_MODEL", "RATE_LIMIT_PER_HOUR", "RATE_LIMIT_BACKEND", "LLM_TEMPERATURE", "LLM_MAX_TOKENS",
		"UPSTREAM_TIMEOUT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.HTTPAddr != ":8080" || c.FallbackModel != "gpt-4o-mini" || c.RateLimitPerHour != 10 {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.RateLimitBackend != BackendMemory || c.LogLevel != slog.LevelInfo {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.Temperature != nil || c.MaxTokens != nil || c.UpstreamTimeout != 0 {
		t.Errorf("optional settings should be unset: %+v", c)
	}
	if c.FallbackAvailable() {
		t.Error("fallback should be unavailable by default")
	}
}

func TestLoad_Fallback(t *testing.T) {
	t.Setenv("ENABLE_FALLBACK_LLM", "true")
	t.Setenv("FALLBACK_LLM_ENDPOINT", "https://api.example.com/v1")
	t.Setenv("FALLBACK_LLM_KEY", "sk-fallback")
	t.Setenv("RATE_LIMIT_PER_HOUR", "3")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("LLM_MAX_TOKENS", "2000")
	t.Setenv("UPSTREAM_TIMEOUT", "90s")
	t.Setenv("RATE_LIMIT_BACKEND", "Redis")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !c.FallbackAvailable() || c.RateLimitPerHour != 3 {
		t.Errorf("unexpected config %+v", c)
	}
	if c.Temperature == nil || *c.Temperature != 0.7 || c.MaxTokens == nil || *c.MaxTokens != 2000 {
		t.Errorf("unexpected sampling config %+v", c)
	}
	if c.UpstreamTimeout != 90*time.Second || c.RateLimitBackend != BackendRedis {
		t.Errorf("unexpected config %+v", c)
	}
}

func TestLoad_EnableFlagIsExact(t *testing.T) {
	t.Setenv("ENABLE_FALLBACK_LLM", "yes")
	t.Setenv("FALLBACK_LLM_ENDPOINT", "https://x")
	t.Setenv("FALLBACK_LLM_KEY", "k")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.FallbackAvailable() {
		t.Error("only the literal value true enables the fallback")
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"RATE_LIMIT_PER_HOUR": "ten",
		"RATE_LIMIT_BACKEND":  "etcd",
		"LLM_TEMPERATURE":     "warm",
		"LLM_MAX_TOKENS":      "-1",
		"UPSTREAM_TIMEOUT":    "soon",
		"LOG_LEVEL":           "loud",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(); err == nil || !strings.Contains(err.Error(), key) {
				t.Fatalf("Load() error = %v, want mention of %s", err, key)
			}
		})
	}
}

func TestLoadSettings_DefaultWhenMissing(t *testing.T) {
	s, err := LoadSettings(t.TempDir())
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if s.Endpoint != DefaultEndpoint || s.Model != DefaultModel || s.RelayURL != DefaultRelayURL || s.HasAPIKey() {
		t.Errorf("unexpected defaults %+v", s.Redacted())
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".tarot")
	s := DefaultSettings()
	if err := s.Set("apiKey", " sk-1234567890 "); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("relay_url", "https://relay.example.com/"); err != nil {
		t.Fatal(err)
	}
	if err := s.Set("colour", "blue"); err == nil {
		t.Error("expected unknown key error")
	}
	if err := SaveSettings(dir, s); err != nil {
		t.Fatalf("SaveSettings() error = %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "settings.json"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("settings mode = %v, want 0600", info.Mode().Perm())
	}

	got, err := LoadSettings(dir)
	if err != nil {
		t.Fatalf("LoadSettings() error = %v", err)
	}
	if got.APIKey != "sk-1234567890" || got.RelayURL != "https://relay.example.com" {
		t.Errorf("unexpected settings %+v", got.Redacted())
	}
	if cfg := got.APIConfig(); cfg.Endpoint != DefaultEndpoint || cfg.Model != DefaultModel {
		t.Errorf("unexpected api config %v", cfg)
	}
	if r := got.Redacted(); strings.Contains(r.APIKey, "567890") {
		t.Errorf("redacted key leaks: %s", r.APIKey)
	}
}

func TestLoadSettings_InvalidJSON(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte(`{not json}`), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSettings(dir); err == nil {
		t.Fatal("LoadSettings() expected error, got nil")
	}
}
