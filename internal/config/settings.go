package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/J-York/TarotWhisper/internal/domain"
)

const settingsFile = "settings.json"

const (
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	DefaultModel    = "gpt-4o-mini"
	DefaultRelayURL = "http://localhost:8080"
)

// Settings are the terminal client's saved API settings.
type Settings struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey,omitempty"`
	Model    string `json:"model"`
	RelayURL string `json:"relay_url"`
}

func DefaultSettings() *Settings {
	return &Settings{
		Endpoint: DefaultEndpoint,
		Model:    DefaultModel,
		RelayURL: DefaultRelayURL,
	}
}

// APIConfig returns the per-request credentials sent to the relay.
func (s *Settings) APIConfig() domain.ApiConfig {
	return domain.ApiConfig{Endpoint: s.Endpoint, APIKey: s.APIKey, Model: s.Model}
}

// HasAPIKey reports whether a personal key is configured.
func (s *Settings) HasAPIKey() bool {
	return strings.TrimSpace(s.APIKey) != ""
}

// LoadSettings reads baseDir/settings.json. A missing file yields defaults;
// empty fields in the file fall back to defaults too.
func LoadSettings(baseDir string) (*Settings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(filepath.Join(baseDir, settingsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}

	var file Settings
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", settingsFile, err)
	}
	if file.Endpoint != "" {
		s.Endpoint = file.Endpoint
	}
	if file.Model != "" {
		s.Model = file.Model
	}
	if file.RelayURL != "" {
		s.RelayURL = file.RelayURL
	}
	s.APIKey = file.APIKey
	return s, nil
}

// SaveSettings writes s to baseDir/settings.json, readable by the owner only.
func SaveSettings(baseDir string, s *Settings) error {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(baseDir, settingsFile), data, 0600)
}

// Set updates one field by its JSON name.
func (s *Settings) Set(key, value string) error {
	switch key {
	case "endpoint":
		s.Endpoint = strings.TrimSpace(value)
	case "apiKey", "api_key":
		s.APIKey = strings.TrimSpace(value)
	case "model":
		s.Model = strings.TrimSpace(value)
	case "relay_url":
		s.RelayURL = strings.TrimRight(strings.TrimSpace(value), "/")
	default:
		return fmt.Errorf("unknown setting %q (want endpoint, apiKey, model or relay_url)", key)
	}
	return nil
}

// Redacted is a copy safe to print.
func (s *Settings) Redacted() Settings {
	out := *s
	if out.APIKey != "" {
		out.APIKey = maskKey(out.APIKey)
	}
	return out
}

func maskKey(k string) string {
	if len(k) <= 8 {
		return "****"
	}
	return k[:3] + "****" + k[len(k)-4:]
}
