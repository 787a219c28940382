package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

// RelayConfig is the relay's public configuration.
type RelayConfig struct {
	FallbackAvailable bool `json:"fallbackAvailable"`
	RateLimit         int  `json:"rateLimit"`
}

// FetchConfig asks the relay whether a shared key is available and at what
// hourly cap.
func (c *Client) FetchConfig(ctx context.Context) (RelayConfig, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/config", nil)
	if err != nil {
		return RelayConfig{}, fmt.Errorf("build request: %w", err)
	}

	var cfg RelayConfig
	if err := c.getJSON(req, &cfg); err != nil {
		return RelayConfig{}, err
	}
	return cfg, nil
}

// Model is one entry of an OpenAI-compatible /models listing.
type Model struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

type modelsResponse struct {
	Object string  `json:"object"`
	Data   []Model `json:"data"`
}

// ListModels queries the provider directly for its models. endpoint is the
// chat-completions URL from the user's settings.
func (c *Client) ListModels(ctx context.Context, endpoint, apiKey string) ([]Model, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ModelsURL(endpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)

	var resp modelsResponse
	if err := c.getJSON(req, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

var versionSegment = regexp.MustCompile(`^v\d+$`)

// ModelsURL derives the /models URL from a chat endpoint by keeping the path
// up to its version segment (or the first segment when there is none).
// Unparseable input is used as the base unchanged.
func ModelsURL(endpoint string) string {
	return baseURL(strings.TrimSpace(endpoint)) + "/models"
}

func baseURL(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return strings.TrimRight(endpoint, "/")
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	keep := 0
	for i, p := range parts {
		if versionSegment.MatchString(p) {
			keep = i + 1
			break
		}
	}
	if keep == 0 && len(parts) > 0 {
		keep = 1
	}

	u.Path = ""
	if keep > 0 {
		u.Path = "/" + strings.Join(parts[:keep], "/")
	}
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimRight(u.String(), "/")
}

func (c *Client) getJSON(req *http.Request, v any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
