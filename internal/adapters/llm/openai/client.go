package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/J-York/TarotWhisper/internal/domain"
	"github.com/J-York/TarotWhisper/internal/ports"
)

const chatCompletionsPath = "/chat/completions"

// maxErrorBody bounds how much of a non-2xx upstream body is kept.
const maxErrorBody = 64 << 10

// Client implements ports.ChatStreamer against any OpenAI-compatible
// chat-completions endpoint. Endpoint and key come with each request.
type Client struct {
	httpClient  *http.Client
	temperature *float64
	maxTokens   *int
	logger      *slog.Logger
}

// Option tunes the request body sent upstream.
type Option func(*Client)

// WithTemperature sends temperature with every request.
func WithTemperature(t float64) Option {
	return func(c *Client) { c.temperature = &t }
}

// WithMaxTokens sends max_tokens with every request.
func WithMaxTokens(n int) Option {
	return func(c *Client) { c.maxTokens = &n }
}

func NewClient(httpClient *http.Client, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{httpClient: httpClient, logger: logger}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

// NormalizeEndpoint trims the configured endpoint and makes sure it ends in
// exactly one /chat/completions segment.
func NormalizeEndpoint(endpoint string) string {
	u := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if strings.HasSuffix(u, chatCompletionsPath) {
		return u
	}
	return u + chatCompletionsPath
}

func (c *Client) StreamChat(ctx context.Context, in ports.ChatRequest) (*ports.ChatStream, error) {
	reqBody := chatRequest{
		Model:       in.Config.Model,
		Messages:    []chatMessage{{Role: "user", Content: in.Prompt}},
		Stream:      true,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := NormalizeEndpoint(in.Config.Endpoint)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrUpstreamLLM, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Authorization", "Bearer "+in.Config.APIKey)

	c.logger.DebugContext(ctx, "calling upstream", "url", url, "model", in.Config.Model)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: http call: %w", domain.ErrUpstreamLLM, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.UpstreamError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, domain.ErrNoUpstreamStream
	}

	return &ports.ChatStream{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
