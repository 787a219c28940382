package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/J-York/TarotWhisper/internal/domain"
	"github.com/J-York/TarotWhisper/internal/ports"
	"github.com/J-York/TarotWhisper/internal/prompt"
)

// FallbackConfig is the server-operated credential used when a caller sends
// no API key of their own.
type FallbackConfig struct {
	Enabled  bool
	Endpoint string
	APIKey   string
	Model    string
}

// Available reports whether the fallback can actually be used.
func (f FallbackConfig) Available() bool {
	return f.Enabled && f.Endpoint != "" && f.APIKey != ""
}

// ServerInfo is what clients may learn about the relay before reading.
type ServerInfo struct {
	FallbackAvailable bool
	RateLimit         int
}

// Stream is an accepted interpretation: the open upstream body plus how it
// was obtained. The caller must close Body.
type Stream struct {
	Body          io.ReadCloser
	ContentType   string
	UsingFallback bool
}

// InterpretService resolves credentials, throttles fallback use and opens the
// upstream chat stream for a reading.
type InterpretService struct {
	streamer ports.ChatStreamer
	limiter  ports.RateLimiter
	fallback FallbackConfig
	logger   *slog.Logger
}

func NewInterpretService(streamer ports.ChatStreamer, limiter ports.RateLimiter, fallback FallbackConfig, logger *slog.Logger) *InterpretService {
	return &InterpretService{
		streamer: streamer,
		limiter:  limiter,
		fallback: fallback,
		logger:   logger,
	}
}

func (s *InterpretService) Info() ServerInfo {
	return ServerInfo{
		FallbackAvailable: s.fallback.Available(),
		RateLimit:         s.limiter.Limit(),
	}
}

// Interpret opens an upstream stream for req. identity is the caller key used
// for fallback throttling; requests carrying their own key are never counted.
func (s *InterpretService) Interpret(ctx context.Context, req domain.ReadingRequest, identity string) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	cfg, usingFallback, err := s.effectiveConfig(req.APIConfig)
	if err != nil {
		return nil, err
	}

	if usingFallback {
		allowed, err := s.limiter.Allow(ctx, identity)
		if err != nil {
			return nil, fmt.Errorf("rate limit check: %w", err)
		}
		if !allowed {
			s.logger.WarnContext(ctx, "fallback rate limit hit", "identity", identity, "limit", s.limiter.Limit())
			return nil, &domain.RateLimitError{Limit: s.limiter.Limit()}
		}
	}

	text, err := prompt.BuildInterpretation(req.Question, req.Spread, req.DrawnCards)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidRequest, err)
	}

	s.logger.InfoContext(ctx, "opening interpretation stream",
		"spread", req.Spread.ID,
		"cards", len(req.DrawnCards),
		"using_fallback", usingFallback,
		"api", cfg,
	)

	cs, err := s.streamer.StreamChat(ctx, ports.ChatRequest{Config: cfg, Prompt: text})
	if err != nil {
		return nil, err
	}

	return &Stream{
		Body:          cs.Body,
		ContentType:   cs.ContentType,
		UsingFallback: usingFallback,
	}, nil
}

func (s *InterpretService) effectiveConfig(user domain.ApiConfig) (domain.ApiConfig, bool, error) {
	// Only an empty key selects the fallback; whitespace is sent upstream as is.
	if user.APIKey != "" {
		if strings.TrimSpace(user.Endpoint) == "" {
			return domain.ApiConfig{}, false, fmt.Errorf("%w: apiConfig.endpoint is required", domain.ErrInvalidRequest)
		}
		return user, false, nil
	}
	if s.fallback.Available() {
		return domain.ApiConfig{
			Endpoint: s.fallback.Endpoint,
			APIKey:   s.fallback.APIKey,
			Model:    s.fallback.Model,
		}, true, nil
	}
	return domain.ApiConfig{}, false, domain.ErrMissingCredentials
}
