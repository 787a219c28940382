package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/J-York/TarotWhisper/internal/adapters/decks"
	httpadapter "github.com/J-York/TarotWhisper/internal/adapters/http"
	"github.com/J-York/TarotWhisper/internal/adapters/llm/openai"
	"github.com/J-York/TarotWhisper/internal/app"
	"github.com/J-York/TarotWhisper/internal/config"
	"github.com/J-York/TarotWhisper/internal/ports"
	"github.com/J-York/TarotWhisper/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	limiter, closeLimiter, err := newLimiter(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to set up rate limiter", "error", err)
		os.Exit(1)
	}
	defer closeLimiter()

	var llmOpts []openai.Option
	if cfg.Temperature != nil {
		llmOpts = append(llmOpts, openai.WithTemperature(*cfg.Temperature))
	}
	if cfg.MaxTokens != nil {
		llmOpts = append(llmOpts, openai.WithMaxTokens(*cfg.MaxTokens))
	}
	llmClient := openai.NewClient(&http.Client{Timeout: cfg.UpstreamTimeout}, logger, llmOpts...)

	svc := app.NewInterpretService(llmClient, limiter, app.FallbackConfig{
		Enabled:  cfg.FallbackEnabled,
		Endpoint: cfg.FallbackEndpoint,
		APIKey:   cfg.FallbackAPIKey,
		Model:    cfg.FallbackModel,
	}, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = httpadapter.ErrorHandler(logger)

	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(httpadapter.RequestIDMiddleware())
	e.Use(httpadapter.LoggingMiddleware(logger))

	handler := httpadapter.NewHandler(svc, decks.NewEmbeddedStore(), logger)
	handler.Register(e)

	go func() {
		logger.Info("starting server",
			"addr", cfg.HTTPAddr,
			"fallback_available", cfg.FallbackAvailable(),
			"rate_limit_per_hour", cfg.RateLimitPerHour,
			"rate_limit_backend", cfg.RateLimitBackend,
		)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

func newLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.RateLimiter, func(), error) {
	if cfg.RateLimitBackend == config.BackendRedis {
		rl, err := ratelimit.NewRedis(cfg.RedisURL, cfg.RateLimitPerHour)
		if err != nil {
			return nil, nil, err
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rl.Ping(pingCtx); err != nil {
			_ = rl.Close()
			return nil, nil, err
		}
		return rl, func() { _ = rl.Close() }, nil
	}

	mem := ratelimit.NewMemory(cfg.RateLimitPerHour)
	go mem.RunSweeper(ctx, 10*time.Minute)
	logger.Debug("using in-memory rate limiter")
	return mem, func() {}, nil
}
