package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/J-York/TarotWhisper/internal/app"
	"github.com/J-York/TarotWhisper/internal/domain"
	"github.com/J-York/TarotWhisper/internal/ports"
	"github.com/J-York/TarotWhisper/internal/stream"
)

const headerUsingFallback = "X-Using-Fallback"

type Handler struct {
	svc    *app.InterpretService
	decks  ports.DeckStore
	logger *slog.Logger
}

func NewHandler(svc *app.InterpretService, decks ports.DeckStore, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, decks: decks, logger: logger}
}

func (h *Handler) Register(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)

	api := e.Group("/api")
	api.POST("/interpret", h.Interpret)
	api.GET("/config", h.Config)
	api.GET("/spreads", h.ListSpreads)
	api.GET("/spreads/:id", h.GetSpread)
	api.GET("/cards", h.ListCards)
}

func (h *Handler) Healthz(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

func (h *Handler) Config(c echo.Context) error {
	return c.JSON(http.StatusOK, toConfigResponse(h.svc.Info()))
}

func (h *Handler) ListSpreads(c echo.Context) error {
	spreads, err := h.decks.Spreads(c.Request().Context())
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, spreads)
}

func (h *Handler) GetSpread(c echo.Context) error {
	spread, err := h.decks.Spread(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, spread)
}

func (h *Handler) ListCards(c echo.Context) error {
	cards, err := h.decks.Cards(c.Request().Context())
	if err != nil {
		return h.mapError(c, err)
	}
	return c.JSON(http.StatusOK, cards)
}

// Interpret relays one reading to the upstream model and streams the
// normalized answer back as server-sent events.
func (h *Handler) Interpret(c echo.Context) error {
	var req domain.ReadingRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid JSON body"})
	}

	ctx := c.Request().Context()
	st, err := h.svc.Interpret(ctx, req, ClientIdentity(c.Request()))
	if err != nil {
		return h.mapError(c, err)
	}
	defer st.Body.Close()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream; charset=utf-8")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	if st.UsingFallback {
		res.Header().Set(headerUsingFallback, "true")
	}
	res.WriteHeader(http.StatusOK)
	res.Flush()

	if err := stream.Normalize(st.Body, st.ContentType, stream.NewSSEWriter(res)); err != nil {
		h.logger.WarnContext(ctx, "interpretation stream ended early",
			"request_id", c.Get("request_id"),
			"error", err,
		)
	}
	return nil
}

func (h *Handler) mapError(c echo.Context, err error) error {
	requestID, _ := c.Get("request_id").(string)

	var rl *domain.RateLimitError
	var up *domain.UpstreamError

	switch {
	case errors.As(err, &rl):
		return c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: rl.Error()})
	case errors.Is(err, domain.ErrMissingCredentials), errors.Is(err, domain.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrSpreadNotFound), errors.Is(err, domain.ErrCardNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	case errors.As(err, &up):
		h.logger.Error("upstream rejected request", "request_id", requestID, "status", up.Status)
		status := up.Status
		if status < 400 {
			status = http.StatusBadGateway
		}
		return c.JSON(status, ErrorResponse{Error: "upstream API request failed", Details: up.Body})
	case errors.Is(err, domain.ErrNoUpstreamStream):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrUpstreamLLM):
		h.logger.Error("upstream LLM failure", "request_id", requestID, "error", err)
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream LLM failure"})
	default:
		h.logger.Error("internal error", "request_id", requestID, "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}
