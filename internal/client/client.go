// Package client talks to the relay from the terminal client: it submits
// readings, consumes the canonical event stream and queries relay and
// provider metadata.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/J-York/TarotWhisper/internal/domain"
	"github.com/J-York/TarotWhisper/internal/stream"
)

// DefaultIdleTimeout ends a stream that has produced content but then gone
// quiet without a DONE marker.
const DefaultIdleTimeout = 8 * time.Second

// DefaultFirstContentTimeout bounds the wait for the first content fragment.
const DefaultFirstContentTimeout = 60 * time.Second

const maxErrorBody = 64 << 10

// HTTPError is a non-2xx answer from the relay or a provider.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	var payload struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	if json.Unmarshal([]byte(e.Body), &payload) == nil && payload.Error != "" {
		if payload.Details != "" {
			return fmt.Sprintf("%s (status %d): %s", payload.Error, e.Status, payload.Details)
		}
		return fmt.Sprintf("%s (status %d)", payload.Error, e.Status)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.Status, strings.TrimSpace(e.Body))
}

// Result is the outcome of one interpretation stream.
type Result struct {
	Text          string
	UsingFallback bool
	// StreamError is the last {"error": ...} frame seen, if any.
	StreamError string
	// IdleTimedOut is set when the stream was abandoned after going quiet.
	IdleTimedOut bool
}

// Client is a relay client.
type Client struct {
	httpClient          *http.Client
	baseURL             string
	idleTimeout         time.Duration
	firstContentTimeout time.Duration
	logger              *slog.Logger
}

type Option func(*Client)

// WithIdleTimeout overrides DefaultIdleTimeout.
func WithIdleTimeout(d time.Duration) Option {
	return func(c *Client) { c.idleTimeout = d }
}

// WithFirstContentTimeout overrides DefaultFirstContentTimeout.
func WithFirstContentTimeout(d time.Duration) Option {
	return func(c *Client) { c.firstContentTimeout = d }
}

func New(httpClient *http.Client, baseURL string, logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		httpClient:          httpClient,
		baseURL:             strings.TrimRight(baseURL, "/"),
		idleTimeout:         DefaultIdleTimeout,
		firstContentTimeout: DefaultFirstContentTimeout,
		logger:              logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Interpret submits req to the relay and consumes the stream. onDelta, if
// non-nil, sees each content fragment in arrival order. Partial text is
// returned alongside any error.
func (c *Client) Interpret(ctx context.Context, req domain.ReadingRequest, onDelta func(string)) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("marshal request: %w", err)
	}

	// Cancelling on return unblocks the reader goroutine if the stream is
	// abandoned while a read is pending.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/interpret", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("call relay: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Result{}, &HTTPError{Status: resp.StatusCode, Body: string(raw)}
	}

	res := Result{UsingFallback: resp.Header.Get("X-Using-Fallback") == "true"}
	readErr := c.consume(ctx, resp.Body, &res, onDelta)

	if readErr != nil {
		return res, fmt.Errorf("read stream: %w", readErr)
	}
	if res.Text == "" && res.StreamError == "" {
		return res, domain.ErrNoContentReceived
	}
	return res, nil
}

type lineOrErr struct {
	line []byte
	err  error
}

// consume reads the event stream until DONE, EOF, a read error or an idle
// limit. Lines are produced by a goroutine so a stalled body can be
// abandoned; the caller closes the body which ends the goroutine.
func (c *Client) consume(ctx context.Context, body io.Reader, res *Result, onDelta func(string)) error {
	lines := make(chan lineOrErr)
	go func() {
		defer close(lines)
		r := bufio.NewReader(body)
		for {
			line, err := r.ReadBytes('\n')
			if len(line) > 0 && (err == nil || errors.Is(err, io.EOF)) {
				select {
				case lines <- lineOrErr{line: line}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case lines <- lineOrErr{err: err}:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	var text strings.Builder
	defer func() { res.Text = text.String() }()

	// Until the first fragment arrives the longer first-content limit applies.
	idle := time.NewTimer(c.firstContentTimeout)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle.C:
			res.IdleTimedOut = true
			c.logger.Debug("stream idle, finishing early", "received", text.Len())
			return nil
		case item, ok := <-lines:
			if !ok {
				return nil
			}
			if item.err != nil {
				return item.err
			}
			payload, isData := stream.DataPayload(item.line)
			if !isData || len(payload) == 0 {
				continue
			}
			if stream.IsDone(payload) {
				return nil
			}
			chunk, err := stream.ParseChunk(payload)
			if err != nil {
				continue
			}
			if chunk.HasContent() {
				text.WriteString(chunk.Text)
				if onDelta != nil {
					onDelta(chunk.Text)
				}
				idle.Reset(c.idleTimeout)
			}
			if chunk.Err != "" {
				res.StreamError = chunk.Err
			}
		}
	}
}
