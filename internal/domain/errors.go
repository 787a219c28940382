package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRequest     = errors.New("invalid reading request")
	ErrEmptyQuestion      = errors.New("question must not be empty")
	ErrEmptySpread        = errors.New("spread must have at least one position")
	ErrCardCountMismatch  = errors.New("drawn cards do not match spread positions")
	ErrDeckTooSmall       = errors.New("spread needs more cards than the deck holds")
	ErrSpreadNotFound     = errors.New("spread not found")
	ErrCardNotFound       = errors.New("card not found")
	ErrReadingNotFound    = errors.New("reading not found")
	ErrMissingCredentials = errors.New("API key is not configured")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrUpstreamLLM        = errors.New("upstream LLM failure")
	ErrNoUpstreamStream   = errors.New("upstream returned no response stream")
	ErrNoContentReceived  = errors.New("no interpretation content received; the gateway likely closed the connection early")
)

// UpstreamError is a non-2xx answer from the chat-completions endpoint.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstreamLLM }

// RateLimitError carries the hourly cap so handlers can report it.
type RateLimitError struct {
	Limit int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many requests: at most %d interpretations per hour with the shared key; configure your own API key to lift the limit", e.Limit)
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }
