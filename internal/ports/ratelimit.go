package ports

import "context"

// RateLimiter throttles use of the shared fallback credential per client identity.
type RateLimiter interface {
	// Allow consumes one request for identity if the window has room.
	Allow(ctx context.Context, identity string) (bool, error)
	// Limit is the configured number of requests per window.
	Limit() int
}
