// Package ratelimit holds fixed-window counters for the shared fallback
// credential. Windows start at a client's first request and last one hour by
// default; bursts across a window boundary are accepted.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// DefaultWindow is the length of one counting window.
const DefaultWindow = time.Hour

type record struct {
	count   int
	resetAt time.Time
}

// Memory is a single-process fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	now     func() time.Time
	records map[string]*record
}

// Option configures a Memory limiter.
type Option func(*Memory)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// WithWindow overrides DefaultWindow.
func WithWindow(d time.Duration) Option {
	return func(m *Memory) { m.window = d }
}

func NewMemory(limit int, opts ...Option) *Memory {
	m := &Memory{
		limit:   limit,
		window:  DefaultWindow,
		now:     time.Now,
		records: make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Allow consumes one slot for identity. A rejected call leaves the record untouched.
func (m *Memory) Allow(_ context.Context, identity string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec, ok := m.records[identity]
	if !ok || now.After(rec.resetAt) {
		m.records[identity] = &record{count: 1, resetAt: now.Add(m.window)}
		return true, nil
	}
	if rec.count >= m.limit {
		return false, nil
	}
	rec.count++
	return true, nil
}

func (m *Memory) Limit() int { return m.limit }

// Sweep drops expired records and reports how many were removed.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, rec := range m.records {
		if now.After(rec.resetAt) {
			delete(m.records, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (m *Memory) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
