package ratelimit

import (
	"context"
	"sync"
	"time"
)

type counter struct {
	count       int
	windowStart time.Time
}

// InMemory implements Limiter for tests and single-node development. The
// production deployment uses RedisLimiter so counters are shared across
// instances.
type InMemory struct {
	mu       sync.Mutex
	counters map[string]*counter
	window   time.Duration
	now      func() time.Time
}

var _ Limiter = (*InMemory)(nil)

// NewInMemory creates a limiter with the given window. A nil clock defaults
// to time.Now.
func NewInMemory(window time.Duration, clock func() time.Time) *InMemory {
	if clock == nil {
		clock = time.Now
	}
	return &InMemory{
		counters: make(map[string]*counter),
		window:   window,
		now:      clock,
	}
}

func (l *InMemory) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[key]
	if !ok || now.Sub(c.windowStart) >= l.window {
		c = &counter{windowStart: now}
		l.counters[key] = c
	}
	c.count++
	if c.count > limit {
		return Decision{Allowed: false, RetryAfter: l.window - now.Sub(c.windowStart)}, nil
	}
	return Decision{Allowed: true, Remaining: limit - c.count}, nil
}
