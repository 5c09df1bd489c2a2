package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter implements Limiter on Redis using INCR with an expiry set on
// the first attempt in a window. INCR is atomic per key, which gives the
// indivisible check-and-increment the login path requires across instances.
type RedisLimiter struct {
	client redis.UniversalClient
	window time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.UniversalClient, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) (Decision, error) {
	count, err := l.client.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if count == 1 {
		// First attempt anchors the window; later attempts never extend it.
		if err := l.client.Expire(ctx, key, l.window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}
	if count > int64(limit) {
		ttl, err := l.client.TTL(ctx, key).Result()
		switch {
		case err != nil:
			ttl = l.window
		case ttl < 0:
			// A crash between INCR and EXPIRE leaves the counter with no
			// TTL; re-arm it so the denial is bounded by one window.
			_ = l.client.Expire(ctx, key, l.window).Err()
			ttl = l.window
		}
		return Decision{Allowed: false, RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true, Remaining: limit - int(count)}, nil
}
