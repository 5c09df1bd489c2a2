// Package redis opens the shared Redis client backing the session registry,
// attempt counters, and MFA challenge store.
package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Open creates a client and verifies connectivity before returning it.
func Open(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
