// Package ratelimit bounds login attempts per key (identity or network
// origin) within a fixed window anchored at the first attempt seen.
package ratelimit

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indicates the counter store could not be reached. Callers
// on the authentication path must treat this as a denial (fail closed).
var ErrUnavailable = errors.New("ratelimit: counter store unavailable")

// Decision reports the outcome of a single check-and-increment.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter records an attempt for the key and reports whether the attempt is
// within the limit. The read and the increment are a single atomic
// operation so concurrent requests cannot both observe "under threshold".
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) (Decision, error)
}

// Login keyspaces. A single origin flooding many identities is bounded
// independently of any per-account lockout.
const (
	KeyspaceIdentity = "id"
	KeyspaceOrigin   = "ip"
)

// Key builds the namespaced counter key for a keyspace and value.
func Key(keyspace, value string) string {
	return "ratelimit:" + keyspace + ":" + value
}
