package auth

import (
	"context"
	"time"
)

// CredentialStore is the boundary to the external user directory. Failure
// state updates are single-row writes; the store only needs per-key
// atomicity.
type CredentialStore interface {
	FindByIdentity(ctx context.Context, identity string) (*Account, error)
	Create(ctx context.Context, a *Account) error
	// IncrementFailures bumps the consecutive-failure counter by one in a
	// single atomic write and, when the new count reaches threshold, sets
	// the lock expiry in the same write. Returns the state after the write
	// so concurrent failures each observe a distinct count.
	IncrementFailures(ctx context.Context, identity string, threshold int, lockUntil time.Time) (int, *time.Time, error)
	// ResetFailureState clears the counter and any lock expiry.
	ResetFailureState(ctx context.Context, identity string) error
	SetMFA(ctx context.Context, identity string, enabled bool, secret string) error
}
