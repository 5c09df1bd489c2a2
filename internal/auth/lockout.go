package auth

import (
	"context"
	"fmt"
	"time"
)

// LockoutPolicy configures the per-account lockout state machine.
type LockoutPolicy struct {
	MaxFailures int
	Duration    time.Duration
}

// DefaultLockoutPolicy locks an account for 30 minutes after 5 consecutive
// failed verifications.
var DefaultLockoutPolicy = LockoutPolicy{MaxFailures: 5, Duration: 30 * time.Minute}

// lockoutManager drives the unlocked/locked state machine for one account
// at a time. State lives on the account row; every transition is a single
// atomic write through the credential store.
type lockoutManager struct {
	creds  CredentialStore
	policy LockoutPolicy
	now    func() time.Time
}

// check reports whether the account is under an active lockout. An expired
// lock is treated as unlocked: the counter is reset in the store and on the
// in-memory account before the caller proceeds.
func (m *lockoutManager) check(ctx context.Context, a *Account) (bool, error) {
	if a.LockedUntil == nil {
		return false, nil
	}
	if m.now().Before(*a.LockedUntil) {
		return true, nil
	}
	if err := m.creds.ResetFailureState(ctx, a.Identity); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	return false, nil
}

// recordFailure increments the consecutive-failure counter and transitions
// to locked once the policy maximum is reached. The increment happens in
// the store, not on the copy read earlier, so concurrent failures for the
// same account cannot lose updates. Returns whether the account is locked
// after this failure.
func (m *lockoutManager) recordFailure(ctx context.Context, a *Account) (bool, error) {
	until := m.now().UTC().Add(m.policy.Duration)
	failures, lockedUntil, err := m.creds.IncrementFailures(ctx, a.Identity, m.policy.MaxFailures, until)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	a.FailedAttempts = failures
	a.LockedUntil = lockedUntil
	return lockedUntil != nil && !m.now().After(*lockedUntil), nil
}

// recordSuccess resets the failure counter after a successful verification.
func (m *lockoutManager) recordSuccess(ctx context.Context, a *Account) error {
	if a.FailedAttempts == 0 && a.LockedUntil == nil {
		return nil
	}
	if err := m.creds.ResetFailureState(ctx, a.Identity); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	return nil
}
