// Package mfa implements the TOTP second factor: short-lived challenge
// tokens bridging password verification and code verification, and secret
// enrollment.
package mfa

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const defaultChallengeTTL = 5 * time.Minute

// ErrChallengeInvalid covers unknown, expired, and already-redeemed
// challenge tokens alike.
var ErrChallengeInvalid = errors.New("mfa: invalid challenge")

// Challenge is the pending state between password and code verification.
type Challenge struct {
	Token     string    `json:"token"`
	Identity  string    `json:"identity"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeStore persists pending challenges. Take must remove the
// challenge so a token redeems at most once.
type ChallengeStore interface {
	Put(ctx context.Context, c Challenge) error
	Take(ctx context.Context, token string) (Challenge, bool, error)
}

// Manager issues and redeems MFA challenges.
type Manager struct {
	store ChallengeStore
	ttl   time.Duration
	now   func() time.Time
}

// Option configures Manager.
type Option func(*Manager)

// WithChallengeTTL overrides the challenge lifetime.
func WithChallengeTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Manager) {
		if fn != nil {
			m.now = fn
		}
	}
}

func NewManager(store ChallengeStore, opts ...Option) *Manager {
	m := &Manager{store: store, ttl: defaultChallengeTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin creates a challenge for an identity that passed password
// verification.
func (m *Manager) Begin(ctx context.Context, identity string) (Challenge, error) {
	var b [24]byte
	if _, err := rand.Read(b[:]); err != nil {
		return Challenge{}, fmt.Errorf("mfa: generate challenge: %w", err)
	}
	c := Challenge{
		Token:     base64.RawURLEncoding.EncodeToString(b[:]),
		Identity:  identity,
		ExpiresAt: m.now().UTC().Add(m.ttl),
	}
	if err := m.store.Put(ctx, c); err != nil {
		return Challenge{}, fmt.Errorf("mfa: persist challenge: %w", err)
	}
	return c, nil
}

// Redeem consumes the challenge token. Expired or unknown tokens fail with
// ErrChallengeInvalid; a redeemed token cannot be redeemed again.
func (m *Manager) Redeem(ctx context.Context, token string) (Challenge, error) {
	if token == "" {
		return Challenge{}, ErrChallengeInvalid
	}
	c, found, err := m.store.Take(ctx, token)
	if err != nil {
		return Challenge{}, fmt.Errorf("mfa: challenge lookup: %w", err)
	}
	if !found || m.now().After(c.ExpiresAt) {
		return Challenge{}, ErrChallengeInvalid
	}
	return c, nil
}

// ValidateCode checks a TOTP code against the account's enrolled secret.
func ValidateCode(code, secret string) bool {
	return totp.Validate(code, secret)
}

// GenerateSecret enrolls a new TOTP secret for an identity.
func GenerateSecret(issuer, identity string) (*otp.Key, error) {
	return totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: identity,
	})
}
