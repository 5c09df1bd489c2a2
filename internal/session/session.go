// Package session issues, validates, and revokes bearer sessions. A token
// is self-describing (signed JWT), but its session id must still resolve in
// the registry, so revocation invalidates an otherwise well-formed token.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTTL = 8 * time.Hour

var (
	// ErrInvalid indicates a token that failed signature or registry checks.
	ErrInvalid = errors.New("session: invalid token")
	// ErrExpired indicates a token or registry record past its expiry. The
	// distinction from ErrInvalid is for logging, not for callers' messages.
	ErrExpired = errors.New("session: expired")
)

// Claims are the self-contained bearer token contents. Identity is the JWT
// subject.
type Claims struct {
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	SessionID   string   `json:"sid"`
	jwt.RegisteredClaims
}

// Identity returns the owning account identity.
func (c *Claims) Identity() string { return c.Subject }

// Record is the minimal registry entry kept independently of the token.
type Record struct {
	ID        string    `json:"id"`
	Identity  string    `json:"identity"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Registry persists session records with per-key atomicity.
type Registry interface {
	Put(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, bool, error)
	Delete(ctx context.Context, id string) error
}

// Manager signs tokens and keeps the revocable session registry in sync.
type Manager struct {
	registry Registry
	secret   []byte
	issuer   string
	ttl      time.Duration
	now      func() time.Time
}

// Option configures Manager.
type Option func(*Manager)

// WithTTL overrides the absolute session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) Option {
	return func(m *Manager) {
		if issuer = strings.TrimSpace(issuer); issuer != "" {
			m.issuer = issuer
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

// NewManager constructs a Manager signing with the given HS256 secret.
func NewManager(registry Registry, secret string, opts ...Option) (*Manager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("session: signing secret is required")
	}
	m := &Manager{
		registry: registry,
		secret:   []byte(secret),
		issuer:   "medivault",
		ttl:      defaultTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL reports the configured absolute session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue creates a registry record and returns the signed bearer token.
func (m *Manager) Issue(ctx context.Context, identity, role string, permissions []string) (string, Record, error) {
	id, err := newSessionID()
	if err != nil {
		return "", Record{}, fmt.Errorf("session: generate id: %w", err)
	}
	now := m.now().UTC()
	rec := Record{
		ID:        id,
		Identity:  identity,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.registry.Put(ctx, rec); err != nil {
		return "", Record{}, fmt.Errorf("session: persist record: %w", err)
	}

	claims := Claims{
		Role:        role,
		Permissions: permissions,
		SessionID:   id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   identity,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(rec.ExpiresAt),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", Record{}, fmt.Errorf("session: sign token: %w", err)
	}
	return signed, rec, nil
}

// Validate verifies the token signature and expiry, then confirms the
// embedded session id is still live in the registry. Both checks must pass.
func (m *Manager) Validate(ctx context.Context, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalid
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalid
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" || strings.TrimSpace(claims.Subject) == "" {
		return nil, ErrInvalid
	}

	rec, found, err := m.registry.Get(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session: registry lookup: %w", err)
	}
	if !found || rec.Identity != claims.Subject {
		return nil, ErrInvalid
	}
	if m.now().After(rec.ExpiresAt) {
		return nil, ErrExpired
	}
	return claims, nil
}

// Revoke removes the session record. Revoking an unknown or already-revoked
// session is a no-op.
func (m *Manager) Revoke(ctx context.Context, sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return nil
	}
	return m.registry.Delete(ctx, sessionID)
}

func newSessionID() (string, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b[:]), nil
}
