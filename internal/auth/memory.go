package auth

import (
	"context"
	"strings"
	"sync"
	"time"
)

// InMemoryStore implements CredentialStore with in-process concurrency
// safety. Used by tests and single-node development.
type InMemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*Account
}

var _ CredentialStore = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{accounts: make(map[string]*Account)}
}

func (s *InMemoryStore) FindByIdentity(ctx context.Context, identity string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.accounts[normalize(identity)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *InMemoryStore) Create(ctx context.Context, a *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := normalize(a.Identity)
	if _, ok := s.accounts[key]; ok {
		return ErrAlreadyExists
	}
	now := time.Now().UTC()
	cp := *a
	cp.Identity = key
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.accounts[key] = &cp
	return nil
}

func (s *InMemoryStore) IncrementFailures(ctx context.Context, identity string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[normalize(identity)]
	if !ok {
		return 0, nil, ErrNotFound
	}
	a.FailedAttempts++
	if a.FailedAttempts >= threshold {
		until := lockUntil
		a.LockedUntil = &until
	}
	a.UpdatedAt = time.Now().UTC()
	var lockedUntil *time.Time
	if a.LockedUntil != nil {
		until := *a.LockedUntil
		lockedUntil = &until
	}
	return a.FailedAttempts, lockedUntil, nil
}

func (s *InMemoryStore) ResetFailureState(ctx context.Context, identity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[normalize(identity)]
	if !ok {
		return ErrNotFound
	}
	a.FailedAttempts = 0
	a.LockedUntil = nil
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *InMemoryStore) SetMFA(ctx context.Context, identity string, enabled bool, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[normalize(identity)]
	if !ok {
		return ErrNotFound
	}
	a.MFAEnabled = enabled
	a.MFASecret = secret
	a.UpdatedAt = time.Now().UTC()
	return nil
}

func normalize(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}
