package compliance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryStore implements Store for tests and single-node development.
type InMemoryStore struct {
	mu         sync.RWMutex
	violations []Violation
}

var _ Store = (*InMemoryStore)(nil)

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Create(ctx context.Context, v *Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.violations = append(s.violations, *v)
	return nil
}

func (s *InMemoryStore) HasOpenSince(ctx context.Context, actor string, t ViolationType, since time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.violations {
		v := &s.violations[i]
		if v.Actor == actor && v.Type == t && v.Status == StatusOpen && !v.OccurredAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

func (s *InMemoryStore) List(ctx context.Context, q ListQuery) ([]Violation, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Violation
	for i := range s.violations {
		v := s.violations[i]
		if q.Actor != "" && v.Actor != q.Actor {
			continue
		}
		if q.Status != "" && v.Status != q.Status {
			continue
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.violations {
		if s.violations[i].ID == id {
			s.violations[i].Status = status
			return nil
		}
	}
	return ErrNotFound
}
