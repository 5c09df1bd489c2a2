package audit

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemory implements Store with in-process concurrency safety. Used by
// tests and single-node development; production uses the PostgreSQL store.
type InMemory struct {
	mu     sync.RWMutex
	events []Event
}

var _ Store = (*InMemory)(nil)

// NewInMemory creates an empty audit store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

func (s *InMemory) CountByActor(ctx context.Context, actor string, q CountQuery) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for i := range s.events {
		if matches(&s.events[i], actor, q) {
			count++
		}
	}
	return count, nil
}

func (s *InMemory) OriginsByActor(ctx context.Context, actor string, since time.Time, excludeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var origins []string
	for i := range s.events {
		e := &s.events[i]
		if e.Actor != actor || e.Origin == "" || e.ID == excludeID {
			continue
		}
		if e.OccurredAt.Before(since) {
			continue
		}
		if _, ok := seen[e.Origin]; ok {
			continue
		}
		seen[e.Origin] = struct{}{}
		origins = append(origins, e.Origin)
	}
	return origins, nil
}

func (s *InMemory) ListByActor(ctx context.Context, actor string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for i := range s.events {
		if s.events[i].Actor == actor {
			out = append(out, s.events[i])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matches(e *Event, actor string, q CountQuery) bool {
	if e.Actor != actor {
		return false
	}
	if q.Type != "" && e.Type != q.Type {
		return false
	}
	if q.Success != nil && e.Success != *q.Success {
		return false
	}
	if !q.Since.IsZero() && e.OccurredAt.Before(q.Since) {
		return false
	}
	return true
}
