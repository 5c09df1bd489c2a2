package session

import (
	"context"
	"sync"
	"time"
)

// InMemoryRegistry implements Registry for tests and single-node
// development.
type InMemoryRegistry struct {
	mu   sync.RWMutex
	recs map[string]Record
	now  func() time.Time
}

var _ Registry = (*InMemoryRegistry)(nil)

// NewInMemoryRegistry creates an empty registry. A nil clock defaults to
// time.Now.
func NewInMemoryRegistry(clock func() time.Time) *InMemoryRegistry {
	if clock == nil {
		clock = time.Now
	}
	return &InMemoryRegistry{recs: make(map[string]Record), now: clock}
}

func (r *InMemoryRegistry) Put(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.ID] = rec
	return nil
}

func (r *InMemoryRegistry) Get(ctx context.Context, id string) (Record, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[id]
	if !ok || r.now().After(rec.ExpiresAt) {
		return Record{}, false, nil
	}
	return rec, true, nil
}

func (r *InMemoryRegistry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.recs, id)
	return nil
}
