// Package stream fan-outs persisted compliance violations to live
// subscribers (the SSE monitoring endpoint).
package stream

import (
	"context"
	"sync"

	"medivault.org/internal/compliance"
)

// Stream delivers each published violation to all active subscribers.
type Stream struct {
	mu   sync.RWMutex
	subs map[int]chan compliance.Violation
	next int
}

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]chan compliance.Violation)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// violations. The channel is closed when the provided context ends.
func (s *Stream) Subscribe(ctx context.Context) <-chan compliance.Violation {
	ch := make(chan compliance.Violation, 16)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fan-outs the violation to all subscribers.
func (s *Stream) Publish(v compliance.Violation) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// Drop when subscriber is slow to avoid blocking the analyzer.
		}
	}
}
