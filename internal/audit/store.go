package audit

import (
	"context"
	"time"
)

// CountQuery narrows CountByActor. Zero values mean "any".
type CountQuery struct {
	Type    EventType
	Success *bool
	Since   time.Time
}

// Store describes the append-only audit sink plus the bounded history reads
// the compliance analyzer needs.
type Store interface {
	Append(ctx context.Context, e *Event) error
	CountByActor(ctx context.Context, actor string, q CountQuery) (int, error)
	// OriginsByActor returns the distinct network origins observed for an
	// actor since the given time, excluding the event identified by
	// excludeID so the event under analysis does not count as history.
	OriginsByActor(ctx context.Context, actor string, since time.Time, excludeID string) ([]string, error)
	ListByActor(ctx context.Context, actor string, limit int) ([]Event, error)
}

// Failure is a success pointer helper for CountQuery.
func Failure() *bool { f := false; return &f }

// Success is a success pointer helper for CountQuery.
func Success() *bool { s := true; return &s }
