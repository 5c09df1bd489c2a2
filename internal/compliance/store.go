package compliance

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a violation id does not resolve.
var ErrNotFound = errors.New("compliance: violation not found")

// ListQuery narrows List. Zero values mean "any".
type ListQuery struct {
	Actor  string
	Status Status
	Limit  int
}

// Store persists violations.
type Store interface {
	Create(ctx context.Context, v *Violation) error
	// HasOpenSince reports whether an open violation of the given type for
	// the actor was raised at or after the given time. Used to suppress
	// duplicate findings.
	HasOpenSince(ctx context.Context, actor string, t ViolationType, since time.Time) (bool, error)
	List(ctx context.Context, q ListQuery) ([]Violation, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}
