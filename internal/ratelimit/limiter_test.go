package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestInMemoryFixedWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := NewInMemory(15*time.Minute, func() time.Time { return now })
	ctx := context.Background()
	key := Key(KeyspaceIdentity, "doc@clinic.example")

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, key, 5)
		if err != nil {
			t.Fatalf("allow %d: %v", i+1, err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d must be allowed", i+1)
		}
		if d.Remaining != 5-(i+1) {
			t.Fatalf("attempt %d: remaining=%d", i+1, d.Remaining)
		}
	}

	d, err := l.Allow(ctx, key, 5)
	if err != nil {
		t.Fatal(err)
	}
	if d.Allowed {
		t.Fatal("attempt 6 must be denied")
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 15*time.Minute {
		t.Fatalf("unexpected RetryAfter %v", d.RetryAfter)
	}
}

func TestInMemoryWindowReset(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := NewInMemory(15*time.Minute, func() time.Time { return now })
	ctx := context.Background()
	key := Key(KeyspaceOrigin, "198.51.100.9")

	for i := 0; i < 3; i++ {
		if _, err := l.Allow(ctx, key, 2); err != nil {
			t.Fatal(err)
		}
	}
	now = now.Add(15 * time.Minute)
	d, err := l.Allow(ctx, key, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed || d.Remaining != 1 {
		t.Fatalf("expected fresh window, got %+v", d)
	}
}

func TestKeyspacesDoNotCollide(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	l := NewInMemory(15*time.Minute, func() time.Time { return now })
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := l.Allow(ctx, Key(KeyspaceIdentity, "same"), 2); err != nil {
			t.Fatal(err)
		}
	}
	d, err := l.Allow(ctx, Key(KeyspaceOrigin, "same"), 2)
	if err != nil {
		t.Fatal(err)
	}
	if !d.Allowed {
		t.Fatal("origin keyspace must count independently of identity keyspace")
	}
}
