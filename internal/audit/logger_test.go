package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type blockingStore struct {
	InMemory
	release chan struct{}
}

func (s *blockingStore) Append(ctx context.Context, e *Event) error {
	<-s.release
	return s.InMemory.Append(ctx, e)
}

type failingStore struct{}

func (failingStore) Append(ctx context.Context, e *Event) error { return errors.New("db down") }
func (failingStore) CountByActor(ctx context.Context, actor string, q CountQuery) (int, error) {
	return 0, nil
}
func (failingStore) OriginsByActor(ctx context.Context, actor string, since time.Time, excludeID string) ([]string, error) {
	return nil, nil
}
func (failingStore) ListByActor(ctx context.Context, actor string, limit int) ([]Event, error) {
	return nil, nil
}

func TestRecordStampsAndPersists(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	store := NewInMemory()
	l := NewLogger(store,
		WithRetention(6*365*24*time.Hour),
		WithClock(func() time.Time { return now }))

	l.Record(context.Background(), Event{
		Type:    EventAuthentication,
		Actor:   "doc@clinic.example",
		Action:  "AUTH_FAILED_LOGIN",
		Success: false,
	})
	l.Close()

	events, err := store.ListByActor(context.Background(), "doc@clinic.example", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	e := events[0]
	if e.ID == "" {
		t.Fatal("expected generated id")
	}
	if !e.OccurredAt.Equal(now) {
		t.Fatalf("expected stamped time %v, got %v", now, e.OccurredAt)
	}
	if e.Risk != RiskMedium {
		t.Fatalf("failed authentication must default to MEDIUM risk, got %s", e.Risk)
	}
	if want := now.Add(6 * 365 * 24 * time.Hour); !e.RetentionUntil.Equal(want) {
		t.Fatalf("expected retention %v, got %v", want, e.RetentionUntil)
	}
}

func TestRecordPreservesExplicitFields(t *testing.T) {
	store := NewInMemory()
	l := NewLogger(store)
	at := time.Date(2026, 1, 5, 3, 0, 0, 0, time.UTC)

	l.Record(context.Background(), Event{
		ID:         "fixed-id",
		Type:       EventDataAccess,
		Actor:      "doc@clinic.example",
		Action:     "PATIENT_RECORD_VIEW",
		OccurredAt: at,
		Success:    true,
		Risk:       RiskHigh,
	})
	l.Close()

	events, _ := store.ListByActor(context.Background(), "doc@clinic.example", 10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ID != "fixed-id" || !events[0].OccurredAt.Equal(at) || events[0].Risk != RiskHigh {
		t.Fatalf("explicit fields were overwritten: %+v", events[0])
	}
}

func TestHooksRunAfterAppend(t *testing.T) {
	store := NewInMemory()
	var mu sync.Mutex
	var seen []Event
	l := NewLogger(store, WithHook(func(e Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	}))

	for i := 0; i < 3; i++ {
		l.Record(context.Background(), Event{Type: EventDataAccess, Actor: "a", Action: "VIEW", Success: true})
	}
	l.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 3 {
		t.Fatalf("expected 3 hook invocations, got %d", len(seen))
	}
	for _, e := range seen {
		if e.ID == "" {
			t.Fatal("hook must observe the stamped event")
		}
	}
}

func TestFullQueueDoesNotDropEvents(t *testing.T) {
	store := &blockingStore{release: make(chan struct{})}
	l := NewLogger(store, WithQueueSize(1))

	// Stall the consumer so the queue fills and Record has to take the
	// synchronous fallback for at least one event.
	go func() {
		time.Sleep(50 * time.Millisecond)
		close(store.release)
	}()
	for i := 0; i < 3; i++ {
		l.Record(context.Background(), Event{Type: EventDataAccess, Actor: "a", Action: "V", Success: true})
	}
	l.Close()

	count, err := store.CountByActor(context.Background(), "a", CountQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("expected all 3 events persisted, got %d", count)
	}
}

func TestAppendFailureDoesNotPropagate(t *testing.T) {
	l := NewLogger(failingStore{})
	// Must not panic or block; the failure is operational-log only.
	l.Record(context.Background(), Event{Type: EventAuthentication, Actor: "a", Action: "X", Success: false})
	l.Close()
}

func TestConcurrentRecordAndCloseIsSafe(t *testing.T) {
	store := NewInMemory()
	l := NewLogger(store, WithQueueSize(2))

	// Producers racing Close must neither panic nor lose events: each
	// Record lands via the pipeline or the synchronous fallback.
	const writers, perWriter = 8, 20
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				l.Record(context.Background(), Event{Type: EventDataAccess, Actor: "racer", Action: "V", Success: true})
			}
		}()
	}
	l.Close()
	wg.Wait()
	l.Close() // idempotent

	count, err := store.CountByActor(context.Background(), "racer", CountQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if count != writers*perWriter {
		t.Fatalf("expected %d events persisted, got %d", writers*perWriter, count)
	}
}

func TestRecordAfterCloseStillDelivers(t *testing.T) {
	store := NewInMemory()
	l := NewLogger(store)
	l.Close()

	l.Record(context.Background(), Event{Type: EventDataAccess, Actor: "late", Action: "V", Success: true})
	count, _ := store.CountByActor(context.Background(), "late", CountQuery{})
	if count != 1 {
		t.Fatalf("expected late event persisted synchronously, got %d", count)
	}
}

func TestDefaultRisk(t *testing.T) {
	cases := []struct {
		t       EventType
		success bool
		want    RiskLevel
	}{
		{EventAuthentication, true, RiskLow},
		{EventAuthentication, false, RiskMedium},
		{EventAuthorization, false, RiskMedium},
		{EventDataModification, true, RiskMedium},
		{EventDataAccess, true, RiskLow},
		{EventSystemAccess, true, RiskLow},
	}
	for _, tc := range cases {
		if got := DefaultRisk(tc.t, tc.success); got != tc.want {
			t.Fatalf("DefaultRisk(%s, %v) = %s, want %s", tc.t, tc.success, got, tc.want)
		}
	}
}
