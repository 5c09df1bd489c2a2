package alert

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type captureSender struct {
	mu    sync.Mutex
	sent  []Notification
	err   error
	block chan struct{}
}

func (s *captureSender) Send(ctx context.Context, n Notification) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

func (s *captureSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func TestDispatcherDeliversInOrder(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender)

	for i := 0; i < 3; i++ {
		d.Publish(Notification{ViolationType: "BULK_DATA_ACCESS", Severity: "HIGH",
			Identity: "doc@clinic.example", OccurredAt: time.Now()})
	}
	d.Close()

	if sender.count() != 3 {
		t.Fatalf("expected 3 deliveries, got %d", sender.count())
	}
}

func TestDispatcherSurvivesSendErrors(t *testing.T) {
	sender := &captureSender{err: errors.New("smtp down")}
	d := NewDispatcher(sender)

	d.Publish(Notification{ViolationType: "BULK_DATA_ACCESS"})
	d.Publish(Notification{ViolationType: "SUSPICIOUS_ACCESS_PATTERN"})
	d.Close()

	if sender.count() != 2 {
		t.Fatalf("worker must keep going after a failure, got %d deliveries", sender.count())
	}
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	sender := &captureSender{block: make(chan struct{})}
	d := NewDispatcher(sender, WithQueueSize(1))

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			d.Publish(Notification{ViolationType: "BULK_DATA_ACCESS"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full queue")
	}
	close(sender.block)
	d.Close()
}

func TestConcurrentPublishAndCloseIsSafe(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender)

	// Publishers racing Close must not panic on the queue; late publishes
	// are simply dropped.
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				d.Publish(Notification{ViolationType: "BULK_DATA_ACCESS"})
			}
		}()
	}
	d.Close()
	wg.Wait()
	d.Close() // idempotent
}

func TestPublishAfterCloseIsNoop(t *testing.T) {
	sender := &captureSender{}
	d := NewDispatcher(sender)
	d.Close()
	d.Publish(Notification{ViolationType: "BULK_DATA_ACCESS"})
	if sender.count() != 0 {
		t.Fatalf("expected no delivery after close, got %d", sender.count())
	}
}
