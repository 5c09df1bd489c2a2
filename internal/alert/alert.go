// Package alert delivers high-severity compliance violations to an external
// notification channel without ever blocking the path that raised them.
package alert

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"medivault.org/internal/obs"
)

const sendTimeout = 10 * time.Second

// Notification is the structured payload published for a violation.
type Notification struct {
	ViolationType string    `json:"violation_type"`
	Severity      string    `json:"severity"`
	Description   string    `json:"description"`
	Identity      string    `json:"identity,omitempty"`
	ResourceID    string    `json:"resource_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
	Remediation   string    `json:"remediation,omitempty"`
}

// Sender performs the actual delivery. Delivery semantics (at-least-once)
// are the external channel's responsibility.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// Dispatcher decouples delivery from the caller with a queue and a single
// worker. Publish never blocks; a full queue drops the notification and
// counts the drop.
type Dispatcher struct {
	sender Sender
	queue  chan Notification
	log    *zap.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption configures Dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithQueueSize sets the dispatch buffer size.
func WithQueueSize(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queue = make(chan Notification, n)
		}
	}
}

// WithLogger overrides the operational logger.
func WithLogger(log *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDispatcher starts the delivery worker.
func NewDispatcher(sender Sender, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		queue:  make(chan Notification, 256),
		log:    obs.Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.wg.Add(1)
	go d.run()
	return d
}

// Publish enqueues a notification. Never blocks. The read lock pins the
// queue open while the send is attempted, so a concurrent Close cannot
// close the channel mid-send.
func (d *Dispatcher) Publish(n Notification) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.queue <- n:
	default:
		obs.AlertsDropped.Inc()
		d.log.Warn("alert queue full, dropping notification",
			zap.String("violation_type", n.ViolationType),
			zap.String("identity", n.Identity))
	}
}

// Close stops accepting notifications and drains the queue.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for n := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := d.sender.Send(ctx, n)
		cancel()
		if err != nil {
			d.log.Error("alert delivery failed",
				zap.String("violation_type", n.ViolationType),
				zap.String("severity", n.Severity),
				zap.Error(err))
		}
	}
}
