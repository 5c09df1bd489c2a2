package audit

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"medivault.org/internal/ids"
	"medivault.org/internal/obs"
)

const appendTimeout = 5 * time.Second

// Logger is the fire-and-forget audit sink used by the request path. Record
// hands events to a buffered channel; a single consumer goroutine appends
// them to the store and then invokes registered hooks (the compliance
// analyzer). A write failure never propagates back to the caller.
type Logger struct {
	store     Store
	queue     chan Event
	retention time.Duration
	now       func() time.Time
	log       *zap.Logger
	hooks     []func(Event)

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// LoggerOption configures Logger behavior.
type LoggerOption func(*Logger)

// WithQueueSize sets the pipeline buffer size.
func WithQueueSize(n int) LoggerOption {
	return func(l *Logger) {
		if n > 0 {
			l.queue = make(chan Event, n)
		}
	}
}

// WithRetention overrides the compliance retention horizon stamped on events.
func WithRetention(d time.Duration) LoggerOption {
	return func(l *Logger) {
		if d > 0 {
			l.retention = d
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) LoggerOption {
	return func(l *Logger) {
		if fn != nil {
			l.now = fn
		}
	}
}

// WithHook registers a consumer invoked for every event after the append
// attempt. Hooks run on the pipeline goroutine and must not block for long.
func WithHook(fn func(Event)) LoggerOption {
	return func(l *Logger) {
		if fn != nil {
			l.hooks = append(l.hooks, fn)
		}
	}
}

// WithLogger overrides the operational logger.
func WithLogger(log *zap.Logger) LoggerOption {
	return func(l *Logger) {
		if log != nil {
			l.log = log
		}
	}
}

// NewLogger starts the pipeline consumer and returns the logger.
func NewLogger(store Store, opts ...LoggerOption) *Logger {
	l := &Logger{
		store:     store,
		queue:     make(chan Event, 1024),
		retention: 6 * 365 * 24 * time.Hour,
		now:       time.Now,
		log:       obs.Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.wg.Add(1)
	go l.consume()
	return l
}

// Record stamps the event and enqueues it. When the queue is full, or the
// pipeline has shut down, the event is appended synchronously instead so
// nothing is silently dropped. The read lock pins the queue open while the
// send is attempted; Close cannot slip in between the check and the send.
func (l *Logger) Record(ctx context.Context, e Event) {
	l.prepare(&e)
	obs.AuditEvents.WithLabelValues(string(e.Type)).Inc()

	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		l.deliver(e)
		return
	}
	select {
	case l.queue <- e:
		l.mu.RUnlock()
	default:
		l.mu.RUnlock()
		l.deliver(e)
	}
}

// Close stops accepting pipelined events and drains the queue.
func (l *Logger) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	l.wg.Wait()
}

func (l *Logger) consume() {
	defer l.wg.Done()
	for e := range l.queue {
		l.deliver(e)
	}
}

func (l *Logger) deliver(e Event) {
	ctx, cancel := context.WithTimeout(context.Background(), appendTimeout)
	err := l.store.Append(ctx, &e)
	cancel()
	if err != nil {
		// Availability over durability: surface to operational logging only.
		obs.AuditWriteFailures.Inc()
		l.log.Error("audit append failed",
			zap.String("event_id", e.ID),
			zap.String("event_type", string(e.Type)),
			zap.String("actor", e.Actor),
			zap.Error(err))
	}
	for _, hook := range l.hooks {
		hook(e)
	}
}

func (l *Logger) prepare(e *Event) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = l.now().UTC()
	}
	if e.ID == "" {
		e.ID = ids.NewAt(e.OccurredAt)
	}
	if e.Risk == "" {
		e.Risk = DefaultRisk(e.Type, e.Success)
	}
	if e.RetentionUntil.IsZero() {
		e.RetentionUntil = e.OccurredAt.Add(l.retention)
	}
}
