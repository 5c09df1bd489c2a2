package compliance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"medivault.org/internal/alert"
	"medivault.org/internal/audit"
	"medivault.org/internal/ids"
	"medivault.org/internal/obs"
)

const analyzeTimeout = 5 * time.Second

// Alerter receives HIGH/CRITICAL findings. Satisfied by alert.Dispatcher.
type Alerter interface {
	Publish(n alert.Notification)
}

// Publisher receives every persisted violation for live subscribers.
type Publisher interface {
	Publish(v Violation)
}

// Analyzer evaluates the rule set against each recorded audit event. It
// runs on the audit pipeline's consumer goroutine, decoupled from the
// request/response cycle.
type Analyzer struct {
	history   History
	store     Store
	rules     []Rule
	alerter   Alerter
	publisher Publisher
	log       *zap.Logger
}

// AnalyzerOption configures Analyzer behavior.
type AnalyzerOption func(*Analyzer)

// WithRules replaces the default rule set.
func WithRules(rules []Rule) AnalyzerOption {
	return func(a *Analyzer) {
		if len(rules) > 0 {
			a.rules = rules
		}
	}
}

// WithAlerter forwards actionable violations to the given channel.
func WithAlerter(alerter Alerter) AnalyzerOption {
	return func(a *Analyzer) { a.alerter = alerter }
}

// WithPublisher mirrors persisted violations to live subscribers.
func WithPublisher(p Publisher) AnalyzerOption {
	return func(a *Analyzer) { a.publisher = p }
}

// WithLogger overrides the operational logger.
func WithLogger(log *zap.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// NewAnalyzer constructs an Analyzer over the audit history and violation
// store.
func NewAnalyzer(history History, store Store, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		history: history,
		store:   store,
		rules:   DefaultRules(),
		log:     obs.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze evaluates all rules for one event. Rule and store errors are
// logged and skip only the affected rule; remaining rules still run.
func (a *Analyzer) Analyze(ctx context.Context, e audit.Event) {
	ctx, cancel := context.WithTimeout(ctx, analyzeTimeout)
	defer cancel()

	for _, rule := range a.rules {
		v, err := rule.Evaluate(ctx, e, a.history)
		if err != nil {
			a.log.Error("compliance rule evaluation failed",
				zap.String("rule", string(rule.Type)),
				zap.String("event_id", e.ID),
				zap.Error(err))
			continue
		}
		if v == nil {
			continue
		}
		dup, err := a.store.HasOpenSince(ctx, v.Actor, v.Type, e.OccurredAt.Add(-rule.DedupeWindow))
		if err != nil {
			a.log.Error("violation dedupe lookup failed",
				zap.String("rule", string(rule.Type)),
				zap.Error(err))
			continue
		}
		if dup {
			continue
		}
		a.raise(ctx, v, e)
	}
}

// HookFor adapts the analyzer to the audit pipeline's hook signature.
func (a *Analyzer) HookFor() func(audit.Event) {
	return func(e audit.Event) {
		a.Analyze(context.Background(), e)
	}
}

func (a *Analyzer) raise(ctx context.Context, v *Violation, e audit.Event) {
	v.ID = ids.NewAt(e.OccurredAt)
	v.OccurredAt = e.OccurredAt
	v.Status = StatusOpen
	if err := a.store.Create(ctx, v); err != nil {
		a.log.Error("violation persist failed",
			zap.String("type", string(v.Type)),
			zap.String("actor", v.Actor),
			zap.Error(err))
		return
	}
	obs.Violations.WithLabelValues(string(v.Type), string(v.Severity)).Inc()
	a.log.Warn("compliance violation raised",
		zap.String("id", v.ID),
		zap.String("type", string(v.Type)),
		zap.String("severity", string(v.Severity)),
		zap.String("actor", v.Actor))

	if a.publisher != nil {
		a.publisher.Publish(*v)
	}
	if a.alerter != nil && v.Actionable() {
		a.alerter.Publish(alert.Notification{
			ViolationType: string(v.Type),
			Severity:      string(v.Severity),
			Description:   v.Description,
			Identity:      v.Actor,
			ResourceID:    v.ResourceID,
			OccurredAt:    v.OccurredAt,
			Remediation:   v.Remediation,
		})
	}
}
