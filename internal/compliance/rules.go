package compliance

import (
	"context"
	"fmt"
	"time"

	"medivault.org/internal/audit"
)

// Rule thresholds.
const (
	failedLoginThreshold = 5
	failedLoginWindow    = time.Hour

	bulkAccessThreshold = 100
	bulkAccessWindow    = 15 * time.Minute

	burstThreshold = 50
	burstWindow    = 15 * time.Minute

	originHistoryWindow = 30 * 24 * time.Hour

	businessHourStart = 7  // inclusive
	businessHourEnd   = 19 // exclusive
)

// History is the bounded view of recent audit events the rules read.
// Satisfied by audit.Store.
type History interface {
	CountByActor(ctx context.Context, actor string, q audit.CountQuery) (int, error)
	OriginsByActor(ctx context.Context, actor string, since time.Time, excludeID string) ([]string, error)
}

// Rule is one independently evaluable check. Evaluate returns nil when the
// rule does not fire. DedupeWindow bounds how often the same finding can
// repeat for one actor, which also makes duplicate event delivery
// idempotent.
type Rule struct {
	Type         ViolationType
	DedupeWindow time.Duration
	Evaluate     func(ctx context.Context, e audit.Event, h History) (*Violation, error)
}

// DefaultRules returns the rule set in evaluation order. Rules are
// order-independent; several may fire for one event.
func DefaultRules() []Rule {
	return []Rule{
		excessiveFailedLogins(),
		afterHoursAccess(),
		bulkDataAccess(),
		suspiciousAccessPattern(),
	}
}

func excessiveFailedLogins() Rule {
	return Rule{
		Type:         ViolationExcessiveFailedLogins,
		DedupeWindow: failedLoginWindow,
		Evaluate: func(ctx context.Context, e audit.Event, h History) (*Violation, error) {
			if e.Type != audit.EventAuthentication || e.Success {
				return nil, nil
			}
			count, err := h.CountByActor(ctx, e.Actor, audit.CountQuery{
				Type:    audit.EventAuthentication,
				Success: audit.Failure(),
				Since:   e.OccurredAt.Add(-failedLoginWindow),
			})
			if err != nil {
				return nil, err
			}
			if count < failedLoginThreshold {
				return nil, nil
			}
			return &Violation{
				Type:        ViolationExcessiveFailedLogins,
				Severity:    SeverityMedium,
				Actor:       e.Actor,
				Description: fmt.Sprintf("%d failed login attempts within the last hour", count),
				Remediation: "Verify account owner; consider forcing a credential reset.",
			}, nil
		},
	}
}

func afterHoursAccess() Rule {
	return Rule{
		Type:         ViolationAfterHoursAccess,
		DedupeWindow: time.Hour,
		Evaluate: func(ctx context.Context, e audit.Event, h History) (*Violation, error) {
			if e.Type != audit.EventDataAccess && e.Type != audit.EventAuthentication {
				return nil, nil
			}
			local := e.OccurredAt.Local()
			weekend := local.Weekday() == time.Saturday || local.Weekday() == time.Sunday
			if !weekend && local.Hour() >= businessHourStart && local.Hour() < businessHourEnd {
				return nil, nil
			}
			return &Violation{
				Type:        ViolationAfterHoursAccess,
				Severity:    SeverityMedium,
				Actor:       e.Actor,
				ResourceID:  e.ResourceID,
				Description: fmt.Sprintf("access at %s, outside business hours", local.Format("Mon 15:04")),
				Remediation: "Confirm the access was scheduled or on-call work.",
			}, nil
		},
	}
}

func bulkDataAccess() Rule {
	return Rule{
		Type:         ViolationBulkDataAccess,
		DedupeWindow: bulkAccessWindow,
		Evaluate: func(ctx context.Context, e audit.Event, h History) (*Violation, error) {
			if e.Type != audit.EventDataAccess {
				return nil, nil
			}
			count, err := h.CountByActor(ctx, e.Actor, audit.CountQuery{
				Type:  audit.EventDataAccess,
				Since: e.OccurredAt.Add(-bulkAccessWindow),
			})
			if err != nil {
				return nil, err
			}
			if count <= bulkAccessThreshold {
				return nil, nil
			}
			return &Violation{
				Type:        ViolationBulkDataAccess,
				Severity:    SeverityHigh,
				Actor:       e.Actor,
				Description: fmt.Sprintf("%d data-access events within 15 minutes", count),
				Remediation: "Review the access pattern; suspend the account if exfiltration is suspected.",
			}, nil
		},
	}
}

func suspiciousAccessPattern() Rule {
	return Rule{
		Type:         ViolationSuspiciousAccess,
		DedupeWindow: burstWindow,
		Evaluate: func(ctx context.Context, e audit.Event, h History) (*Violation, error) {
			if e.Actor == "" {
				return nil, nil
			}
			// Unseen network origin, only once history exists so new
			// accounts do not false-positive.
			if e.Origin != "" {
				origins, err := h.OriginsByActor(ctx, e.Actor, e.OccurredAt.Add(-originHistoryWindow), e.ID)
				if err != nil {
					return nil, err
				}
				if len(origins) > 0 && !contains(origins, e.Origin) {
					return &Violation{
						Type:        ViolationSuspiciousAccess,
						Severity:    SeverityHigh,
						Actor:       e.Actor,
						Description: fmt.Sprintf("activity from origin %s, never seen for this identity in 30 days", e.Origin),
						Remediation: "Contact the account owner; revoke active sessions if unrecognized.",
					}, nil
				}
			}
			count, err := h.CountByActor(ctx, e.Actor, audit.CountQuery{
				Since: e.OccurredAt.Add(-burstWindow),
			})
			if err != nil {
				return nil, err
			}
			if count <= burstThreshold {
				return nil, nil
			}
			return &Violation{
				Type:        ViolationSuspiciousAccess,
				Severity:    SeverityHigh,
				Actor:       e.Actor,
				Description: fmt.Sprintf("%d events within 15 minutes", count),
				Remediation: "Review recent activity for automation or credential theft.",
			}, nil
		},
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
