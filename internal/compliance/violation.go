// Package compliance continuously classifies the audit trail for policy
// violations using independent threshold rules. Thresholds beat statistics
// here: the inputs are low-volume structured events and a regulated domain
// needs findings it can explain.
package compliance

import "time"

// ViolationType identifies the rule family that raised a finding.
type ViolationType string

const (
	ViolationExcessiveFailedLogins ViolationType = "EXCESSIVE_FAILED_LOGINS"
	ViolationAfterHoursAccess      ViolationType = "AFTER_HOURS_ACCESS"
	ViolationBulkDataAccess        ViolationType = "BULK_DATA_ACCESS"
	ViolationSuspiciousAccess      ViolationType = "SUSPICIOUS_ACCESS_PATTERN"
)

// Severity grades a violation.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Status is the review lifecycle state, managed externally after creation.
type Status string

const (
	StatusOpen     Status = "open"
	StatusReviewed Status = "reviewed"
	StatusClosed   Status = "closed"
)

// Violation is a derived finding. Only the analyzer creates violations;
// request handlers never do.
type Violation struct {
	ID          string        `json:"id"`
	Type        ViolationType `json:"type"`
	Severity    Severity      `json:"severity"`
	Description string        `json:"description"`
	Actor       string        `json:"actor,omitempty"`
	ResourceID  string        `json:"resource_id,omitempty"`
	OccurredAt  time.Time     `json:"occurred_at"`
	Remediation string        `json:"remediation,omitempty"`
	Status      Status        `json:"status"`
}

// Actionable reports whether the violation must be forwarded to the alert
// channel.
func (v *Violation) Actionable() bool {
	return v.Severity == SeverityHigh || v.Severity == SeverityCritical
}
