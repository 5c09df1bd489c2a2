// Package audit provides the append-only compliance audit trail and the
// asynchronous pipeline that feeds recorded events to downstream analysis.
package audit

import "time"

// EventType classifies audit events.
type EventType string

const (
	EventDataAccess       EventType = "DATA_ACCESS"
	EventDataModification EventType = "DATA_MODIFICATION"
	EventAuthentication   EventType = "AUTHENTICATION"
	EventAuthorization    EventType = "AUTHORIZATION"
	EventSystemAccess     EventType = "SYSTEM_ACCESS"
)

// RiskLevel is the risk classification assigned to an event at record time.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Event is an immutable audit record. Once appended it is never mutated;
// RetentionUntil marks the compliance retention horizon, not a cache TTL.
type Event struct {
	ID             string         `json:"id"`
	Type           EventType      `json:"type"`
	Actor          string         `json:"actor"`
	ResourceID     string         `json:"resource_id,omitempty"`
	ResourceType   string         `json:"resource_type,omitempty"`
	Action         string         `json:"action"`
	Origin         string         `json:"origin,omitempty"`
	Agent          string         `json:"agent,omitempty"`
	OccurredAt     time.Time      `json:"occurred_at"`
	Success        bool           `json:"success"`
	Risk           RiskLevel      `json:"risk"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	RetentionUntil time.Time      `json:"retention_until"`
}

// DefaultRisk derives the baseline risk level for an event. The analyzer may
// raise violations on top of this; the level itself is informational.
func DefaultRisk(t EventType, success bool) RiskLevel {
	switch t {
	case EventAuthentication, EventAuthorization:
		if success {
			return RiskLow
		}
		return RiskMedium
	case EventDataModification:
		return RiskMedium
	default:
		return RiskLow
	}
}
