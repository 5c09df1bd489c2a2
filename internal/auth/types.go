// Package auth implements credential verification, brute-force defense
// (rate limiting and account lockout), session issuance, and authorization
// checks for the platform.
package auth

import "time"

// Account is a user record in the credential store. The store owns its
// persistence format; this core only reads it and updates failure state.
type Account struct {
	Identity       string     `json:"identity"`
	PasswordHash   string     `json:"-"`
	Role           string     `json:"role"`
	Permissions    []string   `json:"permissions,omitempty"`
	Status         string     `json:"status"`
	MFAEnabled     bool       `json:"mfa_enabled"`
	MFASecret      string     `json:"-"`
	FailedAttempts int        `json:"failed_attempts"`
	LockedUntil    *time.Time `json:"locked_until,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Platform roles.
const (
	RoleAdmin   = "admin"
	RoleDoctor  = "doctor"
	RoleNurse   = "nurse"
	RoleAuditor = "auditor"
)

// DefaultRolePermissions maps each role to its configured permission set.
// Entries use the resource:action form; "*" is a wildcard on either side.
var DefaultRolePermissions = map[string][]string{
	RoleAdmin: {"*:*"},
	RoleDoctor: {
		"patients:read", "patients:write",
		"appointments:read", "appointments:write",
		"prescriptions:read", "prescriptions:write",
		"transcriptions:read", "transcriptions:write",
	},
	RoleNurse: {
		"patients:read",
		"appointments:read", "appointments:write",
		"prescriptions:read",
	},
	RoleAuditor: {
		"audit:read",
	},
}

// Action names recorded on audit events emitted by this package.
const (
	ActionLogin        = "AUTH_SUCCESSFUL_LOGIN"
	ActionFailedLogin  = "AUTH_FAILED_LOGIN"
	ActionLockedLogin  = "AUTH_ACCOUNT_LOCKED"
	ActionRateLimited  = "AUTH_RATE_LIMITED"
	ActionMFAChallenge = "AUTH_MFA_CHALLENGE"
	ActionMFAFailed    = "AUTH_MFA_FAILED"
	ActionLogout       = "AUTH_LOGOUT"
	ActionAccess       = "ACCESS_CHECK"
)
