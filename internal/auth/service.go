package auth

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"medivault.org/internal/audit"
	"medivault.org/internal/mfa"
	"medivault.org/internal/obs"
	"medivault.org/internal/ratelimit"
	"medivault.org/internal/session"
)

// LoginLimits are the per-window attempt thresholds for the two rate-limit
// keyspaces. The origin threshold is deliberately higher: one address may
// legitimately serve several users behind NAT, but not an open flood.
type LoginLimits struct {
	PerIdentity int
	PerOrigin   int
}

// DefaultLoginLimits allows 5 attempts per identity and 15 per origin
// within the limiter's window.
var DefaultLoginLimits = LoginLimits{PerIdentity: 5, PerOrigin: 15}

// Recorder is the audit sink the service reports every outcome to. Writes
// are fire-and-forget from the authentication path's perspective.
type Recorder interface {
	Record(ctx context.Context, e audit.Event)
}

// Result is the outcome of a successful or partially successful
// authentication.
type Result struct {
	Token       string
	ExpiresAt   time.Time
	SessionID   string
	RequiresMFA bool
	Challenge   *mfa.Challenge
}

// Service orchestrates the login pipeline: rate limiter, lockout state
// machine, credential verification, then session issuance.
type Service struct {
	creds    CredentialStore
	limiter  ratelimit.Limiter
	sessions *session.Manager
	mfa      *mfa.Manager
	recorder Recorder

	lockout lockoutManager
	limits  LoginLimits
	now     func() time.Time
	log     *zap.Logger
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service)

// WithLoginLimits overrides the rate-limit thresholds.
func WithLoginLimits(limits LoginLimits) ServiceOption {
	return func(s *Service) {
		if limits.PerIdentity > 0 && limits.PerOrigin > 0 {
			s.limits = limits
		}
	}
}

// WithLockoutPolicy overrides the lockout state machine parameters.
func WithLockoutPolicy(policy LockoutPolicy) ServiceOption {
	return func(s *Service) {
		if policy.MaxFailures > 0 && policy.Duration > 0 {
			s.lockout.policy = policy
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
			s.lockout.now = fn
		}
	}
}

// WithLogger overrides the operational logger.
func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// NewService wires the login pipeline together.
func NewService(creds CredentialStore, limiter ratelimit.Limiter, sessions *session.Manager, challenges *mfa.Manager, recorder Recorder, opts ...ServiceOption) *Service {
	s := &Service{
		creds:    creds,
		limiter:  limiter,
		sessions: sessions,
		mfa:      challenges,
		recorder: recorder,
		lockout:  lockoutManager{creds: creds, policy: DefaultLockoutPolicy, now: time.Now},
		limits:   DefaultLoginLimits,
		now:      time.Now,
		log:      obs.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate runs the full login pipeline for one attempt. The returned
// error is one of the package sentinels; detail beyond that lives only in
// the audit trail.
func (s *Service) Authenticate(ctx context.Context, identity, secret, origin, agent string) (Result, error) {
	identity = normalize(identity)

	if err := s.checkRateLimits(ctx, identity, origin, agent); err != nil {
		return Result{}, err
	}

	account, err := s.creds.FindByIdentity(ctx, identity)
	if errors.Is(err, ErrNotFound) {
		burnVerification(secret)
		obs.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		s.recordAuth(ctx, identity, origin, agent, ActionFailedLogin, false, map[string]any{
			"reason": "unknown_identity",
		})
		return Result{}, ErrInvalidCredentials
	}
	if err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		s.log.Error("credential store lookup failed", zap.String("identity", identity), zap.Error(err))
		return Result{}, ErrStoreUnavailable
	}

	locked, err := s.lockout.check(ctx, account)
	if err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		s.log.Error("lockout check failed", zap.String("identity", identity), zap.Error(err))
		return Result{}, ErrStoreUnavailable
	}
	if locked {
		// The secret is not consulted while the lock is active.
		obs.LoginAttempts.WithLabelValues("locked").Inc()
		s.recordAuth(ctx, identity, origin, agent, ActionLockedLogin, false, map[string]any{
			"locked_until": account.LockedUntil.UTC().Format(time.RFC3339),
		})
		return Result{}, ErrAccountLocked
	}

	if err := VerifyPassword(account.PasswordHash, secret); err != nil {
		return Result{}, s.failVerification(ctx, account, origin, agent)
	}
	if account.Status != StatusActive {
		burnVerification(secret)
		obs.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
		s.recordAuth(ctx, identity, origin, agent, ActionFailedLogin, false, map[string]any{
			"reason": "account_" + account.Status,
		})
		return Result{}, ErrInvalidCredentials
	}

	if err := s.lockout.recordSuccess(ctx, account); err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		s.log.Error("failure counter reset failed", zap.String("identity", identity), zap.Error(err))
		return Result{}, ErrStoreUnavailable
	}

	if account.MFAEnabled {
		challenge, err := s.mfa.Begin(ctx, account.Identity)
		if err != nil {
			obs.LoginAttempts.WithLabelValues("error").Inc()
			s.log.Error("mfa challenge creation failed", zap.String("identity", identity), zap.Error(err))
			return Result{}, ErrStoreUnavailable
		}
		obs.LoginAttempts.WithLabelValues("mfa_required").Inc()
		s.recordAuth(ctx, identity, origin, agent, ActionMFAChallenge, true, map[string]any{
			"challenge_expires_at": challenge.ExpiresAt.Format(time.RFC3339),
		})
		return Result{RequiresMFA: true, Challenge: &challenge}, nil
	}

	return s.issueSession(ctx, account, origin, agent, false)
}

// CompleteMFA redeems a challenge token and verifies the TOTP code. MFA
// failures are their own audit events and never touch the primary failure
// counter.
func (s *Service) CompleteMFA(ctx context.Context, challengeToken, code, origin, agent string) (Result, error) {
	challenge, err := s.mfa.Redeem(ctx, challengeToken)
	if errors.Is(err, mfa.ErrChallengeInvalid) {
		obs.LoginAttempts.WithLabelValues("mfa_failed").Inc()
		s.recordAuth(ctx, "", origin, agent, ActionMFAFailed, false, map[string]any{
			"reason": "challenge_invalid",
		})
		return Result{}, ErrMFAInvalid
	}
	if err != nil {
		s.log.Error("mfa challenge redemption failed", zap.Error(err))
		return Result{}, ErrStoreUnavailable
	}

	account, err := s.creds.FindByIdentity(ctx, challenge.Identity)
	if err != nil {
		s.log.Error("credential store lookup failed", zap.String("identity", challenge.Identity), zap.Error(err))
		return Result{}, ErrStoreUnavailable
	}
	if !mfa.ValidateCode(code, account.MFASecret) {
		obs.LoginAttempts.WithLabelValues("mfa_failed").Inc()
		s.recordAuth(ctx, account.Identity, origin, agent, ActionMFAFailed, false, map[string]any{
			"reason": "code_mismatch",
		})
		return Result{}, ErrMFAInvalid
	}
	return s.issueSession(ctx, account, origin, agent, true)
}

// Authorize evaluates a permission check for validated session claims and
// records the outcome. Grants come from the session's explicit permission
// set, the role's configured set, or a wildcard.
func (s *Service) Authorize(ctx context.Context, claims *session.Claims, resource, action string) bool {
	granted := PermissionGrants(claims.Permissions, resource, action) ||
		RoleGrants(claims.Role, resource, action)
	s.recorder.Record(ctx, audit.Event{
		Type:         audit.EventAuthorization,
		Actor:        claims.Identity(),
		ResourceID:   resource,
		ResourceType: resource,
		Action:       ActionAccess,
		Success:      granted,
		Metadata: map[string]any{
			"granted":  granted,
			"resource": resource,
			"action":   action,
			"role":     claims.Role,
		},
	})
	return granted
}

// Logout revokes the session behind the claims. Revoking twice is a no-op.
func (s *Service) Logout(ctx context.Context, claims *session.Claims, origin, agent string) error {
	if err := s.sessions.Revoke(ctx, claims.SessionID); err != nil {
		s.log.Error("session revocation failed", zap.String("identity", claims.Identity()), zap.Error(err))
		return ErrStoreUnavailable
	}
	s.recordAuth(ctx, claims.Identity(), origin, agent, ActionLogout, true, nil)
	return nil
}

// Register creates an account with the role's default permission set.
// Exposed for seeding and the admin surface, not for self-service signup.
func (s *Service) Register(ctx context.Context, identity, password, role string) (*Account, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	a := &Account{
		Identity:     normalize(identity),
		PasswordHash: hash,
		Role:         role,
		Permissions:  DefaultRolePermissions[role],
		Status:       StatusActive,
	}
	if err := s.creds.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) checkRateLimits(ctx context.Context, identity, origin, agent string) error {
	checks := []struct {
		keyspace string
		value    string
		limit    int
	}{
		{ratelimit.KeyspaceIdentity, identity, s.limits.PerIdentity},
		{ratelimit.KeyspaceOrigin, origin, s.limits.PerOrigin},
	}
	for _, c := range checks {
		decision, err := s.limiter.Allow(ctx, ratelimit.Key(c.keyspace, c.value), c.limit)
		if err != nil {
			// Counter store down: fail closed, page via error log.
			obs.LoginAttempts.WithLabelValues("error").Inc()
			s.log.Error("rate limiter unavailable, denying login",
				zap.String("keyspace", c.keyspace), zap.Error(err))
			return ErrStoreUnavailable
		}
		if !decision.Allowed {
			obs.LoginAttempts.WithLabelValues("rate_limited").Inc()
			obs.RateLimitDenials.WithLabelValues(c.keyspace).Inc()
			s.recordAuth(ctx, identity, origin, agent, ActionRateLimited, false, map[string]any{
				"keyspace":            c.keyspace,
				"retry_after_seconds": int(decision.RetryAfter.Seconds()),
			})
			return ErrRateLimited
		}
	}
	return nil
}

func (s *Service) failVerification(ctx context.Context, account *Account, origin, agent string) error {
	nowLocked, err := s.lockout.recordFailure(ctx, account)
	if err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		s.log.Error("failure state update failed", zap.String("identity", account.Identity), zap.Error(err))
		return ErrStoreUnavailable
	}
	if nowLocked {
		obs.AccountLockouts.Inc()
	}
	obs.LoginAttempts.WithLabelValues("invalid_credentials").Inc()
	s.recordAuth(ctx, account.Identity, origin, agent, ActionFailedLogin, false, map[string]any{
		"reason":   "wrong_secret",
		"failures": account.FailedAttempts,
		"locked":   nowLocked,
	})
	return ErrInvalidCredentials
}

func (s *Service) issueSession(ctx context.Context, account *Account, origin, agent string, viaMFA bool) (Result, error) {
	token, rec, err := s.sessions.Issue(ctx, account.Identity, account.Role, account.Permissions)
	if err != nil {
		obs.LoginAttempts.WithLabelValues("error").Inc()
		s.log.Error("session issuance failed", zap.String("identity", account.Identity), zap.Error(err))
		return Result{}, ErrStoreUnavailable
	}
	obs.LoginAttempts.WithLabelValues("granted").Inc()
	s.recordAuth(ctx, account.Identity, origin, agent, ActionLogin, true, map[string]any{
		"session_id": rec.ID,
		"mfa":        viaMFA,
	})
	return Result{Token: token, ExpiresAt: rec.ExpiresAt, SessionID: rec.ID}, nil
}

func (s *Service) recordAuth(ctx context.Context, identity, origin, agent, action string, success bool, metadata map[string]any) {
	s.recorder.Record(ctx, audit.Event{
		Type:     audit.EventAuthentication,
		Actor:    identity,
		Action:   action,
		Origin:   origin,
		Agent:    agent,
		Success:  success,
		Metadata: metadata,
	})
}
