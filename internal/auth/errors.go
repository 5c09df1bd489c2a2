package auth

import "errors"

var (
	// ErrInvalidCredentials covers unknown identity and wrong secret alike;
	// the two are intentionally indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")

	// ErrAccountLocked indicates an active lockout. Distinct caller message
	// is acceptable: it is not a secret-guessing signal.
	ErrAccountLocked = errors.New("auth: account locked")

	// ErrRateLimited indicates too many attempts for the identity or origin.
	ErrRateLimited = errors.New("auth: too many attempts")

	// ErrMFAInvalid indicates a failed or expired MFA completion.
	ErrMFAInvalid = errors.New("auth: mfa verification failed")

	// ErrStoreUnavailable indicates a backing dependency failed; the
	// authentication path fails closed on it.
	ErrStoreUnavailable = errors.New("auth: store unavailable")

	// ErrNotFound is the credential store's miss sentinel. It never leaves
	// the package; callers see ErrInvalidCredentials.
	ErrNotFound = errors.New("auth: account not found")

	// ErrAlreadyExists reports a duplicate identity on account creation.
	ErrAlreadyExists = errors.New("auth: account already exists")
)
