package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"medivault.org/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	MFA       *mfaState `json:"mfa,omitempty"`
}

type mfaState struct {
	Required  bool      `json:"required"`
	Challenge string    `json:"challenge"`
	ExpiresAt time.Time `json:"expires_at"`
}

type mfaRequest struct {
	Challenge string `json:"challenge"`
	Code      string `json:"code"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	result, err := a.auth.Authenticate(r.Context(), req.Email, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if result.RequiresMFA {
		writeJSON(w, http.StatusOK, loginResponse{MFA: &mfaState{
			Required:  true,
			Challenge: result.Challenge.Token,
			ExpiresAt: result.Challenge.ExpiresAt,
		}})
		return
	}
	writeJSON(w, http.StatusCreated, loginResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

func (a *API) handleMFA(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req mfaRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Challenge == "" || req.Code == "" {
		writeError(w, r, http.StatusBadRequest, "challenge and code are required")
		return
	}

	result, err := a.auth.CompleteMFA(r.Context(), req.Challenge, req.Code, clientIP(r), r.UserAgent())
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, loginResponse{Token: result.Token, ExpiresAt: result.ExpiresAt})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.auth.Logout(r.Context(), claims, clientIP(r), r.UserAgent()); err != nil {
		handleAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAuthError maps service sentinels to caller-visible responses.
// Messages stay coarse; detail lives in the audit trail and logs only.
func handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrRateLimited):
		w.Header().Set("Retry-After", "900")
		writeError(w, r, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.Is(err, auth.ErrAccountLocked):
		writeError(w, r, http.StatusLocked, "account temporarily locked")
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrMFAInvalid):
		writeError(w, r, http.StatusUnauthorized, "mfa verification failed")
	case errors.Is(err, auth.ErrStoreUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
