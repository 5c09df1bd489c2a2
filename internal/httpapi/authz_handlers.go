package httpapi

import (
	"net/http"
	"strings"

	"medivault.org/internal/auth"
)

type authzCheckRequest struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

type authzCheckResponse struct {
	Granted bool `json:"granted"`
}

func (a *API) handleAuthzCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	var req authzCheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Resource = strings.TrimSpace(req.Resource)
	req.Action = strings.TrimSpace(req.Action)
	if req.Resource == "" || req.Action == "" {
		writeError(w, r, http.StatusBadRequest, "resource and action are required")
		return
	}
	granted := a.auth.Authorize(r.Context(), claims, req.Resource, req.Action)
	writeJSON(w, http.StatusOK, authzCheckResponse{Granted: granted})
}
