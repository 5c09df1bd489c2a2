package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"medivault.org/internal/audit"
	"medivault.org/internal/compliance"
)

type recordEventRequest struct {
	Type         string         `json:"type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	ResourceType string         `json:"resource_type,omitempty"`
	Action       string         `json:"action"`
	Success      *bool          `json:"success,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type recordEventResponse struct {
	Status string `json:"status"`
}

type listViolationsResponse struct {
	Items []compliance.Violation `json:"items"`
	AsOf  time.Time              `json:"as_of"`
}

type updateViolationRequest struct {
	Status string `json:"status"`
}

type listAuditEventsResponse struct {
	Items []audit.Event `json:"items"`
	AsOf  time.Time     `json:"as_of"`
}

var eventTypes = map[string]audit.EventType{
	string(audit.EventDataAccess):       audit.EventDataAccess,
	string(audit.EventDataModification): audit.EventDataModification,
	string(audit.EventAuthentication):   audit.EventAuthentication,
	string(audit.EventAuthorization):    audit.EventAuthorization,
	string(audit.EventSystemAccess):     audit.EventSystemAccess,
}

// handleComplianceEvents ingests application audit events. The actor is
// always taken from the authenticated session, never from the body.
func (a *API) handleComplianceEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	claims, ok := a.ensurePermission(w, r, "audit", "write")
	if !ok {
		return
	}

	var req recordEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	typ, ok := eventTypes[strings.ToUpper(strings.TrimSpace(req.Type))]
	if !ok {
		writeError(w, r, http.StatusBadRequest, "unknown event type")
		return
	}
	action := strings.TrimSpace(req.Action)
	if action == "" {
		writeError(w, r, http.StatusBadRequest, "action is required")
		return
	}
	success := true
	if req.Success != nil {
		success = *req.Success
	}

	a.audit.Record(r.Context(), audit.Event{
		Type:         typ,
		Actor:        claims.Identity(),
		ResourceID:   strings.TrimSpace(req.ResourceID),
		ResourceType: strings.TrimSpace(req.ResourceType),
		Action:       action,
		Origin:       clientIP(r),
		Agent:        r.UserAgent(),
		Success:      success,
		Metadata:     req.Metadata,
	})

	writeJSON(w, http.StatusAccepted, recordEventResponse{Status: "accepted"})
}

func (a *API) handleViolations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensurePermission(w, r, "audit", "read"); !ok {
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	q := compliance.ListQuery{
		Actor: strings.TrimSpace(r.URL.Query().Get("actor")),
		Limit: limit,
	}
	if s := strings.TrimSpace(r.URL.Query().Get("status")); s != "" {
		status := compliance.Status(strings.ToLower(s))
		switch status {
		case compliance.StatusOpen, compliance.StatusReviewed, compliance.StatusClosed:
			q.Status = status
		default:
			writeError(w, r, http.StatusBadRequest, "status must be open, reviewed or closed")
			return
		}
	}

	items, err := a.violations.List(r.Context(), q)
	if err != nil {
		a.log.Error("violation list failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []compliance.Violation{}
	}
	writeJSON(w, http.StatusOK, listViolationsResponse{Items: items, AsOf: time.Now().UTC()})
}

// handleViolationScoped serves /v1/compliance/violations/{id}/status.
func (a *API) handleViolationScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/compliance/violations/")
	if path == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, ok := strings.CutSuffix(path, "/status")
	if !ok || id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if _, ok := a.ensurePermission(w, r, "audit", "write"); !ok {
		return
	}

	var req updateViolationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	status := compliance.Status(strings.ToLower(strings.TrimSpace(req.Status)))
	switch status {
	case compliance.StatusOpen, compliance.StatusReviewed, compliance.StatusClosed:
	default:
		writeError(w, r, http.StatusBadRequest, "status must be open, reviewed or closed")
		return
	}

	if err := a.violations.UpdateStatus(r.Context(), id, status); err != nil {
		if errors.Is(err, compliance.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "violation not found")
			return
		}
		a.log.Error("violation update failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "status": status})
}

func (a *API) handleAuditEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if _, ok := a.ensurePermission(w, r, "audit", "read"); !ok {
		return
	}

	actor := strings.TrimSpace(r.URL.Query().Get("actor"))
	if actor == "" {
		writeError(w, r, http.StatusBadRequest, "actor query parameter is required")
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"), 100, 1, 1000)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	items, err := a.auditStore.ListByActor(r.Context(), actor, limit)
	if err != nil {
		a.log.Error("audit list failed", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []audit.Event{}
	}
	writeJSON(w, http.StatusOK, listAuditEventsResponse{Items: items, AsOf: time.Now().UTC()})
}

func parseLimit(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between 1 and 1000")
	}
	return val, nil
}
