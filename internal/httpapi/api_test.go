package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
	"medivault.org/internal/compliance"
	"medivault.org/internal/mfa"
	"medivault.org/internal/ratelimit"
	"medivault.org/internal/session"
	"medivault.org/internal/stream"
)

type testAPI struct {
	handler    http.Handler
	authSvc    *auth.Service
	creds      *auth.InMemoryStore
	sessions   *session.Manager
	auditLog   *audit.Logger
	auditStore *audit.InMemory
	vstore     *compliance.InMemoryStore
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	creds := auth.NewInMemoryStore()
	auditStore := audit.NewInMemory()
	vstore := compliance.NewInMemoryStore()
	auditLog := audit.NewLogger(auditStore)
	t.Cleanup(auditLog.Close)

	sessions, err := session.NewManager(session.NewInMemoryRegistry(nil), "api-test-secret")
	if err != nil {
		t.Fatal(err)
	}
	challenges := mfa.NewManager(mfa.NewInMemoryChallengeStore())
	limiter := ratelimit.NewInMemory(15*time.Minute, nil)

	authSvc := auth.NewService(creds, limiter, sessions, challenges, auditLog,
		auth.WithLoginLimits(auth.LoginLimits{PerIdentity: 50, PerOrigin: 100}))

	api := New(Options{
		Auth:       authSvc,
		Sessions:   sessions,
		Audit:      auditLog,
		AuditStore: auditStore,
		Violations: vstore,
		Stream:     stream.New(),
		Version:    "test",
	})

	if _, err := authSvc.Register(context.Background(), "admin@clinic.example", "admin-pass", auth.RoleAdmin); err != nil {
		t.Fatal(err)
	}
	if _, err := authSvc.Register(context.Background(), "nurse@clinic.example", "nurse-pass", auth.RoleNurse); err != nil {
		t.Fatal(err)
	}

	return &testAPI{
		handler:    api.Handler(),
		authSvc:    authSvc,
		creds:      creds,
		sessions:   sessions,
		auditLog:   auditLog,
		auditStore: auditStore,
		vstore:     vstore,
	}
}

func (ta *testAPI) request(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:40000"
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ta.handler.ServeHTTP(rr, req)
	return rr
}

func (ta *testAPI) login(t *testing.T, email, password string) string {
	t.Helper()
	rr := ta.request(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": email, "password": password,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("login %s: status %d body %s", email, rr.Code, rr.Body.String())
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.Token
}

func TestLoginIssuesToken(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.login(t, "admin@clinic.example", "admin-pass")
	if token == "" {
		t.Fatal("expected token")
	}

	rr := ta.request(t, http.MethodPost, "/v1/authz/check", token, map[string]string{
		"resource": "audit", "action": "read",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("authz check: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Granted bool `json:"granted"`
	}
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if !resp.Granted {
		t.Fatal("admin must be granted audit:read")
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	ta := newTestAPI(t)
	rr := ta.request(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "admin@clinic.example", "password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	var resp map[string]any
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp["error"] != "invalid credentials" {
		t.Fatalf("unexpected error message %q", resp["error"])
	}
}

func TestLoginValidation(t *testing.T) {
	ta := newTestAPI(t)
	for name, body := range map[string]any{
		"empty body":    nil,
		"missing email": map[string]string{"password": "x"},
		"unknown field": map[string]string{"email": "a@b.c", "password": "x", "extra": "y"},
	} {
		rr := ta.request(t, http.MethodPost, "/v1/auth/login", "", body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, rr.Code)
		}
	}
	if rr := ta.request(t, http.MethodGet, "/v1/auth/login", "", nil); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestProtectedPathsRequireToken(t *testing.T) {
	ta := newTestAPI(t)
	paths := []string{"/v1/authz/check", "/v1/compliance/events", "/v1/auth/logout"}
	for _, p := range paths {
		rr := ta.request(t, http.MethodPost, p, "", map[string]string{})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 without token, got %d", p, rr.Code)
		}
	}
	rr := ta.request(t, http.MethodPost, "/v1/authz/check", "garbage-token", map[string]string{
		"resource": "audit", "action": "read",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}

func TestLogoutRevokes(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.login(t, "admin@clinic.example", "admin-pass")

	if rr := ta.request(t, http.MethodPost, "/v1/auth/logout", token, nil); rr.Code != http.StatusNoContent {
		t.Fatalf("logout: %d", rr.Code)
	}
	rr := ta.request(t, http.MethodPost, "/v1/authz/check", token, map[string]string{
		"resource": "audit", "action": "read",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with revoked token, got %d", rr.Code)
	}
}

func TestComplianceEventIngestion(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.login(t, "admin@clinic.example", "admin-pass")

	rr := ta.request(t, http.MethodPost, "/v1/compliance/events", token, map[string]any{
		"type":          "DATA_ACCESS",
		"action":        "PATIENT_RECORD_VIEW",
		"resource_id":   "patient-7",
		"resource_type": "patient_record",
	})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", rr.Code, rr.Body.String())
	}

	// Drain the pipeline, then the event must be queryable.
	ta.auditLog.Close()
	rr = ta.request(t, http.MethodGet, "/v1/audit/events?actor=admin@clinic.example", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list audit events: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []audit.Event `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range resp.Items {
		if e.Action == "PATIENT_RECORD_VIEW" {
			found = true
			if e.Actor != "admin@clinic.example" {
				t.Fatalf("actor must come from the session, got %q", e.Actor)
			}
		}
	}
	if !found {
		t.Fatalf("ingested event not listed: %+v", resp.Items)
	}
}

func TestComplianceEventPermissionDenied(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.login(t, "nurse@clinic.example", "nurse-pass")

	rr := ta.request(t, http.MethodPost, "/v1/compliance/events", token, map[string]any{
		"type": "DATA_ACCESS", "action": "X",
	})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for nurse, got %d", rr.Code)
	}
}

func TestComplianceEventValidation(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.login(t, "admin@clinic.example", "admin-pass")

	rr := ta.request(t, http.MethodPost, "/v1/compliance/events", token, map[string]any{
		"type": "NOT_A_TYPE", "action": "X",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown type, got %d", rr.Code)
	}
	rr = ta.request(t, http.MethodPost, "/v1/compliance/events", token, map[string]any{
		"type": "DATA_ACCESS",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing action, got %d", rr.Code)
	}
}

func TestViolationListingAndReview(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.login(t, "admin@clinic.example", "admin-pass")

	seed := compliance.Violation{
		ID:          "v-123",
		Type:        compliance.ViolationBulkDataAccess,
		Severity:    compliance.SeverityHigh,
		Description: "x",
		Actor:       "doc@clinic.example",
		OccurredAt:  time.Now().UTC(),
		Status:      compliance.StatusOpen,
	}
	if err := ta.vstore.Create(context.Background(), &seed); err != nil {
		t.Fatal(err)
	}

	rr := ta.request(t, http.MethodGet, "/v1/compliance/violations?actor=doc@clinic.example&status=open", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Items []compliance.Violation `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Items) != 1 || resp.Items[0].ID != "v-123" {
		t.Fatalf("unexpected listing: %+v", resp.Items)
	}

	rr = ta.request(t, http.MethodPost, "/v1/compliance/violations/v-123/status", token, map[string]string{
		"status": "reviewed",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status update: %d %s", rr.Code, rr.Body.String())
	}
	rr = ta.request(t, http.MethodGet, "/v1/compliance/violations?status=open", token, nil)
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if len(resp.Items) != 0 {
		t.Fatalf("reviewed violation still listed as open: %+v", resp.Items)
	}
}

func TestViolationUpdateErrors(t *testing.T) {
	ta := newTestAPI(t)
	token := ta.login(t, "admin@clinic.example", "admin-pass")

	rr := ta.request(t, http.MethodPost, "/v1/compliance/violations/nope/status", token, map[string]string{
		"status": "closed",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown id, got %d", rr.Code)
	}
	rr = ta.request(t, http.MethodPost, "/v1/compliance/violations/nope/status", token, map[string]string{
		"status": "resolved",
	})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}
	rr = ta.request(t, http.MethodGet, "/v1/compliance/violations/nope", token, nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unscoped path, got %d", rr.Code)
	}
}

func TestHealthAndInfoArePublic(t *testing.T) {
	ta := newTestAPI(t)
	for _, p := range []string{"/healthz", "/v1/info", "/openapi.yaml", "/metrics"} {
		rr := ta.request(t, http.MethodGet, p, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 without auth, got %d", p, rr.Code)
		}
	}
}

func TestSecurityHeadersAndRequestID(t *testing.T) {
	ta := newTestAPI(t)
	rr := ta.request(t, http.MethodGet, "/healthz", "", nil)
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatal("missing X-Content-Type-Options")
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID")
	}
}

func TestMFAFlowOverHTTP(t *testing.T) {
	ta := newTestAPI(t)
	// Enroll MFA out of band, then exercise the two-step login.
	key, err := mfa.GenerateSecret("medivault", "admin@clinic.example")
	if err != nil {
		t.Fatal(err)
	}
	if err := ta.creds.SetMFA(context.Background(), "admin@clinic.example", true, key.Secret()); err != nil {
		t.Fatal(err)
	}

	rr := ta.request(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
		"email": "admin@clinic.example", "password": "admin-pass",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with pending MFA, got %d %s", rr.Code, rr.Body.String())
	}
	var pending struct {
		MFA struct {
			Required  bool   `json:"required"`
			Challenge string `json:"challenge"`
		} `json:"mfa"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &pending); err != nil {
		t.Fatal(err)
	}
	if !pending.MFA.Required || pending.MFA.Challenge == "" {
		t.Fatalf("expected MFA challenge, got %+v", pending)
	}

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	rr = ta.request(t, http.MethodPost, "/v1/auth/mfa", "", map[string]string{
		"challenge": pending.MFA.Challenge, "code": code,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("mfa completion: %d %s", rr.Code, rr.Body.String())
	}
}
