// Package httpapi exposes the authentication and compliance core over HTTP.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
	"medivault.org/internal/compliance"
	"medivault.org/internal/obs"
	"medivault.org/internal/session"
	"medivault.org/internal/stream"
)

// ReadyProbe checks the backing dependencies for /readyz.
type ReadyProbe struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB != nil {
		if err := rp.DB.PingContext(ctx); err != nil {
			return err
		}
	}
	if rp.Redis != nil {
		if err := rp.Redis.Ping(ctx).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Options carries the API dependencies.
type Options struct {
	Auth       *auth.Service
	Sessions   *session.Manager
	Audit      *audit.Logger
	AuditStore audit.Store
	Violations compliance.Store
	Stream     *stream.Stream
	Ready      ReadyProbe
	Version    string
	Logger     *zap.Logger
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	auth       *auth.Service
	sessions   *session.Manager
	audit      *audit.Logger
	auditStore audit.Store
	violations compliance.Store
	stream     *stream.Stream
	ready      ReadyProbe
	version    string
	log        *zap.Logger
}

// New wires routes. Handler() applies the middleware chain.
func New(opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		auth:       opts.Auth,
		sessions:   opts.Sessions,
		audit:      opts.Audit,
		auditStore: opts.AuditStore,
		violations: opts.Violations,
		stream:     opts.Stream,
		ready:      opts.Ready,
		version:    opts.Version,
		log:        opts.Logger,
	}
	if a.log == nil {
		a.log = obs.Logger()
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/mfa", a.handleMFA)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/authz/check", a.handleAuthzCheck)

	a.mux.HandleFunc("/v1/compliance/events", a.handleComplianceEvents)
	a.mux.HandleFunc("/v1/compliance/violations", a.handleViolations)
	a.mux.HandleFunc("/v1/compliance/violations/", a.handleViolationScoped)
	a.mux.HandleFunc("/v1/compliance/stream", a.Stream)
	a.mux.HandleFunc("/v1/audit/events", a.handleAuditEvents)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped http.Handler for the server.
func (a *API) Handler() http.Handler {
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, 1<<20)
	h = RateLimit(h, 20, 10)
	h = SecurityHeaders(h)
	h = obs.Instrument(h)
	h = LoggingJSON(h, a.log)
	h = RequestID(h)
	return h
}
