package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"medivault.org/internal/alert"
	"medivault.org/internal/audit"
	"medivault.org/internal/auth"
	"medivault.org/internal/compliance"
	"medivault.org/internal/config"
	"medivault.org/internal/httpapi"
	"medivault.org/internal/mfa"
	"medivault.org/internal/obs"
	"medivault.org/internal/ratelimit"
	"medivault.org/internal/session"
	"medivault.org/internal/store/pg"
	redisstore "medivault.org/internal/store/redis"
	"medivault.org/internal/stream"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		obs.Logger().Fatal("load config", zap.Error(err))
	}

	log := obs.InitLogger(cfg.LogLevel)
	defer obs.Sync()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Postgres is optional; without a DSN everything runs on the in-memory
	// stores, which is enough for local development and the smoke binary.
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = pg.Open(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("open postgres", zap.Error(err))
		}
		if err := pg.Ping(ctx, db); err != nil {
			log.Fatal("ping postgres", zap.Error(err))
		}
	}

	var rdb *goredis.Client
	if cfg.RedisAddr != "" {
		rdb, err = redisstore.Open(ctx, cfg.RedisAddr, cfg.RedisPass)
		if err != nil {
			if cfg.PostgresDSN != "" {
				log.Fatal("open redis", zap.Error(err))
			}
			log.Warn("redis unavailable, using in-memory counters and sessions",
				zap.Error(err))
			rdb = nil
		}
	}

	secret := cfg.AuthSecret
	if secret == "" {
		// Ephemeral secret for development only; sessions do not survive a
		// restart and multi-replica deployments will reject each other's
		// tokens.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			log.Fatal("generate auth secret", zap.Error(err))
		}
		secret = base64.RawURLEncoding.EncodeToString(buf)
		log.Warn("MEDIVAULT_AUTH_SECRET is not set, using an ephemeral secret")
	}

	var (
		credStore      auth.CredentialStore
		auditStore     audit.Store
		violationStore compliance.Store
	)
	if db != nil {
		credStore = auth.NewPGStore(db)
		auditStore = audit.NewPGStore(db)
		violationStore = compliance.NewPGStore(db)
	} else {
		credStore = auth.NewInMemoryStore()
		auditStore = audit.NewInMemory()
		violationStore = compliance.NewInMemoryStore()
	}

	var (
		limiter    ratelimit.Limiter
		registry   session.Registry
		challenges mfa.ChallengeStore
	)
	if rdb != nil {
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimitWindow)
		registry = session.NewRedisRegistry(rdb)
		challenges = mfa.NewRedisChallengeStore(rdb)
	} else {
		limiter = ratelimit.NewInMemory(cfg.RateLimitWindow, time.Now)
		registry = session.NewInMemoryRegistry(time.Now)
		challenges = mfa.NewInMemoryChallengeStore()
	}

	sessions, err := session.NewManager(registry, secret,
		session.WithTTL(cfg.SessionTTL),
		session.WithIssuer(cfg.Issuer),
	)
	if err != nil {
		log.Fatal("session manager", zap.Error(err))
	}

	challengeMgr := mfa.NewManager(challenges, mfa.WithChallengeTTL(cfg.MFAChallengeTTL))

	var sender alert.Sender
	if cfg.AlertSMTPHost != "" && cfg.AlertFrom != "" && len(cfg.AlertTo) > 0 {
		sender, err = alert.NewEmailSender(alert.EmailConfig{
			SMTPHost: cfg.AlertSMTPHost,
			SMTPPort: cfg.AlertSMTPPort,
			From:     cfg.AlertFrom,
			FromPass: cfg.AlertFromPass,
			To:       cfg.AlertTo,
		})
		if err != nil {
			log.Fatal("alert sender", zap.Error(err))
		}
	} else {
		sender = alert.NewLogSender(log)
	}
	dispatcher := alert.NewDispatcher(sender, alert.WithLogger(log))

	violationStream := stream.New()

	analyzer := compliance.NewAnalyzer(auditStore, violationStore,
		compliance.WithAlerter(dispatcher),
		compliance.WithPublisher(violationStream),
		compliance.WithLogger(log),
	)

	auditLog := audit.NewLogger(auditStore,
		audit.WithQueueSize(cfg.AuditQueueSize),
		audit.WithRetention(cfg.AuditRetention),
		audit.WithHook(analyzer.HookFor()),
		audit.WithLogger(log),
	)

	authSvc := auth.NewService(credStore, limiter, sessions, challengeMgr, auditLog,
		auth.WithLoginLimits(auth.LoginLimits{
			PerIdentity: cfg.RateLimitPerIdentity,
			PerOrigin:   cfg.RateLimitPerOrigin,
		}),
		auth.WithLockoutPolicy(auth.LockoutPolicy{
			MaxFailures: cfg.LockoutMaxFailures,
			Duration:    cfg.LockoutDuration,
		}),
		auth.WithLogger(log),
	)

	api := httpapi.New(httpapi.Options{
		Auth:       authSvc,
		Sessions:   sessions,
		Audit:      auditLog,
		AuditStore: auditStore,
		Violations: violationStore,
		Stream:     violationStream,
		Ready:      httpapi.ReadyProbe{DB: db, Redis: rdb},
		Version:    version,
		Logger:     log,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("starting medivault-authcore",
		zap.String("version", version),
		zap.String("addr", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	auditLog.Close()
	dispatcher.Close()
	if rdb != nil {
		_ = rdb.Close()
	}
	if db != nil {
		_ = db.Close()
	}
	log.Info("stopped")
}
