// Package config loads service configuration from MEDIVAULT_* environment
// variables, optionally seeded from a .env file during development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every tunable of the authentication and compliance core.
type Config struct {
	ListenAddr string
	LogLevel   string

	PostgresDSN string
	RedisAddr   string
	RedisPass   string

	AuthSecret string
	Issuer     string

	SessionTTL      time.Duration
	MFAChallengeTTL time.Duration

	RateLimitWindow      time.Duration
	RateLimitPerIdentity int
	RateLimitPerOrigin   int

	LockoutMaxFailures int
	LockoutDuration    time.Duration

	AuditRetention time.Duration
	AuditQueueSize int

	AlertSMTPHost string
	AlertSMTPPort int
	AlertFrom     string
	AlertFromPass string
	AlertTo       []string
}

// Load reads configuration from the environment. A missing .env file is not
// an error; a malformed value is.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr: envString("MEDIVAULT_LISTEN_ADDR", ":8080"),
		LogLevel:   envString("MEDIVAULT_LOG_LEVEL", "info"),

		PostgresDSN: os.Getenv("MEDIVAULT_PG_DSN"),
		RedisAddr:   envString("MEDIVAULT_REDIS_ADDR", "localhost:6379"),
		RedisPass:   os.Getenv("MEDIVAULT_REDIS_PASSWORD"),

		AuthSecret: os.Getenv("MEDIVAULT_AUTH_SECRET"),
		Issuer:     envString("MEDIVAULT_TOKEN_ISSUER", "medivault"),

		AlertSMTPHost: os.Getenv("MEDIVAULT_ALERT_SMTP_HOST"),
		AlertFrom:     os.Getenv("MEDIVAULT_ALERT_FROM"),
		AlertFromPass: os.Getenv("MEDIVAULT_ALERT_FROM_PASSWORD"),
	}

	var err error
	if cfg.SessionTTL, err = envDuration("MEDIVAULT_SESSION_TTL", 8*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.MFAChallengeTTL, err = envDuration("MEDIVAULT_MFA_CHALLENGE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitWindow, err = envDuration("MEDIVAULT_RATELIMIT_WINDOW", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerIdentity, err = envInt("MEDIVAULT_RATELIMIT_PER_IDENTITY", 5); err != nil {
		return Config{}, err
	}
	if cfg.RateLimitPerOrigin, err = envInt("MEDIVAULT_RATELIMIT_PER_ORIGIN", 15); err != nil {
		return Config{}, err
	}
	if cfg.LockoutMaxFailures, err = envInt("MEDIVAULT_LOCKOUT_MAX_FAILURES", 5); err != nil {
		return Config{}, err
	}
	if cfg.LockoutDuration, err = envDuration("MEDIVAULT_LOCKOUT_DURATION", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.AuditRetention, err = envDuration("MEDIVAULT_AUDIT_RETENTION", 6*365*24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.AuditQueueSize, err = envInt("MEDIVAULT_AUDIT_QUEUE_SIZE", 1024); err != nil {
		return Config{}, err
	}
	if cfg.AlertSMTPPort, err = envInt("MEDIVAULT_ALERT_SMTP_PORT", 587); err != nil {
		return Config{}, err
	}
	if raw := strings.TrimSpace(os.Getenv("MEDIVAULT_ALERT_TO")); raw != "" {
		for _, addr := range strings.Split(raw, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				cfg.AlertTo = append(cfg.AlertTo, addr)
			}
		}
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return v, nil
}
