package mfa

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
)

func TestChallengeLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m := NewManager(NewInMemoryChallengeStore(),
		WithChallengeTTL(5*time.Minute),
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	c, err := m.Begin(ctx, "doc@clinic.example")
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if c.Token == "" || c.Identity != "doc@clinic.example" {
		t.Fatalf("unexpected challenge: %+v", c)
	}
	if c.ExpiresAt.Sub(now) != 5*time.Minute {
		t.Fatalf("unexpected ttl: %v", c.ExpiresAt.Sub(now))
	}

	got, err := m.Redeem(ctx, c.Token)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if got.Identity != "doc@clinic.example" {
		t.Fatalf("unexpected identity %q", got.Identity)
	}

	// One-shot: the second redemption fails.
	if _, err := m.Redeem(ctx, c.Token); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid on replay, got %v", err)
	}
}

func TestRedeemExpiredChallenge(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	m := NewManager(NewInMemoryChallengeStore(),
		WithClock(func() time.Time { return now }))
	ctx := context.Background()

	c, err := m.Begin(ctx, "doc@clinic.example")
	if err != nil {
		t.Fatal(err)
	}

	now = now.Add(6 * time.Minute)
	if _, err := m.Redeem(ctx, c.Token); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid after expiry, got %v", err)
	}
}

func TestRedeemUnknownToken(t *testing.T) {
	m := NewManager(NewInMemoryChallengeStore())
	if _, err := m.Redeem(context.Background(), "no-such-token"); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid, got %v", err)
	}
	if _, err := m.Redeem(context.Background(), ""); !errors.Is(err, ErrChallengeInvalid) {
		t.Fatalf("expected ErrChallengeInvalid for empty token, got %v", err)
	}
}

func TestValidateCode(t *testing.T) {
	key, err := GenerateSecret("medivault", "doc@clinic.example")
	if err != nil {
		t.Fatal(err)
	}
	code, err := totp.GenerateCode(key.Secret(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if !ValidateCode(code, key.Secret()) {
		t.Fatal("freshly generated code must validate")
	}
	if ValidateCode("000000", key.Secret()) {
		t.Fatal("static code must not validate")
	}
	if ValidateCode(code, "") {
		t.Fatal("empty secret must not validate")
	}
}
