// Command smoke exercises a running API end to end: login, permission
// check, audit event ingestion, violation listing, logout. It needs a
// provisioned account; point it at a development instance.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"medivault.org/internal/client"
)

func main() {
	log.SetFlags(0)

	baseURL := envOr("MEDIVAULT_SMOKE_URL", "http://localhost:8080")
	email := os.Getenv("MEDIVAULT_SMOKE_EMAIL")
	password := os.Getenv("MEDIVAULT_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("set MEDIVAULT_SMOKE_EMAIL and MEDIVAULT_SMOKE_PASSWORD")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	c := client.New(baseURL)

	res, err := c.Login(ctx, email, password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}
	if res.MFA != nil && res.MFA.Required {
		log.Fatal("login: account requires MFA, use a smoke account without it")
	}
	if res.Token == "" {
		log.Fatal("login: no token in response")
	}
	c.SetToken(res.Token)

	granted, err := c.Check(ctx, "audit", "write")
	if err != nil {
		log.Fatalf("authz check: %v", err)
	}
	if !granted {
		log.Fatal("authz check: smoke account must hold audit:write")
	}

	if err := c.RecordEvent(ctx, client.EventInput{
		Type:         "DATA_ACCESS",
		Action:       "PATIENT_RECORD_VIEW",
		ResourceID:   "smoke-patient-1",
		ResourceType: "patient_record",
	}); err != nil {
		log.Fatalf("record event: %v", err)
	}

	if _, err := c.ListViolations(ctx, email, "", 10); err != nil {
		log.Fatalf("list violations: %v", err)
	}

	if err := c.Logout(ctx); err != nil {
		log.Fatalf("logout: %v", err)
	}
	if _, err := c.Check(ctx, "audit", "write"); err == nil {
		log.Fatal("revoked session still accepted")
	}

	fmt.Println("✅ authcore smoke test passed")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
