package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreFindByIdentity(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"identity", "password_hash", "role", "permissions", "status",
		"mfa_enabled", "mfa_secret", "failed_attempts", "locked_until",
		"created_at", "updated_at",
	}).AddRow("doc@clinic.example", "hash", "doctor", []byte(`["patients:read"]`), "active",
		false, "", 2, nil, now, now)

	mock.ExpectQuery("select identity, password_hash, role, permissions, status").
		WithArgs("doc@clinic.example").
		WillReturnRows(rows)

	store := NewPGStore(db)
	a, err := store.FindByIdentity(context.Background(), "Doc@Clinic.Example ")
	if err != nil {
		t.Fatalf("FindByIdentity: %v", err)
	}
	if a.Identity != "doc@clinic.example" || a.FailedAttempts != 2 {
		t.Fatalf("unexpected account: %+v", a)
	}
	if len(a.Permissions) != 1 || a.Permissions[0] != "patients:read" {
		t.Fatalf("permissions not decoded: %v", a.Permissions)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreFindByIdentityNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("select identity, password_hash, role, permissions, status").
		WithArgs("ghost@clinic.example").
		WillReturnRows(sqlmock.NewRows([]string{"identity"}))

	store := NewPGStore(db)
	if _, err := store.FindByIdentity(context.Background(), "ghost@clinic.example"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGStoreIncrementFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	until := time.Now().UTC().Add(30 * time.Minute)
	mock.ExpectQuery("update accounts").
		WithArgs("doc@clinic.example", 5, until).
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts", "locked_until"}).
			AddRow(5, until))

	store := NewPGStore(db)
	failures, lockedUntil, err := store.IncrementFailures(context.Background(), "doc@clinic.example", 5, until)
	if err != nil {
		t.Fatalf("IncrementFailures: %v", err)
	}
	if failures != 5 {
		t.Fatalf("expected counter from the row, got %d", failures)
	}
	if lockedUntil == nil || !lockedUntil.Equal(until) {
		t.Fatalf("expected lock expiry %v, got %v", until, lockedUntil)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGStoreIncrementFailuresBelowThreshold(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	until := time.Now().UTC().Add(30 * time.Minute)
	mock.ExpectQuery("update accounts").
		WithArgs("doc@clinic.example", 5, until).
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts", "locked_until"}).
			AddRow(2, nil))

	store := NewPGStore(db)
	failures, lockedUntil, err := store.IncrementFailures(context.Background(), "doc@clinic.example", 5, until)
	if err != nil {
		t.Fatalf("IncrementFailures: %v", err)
	}
	if failures != 2 || lockedUntil != nil {
		t.Fatalf("expected 2 failures and no lock, got %d / %v", failures, lockedUntil)
	}
}

func TestPGStoreIncrementMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	until := time.Now().UTC().Add(30 * time.Minute)
	mock.ExpectQuery("update accounts").
		WithArgs("ghost@clinic.example", 5, until).
		WillReturnRows(sqlmock.NewRows([]string{"failed_attempts", "locked_until"}))

	store := NewPGStore(db)
	_, _, err = store.IncrementFailures(context.Background(), "ghost@clinic.example", 5, until)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing row, got %v", err)
	}
}
