package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// PGStore implements CredentialStore on PostgreSQL. Every write is a single
// statement on one row, matching the per-key atomicity the lockout state
// machine relies on.
type PGStore struct {
	db *sql.DB
}

var _ CredentialStore = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) FindByIdentity(ctx context.Context, identity string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `
		select identity, password_hash, role, permissions, status,
		       mfa_enabled, coalesce(mfa_secret,''), failed_attempts, locked_until,
		       created_at, updated_at
		from accounts where identity = $1
	`, normalize(identity))

	var (
		a     Account
		perms []byte
	)
	err := row.Scan(&a.Identity, &a.PasswordHash, &a.Role, &perms, &a.Status,
		&a.MFAEnabled, &a.MFASecret, &a.FailedAttempts, &a.LockedUntil,
		&a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(perms) > 0 {
		_ = json.Unmarshal(perms, &a.Permissions)
	}
	return &a, nil
}

func (s *PGStore) Create(ctx context.Context, a *Account) error {
	perms, err := json.Marshal(a.Permissions)
	if err != nil {
		return err
	}
	status := a.Status
	if status == "" {
		status = StatusActive
	}
	_, err = s.db.ExecContext(ctx, `
		insert into accounts(identity, password_hash, role, permissions, status, mfa_enabled, mfa_secret)
		values ($1,$2,$3,$4,$5,$6,nullif($7,''))
		on conflict (identity) do nothing
	`, normalize(a.Identity), a.PasswordHash, a.Role, perms, status, a.MFAEnabled, a.MFASecret)
	return err
}

func (s *PGStore) IncrementFailures(ctx context.Context, identity string, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	row := s.db.QueryRowContext(ctx, `
		update accounts
		set failed_attempts = failed_attempts + 1,
		    locked_until = case when failed_attempts + 1 >= $2 then $3 else locked_until end,
		    updated_at = now()
		where identity = $1
		returning failed_attempts, locked_until
	`, normalize(identity), threshold, lockUntil)

	var (
		failures    int
		lockedUntil *time.Time
	)
	err := row.Scan(&failures, &lockedUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, ErrNotFound
	}
	if err != nil {
		return 0, nil, err
	}
	return failures, lockedUntil, nil
}

func (s *PGStore) ResetFailureState(ctx context.Context, identity string) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts set failed_attempts = 0, locked_until = null, updated_at = now()
		where identity = $1
	`, normalize(identity))
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func (s *PGStore) SetMFA(ctx context.Context, identity string, enabled bool, secret string) error {
	res, err := s.db.ExecContext(ctx, `
		update accounts set mfa_enabled = $2, mfa_secret = nullif($3,''), updated_at = now()
		where identity = $1
	`, normalize(identity), enabled, secret)
	if err != nil {
		return err
	}
	return checkAffected(res)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
