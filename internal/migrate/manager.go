// Package migrate applies the SQL schema and seed files shipped under
// migrations/. Bookkeeping lives in one history table in the database
// itself so every replica agrees on what has been applied.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const historyTable = "schema_history"

const (
	kindMigration = "migration"
	kindSeed      = "seed"
)

// Manager executes SQL migrations and seed files stored on disk.
type Manager struct {
	db            *sql.DB
	migrationsDir string
	seedsDir      string
	log           *zap.Logger
}

// Option configures Manager.
type Option func(*Manager)

// WithLogger sets the logger used to report applied files.
func WithLogger(log *zap.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// NewManager constructs a Manager.
func NewManager(db *sql.DB, migrationsDir, seedsDir string, opts ...Option) *Manager {
	m := &Manager{
		db:            db,
		migrationsDir: migrationsDir,
		seedsDir:      seedsDir,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Up applies all pending migrations in lexical order.
func (m *Manager) Up(ctx context.Context) error {
	return m.applyPending(ctx, kindMigration, m.migrationsDir, ".up.sql")
}

// Seed applies seed files idempotently.
func (m *Manager) Seed(ctx context.Context) error {
	return m.applyPending(ctx, kindSeed, m.seedsDir, ".sql")
}

// Down rolls back the most recently applied migration.
func (m *Manager) Down(ctx context.Context) error {
	if err := m.ensureHistory(ctx); err != nil {
		return err
	}
	applied, err := m.applied(ctx, kindMigration)
	if err != nil {
		return err
	}
	if len(applied) == 0 {
		return errors.New("no migrations applied")
	}
	last := applied[len(applied)-1]
	down := strings.TrimSuffix(filepath.Join(m.migrationsDir, last), ".up.sql") + ".down.sql"
	if _, err := os.Stat(down); err != nil {
		return fmt.Errorf("missing down migration for %s", last)
	}
	if err := m.runFile(ctx, down); err != nil {
		return fmt.Errorf("rollback migration %s: %w", last, err)
	}
	_, err = m.db.ExecContext(ctx,
		`delete from `+historyTable+` where kind = $1 and name = $2`, kindMigration, last)
	if err != nil {
		return err
	}
	m.log.Info("migration rolled back", zap.String("name", last))
	return nil
}

// Status returns applied migrations in application order.
func (m *Manager) Status(ctx context.Context) ([]string, error) {
	if err := m.ensureHistory(ctx); err != nil {
		return nil, err
	}
	return m.applied(ctx, kindMigration)
}

// Pending returns migrations present on disk but not yet applied.
func (m *Manager) Pending(ctx context.Context) ([]string, error) {
	if err := m.ensureHistory(ctx); err != nil {
		return nil, err
	}
	return m.pendingFiles(ctx, kindMigration, m.migrationsDir, ".up.sql")
}

func (m *Manager) applyPending(ctx context.Context, kind, dir, suffix string) error {
	if err := m.ensureHistory(ctx); err != nil {
		return err
	}
	names, err := m.pendingFiles(ctx, kind, dir, suffix)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := m.runFile(ctx, filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("apply %s %s: %w", kind, name, err)
		}
		_, err := m.db.ExecContext(ctx,
			`insert into `+historyTable+`(kind, name) values ($1, $2)`, kind, name)
		if err != nil {
			return err
		}
		m.log.Info(kind+" applied", zap.String("name", name))
	}
	return nil
}

func (m *Manager) pendingFiles(ctx context.Context, kind, dir, suffix string) ([]string, error) {
	applied, err := m.applied(ctx, kind)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(applied))
	for _, name := range applied {
		seen[name] = true
	}
	onDisk, err := listSQL(dir, suffix)
	if err != nil {
		return nil, err
	}
	var pending []string
	for _, name := range onDisk {
		if !seen[name] {
			pending = append(pending, name)
		}
	}
	return pending, nil
}

func (m *Manager) ensureHistory(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, `
		create table if not exists `+historyTable+` (
			kind text not null,
			name text not null,
			applied_at timestamptz not null default now(),
			primary key (kind, name)
		);`)
	return err
}

func (m *Manager) applied(ctx context.Context, kind string) ([]string, error) {
	rows, err := m.db.QueryContext(ctx,
		`select name from `+historyTable+` where kind = $1 order by applied_at, name`, kind)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// runFile executes one SQL file inside a transaction.
func (m *Manager) runFile(ctx context.Context, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range splitStatements(string(raw)) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// listSQL returns the matching file names in dir, sorted lexically. A missing
// directory is treated as empty.
func listSQL(dir, suffix string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// splitStatements splits SQL on semicolons outside single-quoted strings.
// Good enough for the DDL shipped with this service.
func splitStatements(sql string) []string {
	var stmts []string
	var current strings.Builder
	var inString bool
	for _, r := range sql {
		current.WriteRune(r)
		switch r {
		case '\'':
			inString = !inString
		case ';':
			if !inString {
				stmts = append(stmts, current.String())
				current.Reset()
			}
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		stmts = append(stmts, current.String())
	}
	return stmts
}
