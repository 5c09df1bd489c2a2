package compliance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// PGStore implements Store on PostgreSQL.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Create(ctx context.Context, v *Violation) error {
	_, err := s.db.ExecContext(ctx, `
		insert into compliance_violations(
			id, violation_type, severity, description, actor, resource_id,
			occurred_at, remediation, status)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, v.ID, string(v.Type), string(v.Severity), v.Description,
		nullable(v.Actor), nullable(v.ResourceID), v.OccurredAt, v.Remediation, string(v.Status))
	return err
}

func (s *PGStore) HasOpenSince(ctx context.Context, actor string, t ViolationType, since time.Time) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		select exists(
			select 1 from compliance_violations
			where actor = $1 and violation_type = $2 and status = 'open' and occurred_at >= $3
		)
	`, actor, string(t), since).Scan(&exists)
	return exists, err
}

func (s *PGStore) List(ctx context.Context, q ListQuery) ([]Violation, error) {
	limit := q.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var (
		clauses []string
		args    []any
	)
	if q.Actor != "" {
		args = append(args, q.Actor)
		clauses = append(clauses, fmt.Sprintf("actor = $%d", len(args)))
	}
	if q.Status != "" {
		args = append(args, string(q.Status))
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	query := `select id, violation_type, severity, description, coalesce(actor,''),
	       coalesce(resource_id,''), occurred_at, remediation, status
	from compliance_violations`
	if len(clauses) > 0 {
		query += " where " + strings.Join(clauses, " and ")
	}
	args = append(args, limit)
	query += fmt.Sprintf(" order by occurred_at desc limit $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Violation
	for rows.Next() {
		var (
			v        Violation
			typ      string
			severity string
			status   string
		)
		if err := rows.Scan(&v.ID, &typ, &severity, &v.Description, &v.Actor,
			&v.ResourceID, &v.OccurredAt, &v.Remediation, &status); err != nil {
			return nil, err
		}
		v.Type = ViolationType(typ)
		v.Severity = Severity(severity)
		v.Status = Status(status)
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PGStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	res, err := s.db.ExecContext(ctx, `
		update compliance_violations set status = $2 where id = $1
	`, id, string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
