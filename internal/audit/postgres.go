package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PGStore implements Store on PostgreSQL. Events are append-only; the table
// has no UPDATE path.
type PGStore struct {
	db *sql.DB
}

var _ Store = (*PGStore)(nil)

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Append(ctx context.Context, e *Event) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_events(
			id, event_type, actor, resource_id, resource_type, action,
			origin, agent, occurred_at, success, risk, metadata, retention_until)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, e.ID, string(e.Type), e.Actor, nullable(e.ResourceID), nullable(e.ResourceType), e.Action,
		nullable(e.Origin), nullable(e.Agent), e.OccurredAt, e.Success, string(e.Risk), meta, e.RetentionUntil)
	return err
}

func (s *PGStore) CountByActor(ctx context.Context, actor string, q CountQuery) (int, error) {
	var (
		clauses = []string{"actor = $1"}
		args    = []any{actor}
	)
	if q.Type != "" {
		args = append(args, string(q.Type))
		clauses = append(clauses, fmt.Sprintf("event_type = $%d", len(args)))
	}
	if q.Success != nil {
		args = append(args, *q.Success)
		clauses = append(clauses, fmt.Sprintf("success = $%d", len(args)))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		clauses = append(clauses, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	query := "select count(*) from audit_events where " + strings.Join(clauses, " and ")
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *PGStore) OriginsByActor(ctx context.Context, actor string, since time.Time, excludeID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		select distinct origin from audit_events
		where actor = $1 and origin is not null and occurred_at >= $2 and id <> $3
	`, actor, since, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var origins []string
	for rows.Next() {
		var origin string
		if err := rows.Scan(&origin); err != nil {
			return nil, err
		}
		origins = append(origins, origin)
	}
	return origins, rows.Err()
}

func (s *PGStore) ListByActor(ctx context.Context, actor string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		select id, event_type, actor, coalesce(resource_id,''), coalesce(resource_type,''),
		       action, coalesce(origin,''), coalesce(agent,''), occurred_at, success, risk,
		       metadata, retention_until
		from audit_events
		where actor = $1
		order by occurred_at desc
		limit $2
	`, actor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			e    Event
			typ  string
			risk string
			meta []byte
		)
		if err := rows.Scan(&e.ID, &typ, &e.Actor, &e.ResourceID, &e.ResourceType,
			&e.Action, &e.Origin, &e.Agent, &e.OccurredAt, &e.Success, &risk,
			&meta, &e.RetentionUntil); err != nil {
			return nil, err
		}
		e.Type = EventType(typ)
		e.Risk = RiskLevel(risk)
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Metadata)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
