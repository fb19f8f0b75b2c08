// Package postgres provides the durable audit store. The table is
// append-only and partitioned by organization via an indexed column;
// retention and archival run outside the core.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/goccy/go-json"

	"medivault/internal/audit"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table and its indexes if absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_events (
			id                UUID PRIMARY KEY,
			organization_id   TEXT NOT NULL,
			event_type        TEXT NOT NULL,
			family            TEXT NOT NULL,
			level             TEXT NOT NULL,
			occurred_at       TIMESTAMPTZ NOT NULL,
			actor             JSONB NOT NULL,
			hashed_subject_id TEXT,
			fields            JSONB,
			escalate          BOOLEAN NOT NULL DEFAULT FALSE,
			request_id        TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_org_time
			ON audit_events (organization_id, occurred_at);
		CREATE INDEX IF NOT EXISTS idx_audit_events_actor
			ON audit_events ((actor->>'user_id'));
	`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	actor, err := json.Marshal(event.Actor)
	if err != nil {
		return fmt.Errorf("encode actor: %w", err)
	}
	fields, err := json.Marshal(event.Fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(id, organization_id, event_type, family, level, occurred_at,
			 actor, hashed_subject_id, fields, escalate, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID,
		event.Actor.OrganizationID,
		string(event.Type),
		string(event.Family),
		string(event.Level),
		event.Timestamp,
		actor,
		nullable(event.HashedSubjectID),
		fields,
		event.Escalate,
		nullable(event.RequestID),
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Event, error) {
	where := []string{"organization_id = $1"}
	args := []any{filter.OrganizationID}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ActorID != "" {
		where = append(where, "actor->>'user_id' = "+arg(filter.ActorID))
	}
	if filter.Level != "" {
		where = append(where, "level = "+arg(string(filter.Level)))
	}
	if !filter.From.IsZero() {
		where = append(where, "occurred_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "occurred_at < "+arg(filter.To))
	}
	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = arg(string(t))
		}
		where = append(where, "event_type IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `
		SELECT id, event_type, family, level, occurred_at,
		       actor, hashed_subject_id, fields, escalate, request_id
		FROM audit_events
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY occurred_at`
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []audit.Event
	for rows.Next() {
		var (
			event         audit.Event
			actorRaw      []byte
			fieldsRaw     []byte
			hashedSubject sql.NullString
			requestID     sql.NullString
		)
		if err := rows.Scan(&event.ID, &event.Type, &event.Family, &event.Level,
			&event.Timestamp, &actorRaw, &hashedSubject, &fieldsRaw,
			&event.Escalate, &requestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if err := json.Unmarshal(actorRaw, &event.Actor); err != nil {
			return nil, fmt.Errorf("decode actor: %w", err)
		}
		if len(fieldsRaw) > 0 {
			if err := json.Unmarshal(fieldsRaw, &event.Fields); err != nil {
				return nil, fmt.Errorf("decode fields: %w", err)
			}
		}
		event.HashedSubjectID = hashedSubject.String
		event.RequestID = requestID.String
		events = append(events, event)
	}
	return events, rows.Err()
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
