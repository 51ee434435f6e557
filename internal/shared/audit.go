package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent is a record stored in audit_events. The store is append-only
// and queryable on its own, independent of application logs.
type AuditEvent struct {
	ID       int64
	SchoolID string
	ActorID  string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// SystemActor marks events produced without an authenticated caller,
// for example seed scripts or platform maintenance.
const SystemActor = "system"

// AuditStore writes and reads audit_events.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore returns a new AuditStore.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Record persists the event.
func (s *AuditStore) Record(ctx context.Context, ev AuditEvent) error {
	if s == nil {
		return errors.New("audit store not initialised")
	}
	if ev.Action == "" || ev.Entity == "" || ev.EntityID == "" {
		return errors.New("audit event requires action/entity/entity_id")
	}
	if ev.ActorID == "" {
		ev.ActorID = SystemActor
	}
	metaJSON, err := json.Marshal(ev.Meta)
	if err != nil {
		return err
	}
	var occurredAt any
	if !ev.At.IsZero() {
		occurredAt = ev.At.UTC()
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO audit_events (school_id, actor_id, action, entity, entity_id, meta, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()))`,
		ev.SchoolID, ev.ActorID, ev.Action, ev.Entity, ev.EntityID, metaJSON, occurredAt)
	return err
}

// List returns events for a school ordered newest first.
func (s *AuditStore) List(ctx context.Context, schoolID string, limit int) ([]AuditEvent, error) {
	if s == nil {
		return nil, errors.New("audit store not initialised")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `SELECT id, school_id, actor_id, action, entity, entity_id, meta, occurred_at
FROM audit_events WHERE school_id=$1 ORDER BY occurred_at DESC, id DESC LIMIT $2`, schoolID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var meta []byte
		if err := rows.Scan(&ev.ID, &ev.SchoolID, &ev.ActorID, &ev.Action, &ev.Entity, &ev.EntityID, &meta, &ev.At); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &ev.Meta); err != nil {
				return nil, err
			}
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
