package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
)

type ActorType string

const (
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
)

// Entry is an append-only record of a notable system-driven action.
type Entry struct {
	ID        int             `db:"id" json:"id"`
	ActorType ActorType       `db:"actor_type" json:"actor_type"`
	ActorID   *int            `db:"actor_id" json:"actor_id,omitempty"`
	Action    string          `db:"action" json:"action"`
	Payload   json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Record appends an entry within the caller's transaction so the audit
// trail commits or rolls back together with the action it describes.
func (r *Repository) Record(ctx context.Context, ext sqlx.ExtContext, actorType ActorType, actorID *int, action string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = ext.ExecContext(ctx, `
		INSERT INTO audit_logs (actor_type, actor_id, action, payload)
		VALUES ($1, $2, $3, $4)
	`, actorType, actorID, action, data)
	return err
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	var entries []Entry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, actor_type, actor_id, action, payload, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}

	return entries, nil
}
