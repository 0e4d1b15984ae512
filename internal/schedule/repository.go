package schedule

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const slotColumns = `id, direction_id, starts_at, duration_min, capacity, price_single_visit_cents, allow_subscription, status, created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, req CreateSlotRequest) (*Slot, error) {
	allowSub := true
	if req.AllowSubscription != nil {
		allowSub = *req.AllowSubscription
	}

	query := `
		INSERT INTO class_slots (direction_id, starts_at, duration_min, capacity, price_single_visit_cents, allow_subscription)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + slotColumns

	var slot Slot
	err := r.db.GetContext(ctx, &slot, query,
		req.DirectionID, req.StartsAt, req.DurationMin, req.Capacity,
		req.PriceSingleVisitCents, allowSub,
	)
	if err != nil {
		return nil, err
	}

	return &slot, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM class_slots WHERE id = $1`

	var slot Slot
	err := r.db.GetContext(ctx, &slot, query, id)
	if err != nil {
		return nil, err
	}

	return &slot, nil
}

// GetForUpdate takes an exclusive row lock on the slot. Every capacity or
// credit decision for the slot is serialized behind this lock.
func (r *Repository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int) (*Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM class_slots WHERE id = $1 FOR UPDATE`

	var slot Slot
	err := tx.GetContext(ctx, &slot, query, id)
	if err != nil {
		return nil, err
	}

	return &slot, nil
}

func (r *Repository) MarkCanceled(ctx context.Context, ext sqlx.ExtContext, id int) error {
	_, err := ext.ExecContext(ctx, `
		UPDATE class_slots
		SET status = 'canceled'
		WHERE id = $1
	`, id)
	return err
}

func (r *Repository) Update(ctx context.Context, id int, req UpdateSlotRequest) (*Slot, error) {
	query := `
		UPDATE class_slots
		SET starts_at = COALESCE($2, starts_at),
		    duration_min = COALESCE($3, duration_min),
		    capacity = COALESCE($4, capacity),
		    price_single_visit_cents = COALESCE($5, price_single_visit_cents),
		    allow_subscription = COALESCE($6, allow_subscription)
		WHERE id = $1
		RETURNING ` + slotColumns

	var slot Slot
	err := r.db.GetContext(ctx, &slot, query, id,
		req.StartsAt, req.DurationMin, req.Capacity,
		req.PriceSingleVisitCents, req.AllowSubscription,
	)
	if err != nil {
		return nil, err
	}

	return &slot, nil
}

// ListWithAvailability returns slots with their active booking counts so
// the bot and admin UI can show free seats without extra round trips.
func (r *Repository) ListWithAvailability(ctx context.Context, directionID *int, from, to *time.Time) ([]SlotWithAvailability, error) {
	query := `
		SELECT
			s.id,
			s.direction_id,
			s.starts_at,
			s.duration_min,
			s.capacity,
			s.price_single_visit_cents,
			s.allow_subscription,
			s.status,
			s.created_at,
			d.name AS direction_name,
			COUNT(b.id) FILTER (WHERE b.status IN ('reserved', 'confirmed')) AS booked_seats,
			GREATEST(s.capacity - COUNT(b.id) FILTER (WHERE b.status IN ('reserved', 'confirmed')), 0) AS available_seats
		FROM class_slots s
		JOIN directions d ON s.direction_id = d.id
		LEFT JOIN bookings b ON b.class_slot_id = s.id
		WHERE ($1::int IS NULL OR s.direction_id = $1)
		  AND ($2::timestamptz IS NULL OR s.starts_at >= $2)
		  AND ($3::timestamptz IS NULL OR s.starts_at <= $3)
		GROUP BY s.id, d.name
		ORDER BY s.starts_at ASC
	`

	var slots []SlotWithAvailability
	err := r.db.SelectContext(ctx, &slots, query, directionID, from, to)
	if err != nil {
		return nil, err
	}

	return slots, nil
}

// ListStartingBetween feeds the reminder job.
func (r *Repository) ListStartingBetween(ctx context.Context, from, to time.Time) ([]Slot, error) {
	query := `
		SELECT ` + slotColumns + `
		FROM class_slots
		WHERE status = 'scheduled' AND starts_at BETWEEN $1 AND $2
		ORDER BY starts_at ASC
	`

	var slots []Slot
	err := r.db.SelectContext(ctx, &slots, query, from, to)
	if err != nil {
		return nil, err
	}

	return slots, nil
}
