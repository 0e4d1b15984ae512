package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const bookingColumns = `id, user_id, class_slot_id, status, source, created_at, canceled_at, canceled_by, cancellation_reason`

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id int) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	var b Booking
	err := r.db.GetContext(ctx, &b, query, id)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *repository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int) (*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1 FOR UPDATE`

	var b Booking
	err := tx.GetContext(ctx, &b, query, id)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// FindByUserAndSlot returns the unique (user, slot) row in any status,
// or nil when the user has never touched this slot.
func (r *repository) FindByUserAndSlot(ctx context.Context, tx *sqlx.Tx, userID, slotID int) (*Booking, error) {
	query := `
		SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1 AND class_slot_id = $2
		FOR UPDATE
	`

	var b Booking
	err := tx.GetContext(ctx, &b, query, userID, slotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &b, nil
}

func (r *repository) CountActiveForSlot(ctx context.Context, ext sqlx.ExtContext, slotID int) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM bookings
		WHERE class_slot_id = $1 AND status IN ('reserved', 'confirmed')
	`

	var count int
	err := sqlx.GetContext(ctx, ext, &count, query, slotID)
	if err != nil {
		return 0, err
	}

	return count, nil
}

func (r *repository) Insert(ctx context.Context, tx *sqlx.Tx, userID, slotID int, status BookingStatus, source BookingSource) (*Booking, error) {
	query := `
		INSERT INTO bookings (user_id, class_slot_id, status, source)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + bookingColumns

	var b Booking
	err := tx.GetContext(ctx, &b, query, userID, slotID, status, source)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

// Reactivate reuses a previously canceled (user, slot) row instead of
// inserting a duplicate. Cancellation metadata is wiped and the creation
// time reset so the payment timeout starts over.
func (r *repository) Reactivate(ctx context.Context, tx *sqlx.Tx, id int, status BookingStatus, source BookingSource, now time.Time) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2,
		    source = $3,
		    created_at = $4,
		    canceled_at = NULL,
		    canceled_by = NULL,
		    cancellation_reason = NULL
		WHERE id = $1
		RETURNING ` + bookingColumns

	var b Booking
	err := tx.GetContext(ctx, &b, query, id, status, source, now)
	if err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *repository) MarkCanceled(ctx context.Context, ext sqlx.ExtContext, id int, status BookingStatus, canceledAt time.Time, actor, reason string) error {
	_, err := ext.ExecContext(ctx, `
		UPDATE bookings
		SET status = $2, canceled_at = $3, canceled_by = $4, cancellation_reason = $5
		WHERE id = $1
	`, id, status, canceledAt, actor, reason)
	return err
}

// ConfirmLatestReserved promotes the newest reserved booking for the
// (user, slot) pair. Returns false when no reserved booking exists,
// e.g. the reservation already expired.
func (r *repository) ConfirmLatestReserved(ctx context.Context, tx *sqlx.Tx, userID, slotID int) (bool, error) {
	result, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'confirmed'
		WHERE id = (
			SELECT id FROM bookings
			WHERE user_id = $1 AND class_slot_id = $2 AND status = 'reserved'
			ORDER BY id DESC
			LIMIT 1
			FOR UPDATE
		)
	`, userID, slotID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *repository) ListActiveForSlotWithUsers(ctx context.Context, tx *sqlx.Tx, slotID int) ([]BookingWithUser, error) {
	query := `
		SELECT
			b.id, b.user_id, b.class_slot_id, b.status, b.source, b.created_at,
			b.canceled_at, b.canceled_by, b.cancellation_reason,
			u.tg_id, u.name AS user_name
		FROM bookings b
		JOIN users u ON b.user_id = u.id
		WHERE b.class_slot_id = $1 AND b.status IN ('reserved', 'confirmed')
		ORDER BY b.id ASC
		FOR UPDATE OF b
	`

	var bookings []BookingWithUser
	err := tx.SelectContext(ctx, &bookings, query, slotID)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) FindStaleReserved(ctx context.Context, cutoff time.Time) ([]StaleReservation, error) {
	query := `
		SELECT b.id AS booking_id, b.class_slot_id AS slot_id, b.user_id
		FROM bookings b
		WHERE b.status = 'reserved' AND b.created_at < $1
		ORDER BY b.id ASC
	`

	var stale []StaleReservation
	err := r.db.SelectContext(ctx, &stale, query, cutoff)
	if err != nil {
		return nil, err
	}

	return stale, nil
}

func (r *repository) ListByUser(ctx context.Context, userID int, upcomingOnly bool, now time.Time) ([]BookingWithSlot, error) {
	query := `
		SELECT
			b.id, b.user_id, b.class_slot_id, b.status, b.source, b.created_at,
			b.canceled_at, b.canceled_by, b.cancellation_reason,
			s.starts_at AS slot_starts_at,
			d.name AS direction_name
		FROM bookings b
		JOIN class_slots s ON b.class_slot_id = s.id
		JOIN directions d ON s.direction_id = d.id
		WHERE b.user_id = $1
	`
	args := []interface{}{userID}

	if upcomingOnly {
		query += ` AND s.starts_at >= $2 AND b.status IN ('reserved', 'confirmed')`
		args = append(args, now)
	}

	query += ` ORDER BY s.starts_at ASC`

	var bookings []BookingWithSlot
	err := r.db.SelectContext(ctx, &bookings, query, args...)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *repository) MarkAttendance(ctx context.Context, ext sqlx.ExtContext, id int, status BookingStatus) error {
	_, err := ext.ExecContext(ctx, `
		UPDATE bookings SET status = $2 WHERE id = $1
	`, id, status)
	return err
}

// Stats aggregates the admin dashboard numbers. Today is measured in
// UTC; revenue covers the trailing seven days of paid payments.
func (r *repository) Stats(ctx context.Context, now time.Time) (*Stats, error) {
	stats := &Stats{}

	err := r.db.GetContext(ctx, &stats.Total, `SELECT COUNT(*) FROM bookings`)
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &stats.Confirmed, `
		SELECT COUNT(*) FROM bookings WHERE status = 'confirmed'
	`)
	if err != nil {
		return nil, err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	err = r.db.GetContext(ctx, &stats.BookingsToday, `
		SELECT COUNT(*)
		FROM bookings b
		JOIN class_slots s ON b.class_slot_id = s.id
		WHERE b.status IN ('reserved', 'confirmed')
		  AND s.starts_at >= $1 AND s.starts_at < $2
	`, dayStart, dayStart.Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	var attendance struct {
		Attended  int `db:"attended"`
		Completed int `db:"completed"`
	}
	err = r.db.GetContext(ctx, &attendance, `
		SELECT
			COUNT(*) FILTER (WHERE b.status = 'attended') AS attended,
			COUNT(*) AS completed
		FROM bookings b
		JOIN class_slots s ON b.class_slot_id = s.id
		WHERE s.starts_at < $1 AND b.status IN ('attended', 'no_show')
	`, now)
	if err != nil {
		return nil, err
	}
	if attendance.Completed > 0 {
		stats.AttendanceRate = float64(attendance.Attended) / float64(attendance.Completed) * 100
	}

	err = r.db.GetContext(ctx, &stats.WeeklyRevenueCents, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM payments
		WHERE status = 'paid' AND created_at >= $1
	`, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	return stats, nil
}

func (r *repository) ListBySlot(ctx context.Context, slotID int) ([]BookingWithUser, error) {
	query := `
		SELECT
			b.id, b.user_id, b.class_slot_id, b.status, b.source, b.created_at,
			b.canceled_at, b.canceled_by, b.cancellation_reason,
			u.tg_id, u.name AS user_name
		FROM bookings b
		JOIN users u ON b.user_id = u.id
		WHERE b.class_slot_id = $1
		ORDER BY b.created_at DESC
	`

	var bookings []BookingWithUser
	err := r.db.SelectContext(ctx, &bookings, query, slotID)
	if err != nil {
		return nil, err
	}

	return bookings, nil
}
