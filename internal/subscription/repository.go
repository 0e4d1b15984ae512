package subscription

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

const subscriptionColumns = `s.id, s.user_id, s.product_id, s.remaining_classes, s.total_classes, s.valid_from, s.valid_to, s.status, s.created_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindBookableForUpdate picks the subscription that pays for a class in
// the given direction: active, has classes left, inside its validity
// window, and either unscoped or scoped to that direction. Soonest-expiring
// match wins; scoped subscriptions for other directions are skipped
// outright, never selected. The row is locked for the caller's transaction.
func (r *Repository) FindBookableForUpdate(ctx context.Context, tx *sqlx.Tx, userID, directionID int, now time.Time) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN products p ON s.product_id = p.id
		WHERE s.user_id = $1
		  AND s.status = 'active'
		  AND s.remaining_classes > 0
		  AND s.valid_from <= $2
		  AND s.valid_to >= $2
		  AND (p.direction_limit_id IS NULL OR p.direction_limit_id = $3)
		ORDER BY s.valid_to ASC
		LIMIT 1
		FOR UPDATE OF s
	`

	var sub Subscription
	err := tx.GetContext(ctx, &sub, query, userID, now, directionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

// FindGrantTargetForUpdate finds the subscription a compensation credit
// should land on: the soonest-expiring active one whose scope is
// compatible with the slot's direction. remaining_classes may be zero.
func (r *Repository) FindGrantTargetForUpdate(ctx context.Context, tx *sqlx.Tx, userID int, directionID *int, now time.Time) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		JOIN products p ON s.product_id = p.id
		WHERE s.user_id = $1
		  AND s.status = 'active'
		  AND s.valid_to >= $2
		  AND (p.direction_limit_id IS NULL OR $3::int IS NULL OR p.direction_limit_id = $3)
		ORDER BY s.valid_to ASC
		LIMIT 1
		FOR UPDATE OF s
	`

	var sub Subscription
	err := tx.GetContext(ctx, &sub, query, userID, now, directionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

// FindActiveByProductForUpdate returns the user's longest-lived active
// subscription for a specific product (used for compensation top-ups).
func (r *Repository) FindActiveByProductForUpdate(ctx context.Context, tx *sqlx.Tx, userID, productID int, now time.Time) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `
		FROM subscriptions s
		WHERE s.user_id = $1
		  AND s.status = 'active'
		  AND s.product_id = $2
		  AND s.valid_to >= $3
		ORDER BY s.valid_to DESC
		LIMIT 1
		FOR UPDATE OF s
	`

	var sub Subscription
	err := tx.GetContext(ctx, &sub, query, userID, productID, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &sub, nil
}

func (r *Repository) ConsumeClass(ctx context.Context, ext sqlx.ExtContext, id int) error {
	result, err := ext.ExecContext(ctx, `
		UPDATE subscriptions
		SET remaining_classes = remaining_classes - 1
		WHERE id = $1 AND remaining_classes > 0
	`, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errors.New("subscription has no remaining classes")
	}

	return nil
}

// AddClass returns a class to the subscription; compensation grants also
// bump the total so usage reports stay consistent.
func (r *Repository) AddClass(ctx context.Context, ext sqlx.ExtContext, id int, bumpTotal bool) error {
	query := `
		UPDATE subscriptions
		SET remaining_classes = remaining_classes + 1`
	if bumpTotal {
		query += `, total_classes = total_classes + 1`
	}
	query += ` WHERE id = $1`

	_, err := ext.ExecContext(ctx, query, id)
	return err
}

func (r *Repository) ExtendValidity(ctx context.Context, ext sqlx.ExtContext, id int, until time.Time) error {
	_, err := ext.ExecContext(ctx, `
		UPDATE subscriptions
		SET valid_to = $2
		WHERE id = $1 AND valid_to < $2
	`, id, until)
	return err
}

func (r *Repository) Create(ctx context.Context, ext sqlx.ExtContext, userID, productID, classes int, validFrom, validTo time.Time) (*Subscription, error) {
	query := `
		INSERT INTO subscriptions (user_id, product_id, remaining_classes, total_classes, valid_from, valid_to, status)
		VALUES ($1, $2, $3, $3, $4, $5, 'active')
		RETURNING id, user_id, product_id, remaining_classes, total_classes, valid_from, valid_to, status, created_at
	`

	var sub Subscription
	err := sqlx.GetContext(ctx, ext, &sub, query, userID, productID, classes, validFrom, validTo)
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `, p.direction_limit_id
		FROM subscriptions s
		JOIN products p ON s.product_id = p.id
		WHERE s.id = $1
	`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, id)
	if err != nil {
		return nil, err
	}

	return &sub, nil
}

func (r *Repository) ListActiveByUser(ctx context.Context, userID int, now time.Time) ([]Subscription, error) {
	query := `
		SELECT ` + subscriptionColumns + `, p.direction_limit_id
		FROM subscriptions s
		JOIN products p ON s.product_id = p.id
		WHERE s.user_id = $1
		  AND s.status = 'active'
		  AND s.valid_from <= $2
		  AND s.valid_to >= $2
		ORDER BY s.valid_to ASC
	`

	var subs []Subscription
	err := r.db.SelectContext(ctx, &subs, query, userID, now)
	if err != nil {
		return nil, err
	}

	return subs, nil
}
