package payment

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

const paymentColumns = `id, user_id, product_id, class_slot_id, amount_cents, currency, provider, order_id, provider_payment_id, confirmation_url, status, purpose, created_at, updated_at`

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, p *Payment) (*Payment, error) {
	query := `
		INSERT INTO payments (user_id, product_id, class_slot_id, amount_cents, currency, provider, order_id, purpose)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + paymentColumns

	var created Payment
	err := r.db.GetContext(ctx, &created, query,
		p.UserID, p.ProductID, p.ClassSlotID, p.AmountCents,
		p.Currency, p.Provider, p.OrderID, p.Purpose,
	)
	if err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *Repository) SetConfirmationURL(ctx context.Context, id int, url string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments
		SET confirmation_url = $2, updated_at = NOW()
		WHERE id = $1
	`, id, url)
	return err
}

// GetByOrderIDForUpdate locks the payment row so concurrent webhook
// retries serialize on it.
func (r *Repository) GetByOrderIDForUpdate(ctx context.Context, tx *sqlx.Tx, orderID string) (*Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE order_id = $1 FOR UPDATE`

	var p Payment
	err := tx.GetContext(ctx, &p, query, orderID)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *Repository) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id int, status PaymentStatus, providerPaymentID *string, now time.Time) error {
	_, err := ext.ExecContext(ctx, `
		UPDATE payments
		SET status = $2,
		    provider_payment_id = COALESCE($3, provider_payment_id),
		    updated_at = $4
		WHERE id = $1
	`, id, status, providerPaymentID, now)
	return err
}

// CancelPendingForUserSlot voids payment intents left behind when a
// booking dies (slot canceled, reservation expired). The confirmation
// URL is cleared so a stale link cannot be paid.
func (r *Repository) CancelPendingForUserSlot(ctx context.Context, ext sqlx.ExtContext, userID, slotID int, now time.Time) error {
	_, err := ext.ExecContext(ctx, `
		UPDATE payments
		SET status = 'canceled', confirmation_url = NULL, updated_at = $3
		WHERE user_id = $1 AND class_slot_id = $2 AND status = 'pending'
	`, userID, slotID, now)
	return err
}

func (r *Repository) FindLatestForUserSlot(ctx context.Context, userID, slotID int) (*Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE user_id = $1 AND class_slot_id = $2
		ORDER BY id DESC
		LIMIT 1
	`

	var p Payment
	err := r.db.GetContext(ctx, &p, query, userID, slotID)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Payment, error) {
	if limit <= 0 {
		limit = 100
	}

	var payments []Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT `+paymentColumns+`
		FROM payments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}

	return payments, nil
}
