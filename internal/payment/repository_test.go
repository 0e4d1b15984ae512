package payment

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (*Repository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewRepository(sqlxDB), sqlxDB, mock
}

func paymentRows(id int, orderID, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "user_id", "product_id", "class_slot_id", "amount_cents", "currency",
		"provider", "order_id", "provider_payment_id", "confirmation_url",
		"status", "purpose", "created_at", "updated_at",
	}).AddRow(id, 5, nil, 1, int64(50000), "RUB", "stub", orderID, nil, nil, status, "single_visit", now, now)
}

func TestRepository_Insert(t *testing.T) {
	repo, _, mock := setupMock(t)
	slotID := 1

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO payments")).
		WithArgs(5, nil, &slotID, int64(50000), "RUB", "stub", "order-1", PurposeSingleVisit).
		WillReturnRows(paymentRows(9, "order-1", "pending"))

	p, err := repo.Insert(context.Background(), &Payment{
		UserID:      5,
		ClassSlotID: &slotID,
		AmountCents: 50000,
		Currency:    "RUB",
		Provider:    "stub",
		OrderID:     "order-1",
		Purpose:     PurposeSingleVisit,
	})
	require.NoError(t, err)
	require.Equal(t, 9, p.ID)
	require.Equal(t, StatusPending, p.Status)
}

func TestRepository_GetByOrderIDForUpdate(t *testing.T) {
	repo, db, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE order_id = $1 FOR UPDATE")).
		WithArgs("order-1").
		WillReturnRows(paymentRows(9, "order-1", "pending"))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	p, err := repo.GetByOrderIDForUpdate(context.Background(), tx, "order-1")
	require.NoError(t, err)
	require.Equal(t, "order-1", p.OrderID)
	require.NoError(t, tx.Commit())
}

func TestRepository_CancelPendingForUserSlot(t *testing.T) {
	repo, db, mock := setupMock(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("SET status = 'canceled', confirmation_url = NULL")).
		WithArgs(5, 1, now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := repo.CancelPendingForUserSlot(context.Background(), db, 5, 1, now)
	require.NoError(t, err)
}

func TestRepository_UpdateStatus(t *testing.T) {
	repo, db, mock := setupMock(t)
	now := time.Now()
	providerID := "prov-123"

	mock.ExpectExec(regexp.QuoteMeta("provider_payment_id = COALESCE($3, provider_payment_id)")).
		WithArgs(9, StatusPaid, &providerID, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.UpdateStatus(context.Background(), db, 9, StatusPaid, &providerID, now)
	require.NoError(t, err)
}
