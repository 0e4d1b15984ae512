package booking

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupMock(t *testing.T) (Repository, *sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewRepository(sqlxDB), sqlxDB, mock
}

func bookingRows(id, userID, slotID int, status string, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "class_slot_id", "status", "source", "created_at",
		"canceled_at", "canceled_by", "cancellation_reason",
	}).AddRow(id, userID, slotID, status, "bot", createdAt, nil, nil, nil)
}

func TestRepository_InsertAndGet(t *testing.T) {
	repo, db, mock := setupMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO bookings (user_id, class_slot_id, status, source)")).
		WithArgs(1, 2, StatusReserved, SourceBot).
		WillReturnRows(bookingRows(10, 1, 2, "reserved", now))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	b, err := repo.Insert(context.Background(), tx, 1, 2, StatusReserved, SourceBot)
	require.NoError(t, err)
	require.Equal(t, 10, b.ID)
	require.Equal(t, StatusReserved, b.Status)
	require.NoError(t, tx.Commit())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, class_slot_id, status, source, created_at, canceled_at, canceled_by, cancellation_reason FROM bookings WHERE id = $1")).
		WithArgs(10).
		WillReturnRows(bookingRows(10, 1, 2, "reserved", now))

	got, err := repo.GetByID(context.Background(), 10)
	require.NoError(t, err)
	require.Equal(t, 10, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_FindByUserAndSlot_NoRow(t *testing.T) {
	repo, db, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE user_id = $1 AND class_slot_id = $2")).
		WithArgs(1, 2).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	b, err := repo.FindByUserAndSlot(context.Background(), tx, 1, 2)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestRepository_CountActiveForSlot(t *testing.T) {
	repo, db, mock := setupMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings WHERE class_slot_id = $1 AND status IN ('reserved', 'confirmed')")).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountActiveForSlot(context.Background(), db, 3)
	require.NoError(t, err)
	require.Equal(t, 7, count)
}

func TestRepository_Reactivate(t *testing.T) {
	repo, db, mock := setupMock(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("canceled_at = NULL")).
		WithArgs(10, StatusConfirmed, SourceBot, now).
		WillReturnRows(bookingRows(10, 1, 2, "confirmed", now))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	b, err := repo.Reactivate(context.Background(), tx, 10, StatusConfirmed, SourceBot, now)
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, b.Status)
	require.Nil(t, b.CanceledAt)
	require.NoError(t, tx.Commit())
}

func TestRepository_MarkCanceled(t *testing.T) {
	repo, db, mock := setupMock(t)
	now := time.Now()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings")).
		WithArgs(10, StatusCanceled, now, "system", ReasonPaymentTimeout).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.MarkCanceled(context.Background(), db, 10, StatusCanceled, now, SystemActor, ReasonPaymentTimeout)
	require.NoError(t, err)
}

func TestRepository_ConfirmLatestReserved(t *testing.T) {
	repo, db, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'confirmed'")).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	ok, err := repo.ConfirmLatestReserved(context.Background(), tx, 1, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, tx.Commit())
}

func TestRepository_ConfirmLatestReserved_NothingToConfirm(t *testing.T) {
	repo, db, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("SET status = 'confirmed'")).
		WithArgs(1, 2).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	tx, err := db.Beginx()
	require.NoError(t, err)
	defer tx.Rollback()

	ok, err := repo.ConfirmLatestReserved(context.Background(), tx, 1, 2)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRepository_FindStaleReserved(t *testing.T) {
	repo, _, mock := setupMock(t)
	cutoff := time.Now().Add(-20 * time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.status = 'reserved' AND b.created_at < $1")).
		WithArgs(cutoff).
		WillReturnRows(sqlmock.NewRows([]string{"booking_id", "slot_id", "user_id"}).
			AddRow(10, 1, 5).
			AddRow(11, 2, 6))

	stale, err := repo.FindStaleReserved(context.Background(), cutoff)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	require.Equal(t, 10, stale[0].BookingID)
	require.Equal(t, 2, stale[1].SlotID)
}

func TestRepository_ListActiveForSlotWithUsers(t *testing.T) {
	repo, db, mock := setupMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "class_slot_id", "status", "source", "created_at",
		"canceled_at", "canceled_by", "cancellation_reason", "tg_id", "user_name",
	}).
		AddRow(10, 5, 1, "confirmed", "bot", now, nil, nil, nil, int64(100), "Anna").
		AddRow(11, 6, 1, "reserved", "bot", now, nil, nil, nil, int64(200), "Boris")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("JOIN users u ON b.user_id = u.id")).
		WithArgs(1).
		WillReturnRows(rows)
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	bookings, err := repo.ListActiveForSlotWithUsers(context.Background(), tx, 1)
	require.NoError(t, err)
	require.Len(t, bookings, 2)
	require.Equal(t, int64(100), bookings[0].TgID)
	require.Equal(t, "Boris", bookings[1].UserName)
	require.NoError(t, tx.Commit())
}

func TestRepository_ListByUser_UpcomingOnly(t *testing.T) {
	repo, _, mock := setupMock(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "class_slot_id", "status", "source", "created_at",
		"canceled_at", "canceled_by", "cancellation_reason", "slot_starts_at", "direction_name",
	}).AddRow(10, 5, 1, "confirmed", "bot", now, nil, nil, nil, now.Add(24*time.Hour), "Salsa")

	mock.ExpectQuery(regexp.QuoteMeta("AND s.starts_at >= $2 AND b.status IN ('reserved', 'confirmed')")).
		WithArgs(5, now).
		WillReturnRows(rows)

	bookings, err := repo.ListByUser(context.Background(), 5, true, now)
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	require.Equal(t, "Salsa", bookings[0].DirectionName)
}

func TestRepository_MarkAttendance(t *testing.T) {
	repo, db, mock := setupMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings SET status = $2 WHERE id = $1")).
		WithArgs(42, StatusAttended).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.Beginx()
	require.NoError(t, err)

	require.NoError(t, repo.MarkAttendance(context.Background(), tx, 42, StatusAttended))
	require.NoError(t, tx.Commit())
}

func TestRepository_Stats(t *testing.T) {
	repo, _, mock := setupMock(t)
	now := time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)
	dayStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM bookings")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(40))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'confirmed'")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery(regexp.QuoteMeta("AND s.starts_at >= $1 AND s.starts_at < $2")).
		WithArgs(dayStart, dayStart.Add(24*time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(regexp.QuoteMeta("FILTER (WHERE b.status = 'attended')")).
		WithArgs(now).
		WillReturnRows(sqlmock.NewRows([]string{"attended", "completed"}).AddRow(9, 12))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = 'paid' AND created_at >= $1")).
		WithArgs(now.Add(-7 * 24 * time.Hour)).
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(int64(450000)))

	stats, err := repo.Stats(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, 40, stats.Total)
	require.Equal(t, 25, stats.Confirmed)
	require.Equal(t, 6, stats.BookingsToday)
	require.InDelta(t, 75.0, stats.AttendanceRate, 0.001)
	require.Equal(t, int64(450000), stats.WeeklyRevenueCents)
}
