package user

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupUserMock(t *testing.T) (*Repository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewRepository(sqlxDB)

	closer := func() { sqlxDB.Close() }
	return repo, mock, closer
}

func userRows(id int, tgID int64, name string, createdAt time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "tg_id", "name", "phone", "created_at"}).
		AddRow(id, tgID, name, nil, createdAt)
}

func TestGetOrCreateByTgID_CreatesOnFirstContact(t *testing.T) {
	repo, mock, closer := setupUserMock(t)
	defer closer()

	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tg_id, name, phone, created_at FROM users WHERE tg_id = $1")).
		WithArgs(int64(555)).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (tg_id, name, phone) VALUES ($1, $2, $3) RETURNING id, tg_id, name, phone, created_at")).
		WithArgs(int64(555), "Alice", nil).
		WillReturnRows(userRows(1, 555, "Alice", now))

	u, err := repo.GetOrCreateByTgID(context.Background(), 555, "Alice", nil)
	require.NoError(t, err)
	require.Equal(t, 1, u.ID)
	require.Equal(t, int64(555), u.TgID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateByTgID_RefresheschangedName(t *testing.T) {
	repo, mock, closer := setupUserMock(t)
	defer closer()

	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tg_id, name, phone, created_at FROM users WHERE tg_id = $1")).
		WithArgs(int64(555)).
		WillReturnRows(userRows(1, 555, "Alice", now))

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET name = $2 WHERE tg_id = $1 RETURNING id, tg_id, name, phone, created_at")).
		WithArgs(int64(555), "Alicia").
		WillReturnRows(userRows(1, 555, "Alicia", now))

	u, err := repo.GetOrCreateByTgID(context.Background(), 555, "Alicia", nil)
	require.NoError(t, err)
	require.Equal(t, "Alicia", u.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateByTgID_IdempotentWhenNothingChanged(t *testing.T) {
	repo, mock, closer := setupUserMock(t)
	defer closer()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, tg_id, name, phone, created_at FROM users WHERE tg_id = $1")).
		WithArgs(int64(555)).
		WillReturnRows(userRows(1, 555, "Alice", time.Now()))

	u, err := repo.GetOrCreateByTgID(context.Background(), 555, "Alice", nil)
	require.NoError(t, err)
	require.Equal(t, 1, u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByTgID_NotFound(t *testing.T) {
	repo, mock, closer := setupUserMock(t)
	defer closer()

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE tg_id = $1")).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByTgID(context.Background(), 404)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListOrdersByNewest(t *testing.T) {
	repo, mock, closer := setupUserMock(t)
	defer closer()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "tg_id", "name", "phone", "created_at"}).
		AddRow(2, int64(777), "Bob", nil, now).
		AddRow(1, int64(555), "Alice", "+79990000000", now.Add(-time.Hour))

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY created_at DESC")).
		WillReturnRows(rows)

	users, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, "Bob", users[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}
