package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

type AdminUser struct {
	ID           int       `db:"id" json:"id"`
	Login        string    `db:"login" json:"login"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         string    `db:"role" json:"role"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByLogin(ctx context.Context, login string) (*AdminUser, error) {
	query := `SELECT id, login, password_hash, role, created_at FROM admin_users WHERE login = $1`

	var admin AdminUser
	err := r.db.GetContext(ctx, &admin, query, login)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &admin, nil
}

func (r *Repository) Create(ctx context.Context, login, passwordHash, role string) (*AdminUser, error) {
	query := `
		INSERT INTO admin_users (login, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, login, password_hash, role, created_at
	`

	var admin AdminUser
	err := r.db.GetContext(ctx, &admin, query, login, passwordHash, role)
	if err != nil {
		return nil, err
	}

	return &admin, nil
}

// EnsureAdmin seeds the bootstrap administrator account on startup. An
// existing account is left untouched.
func (r *Repository) EnsureAdmin(ctx context.Context, login, password string) error {
	if login == "" || password == "" {
		return nil
	}

	existing, err := r.FindByLogin(ctx, login)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}

	_, err = r.Create(ctx, login, hash, "admin")
	return err
}
