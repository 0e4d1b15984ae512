package user

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetOrCreateByTgID registers the Telegram user on first contact and
// refreshes their display name on subsequent calls.
func (r *Repository) GetOrCreateByTgID(ctx context.Context, tgID int64, name string, phone *string) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, tg_id, name, phone, created_at
		FROM users
		WHERE tg_id = $1
	`, tgID)
	if err == nil {
		if name != "" && name != u.Name {
			err = r.db.GetContext(ctx, &u, `
				UPDATE users SET name = $2
				WHERE tg_id = $1
				RETURNING id, tg_id, name, phone, created_at
			`, tgID, name)
			if err != nil {
				return nil, err
			}
		}
		return &u, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = r.db.GetContext(ctx, &u, `
		INSERT INTO users (tg_id, name, phone)
		VALUES ($1, $2, $3)
		RETURNING id, tg_id, name, phone, created_at
	`, tgID, name, phone)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

func (r *Repository) FindByID(ctx context.Context, id int) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, tg_id, name, phone, created_at
		FROM users
		WHERE id = $1
	`, id)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) FindByTgID(ctx context.Context, tgID int64) (*User, error) {
	var u User
	err := r.db.GetContext(ctx, &u, `
		SELECT id, tg_id, name, phone, created_at
		FROM users
		WHERE tg_id = $1
	`, tgID)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) List(ctx context.Context) ([]User, error) {
	var users []User
	err := r.db.SelectContext(ctx, &users, `
		SELECT id, tg_id, name, phone, created_at
		FROM users
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	return users, nil
}
