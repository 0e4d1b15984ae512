package direction

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, name string, description *string) (*Direction, error) {
	query := `
		INSERT INTO directions (name, description)
		VALUES ($1, $2)
		RETURNING id, name, description, is_active, created_at
	`

	var d Direction
	err := r.db.GetContext(ctx, &d, query, name, description)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

func (r *Repository) GetByID(ctx context.Context, id int) (*Direction, error) {
	query := `
		SELECT id, name, description, is_active, created_at
		FROM directions
		WHERE id = $1
	`

	var d Direction
	err := r.db.GetContext(ctx, &d, query, id)
	if err != nil {
		return nil, err
	}

	return &d, nil
}

func (r *Repository) List(ctx context.Context, onlyActive bool) ([]Direction, error) {
	query := `
		SELECT id, name, description, is_active, created_at
		FROM directions
	`
	if onlyActive {
		query += " WHERE is_active"
	}
	query += " ORDER BY name ASC"

	var directions []Direction
	err := r.db.SelectContext(ctx, &directions, query)
	if err != nil {
		return nil, err
	}

	return directions, nil
}

func (r *Repository) Update(ctx context.Context, id int, req UpdateDirectionRequest) (*Direction, error) {
	query := `
		UPDATE directions
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    is_active = COALESCE($4, is_active)
		WHERE id = $1
		RETURNING id, name, description, is_active, created_at
	`

	var d Direction
	err := r.db.GetContext(ctx, &d, query, id, req.Name, req.Description, req.IsActive)
	if err != nil {
		return nil, err
	}

	return &d, nil
}
