package product

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
)

const compensationValidityDays = 90

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, req CreateProductRequest) (*Product, error) {
	query := `
		INSERT INTO products (type, name, description, price_cents, classes_count, validity_days, direction_limit_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, type, name, description, price_cents, classes_count, validity_days, direction_limit_id, is_active, created_at
	`

	var p Product
	err := r.db.GetContext(ctx, &p, query,
		req.Type, req.Name, req.Description, req.PriceCents,
		req.ClassesCount, req.ValidityDays, req.DirectionLimitID,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *Repository) GetByID(ctx context.Context, ext sqlx.ExtContext, id int) (*Product, error) {
	query := `
		SELECT id, type, name, description, price_cents, classes_count, validity_days, direction_limit_id, is_active, created_at
		FROM products
		WHERE id = $1
	`

	var p Product
	err := sqlx.GetContext(ctx, ext, &p, query, id)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (r *Repository) List(ctx context.Context, onlyActive bool) ([]Product, error) {
	query := `
		SELECT id, type, name, description, price_cents, classes_count, validity_days, direction_limit_id, is_active, created_at
		FROM products
	`
	if onlyActive {
		query += " WHERE is_active"
	}
	query += " ORDER BY price_cents ASC"

	var products []Product
	err := r.db.SelectContext(ctx, &products, query)
	if err != nil {
		return nil, err
	}

	return products, nil
}

func (r *Repository) Update(ctx context.Context, id int, req UpdateProductRequest) (*Product, error) {
	query := `
		UPDATE products
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    price_cents = COALESCE($4, price_cents),
		    classes_count = COALESCE($5, classes_count),
		    validity_days = COALESCE($6, validity_days),
		    direction_limit_id = COALESCE($7, direction_limit_id),
		    is_active = COALESCE($8, is_active)
		WHERE id = $1
		RETURNING id, type, name, description, price_cents, classes_count, validity_days, direction_limit_id, is_active, created_at
	`

	var p Product
	err := r.db.GetContext(ctx, &p, query, id,
		req.Name, req.Description, req.PriceCents, req.ClassesCount,
		req.ValidityDays, req.DirectionLimitID, req.IsActive,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

// GetOrCreateCompensation returns the hidden product that backs
// compensation credits, creating it on first use. Runs inside the
// caller's transaction so a concurrent grant cannot create a duplicate.
func (r *Repository) GetOrCreateCompensation(ctx context.Context, ext sqlx.ExtContext) (*Product, error) {
	var p Product
	err := sqlx.GetContext(ctx, ext, &p, `
		SELECT id, type, name, description, price_cents, classes_count, validity_days, direction_limit_id, is_active, created_at
		FROM products
		WHERE name = $1 AND type = $2
	`, CompensationName, TypeSubscription)
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	err = sqlx.GetContext(ctx, ext, &p, `
		INSERT INTO products (type, name, description, price_cents, classes_count, validity_days, is_active)
		VALUES ($1, $2, 'Credit for a canceled class', 0, 1, $3, FALSE)
		RETURNING id, type, name, description, price_cents, classes_count, validity_days, direction_limit_id, is_active, created_at
	`, TypeSubscription, CompensationName, compensationValidityDays)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
