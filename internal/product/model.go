package product

import "time"

type ProductType string

const (
	TypeSubscription ProductType = "subscription"
	TypeSingle       ProductType = "single"
)

// CompensationName marks the hidden product backing credits granted for
// involuntary cancellations.
const CompensationName = "Cancellation compensation"

type Product struct {
	ID               int         `db:"id" json:"id"`
	Type             ProductType `db:"type" json:"type"`
	Name             string      `db:"name" json:"name"`
	Description      *string     `db:"description" json:"description,omitempty"`
	PriceCents       int64       `db:"price_cents" json:"price_cents"`
	ClassesCount     *int        `db:"classes_count" json:"classes_count,omitempty"`
	ValidityDays     *int        `db:"validity_days" json:"validity_days,omitempty"`
	DirectionLimitID *int        `db:"direction_limit_id" json:"direction_limit_id,omitempty"`
	IsActive         bool        `db:"is_active" json:"is_active"`
	CreatedAt        time.Time   `db:"created_at" json:"created_at"`
}

type CreateProductRequest struct {
	Type             ProductType `json:"type" binding:"required,oneof=subscription single"`
	Name             string      `json:"name" binding:"required"`
	Description      *string     `json:"description"`
	PriceCents       int64       `json:"price_cents" binding:"min=0"`
	ClassesCount     *int        `json:"classes_count" validate:"required_if=Type subscription,omitempty,gte=1"`
	ValidityDays     *int        `json:"validity_days" validate:"required_if=Type subscription,omitempty,gte=1"`
	DirectionLimitID *int        `json:"direction_limit_id"`
}

type UpdateProductRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	PriceCents       *int64  `json:"price_cents"`
	ClassesCount     *int    `json:"classes_count"`
	ValidityDays     *int    `json:"validity_days"`
	DirectionLimitID *int    `json:"direction_limit_id"`
	IsActive         *bool   `json:"is_active"`
}
