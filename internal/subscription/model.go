package subscription

import "time"

type SubscriptionStatus string

const (
	StatusActive  SubscriptionStatus = "active"
	StatusExpired SubscriptionStatus = "expired"
	StatusFrozen  SubscriptionStatus = "frozen"
)

// Subscription is a prepaid bundle of classes. Direction scoping comes
// from the originating product's direction_limit_id.
type Subscription struct {
	ID               int                `db:"id" json:"id"`
	UserID           int                `db:"user_id" json:"user_id"`
	ProductID        int                `db:"product_id" json:"product_id"`
	RemainingClasses int                `db:"remaining_classes" json:"remaining_classes"`
	TotalClasses     int                `db:"total_classes" json:"total_classes"`
	ValidFrom        time.Time          `db:"valid_from" json:"valid_from"`
	ValidTo          time.Time          `db:"valid_to" json:"valid_to"`
	Status           SubscriptionStatus `db:"status" json:"status"`
	CreatedAt        time.Time          `db:"created_at" json:"created_at"`

	// DirectionLimitID is joined in from the product for API responses.
	DirectionLimitID *int `db:"direction_limit_id" json:"direction_limit_id,omitempty"`
}

type GrantRequest struct {
	UserID    int `json:"user_id" binding:"required"`
	ProductID int `json:"product_id" binding:"required"`
}
