package payment

import "time"

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusPaid     PaymentStatus = "paid"
	StatusFailed   PaymentStatus = "failed"
	StatusCanceled PaymentStatus = "canceled"
	StatusRefunded PaymentStatus = "refunded"
)

// Terminal reports whether the status admits no further transitions.
// Paid is not terminal only in one direction: a paid payment may still
// be refunded.
func (s PaymentStatus) Terminal() bool {
	return s == StatusFailed || s == StatusCanceled || s == StatusRefunded
}

type PaymentPurpose string

const (
	PurposeSingleVisit  PaymentPurpose = "single_visit"
	PurposeSubscription PaymentPurpose = "subscription"
)

// Payment is a monetary transaction intent. The order id is generated
// once, is globally unique and never changes.
type Payment struct {
	ID                int            `db:"id" json:"id"`
	UserID            int            `db:"user_id" json:"user_id"`
	ProductID         *int           `db:"product_id" json:"product_id,omitempty"`
	ClassSlotID       *int           `db:"class_slot_id" json:"class_slot_id,omitempty"`
	AmountCents       int64          `db:"amount_cents" json:"amount_cents"`
	Currency          string         `db:"currency" json:"currency"`
	Provider          string         `db:"provider" json:"provider"`
	OrderID           string         `db:"order_id" json:"order_id"`
	ProviderPaymentID *string        `db:"provider_payment_id" json:"provider_payment_id,omitempty"`
	ConfirmationURL   *string        `db:"confirmation_url" json:"confirmation_url,omitempty"`
	Status            PaymentStatus  `db:"status" json:"status"`
	Purpose           PaymentPurpose `db:"purpose" json:"purpose"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}
