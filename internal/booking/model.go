package booking

import (
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/payment"
	"github.com/xSkywa1ker/dance-bot/internal/subscription"
)

type BookingStatus string

const (
	StatusReserved   BookingStatus = "reserved"
	StatusConfirmed  BookingStatus = "confirmed"
	StatusCanceled   BookingStatus = "canceled"
	StatusLateCancel BookingStatus = "late_cancel"
	StatusAttended   BookingStatus = "attended"
	StatusNoShow     BookingStatus = "no_show"
)

type BookingSource string

const (
	SourceBot   BookingSource = "bot"
	SourceAdmin BookingSource = "admin"
)

const (
	// SystemActor marks cancellations performed by background jobs.
	SystemActor = "system"

	ReasonPaymentTimeout = "payment_timeout"
	ReasonSlotCanceled   = "slot_canceled"
)

// Booking is one user's claim on one slot. A (user, slot) pair has at
// most one row; a canceled row is reactivated on rebooking.
type Booking struct {
	ID                 int           `db:"id" json:"id"`
	UserID             int           `db:"user_id" json:"user_id"`
	ClassSlotID        int           `db:"class_slot_id" json:"class_slot_id"`
	Status             BookingStatus `db:"status" json:"status"`
	Source             BookingSource `db:"source" json:"source"`
	CreatedAt          time.Time     `db:"created_at" json:"created_at"`
	CanceledAt         *time.Time    `db:"canceled_at" json:"canceled_at,omitempty"`
	CanceledBy         *string       `db:"canceled_by" json:"canceled_by,omitempty"`
	CancellationReason *string       `db:"cancellation_reason" json:"cancellation_reason,omitempty"`
}

func (b *Booking) IsActive() bool {
	return b.Status == StatusReserved || b.Status == StatusConfirmed
}

// BookingWithUser carries the Telegram identity needed to notify the
// booking's owner.
type BookingWithUser struct {
	Booking
	TgID     int64  `db:"tg_id" json:"tg_id"`
	UserName string `db:"user_name" json:"user_name"`
}

// BookingWithSlot is the bot- and admin-facing list item.
type BookingWithSlot struct {
	Booking
	SlotStartsAt  time.Time `db:"slot_starts_at" json:"slot_starts_at"`
	DirectionName string    `db:"direction_name" json:"direction_name"`
}

// StaleReservation identifies a reserved booking past the payment
// timeout, as seen outside any transaction. The janitor re-checks each
// one under the slot lock before touching it.
type StaleReservation struct {
	BookingID int `db:"booking_id"`
	SlotID    int `db:"slot_id"`
	UserID    int `db:"user_id"`
}

// PaymentMode reports how an admitted booking is paid.
type PaymentMode string

const (
	ModeSubscription PaymentMode = "subscription"
	ModePayment      PaymentMode = "payment"
)

// ReserveResult is the outcome of a successful Reserve call.
type ReserveResult struct {
	Booking      *Booking                   `json:"booking"`
	PaymentMode  PaymentMode                `json:"payment_mode"`
	Subscription *subscription.Subscription `json:"subscription,omitempty"`
	Payment      *payment.Payment           `json:"payment,omitempty"`
	PaymentURL   *string                    `json:"payment_url,omitempty"`
}

type ReserveRequest struct {
	TgID   int64 `json:"tg_id" binding:"required"`
	SlotID int   `json:"slot_id" binding:"required"`
}

type CancelRequest struct {
	TgID   int64   `json:"tg_id" binding:"required"`
	Reason *string `json:"reason"`
}

type AdminCancelRequest struct {
	Reason *string `json:"reason"`
}

type AttendanceRequest struct {
	Attended *bool `json:"attended" binding:"required"`
}

// Stats is the admin dashboard summary: volume, today's load, how many
// past attendees actually showed up, and the trailing week's revenue.
type Stats struct {
	Total              int     `json:"total"`
	Confirmed          int     `json:"confirmed"`
	BookingsToday      int     `json:"bookings_today"`
	AttendanceRate     float64 `json:"attendance_rate"`
	WeeklyRevenueCents int64   `json:"weekly_revenue_cents"`
}
