package schedule

import "time"

type SlotStatus string

const (
	StatusScheduled SlotStatus = "scheduled"
	StatusCanceled  SlotStatus = "canceled"
	StatusCompleted SlotStatus = "completed"
)

// Slot is a single scheduled class occurrence with fixed capacity.
type Slot struct {
	ID                    int        `db:"id" json:"id"`
	DirectionID           int        `db:"direction_id" json:"direction_id"`
	StartsAt              time.Time  `db:"starts_at" json:"starts_at"`
	DurationMin           int        `db:"duration_min" json:"duration_min"`
	Capacity              int        `db:"capacity" json:"capacity"`
	PriceSingleVisitCents int64      `db:"price_single_visit_cents" json:"price_single_visit_cents"`
	AllowSubscription     bool       `db:"allow_subscription" json:"allow_subscription"`
	Status                SlotStatus `db:"status" json:"status"`
	CreatedAt             time.Time  `db:"created_at" json:"created_at"`
}

type SlotWithAvailability struct {
	Slot
	DirectionName  string `db:"direction_name" json:"direction_name"`
	BookedSeats    int    `db:"booked_seats" json:"booked_seats"`
	AvailableSeats int    `db:"available_seats" json:"available_seats"`
}

type CreateSlotRequest struct {
	DirectionID           int       `json:"direction_id" binding:"required"`
	StartsAt              time.Time `json:"starts_at" binding:"required"`
	DurationMin           int       `json:"duration_min" binding:"required,min=1"`
	Capacity              int       `json:"capacity" binding:"required,min=1"`
	PriceSingleVisitCents int64     `json:"price_single_visit_cents" binding:"min=0"`
	AllowSubscription     *bool     `json:"allow_subscription"`
}

type UpdateSlotRequest struct {
	StartsAt              *time.Time `json:"starts_at"`
	DurationMin           *int       `json:"duration_min"`
	Capacity              *int       `json:"capacity"`
	PriceSingleVisitCents *int64     `json:"price_single_visit_cents"`
	AllowSubscription     *bool      `json:"allow_subscription"`
}
