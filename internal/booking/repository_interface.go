package booking

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

type Repository interface {
	GetByID(ctx context.Context, id int) (*Booking, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int) (*Booking, error)
	FindByUserAndSlot(ctx context.Context, tx *sqlx.Tx, userID, slotID int) (*Booking, error)
	CountActiveForSlot(ctx context.Context, ext sqlx.ExtContext, slotID int) (int, error)
	Insert(ctx context.Context, tx *sqlx.Tx, userID, slotID int, status BookingStatus, source BookingSource) (*Booking, error)
	Reactivate(ctx context.Context, tx *sqlx.Tx, id int, status BookingStatus, source BookingSource, now time.Time) (*Booking, error)
	MarkCanceled(ctx context.Context, ext sqlx.ExtContext, id int, status BookingStatus, canceledAt time.Time, actor, reason string) error
	ConfirmLatestReserved(ctx context.Context, tx *sqlx.Tx, userID, slotID int) (bool, error)
	ListActiveForSlotWithUsers(ctx context.Context, tx *sqlx.Tx, slotID int) ([]BookingWithUser, error)
	FindStaleReserved(ctx context.Context, cutoff time.Time) ([]StaleReservation, error)
	ListByUser(ctx context.Context, userID int, upcomingOnly bool, now time.Time) ([]BookingWithSlot, error)
	ListBySlot(ctx context.Context, slotID int) ([]BookingWithUser, error)
	MarkAttendance(ctx context.Context, ext sqlx.ExtContext, id int, status BookingStatus) error
	Stats(ctx context.Context, now time.Time) (*Stats, error)
}
