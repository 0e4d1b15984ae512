package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/audit"
	"github.com/xSkywa1ker/dance-bot/internal/clock"
	"github.com/xSkywa1ker/dance-bot/internal/db"
	"github.com/xSkywa1ker/dance-bot/internal/direction"
	"github.com/xSkywa1ker/dance-bot/internal/logger"
	"github.com/xSkywa1ker/dance-bot/internal/metrics"
	"github.com/xSkywa1ker/dance-bot/internal/notify"
	"github.com/xSkywa1ker/dance-bot/internal/payment"
	"github.com/xSkywa1ker/dance-bot/internal/schedule"
	"github.com/xSkywa1ker/dance-bot/internal/subscription"
	"github.com/xSkywa1ker/dance-bot/internal/user"

	"github.com/jmoiron/sqlx"
)

var (
	ErrSlotUnavailable   = errors.New("slot is not open for booking")
	ErrCapacityExceeded  = errors.New("no free seats left for this slot")
	ErrDuplicateBooking  = errors.New("user already has an active booking for this slot")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrCannotCancel      = errors.New("booking cannot be canceled")
	ErrUserNotRegistered = errors.New("user is not registered")
	ErrCannotMark        = errors.New("booking cannot be marked for attendance")
)

// SlotStore is the slice of the schedule repository the engine needs.
type SlotStore interface {
	GetByID(ctx context.Context, id int) (*schedule.Slot, error)
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id int) (*schedule.Slot, error)
	MarkCanceled(ctx context.Context, ext sqlx.ExtContext, id int) error
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]schedule.Slot, error)
}

// CreditArbiter decides which subscription pays for a seat and returns
// credits when a confirmed booking is undone.
type CreditArbiter interface {
	Arbitrate(ctx context.Context, tx *sqlx.Tx, userID, directionID int, now time.Time) (*subscription.Subscription, error)
	GrantCredit(ctx context.Context, tx *sqlx.Tx, userID int, directionID *int, now time.Time) (*subscription.Subscription, error)
}

// PaymentCreator issues a payment intent for a seat held without a
// subscription credit.
type PaymentCreator interface {
	CreateForSlot(ctx context.Context, userID, slotID int, amountCents int64) (*payment.Payment, error)
}

// PaymentCanceler voids pending payment intents that can no longer be
// honored, inside the caller's transaction.
type PaymentCanceler interface {
	CancelPendingForUserSlot(ctx context.Context, ext sqlx.ExtContext, userID, slotID int, now time.Time) error
}

type UserStore interface {
	FindByTgID(ctx context.Context, tgID int64) (*user.User, error)
}

type DirectionStore interface {
	GetByID(ctx context.Context, id int) (*direction.Direction, error)
}

type Auditor interface {
	Record(ctx context.Context, ext sqlx.ExtContext, actorType audit.ActorType, actorID *int, action string, payload interface{}) error
}

type Notifier interface {
	Notify(ctx context.Context, intents []notify.Intent)
	SlotCancellationMessage(directionName string, startsAt time.Time) string
	ClassReminderMessage(directionName string, startsAt time.Time) string
}

// Service is the booking engine: it admits users to slots, arbitrates
// how each seat is paid, and unwinds bookings when users, admins or the
// janitor cancel them. Every decision that touches seats or credits
// runs under the slot's row lock so concurrent requests serialize.
type Service struct {
	db       *sqlx.DB
	repo     Repository
	slots    SlotStore
	users    UserStore
	arbiter  CreditArbiter
	payments PaymentCreator
	pending  PaymentCanceler
	dirs     DirectionStore
	auditor  Auditor
	notifier Notifier
	clk      clock.Clock

	cancellationWindow time.Duration
	paymentTimeout     time.Duration
}

func NewService(
	database *sqlx.DB,
	repo Repository,
	slots SlotStore,
	users UserStore,
	arbiter CreditArbiter,
	payments PaymentCreator,
	pending PaymentCanceler,
	dirs DirectionStore,
	auditor Auditor,
	notifier Notifier,
	clk clock.Clock,
	cancellationWindow time.Duration,
	paymentTimeout time.Duration,
) *Service {
	return &Service{
		db:                 database,
		repo:               repo,
		slots:              slots,
		users:              users,
		arbiter:            arbiter,
		payments:           payments,
		pending:            pending,
		dirs:               dirs,
		auditor:            auditor,
		notifier:           notifier,
		clk:                clk,
		cancellationWindow: cancellationWindow,
		paymentTimeout:     paymentTimeout,
	}
}

// Reserve admits a user to a slot. Capacity and credit decisions happen
// in one transaction under the slot's row lock: if an active direction-
// compatible subscription exists, one class is consumed and the booking
// is confirmed immediately; otherwise the seat is held as reserved and
// a payment intent is issued after commit.
func (s *Service) Reserve(ctx context.Context, tgID int64, slotID int, source BookingSource) (*ReserveResult, error) {
	user, err := s.users.FindByTgID(ctx, tgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}

	now := s.clk.Now()
	result := &ReserveResult{}

	err = db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		slot, err := s.slots.GetForUpdate(ctx, tx, slotID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				metrics.RecordBookingRejection("slot_unavailable")
				return ErrSlotUnavailable
			}
			return err
		}
		if slot.Status != schedule.StatusScheduled || !slot.StartsAt.After(now) {
			metrics.RecordBookingRejection("slot_unavailable")
			return ErrSlotUnavailable
		}

		active, err := s.repo.CountActiveForSlot(ctx, tx, slotID)
		if err != nil {
			return err
		}
		if active >= slot.Capacity {
			metrics.RecordBookingRejection("capacity")
			return ErrCapacityExceeded
		}

		mode := ModePayment
		var sub *subscription.Subscription
		if slot.AllowSubscription {
			sub, err = s.arbiter.Arbitrate(ctx, tx, user.ID, slot.DirectionID, now)
			if err != nil {
				return err
			}
			if sub != nil {
				mode = ModeSubscription
			}
		}

		status := StatusReserved
		if mode == ModeSubscription {
			status = StatusConfirmed
		}

		existing, err := s.repo.FindByUserAndSlot(ctx, tx, user.ID, slotID)
		if err != nil {
			return err
		}

		var booked *Booking
		switch {
		case existing == nil:
			booked, err = s.repo.Insert(ctx, tx, user.ID, slotID, status, source)
		case existing.IsActive():
			metrics.RecordBookingRejection("duplicate")
			return ErrDuplicateBooking
		default:
			booked, err = s.repo.Reactivate(ctx, tx, existing.ID, status, source, now)
		}
		if err != nil {
			return err
		}

		result.Booking = booked
		result.PaymentMode = mode
		result.Subscription = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordBooking(string(result.PaymentMode))

	if result.PaymentMode == ModePayment {
		slot, err := s.slots.GetByID(ctx, slotID)
		if err != nil {
			return nil, err
		}

		p, err := s.payments.CreateForSlot(ctx, user.ID, slotID, slot.PriceSingleVisitCents)
		if err != nil && !errors.Is(err, payment.ErrGatewayUnavailable) {
			return nil, err
		}
		result.Payment = p
		if p != nil {
			result.PaymentURL = p.ConfirmationURL
		}
	}

	logger.Info("Booking created",
		"booking_id", result.Booking.ID,
		"user_id", user.ID,
		"slot_id", slotID,
		"payment_mode", string(result.PaymentMode))

	return result, nil
}

// Cancel lets a user withdraw from a slot. Outside the cutoff window a
// confirmed booking returns its credit; inside the window the booking
// becomes late_cancel and nothing is refunded.
func (s *Service) Cancel(ctx context.Context, tgID int64, bookingID int, reason *string) (*Booking, error) {
	user, err := s.users.FindByTgID(ctx, tgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}

	return s.cancel(ctx, bookingID, &user.ID, fmt.Sprintf("user:%d", user.ID), reason, "user_request")
}

// CancelAsAdmin cancels any user's booking on an administrator's
// behalf. The same window rule applies: close to the start the booking
// becomes late_cancel rather than refunded.
func (s *Service) CancelAsAdmin(ctx context.Context, bookingID int, adminID *int, reason *string) (*Booking, error) {
	actor := SystemActor
	if adminID != nil {
		actor = fmt.Sprintf("admin:%d", *adminID)
	}
	return s.cancel(ctx, bookingID, nil, actor, reason, "admin_request")
}

// cancel unwinds one booking. ownerID restricts the operation to that
// user's own bookings; nil skips the ownership check.
func (s *Service) cancel(ctx context.Context, bookingID int, ownerID *int, actor string, reason *string, defaultReason string) (*Booking, error) {
	now := s.clk.Now()
	var out *Booking

	cancelReason := defaultReason
	if reason != nil && *reason != "" {
		cancelReason = *reason
	}

	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookingNotFound
			}
			return err
		}
		if ownerID != nil && b.UserID != *ownerID {
			return ErrBookingNotFound
		}

		slot, err := s.slots.GetForUpdate(ctx, tx, b.ClassSlotID)
		if err != nil {
			return fmt.Errorf("failed to lock slot %d: %w", b.ClassSlotID, err)
		}

		// Inside the window the outcome is late_cancel no matter what
		// state the booking is in; the rule is checked before the status
		// so retrying a late cancellation stays a late cancellation.
		if slot.StartsAt.Sub(now) < s.cancellationWindow {
			if err := s.repo.MarkCanceled(ctx, tx, b.ID, StatusLateCancel, now, actor, cancelReason); err != nil {
				return err
			}
			metrics.RecordCancellation("late")
			b.Status = StatusLateCancel
		} else {
			if !b.IsActive() {
				return ErrCannotCancel
			}
			if b.Status == StatusConfirmed {
				if _, err := s.arbiter.GrantCredit(ctx, tx, b.UserID, &slot.DirectionID, now); err != nil {
					return err
				}
			}
			if err := s.repo.MarkCanceled(ctx, tx, b.ID, StatusCanceled, now, actor, cancelReason); err != nil {
				return err
			}
			if err := s.pending.CancelPendingForUserSlot(ctx, tx, b.UserID, b.ClassSlotID, now); err != nil {
				return err
			}
			metrics.RecordCancellation("timely")
			b.Status = StatusCanceled
		}

		b.CanceledAt = &now
		b.CanceledBy = &actor
		b.CancellationReason = &cancelReason
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Booking canceled",
		"booking_id", out.ID,
		"user_id", out.UserID,
		"actor", actor,
		"status", string(out.Status))

	return out, nil
}

// CancelSlot cancels a whole class occurrence: the slot is marked
// canceled, every active booking is unwound with a credit regardless of
// how close the start is, pending payments are voided, and an audit
// entry records the action. The call is idempotent. Notifications go
// out only after the transaction commits.
func (s *Service) CancelSlot(ctx context.Context, slotID int, adminID *int) (int, error) {
	now := s.clk.Now()

	var (
		affected []BookingWithUser
		slot     *schedule.Slot
		canceled bool
	)

	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var err error
		slot, err = s.slots.GetForUpdate(ctx, tx, slotID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrSlotUnavailable
			}
			return err
		}
		if slot.Status == schedule.StatusCanceled {
			return nil
		}
		canceled = true

		if err := s.slots.MarkCanceled(ctx, tx, slotID); err != nil {
			return err
		}

		bookings, err := s.repo.ListActiveForSlotWithUsers(ctx, tx, slotID)
		if err != nil {
			return err
		}

		for _, b := range bookings {
			// Every active booking is compensated, a reserved one too:
			// the user loses the seat through no fault of their own.
			if _, err := s.arbiter.GrantCredit(ctx, tx, b.UserID, &slot.DirectionID, now); err != nil {
				return err
			}
			actor := SystemActor
			if adminID != nil {
				actor = fmt.Sprintf("admin:%d", *adminID)
			}
			if err := s.repo.MarkCanceled(ctx, tx, b.ID, StatusCanceled, now, actor, ReasonSlotCanceled); err != nil {
				return err
			}
			if err := s.pending.CancelPendingForUserSlot(ctx, tx, b.UserID, slotID, now); err != nil {
				return err
			}
		}

		affected = bookings

		actorType := audit.ActorSystem
		if adminID != nil {
			actorType = audit.ActorAdmin
		}
		return s.auditor.Record(ctx, tx, actorType, adminID, "slot_canceled", map[string]interface{}{
			"slot_id":           slotID,
			"bookings_canceled": len(bookings),
		})
	})
	if err != nil {
		return 0, err
	}
	if !canceled {
		return 0, nil
	}

	metrics.RecordSlotCanceled()
	logger.Info("Slot canceled", "slot_id", slotID, "bookings_canceled", len(affected))

	if len(affected) == 0 {
		return 0, nil
	}

	dirName := ""
	if dir, err := s.dirs.GetByID(ctx, slot.DirectionID); err != nil {
		logger.Errorf("Failed to resolve direction %d for notifications: %v", slot.DirectionID, err)
	} else if dir != nil {
		dirName = dir.Name
	}

	intents := make([]notify.Intent, 0, len(affected))
	for _, b := range affected {
		intents = append(intents, notify.Intent{
			TgID:    b.TgID,
			Message: s.notifier.SlotCancellationMessage(dirName, slot.StartsAt),
		})
	}
	s.notifier.Notify(ctx, intents)

	return len(affected), nil
}

// ExpireStaleReservations releases seats held by reserved bookings
// whose payment window has lapsed. Candidates are collected without
// locks, then each is re-checked under its slot lock before expiring,
// so a payment that lands mid-sweep wins.
func (s *Service) ExpireStaleReservations(ctx context.Context) (int, error) {
	cutoff := s.clk.Now().Add(-s.paymentTimeout)

	stale, err := s.repo.FindStaleReserved(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, candidate := range stale {
		err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
			if _, err := s.slots.GetForUpdate(ctx, tx, candidate.SlotID); err != nil {
				return err
			}

			b, err := s.repo.GetForUpdate(ctx, tx, candidate.BookingID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return nil
				}
				return err
			}
			if b.Status != StatusReserved || !b.CreatedAt.Before(cutoff) {
				return nil
			}

			now := s.clk.Now()
			if err := s.repo.MarkCanceled(ctx, tx, b.ID, StatusCanceled, now, SystemActor, ReasonPaymentTimeout); err != nil {
				return err
			}
			if err := s.pending.CancelPendingForUserSlot(ctx, tx, b.UserID, b.ClassSlotID, now); err != nil {
				return err
			}
			expired++
			return nil
		})
		if err != nil {
			logger.Errorf("Failed to expire reservation %d: %v", candidate.BookingID, err)
		}
	}

	if expired > 0 {
		metrics.RecordExpiredReservations(expired)
		logger.Info("Expired stale reservations", "count", expired)
	}
	return expired, nil
}

// RemindUpcoming queues a reminder for everyone holding an active
// booking on a slot that starts in roughly a day. The window is one
// hour wide so an hourly sweep reminds each booking exactly once.
func (s *Service) RemindUpcoming(ctx context.Context) (int, error) {
	from := s.clk.Now().Add(23 * time.Hour)
	to := from.Add(time.Hour)

	slots, err := s.slots.ListStartingBetween(ctx, from, to)
	if err != nil {
		return 0, err
	}

	var intents []notify.Intent
	for _, slot := range slots {
		if slot.Status != schedule.StatusScheduled {
			continue
		}

		bookings, err := s.repo.ListBySlot(ctx, slot.ID)
		if err != nil {
			logger.Errorf("Failed to list bookings for reminder on slot %d: %v", slot.ID, err)
			continue
		}

		dirName := ""
		if dir, err := s.dirs.GetByID(ctx, slot.DirectionID); err != nil {
			logger.Errorf("Failed to resolve direction %d for reminder: %v", slot.DirectionID, err)
		} else {
			dirName = dir.Name
		}

		msg := s.notifier.ClassReminderMessage(dirName, slot.StartsAt)
		for _, b := range bookings {
			if !b.IsActive() {
				continue
			}
			intents = append(intents, notify.Intent{TgID: b.TgID, Message: msg})
		}
	}

	if len(intents) > 0 {
		s.notifier.Notify(ctx, intents)
	}
	return len(intents), nil
}

// ListForUser returns a user's bookings joined with slot details.
func (s *Service) ListForUser(ctx context.Context, tgID int64, upcomingOnly bool) ([]BookingWithSlot, error) {
	user, err := s.users.FindByTgID(ctx, tgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotRegistered
		}
		return nil, err
	}
	return s.repo.ListByUser(ctx, user.ID, upcomingOnly, s.clk.Now())
}

// ListForSlot returns every booking on a slot with user identities, for
// the admin roster view.
func (s *Service) ListForSlot(ctx context.Context, slotID int) ([]BookingWithUser, error) {
	return s.repo.ListBySlot(ctx, slotID)
}

// MarkAttendance records whether the user showed up for a class that
// has started. Only confirmed bookings can be marked; a mark can be
// corrected by re-marking.
func (s *Service) MarkAttendance(ctx context.Context, bookingID int, attended bool) (*Booking, error) {
	now := s.clk.Now()
	status := StatusNoShow
	if attended {
		status = StatusAttended
	}

	var out *Booking
	err := db.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		b, err := s.repo.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrBookingNotFound
			}
			return err
		}

		switch b.Status {
		case StatusConfirmed, StatusAttended, StatusNoShow:
		default:
			return ErrCannotMark
		}

		slot, err := s.slots.GetForUpdate(ctx, tx, b.ClassSlotID)
		if err != nil {
			return fmt.Errorf("failed to lock slot %d: %w", b.ClassSlotID, err)
		}
		if slot.StartsAt.After(now) {
			return ErrCannotMark
		}

		if err := s.repo.MarkAttendance(ctx, tx, b.ID, status); err != nil {
			return err
		}
		b.Status = status
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Attendance marked",
		"booking_id", out.ID,
		"status", string(out.Status))

	return out, nil
}

// Stats summarizes booking activity for the admin dashboard.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx, s.clk.Now())
}
