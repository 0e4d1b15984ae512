package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/clock"
	dbpkg "github.com/xSkywa1ker/dance-bot/internal/db"
	"github.com/xSkywa1ker/dance-bot/internal/logger"
	"github.com/xSkywa1ker/dance-bot/internal/metrics"
	"github.com/xSkywa1ker/dance-bot/internal/payment/gateway"
	"github.com/xSkywa1ker/dance-bot/internal/subscription"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrGatewayUnavailable means the intent row exists but the provider
	// call failed; the client may retry obtaining a confirmation URL.
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
)

// Store is the payment persistence surface used by the service.
type Store interface {
	Insert(ctx context.Context, p *Payment) (*Payment, error)
	SetConfirmationURL(ctx context.Context, id int, url string) error
	GetByOrderIDForUpdate(ctx context.Context, tx *sqlx.Tx, orderID string) (*Payment, error)
	UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id int, status PaymentStatus, providerPaymentID *string, now time.Time) error
	CancelPendingForUserSlot(ctx context.Context, ext sqlx.ExtContext, userID, slotID int, now time.Time) error
	FindLatestForUserSlot(ctx context.Context, userID, slotID int) (*Payment, error)
}

// BookingConfirmer promotes the booking a paid slot payment belongs to.
// Implemented by the booking repository; runs inside the payment's
// transaction.
type BookingConfirmer interface {
	ConfirmLatestReserved(ctx context.Context, tx *sqlx.Tx, userID, slotID int) (bool, error)
}

// SubscriptionMinter turns a paid product payment into a subscription.
type SubscriptionMinter interface {
	MintFromProduct(ctx context.Context, tx *sqlx.Tx, userID, productID int, now time.Time) (*subscription.Subscription, error)
}

type Service struct {
	db       *sqlx.DB
	repo     Store
	gw       gateway.Gateway
	bookings BookingConfirmer
	subs     SubscriptionMinter
	clock    clock.Clock
}

func NewService(db *sqlx.DB, repo Store, gw gateway.Gateway, bookings BookingConfirmer, subs SubscriptionMinter, clk clock.Clock) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		gw:       gw,
		bookings: bookings,
		subs:     subs,
		clock:    clk,
	}
}

// CreateForSlot opens a single-visit payment intent for a reserved
// booking. The row is persisted before the gateway call; if the provider
// is down the intent stays pending with no confirmation URL and
// ErrGatewayUnavailable is returned alongside it.
func (s *Service) CreateForSlot(ctx context.Context, userID, slotID int, amountCents int64) (*Payment, error) {
	return s.create(ctx, &Payment{
		UserID:      userID,
		ClassSlotID: &slotID,
		AmountCents: amountCents,
		Currency:    "RUB",
		Provider:    s.gw.Name(),
		Purpose:     PurposeSingleVisit,
	})
}

// CreateForProduct opens a payment intent for a product purchase.
func (s *Service) CreateForProduct(ctx context.Context, userID, productID int, amountCents int64) (*Payment, error) {
	return s.create(ctx, &Payment{
		UserID:      userID,
		ProductID:   &productID,
		AmountCents: amountCents,
		Currency:    "RUB",
		Provider:    s.gw.Name(),
		Purpose:     PurposeSubscription,
	})
}

func (s *Service) create(ctx context.Context, p *Payment) (*Payment, error) {
	p.OrderID = uuid.NewString()

	created, err := s.repo.Insert(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("failed to persist payment: %w", err)
	}

	res, err := s.gw.CreatePayment(ctx, gateway.CreateRequest{
		OrderID:     created.OrderID,
		AmountCents: created.AmountCents,
		Currency:    created.Currency,
		Description: fmt.Sprintf("Dance class payment #%s", created.OrderID),
		Metadata:    map[string]interface{}{"user_id": created.UserID},
	})
	if err != nil {
		logger.Error("Payment gateway call failed", "order_id", created.OrderID, "error", err.Error())
		return created, ErrGatewayUnavailable
	}

	if res.ConfirmationURL != "" {
		if err := s.repo.SetConfirmationURL(ctx, created.ID, res.ConfirmationURL); err != nil {
			return nil, fmt.Errorf("failed to store confirmation url: %w", err)
		}
		created.ConfirmationURL = &res.ConfirmationURL
	}

	return created, nil
}

// Apply moves a payment to a new status. Idempotent and monotonic:
// re-applying the current status is a no-op, and a webhook arriving out
// of order cannot pull a settled payment backwards. A paid slot payment
// promotes the matching reserved booking; a paid product payment mints
// a subscription from the product template.
func (s *Service) Apply(ctx context.Context, orderID string, status PaymentStatus, providerPaymentID *string) (*Payment, error) {
	var applied *Payment
	now := s.clock.Now()

	err := dbpkg.InTx(ctx, s.db, func(tx *sqlx.Tx) error {
		p, err := s.repo.GetByOrderIDForUpdate(ctx, tx, orderID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPaymentNotFound
			}
			return fmt.Errorf("failed to lock payment %s: %w", orderID, err)
		}

		if p.Status == status {
			applied = p
			return nil
		}

		// Transitions only move forward: a settled payment never drops
		// back to pending or canceled on a late-arriving webhook. The
		// only move out of paid is a refund.
		if p.Status.Terminal() || (p.Status == StatusPaid && status != StatusRefunded) {
			logger.Warn("Ignoring out-of-order payment status",
				"order_id", p.OrderID, "from", string(p.Status), "to", string(status))
			applied = p
			return nil
		}

		if err := s.repo.UpdateStatus(ctx, tx, p.ID, status, providerPaymentID, now); err != nil {
			return fmt.Errorf("failed to update payment status: %w", err)
		}
		p.Status = status
		p.UpdatedAt = now
		if providerPaymentID != nil {
			p.ProviderPaymentID = providerPaymentID
		}

		if status == StatusPaid {
			switch {
			case p.ClassSlotID != nil:
				confirmed, err := s.bookings.ConfirmLatestReserved(ctx, tx, p.UserID, *p.ClassSlotID)
				if err != nil {
					return fmt.Errorf("failed to confirm booking: %w", err)
				}
				if !confirmed {
					logger.Warn("Paid slot payment had no reserved booking to confirm",
						"order_id", p.OrderID, "user_id", p.UserID, "slot_id", *p.ClassSlotID)
				}
			case p.ProductID != nil && p.Purpose == PurposeSubscription:
				if _, err := s.subs.MintFromProduct(ctx, tx, p.UserID, *p.ProductID, now); err != nil {
					return fmt.Errorf("failed to mint subscription: %w", err)
				}
			}
		}

		applied = p
		metrics.RecordPayment(string(status))
		return nil
	})
	if err != nil {
		return nil, err
	}

	return applied, nil
}

// StatusFromProvider maps gateway status vocabulary onto ours; unknown
// values are treated as failures.
func StatusFromProvider(status string) PaymentStatus {
	switch status {
	case "pending":
		return StatusPending
	case "succeeded", "paid":
		return StatusPaid
	case "canceled":
		return StatusCanceled
	case "refunded":
		return StatusRefunded
	default:
		return StatusFailed
	}
}
