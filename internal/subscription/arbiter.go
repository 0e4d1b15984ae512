package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/metrics"
	"github.com/xSkywa1ker/dance-bot/internal/product"

	"github.com/jmoiron/sqlx"
)

var ErrNotASubscriptionProduct = errors.New("product does not describe a subscription")

const defaultCompensationValidityDays = 90

// Store is the subscription persistence surface the arbiter needs.
type Store interface {
	FindBookableForUpdate(ctx context.Context, tx *sqlx.Tx, userID, directionID int, now time.Time) (*Subscription, error)
	FindGrantTargetForUpdate(ctx context.Context, tx *sqlx.Tx, userID int, directionID *int, now time.Time) (*Subscription, error)
	FindActiveByProductForUpdate(ctx context.Context, tx *sqlx.Tx, userID, productID int, now time.Time) (*Subscription, error)
	ConsumeClass(ctx context.Context, ext sqlx.ExtContext, id int) error
	AddClass(ctx context.Context, ext sqlx.ExtContext, id int, bumpTotal bool) error
	ExtendValidity(ctx context.Context, ext sqlx.ExtContext, id int, until time.Time) error
	Create(ctx context.Context, ext sqlx.ExtContext, userID, productID, classes int, validFrom, validTo time.Time) (*Subscription, error)
}

type ProductStore interface {
	GetByID(ctx context.Context, ext sqlx.ExtContext, id int) (*product.Product, error)
	GetOrCreateCompensation(ctx context.Context, ext sqlx.ExtContext) (*product.Product, error)
}

// Arbiter decides whether a booking is paid with a subscription credit
// and keeps credit balances consistent across cancellations. All methods
// run inside the caller's transaction, under the slot row lock.
type Arbiter struct {
	repo                     Store
	products                 ProductStore
	compensationValidityDays int
}

func NewArbiter(repo Store, products ProductStore, compensationValidityDays int) *Arbiter {
	if compensationValidityDays <= 0 {
		compensationValidityDays = defaultCompensationValidityDays
	}
	return &Arbiter{
		repo:                     repo,
		products:                 products,
		compensationValidityDays: compensationValidityDays,
	}
}

// Arbitrate consumes one class from the best matching subscription and
// returns it, or returns nil when the booking must be paid with money.
func (a *Arbiter) Arbitrate(ctx context.Context, tx *sqlx.Tx, userID, directionID int, now time.Time) (*Subscription, error) {
	sub, err := a.repo.FindBookableForUpdate(ctx, tx, userID, directionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to select subscription: %w", err)
	}
	if sub == nil {
		return nil, nil
	}

	if err := a.repo.ConsumeClass(ctx, tx, sub.ID); err != nil {
		return nil, fmt.Errorf("failed to consume class: %w", err)
	}
	sub.RemainingClasses--

	return sub, nil
}

// GrantCredit makes a user whole after a cancellation. Preference order:
// an existing compatible subscription, then the compensation subscription,
// then a brand-new compensation subscription with a single class.
func (a *Arbiter) GrantCredit(ctx context.Context, tx *sqlx.Tx, userID int, directionID *int, now time.Time) (*Subscription, error) {
	target, err := a.repo.FindGrantTargetForUpdate(ctx, tx, userID, directionID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find grant target: %w", err)
	}
	if target != nil {
		if err := a.repo.AddClass(ctx, tx, target.ID, true); err != nil {
			return nil, fmt.Errorf("failed to add class: %w", err)
		}
		target.RemainingClasses++
		target.TotalClasses++
		metrics.RecordCreditGrant("existing")
		return target, nil
	}

	comp, err := a.products.GetOrCreateCompensation(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve compensation product: %w", err)
	}

	validityDays := a.compensationValidityDays
	if comp.ValidityDays != nil && *comp.ValidityDays > 0 {
		validityDays = *comp.ValidityDays
	}
	validTo := now.AddDate(0, 0, validityDays)

	existing, err := a.repo.FindActiveByProductForUpdate(ctx, tx, userID, comp.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to find compensation subscription: %w", err)
	}
	if existing != nil {
		if err := a.repo.AddClass(ctx, tx, existing.ID, true); err != nil {
			return nil, fmt.Errorf("failed to add class: %w", err)
		}
		if err := a.repo.ExtendValidity(ctx, tx, existing.ID, validTo); err != nil {
			return nil, fmt.Errorf("failed to extend validity: %w", err)
		}
		existing.RemainingClasses++
		existing.TotalClasses++
		if existing.ValidTo.Before(validTo) {
			existing.ValidTo = validTo
		}
		metrics.RecordCreditGrant("compensation_topup")
		return existing, nil
	}

	sub, err := a.repo.Create(ctx, tx, userID, comp.ID, 1, now, validTo)
	if err != nil {
		return nil, fmt.Errorf("failed to create compensation subscription: %w", err)
	}
	metrics.RecordCreditGrant("compensation_new")

	return sub, nil
}

// MintFromProduct creates a subscription from a product template. Used
// when a subscription payment is confirmed and for manual admin grants.
func (a *Arbiter) MintFromProduct(ctx context.Context, tx *sqlx.Tx, userID, productID int, now time.Time) (*Subscription, error) {
	p, err := a.products.GetByID(ctx, tx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if p.Type != product.TypeSubscription || p.ClassesCount == nil || p.ValidityDays == nil {
		return nil, ErrNotASubscriptionProduct
	}

	sub, err := a.repo.Create(ctx, tx, userID, p.ID, *p.ClassesCount, now, now.AddDate(0, 0, *p.ValidityDays))
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	return sub, nil
}
