package payment

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/xSkywa1ker/dance-bot/internal/clock"
	"github.com/xSkywa1ker/dance-bot/internal/payment/gateway"
	"github.com/xSkywa1ker/dance-bot/internal/subscription"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStore struct{ mock.Mock }
type MockGateway struct{ mock.Mock }
type MockConfirmer struct{ mock.Mock }
type MockMinter struct{ mock.Mock }

func (m *MockStore) Insert(ctx context.Context, p *Payment) (*Payment, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockStore) SetConfirmationURL(ctx context.Context, id int, url string) error {
	return m.Called(ctx, id, url).Error(0)
}

func (m *MockStore) GetByOrderIDForUpdate(ctx context.Context, tx *sqlx.Tx, orderID string) (*Payment, error) {
	args := m.Called(ctx, tx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockStore) UpdateStatus(ctx context.Context, ext sqlx.ExtContext, id int, status PaymentStatus, providerPaymentID *string, now time.Time) error {
	return m.Called(ctx, ext, id, status, providerPaymentID, now).Error(0)
}

func (m *MockStore) CancelPendingForUserSlot(ctx context.Context, ext sqlx.ExtContext, userID, slotID int, now time.Time) error {
	return m.Called(ctx, ext, userID, slotID, now).Error(0)
}

func (m *MockStore) FindLatestForUserSlot(ctx context.Context, userID, slotID int) (*Payment, error) {
	args := m.Called(ctx, userID, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Payment), args.Error(1)
}

func (m *MockGateway) Name() string {
	return m.Called().String(0)
}

func (m *MockGateway) CreatePayment(ctx context.Context, req gateway.CreateRequest) (*gateway.CreateResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.CreateResult), args.Error(1)
}

func (m *MockGateway) ParseWebhook(raw []byte) (*gateway.WebhookResult, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.WebhookResult), args.Error(1)
}

func (m *MockConfirmer) ConfirmLatestReserved(ctx context.Context, tx *sqlx.Tx, userID, slotID int) (bool, error) {
	args := m.Called(ctx, tx, userID, slotID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinter) MintFromProduct(ctx context.Context, tx *sqlx.Tx, userID, productID int, now time.Time) (*subscription.Subscription, error) {
	args := m.Called(ctx, tx, userID, productID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*subscription.Subscription), args.Error(1)
}

type paymentFixture struct {
	service   *Service
	sqlMock   sqlmock.Sqlmock
	store     *MockStore
	gw        *MockGateway
	confirmer *MockConfirmer
	minter    *MockMinter
	now       time.Time
}

func newPaymentFixture(t *testing.T) *paymentFixture {
	t.Helper()

	rawDB, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { rawDB.Close() })

	f := &paymentFixture{
		sqlMock:   sqlMock,
		store:     new(MockStore),
		gw:        new(MockGateway),
		confirmer: new(MockConfirmer),
		minter:    new(MockMinter),
		now:       time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	f.service = NewService(
		sqlx.NewDb(rawDB, "sqlmock"),
		f.store, f.gw, f.confirmer, f.minter,
		clock.Fixed{T: f.now},
	)
	return f
}

func TestService_CreateForSlot(t *testing.T) {
	f := newPaymentFixture(t)
	slotID := 1

	f.gw.On("Name").Return("stub")
	f.store.On("Insert", mock.Anything, mock.MatchedBy(func(p *Payment) bool {
		return p.UserID == 5 && p.ClassSlotID != nil && *p.ClassSlotID == slotID &&
			p.Purpose == PurposeSingleVisit && p.OrderID != ""
	})).Return(&Payment{ID: 9, UserID: 5, ClassSlotID: &slotID, OrderID: "order-1", AmountCents: 50000}, nil)
	f.gw.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req gateway.CreateRequest) bool {
		return req.OrderID == "order-1" && req.AmountCents == 50000
	})).Return(&gateway.CreateResult{Status: "pending", ConfirmationURL: "https://pay.example/order-1"}, nil)
	f.store.On("SetConfirmationURL", mock.Anything, 9, "https://pay.example/order-1").Return(nil)

	p, err := f.service.CreateForSlot(context.Background(), 5, slotID, 50000)

	require.NoError(t, err)
	require.NotNil(t, p.ConfirmationURL)
	assert.Equal(t, "https://pay.example/order-1", *p.ConfirmationURL)
}

func TestService_Create_GatewayDownKeepsIntent(t *testing.T) {
	f := newPaymentFixture(t)

	f.gw.On("Name").Return("yookassa")
	f.store.On("Insert", mock.Anything, mock.Anything).
		Return(&Payment{ID: 9, UserID: 5, OrderID: "order-1"}, nil)
	f.gw.On("CreatePayment", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	p, err := f.service.CreateForProduct(context.Background(), 5, 4, 800000)

	assert.ErrorIs(t, err, ErrGatewayUnavailable)
	require.NotNil(t, p)
	assert.Nil(t, p.ConfirmationURL)
	f.store.AssertNotCalled(t, "SetConfirmationURL")
}

func TestService_Apply_PaidSlotConfirmsBooking(t *testing.T) {
	f := newPaymentFixture(t)
	slotID := 1
	providerID := "prov-123"

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "order-1").
		Return(&Payment{ID: 9, UserID: 5, ClassSlotID: &slotID, OrderID: "order-1", Status: StatusPending, Purpose: PurposeSingleVisit}, nil)
	f.store.On("UpdateStatus", mock.Anything, mock.Anything, 9, StatusPaid, &providerID, f.now).Return(nil)
	f.confirmer.On("ConfirmLatestReserved", mock.Anything, mock.Anything, 5, 1).Return(true, nil)

	p, err := f.service.Apply(context.Background(), "order-1", StatusPaid, &providerID)

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	f.confirmer.AssertExpectations(t)
	f.minter.AssertNotCalled(t, "MintFromProduct")
}

func TestService_Apply_PaidProductMintsSubscription(t *testing.T) {
	f := newPaymentFixture(t)
	productID := 4

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "order-2").
		Return(&Payment{ID: 10, UserID: 5, ProductID: &productID, OrderID: "order-2", Status: StatusPending, Purpose: PurposeSubscription}, nil)
	f.store.On("UpdateStatus", mock.Anything, mock.Anything, 10, StatusPaid, (*string)(nil), f.now).Return(nil)
	f.minter.On("MintFromProduct", mock.Anything, mock.Anything, 5, 4, f.now).
		Return(&subscription.Subscription{ID: 11, RemainingClasses: 8}, nil)

	p, err := f.service.Apply(context.Background(), "order-2", StatusPaid, nil)

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	f.minter.AssertExpectations(t)
	f.confirmer.AssertNotCalled(t, "ConfirmLatestReserved")
}

func TestService_Apply_Idempotent(t *testing.T) {
	f := newPaymentFixture(t)
	slotID := 1

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "order-1").
		Return(&Payment{ID: 9, UserID: 5, ClassSlotID: &slotID, OrderID: "order-1", Status: StatusPaid}, nil)

	p, err := f.service.Apply(context.Background(), "order-1", StatusPaid, nil)

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
	f.store.AssertNotCalled(t, "UpdateStatus")
	f.confirmer.AssertNotCalled(t, "ConfirmLatestReserved")
}

func TestService_Apply_UnknownOrder(t *testing.T) {
	f := newPaymentFixture(t)

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectRollback()

	f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "missing").
		Return(nil, sql.ErrNoRows)

	_, err := f.service.Apply(context.Background(), "missing", StatusPaid, nil)

	assert.ErrorIs(t, err, ErrPaymentNotFound)
}

func TestService_Apply_InfraErrorIsNotNotFound(t *testing.T) {
	f := newPaymentFixture(t)

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectRollback()

	f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "order-1").
		Return(nil, errors.New("connection reset by peer"))

	_, err := f.service.Apply(context.Background(), "order-1", StatusPaid, nil)

	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPaymentNotFound)
}

func TestService_Apply_LateWebhookCannotRegressPaid(t *testing.T) {
	f := newPaymentFixture(t)
	slotID := 1

	for _, late := range []PaymentStatus{StatusCanceled, StatusPending, StatusFailed} {
		f.sqlMock.ExpectBegin()
		f.sqlMock.ExpectCommit()

		f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "order-1").
			Return(&Payment{ID: 9, UserID: 5, ClassSlotID: &slotID, OrderID: "order-1", Status: StatusPaid}, nil).Once()

		p, err := f.service.Apply(context.Background(), "order-1", late, nil)

		require.NoError(t, err)
		assert.Equal(t, StatusPaid, p.Status)
	}
	f.store.AssertNotCalled(t, "UpdateStatus")
}

func TestService_Apply_TerminalStatusSticks(t *testing.T) {
	f := newPaymentFixture(t)

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "order-3").
		Return(&Payment{ID: 12, UserID: 5, OrderID: "order-3", Status: StatusCanceled}, nil)

	p, err := f.service.Apply(context.Background(), "order-3", StatusPaid, nil)

	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, p.Status)
	f.store.AssertNotCalled(t, "UpdateStatus")
	f.confirmer.AssertNotCalled(t, "ConfirmLatestReserved")
}

func TestService_Apply_PaidCanStillBeRefunded(t *testing.T) {
	f := newPaymentFixture(t)

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "order-1").
		Return(&Payment{ID: 9, UserID: 5, OrderID: "order-1", Status: StatusPaid}, nil)
	f.store.On("UpdateStatus", mock.Anything, mock.Anything, 9, StatusRefunded, (*string)(nil), f.now).Return(nil)

	p, err := f.service.Apply(context.Background(), "order-1", StatusRefunded, nil)

	require.NoError(t, err)
	assert.Equal(t, StatusRefunded, p.Status)
}

func TestService_Apply_PaidWithoutReservedBookingStillSucceeds(t *testing.T) {
	f := newPaymentFixture(t)
	slotID := 1

	f.sqlMock.ExpectBegin()
	f.sqlMock.ExpectCommit()

	f.store.On("GetByOrderIDForUpdate", mock.Anything, mock.Anything, "order-1").
		Return(&Payment{ID: 9, UserID: 5, ClassSlotID: &slotID, OrderID: "order-1", Status: StatusPending}, nil)
	f.store.On("UpdateStatus", mock.Anything, mock.Anything, 9, StatusPaid, (*string)(nil), f.now).Return(nil)
	f.confirmer.On("ConfirmLatestReserved", mock.Anything, mock.Anything, 5, 1).Return(false, nil)

	p, err := f.service.Apply(context.Background(), "order-1", StatusPaid, nil)

	require.NoError(t, err)
	assert.Equal(t, StatusPaid, p.Status)
}

func TestStatusFromProvider(t *testing.T) {
	assert.Equal(t, StatusPaid, StatusFromProvider("succeeded"))
	assert.Equal(t, StatusPaid, StatusFromProvider("paid"))
	assert.Equal(t, StatusPending, StatusFromProvider("pending"))
	assert.Equal(t, StatusCanceled, StatusFromProvider("canceled"))
	assert.Equal(t, StatusRefunded, StatusFromProvider("refunded"))
	assert.Equal(t, StatusFailed, StatusFromProvider("exploded"))
}
