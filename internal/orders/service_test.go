package orders

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type stubOrdersRepo struct {
	orders map[uuid.UUID]*models.Order
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubOrdersRepo) Create(ctx context.Context, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	copied := *order
	s.orders[order.ID] = &copied
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[orderID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	copied := *order
	return &copied, nil
}

func (s *stubOrdersRepo) TransitionStatus(ctx context.Context, orderID uuid.UUID, from, to enums.OrderStatus) (bool, error) {
	order, ok := s.orders[orderID]
	if !ok || order.Status != from {
		return false, nil
	}
	order.Status = to
	return true, nil
}

type stubTx struct{}

func (stubTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

// stubCarts covers the cart repository calls checkout makes; the rest panic.
type stubCarts struct {
	cart.CartRepository
	cart *models.Cart
}

func (s *stubCarts) WithTx(tx *gorm.DB) cart.CartRepository {
	return s
}

func (s *stubCarts) LockByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	if s.cart == nil || s.cart.ID != cartID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	copied := *s.cart
	copied.Items = nil
	return &copied, nil
}

func (s *stubCarts) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	return s.cart.Items, nil
}

func (s *stubCarts) MarkCheckedOut(ctx context.Context, cartID uuid.UUID) (bool, error) {
	if !s.cart.IsOpen() {
		return false, nil
	}
	s.cart.Status = enums.CartCheckedOut
	return true, nil
}

type stubStock struct {
	attached   map[uuid.UUID]uuid.UUID
	holds      []models.StockReservation
	confirmed  []uuid.UUID
	released   []uuid.UUID
	confirmErr error
}

func (s *stubStock) AttachCartToOrder(ctx context.Context, tx *gorm.DB, cartID, orderID uuid.UUID) ([]models.StockReservation, error) {
	if s.attached == nil {
		s.attached = map[uuid.UUID]uuid.UUID{}
	}
	s.attached[cartID] = orderID
	return s.holds, nil
}

func (s *stubStock) ConfirmForOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	if s.confirmErr != nil {
		return 0, s.confirmErr
	}
	s.confirmed = append(s.confirmed, orderID)
	return 1, nil
}

func (s *stubStock) ReleaseForOrder(ctx context.Context, orderID uuid.UUID, reason enums.StockMovementReason) (int, error) {
	s.released = append(s.released, orderID)
	return 1, nil
}

type stubUsage struct {
	calls []uuid.UUID
}

func (s *stubUsage) RecordUsageForOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, bool, error) {
	s.calls = append(s.calls, orderID)
	return nil, false, nil
}

type ordersFixture struct {
	svc   Service
	repo  *stubOrdersRepo
	stock *stubStock
	usage *stubUsage
	cart  *models.Cart
}

func newOrdersFixture(t *testing.T) *ordersFixture {
	t.Helper()
	couponID := uuid.New()
	code := "SAVE10"
	productID := uuid.New()
	c := &models.Cart{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Status:         enums.CartOpen,
		CouponID:       &couponID,
		CouponCode:     &code,
		CouponDiscount: decimal.NewFromInt(10),
		Items: []models.CartItem{
			{ProductID: productID, Quantity: 2, UnitPrice: decimal.NewFromInt(30)},
		},
	}
	repo := newStubOrdersRepo()
	stock := &stubStock{holds: []models.StockReservation{
		{ID: uuid.New(), ProductID: productID, Quantity: 2, Status: enums.ReservationActive},
	}}
	usage := &stubUsage{}
	svc, err := NewService(ServiceParams{
		DB:        stubTx{},
		Repo:      repo,
		Carts:     &stubCarts{cart: c},
		Inventory: stock,
		Coupons:   usage,
		Logger:    logger.Nop(),
	})
	require.NoError(t, err)
	return &ordersFixture{svc: svc, repo: repo, stock: stock, usage: usage, cart: c}
}

func TestCheckoutSnapshotsCart(t *testing.T) {
	f := newOrdersFixture(t)

	order, err := f.svc.Checkout(context.Background(), CheckoutInput{CartID: f.cart.ID, UserID: f.cart.UserID})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, order.Status)
	assert.True(t, order.Subtotal.Equal(decimal.NewFromInt(60)))
	assert.True(t, order.DiscountAmount.Equal(decimal.NewFromInt(10)))
	assert.True(t, order.Total.Equal(decimal.NewFromInt(50)))
	assert.Equal(t, f.cart.CouponID, order.CouponID)
	assert.Equal(t, order.ID, f.stock.attached[f.cart.ID])
	assert.Equal(t, enums.CartCheckedOut, f.cart.Status)
}

func TestCheckoutRejectsClosedCart(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, CheckoutInput{CartID: f.cart.ID, UserID: f.cart.UserID})
	require.NoError(t, err)

	_, err = f.svc.Checkout(ctx, CheckoutInput{CartID: f.cart.ID, UserID: f.cart.UserID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	assert.Len(t, f.stock.attached, 1)
}

func TestCheckoutRequiresHoldsForEveryLine(t *testing.T) {
	f := newOrdersFixture(t)
	f.stock.holds[0].Quantity = 1

	_, err := f.svc.Checkout(context.Background(), CheckoutInput{CartID: f.cart.ID, UserID: f.cart.UserID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, details["held"])
	assert.Equal(t, 2, details["requested"])
	assert.True(t, f.cart.IsOpen())
}

func TestCheckoutRejectsForeignOrEmptyCart(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()

	_, err := f.svc.Checkout(ctx, CheckoutInput{CartID: f.cart.ID, UserID: uuid.New()})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	f.cart.Items = nil
	_, err = f.svc.Checkout(ctx, CheckoutInput{CartID: f.cart.ID, UserID: f.cart.UserID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestMarkPaidConfirmsThenRecordsUsage(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order, err := f.svc.Checkout(ctx, CheckoutInput{CartID: f.cart.ID, UserID: f.cart.UserID})
	require.NoError(t, err)

	paid, err := f.svc.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)
	assert.Equal(t, []uuid.UUID{order.ID}, f.stock.confirmed)
	assert.Equal(t, []uuid.UUID{order.ID}, f.usage.calls)

	_, err = f.svc.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, f.stock.confirmed, 1, "paid orders are not confirmed twice")
	assert.Len(t, f.usage.calls, 2)
}

func TestMarkPaidKeepsOrderPendingWhenStockFails(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order, err := f.svc.Checkout(ctx, CheckoutInput{CartID: f.cart.ID, UserID: f.cart.UserID})
	require.NoError(t, err)

	f.stock.confirmErr = pkgerrors.New(pkgerrors.CodeStateConflict, "order holds expired before confirmation")
	_, err = f.svc.MarkPaid(ctx, order.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, f.stock.confirmErr))

	stored, err := f.repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPending, stored.Status)
	assert.Empty(t, f.usage.calls)
}

func TestCancel(t *testing.T) {
	f := newOrdersFixture(t)
	ctx := context.Background()
	order, err := f.svc.Checkout(ctx, CheckoutInput{CartID: f.cart.ID, UserID: f.cart.UserID})
	require.NoError(t, err)

	canceled, err := f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCanceled, canceled.Status)
	assert.Equal(t, []uuid.UUID{order.ID}, f.stock.released)

	_, err = f.svc.Cancel(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, f.stock.released, 1)

	_, err = f.svc.MarkPaid(ctx, order.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(ServiceParams{})
	assert.Error(t, err)

	_, err = NewService(ServiceParams{DB: stubTx{}, Repo: newStubOrdersRepo(), Logger: logger.Nop()})
	assert.EqualError(t, err, "cart repository required")
}
