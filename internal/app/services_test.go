package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/internal/orders"
	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
)

func openTestDB(t *testing.T) *db.Client {
	t.Helper()
	dsn := fmt.Sprintf("file:app_%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return db.FromGorm(conn)
}

func TestNewServicesRequiresDependencies(t *testing.T) {
	_, err := NewServices(nil, openTestDB(t), logger.Nop(), nil)
	require.Error(t, err)

	_, err = NewServices(&config.Config{}, nil, logger.Nop(), nil)
	require.Error(t, err)

	_, err = NewServices(&config.Config{}, openTestDB(t), nil, nil)
	require.Error(t, err)
}

func TestCheckoutFlowConsumesStockAndCoupon(t *testing.T) {
	ctx := context.Background()
	client := openTestDB(t)
	conn := client.DB()

	services, err := NewServices(&config.Config{}, client, logger.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)

	product := &models.Product{SKU: "SKU-1", Name: "Desk lamp", Price: decimal.NewFromInt(25), Stock: 10, MinStock: 2}
	require.NoError(t, conn.Create(product).Error)
	coupon := &models.Coupon{
		Code:          "SAVE10",
		Type:          enums.CouponPercentage,
		DiscountValue: decimal.NewFromInt(10),
		Active:        true,
	}
	require.NoError(t, conn.Create(coupon).Error)

	userID := uuid.New()
	c, err := services.Carts.Create(ctx, userID)
	require.NoError(t, err)

	_, err = services.Carts.AddItem(ctx, cart.AddItemInput{CartID: c.ID, ProductID: product.ID, Quantity: 2})
	require.NoError(t, err)

	availability, err := services.Inventory.CheckAvailability(ctx, product.ID, 9)
	require.NoError(t, err)
	assert.True(t, availability.IsAvailable)
	assert.False(t, availability.CanFulfillRequest)
	assert.Equal(t, 8, availability.AvailableStock)

	result, err := services.Coupons.ApplyToCart(ctx, c.ID, "save10", userID)
	require.NoError(t, err)
	require.True(t, result.IsValid)
	require.NotNil(t, result.Discount)
	assert.True(t, decimal.NewFromInt(5).Equal(result.Discount.Amount))

	order, err := services.Orders.Checkout(ctx, orders.CheckoutInput{CartID: c.ID, UserID: userID})
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(45).Equal(order.Total))

	paid, err := services.Orders.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, paid.Status)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 8, stored.Stock)

	var storedCoupon models.Coupon
	require.NoError(t, conn.First(&storedCoupon, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, storedCoupon.UsedCount)

	var active int64
	require.NoError(t, conn.Model(&models.StockReservation{}).
		Where("product_id = ? AND status = ?", product.ID, enums.ReservationActive).
		Count(&active).Error)
	assert.Zero(t, active)

	_, err = services.Orders.MarkPaid(ctx, order.ID)
	require.NoError(t, err)
	require.NoError(t, conn.First(&storedCoupon, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, storedCoupon.UsedCount)
}

func TestCheckoutClosesCartSoItsHoldsBelongToOneOrder(t *testing.T) {
	ctx := context.Background()
	client := openTestDB(t)
	conn := client.DB()

	services, err := NewServices(&config.Config{}, client, logger.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)

	product := &models.Product{SKU: "SKU-2", Name: "Kettle", Price: decimal.NewFromInt(40), Stock: 5}
	require.NoError(t, conn.Create(product).Error)
	require.NoError(t, conn.Create(&models.Coupon{
		Code:          "TAKE5",
		Type:          enums.CouponFixedAmount,
		DiscountValue: decimal.NewFromInt(5),
		Active:        true,
	}).Error)

	userID := uuid.New()
	c, err := services.Carts.Create(ctx, userID)
	require.NoError(t, err)
	_, err = services.Carts.AddItem(ctx, cart.AddItemInput{CartID: c.ID, ProductID: product.ID, Quantity: 5})
	require.NoError(t, err)

	first, err := services.Orders.Checkout(ctx, orders.CheckoutInput{CartID: c.ID, UserID: userID})
	require.NoError(t, err)

	_, err = services.Orders.Checkout(ctx, orders.CheckoutInput{CartID: c.ID, UserID: userID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = services.Carts.AddItem(ctx, cart.AddItemInput{CartID: c.ID, ProductID: product.ID, Quantity: 1})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = services.Carts.RemoveItem(ctx, c.ID, product.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
	_, err = services.Coupons.ApplyToCart(ctx, c.ID, "TAKE5", userID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	var orderCount int64
	require.NoError(t, conn.Model(&models.Order{}).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)

	_, err = services.Orders.MarkPaid(ctx, first.ID)
	require.NoError(t, err)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 0, stored.Stock)

	var storedCart models.Cart
	require.NoError(t, conn.First(&storedCart, "id = ?", c.ID).Error)
	assert.Equal(t, enums.CartCheckedOut, storedCart.Status)
}

func TestMarkPaidRefusesOrderWhoseHoldsWereSwept(t *testing.T) {
	ctx := context.Background()
	client := openTestDB(t)
	conn := client.DB()

	services, err := NewServices(&config.Config{}, client, logger.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)

	product := &models.Product{SKU: "SKU-3", Name: "Mug", Price: decimal.NewFromInt(12), Stock: 1}
	require.NoError(t, conn.Create(product).Error)

	buyer := uuid.New()
	c, err := services.Carts.Create(ctx, buyer)
	require.NoError(t, err)
	_, err = services.Carts.AddItem(ctx, cart.AddItemInput{CartID: c.ID, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)
	order, err := services.Orders.Checkout(ctx, orders.CheckoutInput{CartID: c.ID, UserID: buyer})
	require.NoError(t, err)

	require.NoError(t, conn.Model(&models.StockReservation{}).
		Where("order_id = ?", order.ID).
		Update("expires_at", time.Now().UTC().Add(-time.Minute)).Error)
	swept, err := services.Inventory.ReleaseExpired(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	other := uuid.New()
	otherCart, err := services.Carts.Create(ctx, other)
	require.NoError(t, err)
	_, err = services.Carts.AddItem(ctx, cart.AddItemInput{CartID: otherCart.ID, ProductID: product.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = services.Orders.MarkPaid(ctx, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	var storedOrder models.Order
	require.NoError(t, conn.First(&storedOrder, "id = ?", order.ID).Error)
	assert.Equal(t, enums.OrderStatusPending, storedOrder.Status)

	var stored models.Product
	require.NoError(t, conn.First(&stored, "id = ?", product.ID).Error)
	assert.Equal(t, 1, stored.Stock)

	availability, err := services.Inventory.CheckAvailability(ctx, product.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, availability.ReservedStock)
}
