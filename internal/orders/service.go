package orders

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockCommitter is the slice of the inventory service the order lifecycle drives.
type StockCommitter interface {
	AttachCartToOrder(ctx context.Context, tx *gorm.DB, cartID, orderID uuid.UUID) ([]models.StockReservation, error)
	ConfirmForOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	ReleaseForOrder(ctx context.Context, orderID uuid.UUID, reason enums.StockMovementReason) (int, error)
}

// UsageRecorder records coupon redemptions for completed orders.
type UsageRecorder interface {
	RecordUsageForOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, bool, error)
}

// Service drives the order lifecycle against stock holds and coupon usage.
type Service interface {
	Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

// CheckoutInput turns a cart into a pending order.
type CheckoutInput struct {
	CartID uuid.UUID `json:"cart_id" validate:"required"`
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// ServiceParams wires the order lifecycle service.
type ServiceParams struct {
	DB        txRunner
	Repo      Repository
	Carts     cart.CartRepository
	Inventory StockCommitter
	Coupons   UsageRecorder
	Logger    *logger.Logger
}

type service struct {
	db        txRunner
	repo      Repository
	carts     cart.CartRepository
	inventory StockCommitter
	coupons   UsageRecorder
	logg      *logger.Logger
}

// NewService wires the order lifecycle service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		db:        params.DB,
		repo:      params.Repo,
		carts:     params.Carts,
		inventory: params.Inventory,
		coupons:   params.Coupons,
		logg:      params.Logger,
	}, nil
}

// Checkout closes the cart and opens a pending order in one transaction. The
// order snapshots the cart totals and coupon, and takes over the cart's holds;
// every line must still be covered by a live hold.
func (s *service) Checkout(ctx context.Context, input CheckoutInput) (*models.Order, error) {
	var (
		order *models.Order
		holds []models.StockReservation
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		c, err := carts.LockByID(ctx, input.CartID)
		if err != nil {
			return err
		}
		if c.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		if err := cart.EnsureOpen(c); err != nil {
			return err
		}
		items, err := carts.ListItems(ctx, c.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
		}

		totals := cart.ComputeTotals(items, c.CouponDiscount)
		cartID := c.ID
		order = &models.Order{
			UserID:         c.UserID,
			CartID:         &cartID,
			Status:         enums.OrderStatusPending,
			Subtotal:       totals.Subtotal,
			CouponID:       c.CouponID,
			CouponCode:     c.CouponCode,
			DiscountAmount: totals.Discount,
			Total:          totals.Total,
		}
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}

		holds, err = s.inventory.AttachCartToOrder(ctx, tx, c.ID, order.ID)
		if err != nil {
			return err
		}
		if err := ensureCovered(items, holds); err != nil {
			return err
		}

		closed, err := carts.MarkCheckedOut(ctx, c.ID)
		if err != nil {
			return err
		}
		if !closed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is already checked out").
				WithDetails(map[string]any{"cart_id": c.ID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"cart_id":  input.CartID.String(),
		"holds":    len(holds),
	}), "order created from cart")
	return order, nil
}

// ensureCovered rejects a checkout where a line holds fewer units than it asks for.
func ensureCovered(items []models.CartItem, holds []models.StockReservation) error {
	held := make(map[uuid.UUID]int, len(holds))
	for _, h := range holds {
		held[h.ProductID] += h.Quantity
	}
	for _, item := range items {
		if held[item.ProductID] < item.Quantity {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "cart items are no longer reserved").
				WithDetails(map[string]any{
					"product_id": item.ProductID,
					"held":       held[item.ProductID],
					"requested":  item.Quantity,
				})
		}
	}
	return nil
}

// MarkPaid confirms the order's holds, then records the coupon redemption.
// Retrying after a partial failure is safe: both steps are idempotent.
func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case enums.OrderStatusCanceled:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is canceled")
	case enums.OrderStatusPending:
		confirmed, err := s.inventory.ConfirmForOrder(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		if _, err := s.repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusPaid); err != nil {
			return nil, err
		}
		order.Status = enums.OrderStatusPaid
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":  order.ID.String(),
			"confirmed": confirmed,
		}), "order paid")
	case enums.OrderStatusPaid, enums.OrderStatusCompleted:
	}

	if _, _, err := s.coupons.RecordUsageForOrder(ctx, order.ID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) Cancel(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	switch order.Status {
	case enums.OrderStatusCanceled:
		return order, nil
	case enums.OrderStatusPaid, enums.OrderStatusCompleted:
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is %s", order.Status))
	case enums.OrderStatusPending:
	}

	released, err := s.inventory.ReleaseForOrder(ctx, order.ID, enums.ReasonOrderCancel)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPending, enums.OrderStatusCanceled); err != nil {
		return nil, err
	}
	order.Status = enums.OrderStatusCanceled
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"released": released,
	}), "order canceled")
	return order, nil
}
