package coupons

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/metrics"
	"github.com/angelmondragon/shopcore/pkg/outbox"
	"github.com/angelmondragon/shopcore/pkg/outbox/payloads"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service validates coupons, attaches them to carts and records redemptions.
type Service interface {
	ValidateCoupon(ctx context.Context, req ValidationRequest) (*ValidationResult, error)
	ApplyToCart(ctx context.Context, cartID uuid.UUID, code string, userID uuid.UUID) (*ValidationResult, error)
	RemoveFromCart(ctx context.Context, cartID uuid.UUID) (bool, error)
	RecordUsage(ctx context.Context, input RecordUsageInput) (*models.CouponUsage, bool, error)
	RecordUsageForOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, bool, error)
	DeactivateExpired(ctx context.Context) (int, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the coupon service.
type ServiceParams struct {
	DB      txRunner
	Repo    Repository
	Carts   cart.CartRepository
	Outbox  eventEmitter
	Logger  *logger.Logger
	Metrics *metrics.CouponMetrics
	Now     func() time.Time
}

type service struct {
	db      txRunner
	repo    Repository
	carts   cart.CartRepository
	outbox  eventEmitter
	logg    *logger.Logger
	metrics *metrics.CouponMetrics
	now     func() time.Time
}

// NewService validates dependencies and returns the coupon service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		db:      params.DB,
		repo:    params.Repo,
		carts:   params.Carts,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     now,
	}, nil
}

func (s *service) ValidateCoupon(ctx context.Context, req ValidationRequest) (*ValidationResult, error) {
	if NormalizeCode(req.Code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}
	if req.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if req.Subtotal.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subtotal cannot be negative")
	}

	coupon, err := s.repo.FindByCode(ctx, req.Code)
	if err != nil {
		return nil, err
	}
	subtotal := req.Subtotal
	if subtotal.IsZero() {
		subtotal = SubtotalOf(req.Items)
	}
	input, err := s.buildInput(ctx, s.repo, coupon, req.UserID, subtotal, req.Items, req.IsFirstPurchase)
	if err != nil {
		return nil, err
	}

	result := Validate(coupon, input, s.now())
	s.metrics.IncValidation(string(result.Code))
	return &result, nil
}

func (s *service) ApplyToCart(ctx context.Context, cartID uuid.UUID, code string, userID uuid.UUID) (*ValidationResult, error) {
	if NormalizeCode(code) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	var result ValidationResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		repo := s.repo.WithTx(tx)

		locked, err := carts.LockByID(ctx, cartID)
		if err != nil {
			return err
		}
		if userID != uuid.Nil && locked.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		if err := cart.EnsureOpen(locked); err != nil {
			return err
		}
		if locked.HasCoupon() {
			applied := ""
			if locked.CouponCode != nil {
				applied = *locked.CouponCode
			}
			return pkgerrors.New(pkgerrors.CodeCouponAlreadyApplied, "cart already has a coupon").
				WithDetails(map[string]any{"coupon_code": applied})
		}

		items, err := carts.ListItems(ctx, cartID)
		if err != nil {
			return err
		}
		lines := linesFromCart(items)
		subtotal := SubtotalOf(lines)

		coupon, err := repo.FindByCode(ctx, code)
		if err != nil {
			return err
		}
		input, err := s.buildInput(ctx, repo, coupon, locked.UserID, subtotal, lines, nil)
		if err != nil {
			return err
		}

		result = Validate(coupon, input, s.now())
		if !result.IsValid {
			return nil
		}
		return carts.ApplyCoupon(ctx, cartID, cart.CouponFields{
			CouponID:  coupon.ID,
			Code:      coupon.Code,
			AppliedAt: s.now(),
			Totals:    cart.ComputeTotals(items, result.Discount.Amount),
		})
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncValidation(string(result.Code))
	logCtx := s.logg.WithFields(s.logg.WithCartID(ctx, cartID.String()), map[string]any{
		"coupon_code": NormalizeCode(code),
		"result":      result.Code,
	})
	if result.IsValid {
		s.logg.Info(logCtx, "coupon applied to cart")
	} else {
		s.logg.Info(logCtx, "coupon rejected for cart")
	}
	return &result, nil
}

func (s *service) RemoveFromCart(ctx context.Context, cartID uuid.UUID) (bool, error) {
	removed := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		carts := s.carts.WithTx(tx)
		locked, err := carts.LockByID(ctx, cartID)
		if err != nil {
			return err
		}
		if err := cart.EnsureOpen(locked); err != nil {
			return err
		}
		if !locked.HasCoupon() {
			return nil
		}
		items, err := carts.ListItems(ctx, cartID)
		if err != nil {
			return err
		}
		if err := carts.ClearCoupon(ctx, cartID, cart.ComputeTotals(items, decimal.Zero)); err != nil {
			return err
		}
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if removed {
		s.logg.Info(s.logg.WithCartID(ctx, cartID.String()), "coupon removed from cart")
	}
	return removed, nil
}

// RecordUsage writes one redemption per (coupon, order). A repeated call
// returns the stored usage with recorded=false and leaves used_count alone.
func (s *service) RecordUsage(ctx context.Context, input RecordUsageInput) (*models.CouponUsage, bool, error) {
	if input.CouponID == uuid.Nil || input.UserID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "coupon, user and order ids are required")
	}
	if input.DiscountAmount.IsNegative() {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "discount amount cannot be negative")
	}

	var (
		usage    *models.CouponUsage
		recorded bool
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		coupon, err := repo.LockByID(ctx, input.CouponID)
		if err != nil {
			return err
		}

		candidate := &models.CouponUsage{
			CouponID:       coupon.ID,
			UserID:         input.UserID,
			OrderID:        input.OrderID,
			DiscountAmount: roundMoney(input.DiscountAmount),
		}
		inserted, err := repo.InsertUsageIfAbsent(ctx, candidate)
		if err != nil {
			return err
		}
		if !inserted {
			usage, err = repo.FindUsage(ctx, coupon.ID, input.OrderID)
			return err
		}
		usage, recorded = candidate, true

		if err := repo.IncrementUsedCount(ctx, coupon.ID); err != nil {
			return err
		}
		if s.outbox == nil {
			return nil
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventCouponRedeemed,
			AggregateType: enums.AggregateCoupon,
			AggregateID:   coupon.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.CouponRedeemedEvent{
				CouponID:       coupon.ID,
				Code:           coupon.Code,
				UserID:         input.UserID,
				OrderID:        input.OrderID,
				DiscountAmount: candidate.DiscountAmount,
				UsedCount:      coupon.UsedCount + 1,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit coupon redeemed")
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	s.metrics.IncRedemption(!recorded)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"coupon_id": input.CouponID.String(),
		"order_id":  input.OrderID.String(),
		"recorded":  recorded,
	})
	if recorded {
		s.logg.Info(logCtx, "coupon usage recorded")
	} else {
		s.logg.Warn(logCtx, "duplicate coupon usage ignored")
	}
	return usage, recorded, nil
}

func (s *service) RecordUsageForOrder(ctx context.Context, orderID uuid.UUID) (*models.CouponUsage, bool, error) {
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		return nil, false, err
	}
	if order.CouponID == nil {
		return nil, false, nil
	}
	return s.RecordUsage(ctx, RecordUsageInput{
		CouponID:       *order.CouponID,
		UserID:         order.UserID,
		OrderID:        order.ID,
		DiscountAmount: order.DiscountAmount,
	})
}

func (s *service) DeactivateExpired(ctx context.Context) (int, error) {
	n, err := s.repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logg.Info(s.logg.WithField(ctx, "deactivated", n), "expired coupons deactivated")
	}
	return int(n), nil
}

func (s *service) buildInput(ctx context.Context, repo Repository, coupon *models.Coupon, userID uuid.UUID, subtotal decimal.Decimal, items []LineItem, firstPurchase *bool) (ValidationInput, error) {
	input := ValidationInput{Subtotal: subtotal, Items: items}
	if coupon == nil {
		return input, nil
	}

	used, err := repo.CountUserUsages(ctx, coupon.ID, userID)
	if err != nil {
		return input, err
	}
	input.UserUsageCount = used

	if firstPurchase != nil {
		input.IsFirstPurchase = *firstPurchase
		return input, nil
	}
	purchases, err := repo.CountPurchases(ctx, userID)
	if err != nil {
		return input, err
	}
	input.IsFirstPurchase = purchases == 0
	return input, nil
}

func linesFromCart(items []models.CartItem) []LineItem {
	lines := make([]LineItem, 0, len(items))
	for _, item := range items {
		line := LineItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		}
		if item.Product != nil {
			line.CategoryID = item.Product.CategoryID
		}
		lines = append(lines, line)
	}
	return lines
}
