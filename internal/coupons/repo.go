package coupons

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository captures coupon, usage and purchase-history persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	LockByID(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error)
	CountUserUsages(ctx context.Context, couponID, userID uuid.UUID) (int, error)
	CountPurchases(ctx context.Context, userID uuid.UUID) (int, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	InsertUsageIfAbsent(ctx context.Context, usage *models.CouponUsage) (bool, error)
	FindUsage(ctx context.Context, couponID, orderID uuid.UUID) (*models.CouponUsage, error)
	IncrementUsedCount(ctx context.Context, couponID uuid.UUID) error
	DeactivateExpired(ctx context.Context, now time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a coupon repository to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByCode returns nil without error when no coupon carries the code.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var rows []models.Coupon
	if err := r.db.WithContext(ctx).
		Preload("Categories").
		Preload("Products").
		Where("code = ?", NormalizeCode(code)).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find coupon")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) LockByID(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error) {
	var coupon models.Coupon
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&coupon, "id = ?", couponID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock coupon")
	}
	return &coupon, nil
}

func (r *repository) CountUserUsages(ctx context.Context, couponID, userID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.CouponUsage{}).
		Where("coupon_id = ? AND user_id = ?", couponID, userID).
		Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count coupon usages")
	}
	return int(count), nil
}

// CountPurchases counts the user's orders that disqualify first-purchase coupons.
func (r *repository) CountPurchases(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND status IN ?", userID, []enums.OrderStatus{enums.OrderStatusPaid, enums.OrderStatusCompleted}).
		Count(&count).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count purchases")
	}
	return int(count), nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return &order, nil
}

// InsertUsageIfAbsent inserts the usage unless (coupon_id, order_id) already
// exists. It reports whether a row was written.
func (r *repository) InsertUsageIfAbsent(ctx context.Context, usage *models.CouponUsage) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "coupon_id"}, {Name: "order_id"}},
			DoNothing: true,
		}).
		Create(usage)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "insert coupon usage")
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindUsage(ctx context.Context, couponID, orderID uuid.UUID) (*models.CouponUsage, error) {
	var usage models.CouponUsage
	if err := r.db.WithContext(ctx).
		First(&usage, "coupon_id = ? AND order_id = ?", couponID, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon usage not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon usage")
	}
	return &usage, nil
}

func (r *repository) IncrementUsedCount(ctx context.Context, couponID uuid.UUID) error {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("id = ?", couponID).
		Updates(map[string]any{
			"used_count": gorm.Expr("used_count + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment coupon usage")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found")
	}
	return nil
}

// DeactivateExpired flips the status flag off for active coupons past expires_at.
func (r *repository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Coupon{}).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?", true, now).
		Updates(map[string]any{
			"status":     false,
			"updated_at": now,
		})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "deactivate expired coupons")
	}
	return res.RowsAffected, nil
}
