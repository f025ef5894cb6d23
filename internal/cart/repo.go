package cart

import (
	"context"
	"errors"
	"time"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository exposes persistence operations for carts and their items.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, cart *models.Cart) error {
	if err := r.db.WithContext(ctx).Create(cart).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return nil
}

// FindByID loads a cart with its items and their products.
func (r *Repository) FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Items.Product").
		First(&cart, "id = ?", cartID).Error
	if err != nil {
		return nil, lookupError(err, "load cart")
	}
	return &cart, nil
}

// LockByID reads the cart row FOR UPDATE so coupon changes on one cart serialize.
func (r *Repository) LockByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&cart, "id = ?", cartID).Error
	if err != nil {
		return nil, lookupError(err, "lock cart")
	}
	return &cart, nil
}

func (r *Repository) ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Preload("Product").
		Where("cart_id = ?", cartID).
		Order("created_at ASC").
		Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart items")
	}
	return items, nil
}

// FindItem returns nil without error when the product is not in the cart.
func (r *Repository) FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error) {
	var items []models.CartItem
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND product_id = ?", cartID, productID).
		Limit(1).
		Find(&items).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find cart item")
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *Repository) SaveItem(ctx context.Context, item *models.CartItem) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(item).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save cart item")
	}
	return nil
}

func (r *Repository) DeleteItem(ctx context.Context, itemID uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&models.CartItem{}, "id = ?", itemID).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}
	return nil
}

func (r *Repository) ApplyCoupon(ctx context.Context, cartID uuid.UUID, coupon CouponFields) error {
	return r.update(ctx, cartID, "apply cart coupon", map[string]any{
		"coupon_id":         coupon.CouponID,
		"coupon_code":       coupon.Code,
		"coupon_discount":   coupon.Totals.Discount,
		"coupon_applied_at": coupon.AppliedAt,
		"subtotal":          coupon.Totals.Subtotal,
		"total":             coupon.Totals.Total,
	})
}

func (r *Repository) ClearCoupon(ctx context.Context, cartID uuid.UUID, totals Totals) error {
	return r.update(ctx, cartID, "clear cart coupon", map[string]any{
		"coupon_id":         nil,
		"coupon_code":       nil,
		"coupon_discount":   decimal.Zero,
		"coupon_applied_at": nil,
		"subtotal":          totals.Subtotal,
		"total":             totals.Total,
	})
}

func (r *Repository) SaveTotals(ctx context.Context, cartID uuid.UUID, totals Totals) error {
	return r.update(ctx, cartID, "save cart totals", map[string]any{
		"coupon_discount": totals.Discount,
		"subtotal":        totals.Subtotal,
		"total":           totals.Total,
	})
}

// MarkCheckedOut closes an open cart. It returns false when the cart was already closed.
func (r *Repository) MarkCheckedOut(ctx context.Context, cartID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ? AND status = ?", cartID, enums.CartOpen).
		Updates(map[string]any{
			"status":     enums.CartCheckedOut,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "close cart")
	}
	return res.RowsAffected == 1, nil
}

// EnsureOpen returns STATE_CONFLICT for a cart that has been checked out.
func EnsureOpen(c *models.Cart) error {
	if c.IsOpen() {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is already checked out").
		WithDetails(map[string]any{"cart_id": c.ID, "status": c.Status})
}

func (r *Repository) update(ctx context.Context, cartID uuid.UUID, op string, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Cart{}).
		Where("id = ?", cartID).
		Updates(updates)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, op)
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return nil
}

func lookupError(err error, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
