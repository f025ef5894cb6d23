package cart

import (
	"context"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository captures cart persistence used by the cart and coupon services.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	Create(ctx context.Context, cart *models.Cart) error
	FindByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	LockByID(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	ListItems(ctx context.Context, cartID uuid.UUID) ([]models.CartItem, error)
	FindItem(ctx context.Context, cartID, productID uuid.UUID) (*models.CartItem, error)
	SaveItem(ctx context.Context, item *models.CartItem) error
	DeleteItem(ctx context.Context, itemID uuid.UUID) error
	ApplyCoupon(ctx context.Context, cartID uuid.UUID, coupon CouponFields) error
	ClearCoupon(ctx context.Context, cartID uuid.UUID, totals Totals) error
	SaveTotals(ctx context.Context, cartID uuid.UUID, totals Totals) error
	MarkCheckedOut(ctx context.Context, cartID uuid.UUID) (bool, error)
}
