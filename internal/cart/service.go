package cart

import (
	"context"
	"fmt"

	"github.com/angelmondragon/shopcore/internal/inventory"
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

// stockHolder is the part of the inventory service a cart drives.
type stockHolder interface {
	Reserve(ctx context.Context, input inventory.ReserveInput) (*models.StockReservation, error)
	Release(ctx context.Context, reservationID uuid.UUID, reason enums.StockMovementReason) (bool, error)
	Shrink(ctx context.Context, reservationID uuid.UUID, qty int, reason enums.StockMovementReason) (bool, error)
}

// Service mutates cart lines and keeps a stock hold behind each of them.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	Get(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	AddItem(ctx context.Context, input AddItemInput) (*models.Cart, error)
	RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*models.Cart, error)
}

// AddItemInput adds Quantity units of a product to a cart.
type AddItemInput struct {
	CartID    uuid.UUID `json:"-"`
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

type service struct {
	repo      CartRepository
	tx        txRunner
	inventory stockHolder
	logg      *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo CartRepository, tx txRunner, inv stockHolder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if inv == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, inventory: inv, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	cart := &models.Cart{UserID: userID}
	if err := s.repo.Create(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *service) Get(ctx context.Context, cartID uuid.UUID) (*models.Cart, error) {
	return s.repo.FindByID(ctx, cartID)
}

// AddItem reserves stock first and only then records the line. A failed line
// write hands back the units this call added and leaves earlier ones held.
func (s *service) AddItem(ctx context.Context, input AddItemInput) (*models.Cart, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	cart, err := s.repo.FindByID(ctx, input.CartID)
	if err != nil {
		return nil, err
	}
	if err := EnsureOpen(cart); err != nil {
		return nil, err
	}

	reservation, err := s.inventory.Reserve(ctx, inventory.ReserveInput{
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		Holder:    inventory.Holder{Type: enums.ReferenceCart, ID: cart.ID},
		UserID:    &cart.UserID,
	})
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByID(ctx, cart.ID)
		if err != nil {
			return err
		}
		if err := EnsureOpen(locked); err != nil {
			return err
		}
		var product models.Product
		if err := tx.WithContext(ctx).First(&product, "id = ?", input.ProductID).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}

		item, err := repo.FindItem(ctx, cart.ID, input.ProductID)
		if err != nil {
			return err
		}
		if item == nil {
			item = &models.CartItem{CartID: cart.ID, ProductID: product.ID}
		}
		item.Quantity += input.Quantity
		item.UnitPrice = product.Price
		item.ReservationID = &reservation.ID
		if err := repo.SaveItem(ctx, item); err != nil {
			return err
		}
		return s.refreshTotals(ctx, repo, locked)
	})
	if err != nil {
		if _, shrinkErr := s.inventory.Shrink(ctx, reservation.ID, input.Quantity, enums.ReasonCartRemove); shrinkErr != nil {
			s.logg.Error(s.logg.WithCartID(ctx, cart.ID.String()), "failed to hand back units after cart write error", shrinkErr)
		}
		return nil, err
	}
	return s.repo.FindByID(ctx, cart.ID)
}

func (s *service) RemoveItem(ctx context.Context, cartID, productID uuid.UUID) (*models.Cart, error) {
	var reservationID *uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		locked, err := repo.LockByID(ctx, cartID)
		if err != nil {
			return err
		}
		if err := EnsureOpen(locked); err != nil {
			return err
		}
		item, err := repo.FindItem(ctx, cartID, productID)
		if err != nil {
			return err
		}
		if item == nil {
			return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		reservationID = item.ReservationID
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
		return s.refreshTotals(ctx, repo, locked)
	})
	if err != nil {
		return nil, err
	}

	if reservationID != nil {
		if _, err := s.inventory.Release(ctx, *reservationID, enums.ReasonCartRemove); err != nil {
			return nil, err
		}
	}
	return s.repo.FindByID(ctx, cartID)
}

func (s *service) refreshTotals(ctx context.Context, repo CartRepository, cart *models.Cart) error {
	items, err := repo.ListItems(ctx, cart.ID)
	if err != nil {
		return err
	}
	return repo.SaveTotals(ctx, cart.ID, ComputeTotals(items, cart.CouponDiscount))
}
