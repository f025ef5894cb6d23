package inventory

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

// Repository persists products' stock counters and reservations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	LockProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error)
	DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error)
	SetStock(ctx context.Context, productID uuid.UUID, stock int) error

	SumQuantityByStatus(ctx context.Context, productID uuid.UUID, status enums.ReservationStatus) (int, error)
	CreateReservation(ctx context.Context, reservation *models.StockReservation) error
	FindReservation(ctx context.Context, reservationID uuid.UUID) (*models.StockReservation, error)
	FindActiveForHolder(ctx context.Context, productID uuid.UUID, holder Holder) (*models.StockReservation, error)
	GrowReservation(ctx context.Context, reservationID uuid.UUID, qty int, expiresAt time.Time) (bool, error)
	TransitionReservation(ctx context.Context, reservationID uuid.UUID, to enums.ReservationStatus, at time.Time) (bool, error)
	ListExpired(ctx context.Context, productID *uuid.UUID, now time.Time, limit int) ([]models.StockReservation, error)
	ListActiveByCart(ctx context.Context, cartID uuid.UUID) ([]models.StockReservation, error)
	ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error)
	AssignOrder(ctx context.Context, reservationIDs []uuid.UUID, orderID uuid.UUID) (int64, error)
	ShrinkReservation(ctx context.Context, reservationID uuid.UUID, qty int) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, translateLookup(err, "product not found", "load product")
	}
	return &product, nil
}

// LockProduct reads the product row with SELECT ... FOR UPDATE. Every
// stock-affecting path takes this lock first so holds on one product are serialized.
func (r *repository) LockProduct(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&product, "id = ?", productID).Error; err != nil {
		return nil, translateLookup(err, "product not found", "lock product")
	}
	return &product, nil
}

// DecrementStock subtracts qty only when enough stock remains; false means it did not.
func (r *repository) DecrementStock(ctx context.Context, productID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) SetStock(ctx context.Context, productID uuid.UUID, stock int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      stock,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "set stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}

func (r *repository) SumQuantityByStatus(ctx context.Context, productID uuid.UUID, status enums.ReservationStatus) (int, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Select("COALESCE(SUM(quantity), 0)").
		Where("product_id = ? AND status = ?", productID, status).
		Scan(&total).Error; err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum reservations")
	}
	return int(total), nil
}

func (r *repository) CreateReservation(ctx context.Context, reservation *models.StockReservation) error {
	if err := r.db.WithContext(ctx).Create(reservation).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create reservation")
	}
	return nil
}

func (r *repository) FindReservation(ctx context.Context, reservationID uuid.UUID) (*models.StockReservation, error) {
	var reservation models.StockReservation
	if err := r.db.WithContext(ctx).First(&reservation, "id = ?", reservationID).Error; err != nil {
		return nil, translateLookup(err, "reservation not found", "load reservation")
	}
	return &reservation, nil
}

func (r *repository) FindActiveForHolder(ctx context.Context, productID uuid.UUID, holder Holder) (*models.StockReservation, error) {
	query := r.db.WithContext(ctx).
		Where("product_id = ? AND status = ?", productID, enums.ReservationActive)
	switch holder.Type {
	case enums.ReferenceOrder:
		query = query.Where("order_id = ?", holder.ID)
	case enums.ReferenceCart, enums.ReferenceManual:
		query = query.Where("cart_id = ?", holder.ID)
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown holder type")
	}

	var rows []models.StockReservation
	if err := query.Order("created_at ASC").Limit(1).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find holder reservation")
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) GrowReservation(ctx context.Context, reservationID uuid.UUID, qty int, expiresAt time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", reservationID, enums.ReservationActive).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", qty),
			"expires_at": expiresAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "grow reservation")
	}
	return res.RowsAffected == 1, nil
}

// TransitionReservation moves an active reservation to a terminal status. It
// returns false when the row was no longer active.
func (r *repository) TransitionReservation(ctx context.Context, reservationID uuid.UUID, to enums.ReservationStatus, at time.Time) (bool, error) {
	if !to.IsTerminal() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "reservations can only move to a terminal status")
	}
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	switch to {
	case enums.ReservationConfirmed:
		updates["confirmed_at"] = at
	case enums.ReservationReleased, enums.ReservationExpired:
		updates["released_at"] = at
	}

	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ? AND status = ?", reservationID, enums.ReservationActive).
		Updates(updates)
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "transition reservation")
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListExpired(ctx context.Context, productID *uuid.UUID, now time.Time, limit int) ([]models.StockReservation, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", enums.ReservationActive, now)
	if productID != nil {
		query = query.Where("product_id = ?", *productID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.StockReservation
	if err := query.Order("expires_at ASC").Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list expired reservations")
	}
	return rows, nil
}

// ListActiveByCart returns the cart's holds that no order has taken over yet.
func (r *repository) ListActiveByCart(ctx context.Context, cartID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	if err := r.db.WithContext(ctx).
		Where("cart_id = ? AND order_id IS NULL AND status = ?", cartID, enums.ReservationActive).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list cart reservations")
	}
	return rows, nil
}

func (r *repository) ListActiveByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	if err := r.db.WithContext(ctx).
		Where("order_id = ? AND status = ?", orderID, enums.ReservationActive).
		Order("product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order reservations")
	}
	return rows, nil
}

// ListByOrder returns every hold of the order whatever its status.
func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockReservation, error) {
	var rows []models.StockReservation
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("product_id ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list order holds")
	}
	return rows, nil
}

// AssignOrder hands active, unassigned holds to an order. The count tells the
// caller how many rows actually moved.
func (r *repository) AssignOrder(ctx context.Context, reservationIDs []uuid.UUID, orderID uuid.UUID) (int64, error) {
	if len(reservationIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id IN ? AND order_id IS NULL AND status = ?", reservationIDs, enums.ReservationActive).
		Updates(map[string]any{
			"order_id":   orderID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "assign holds to order")
	}
	return res.RowsAffected, nil
}

// ShrinkReservation takes qty units off an active hold that keeps at least one unit.
func (r *repository) ShrinkReservation(ctx context.Context, reservationID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.StockReservation{}).
		Where("id = ? AND status = ? AND quantity > ?", reservationID, enums.ReservationActive, qty).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity - ?", qty),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "shrink reservation")
	}
	return res.RowsAffected == 1, nil
}

func translateLookup(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}
