package ledger

import (
	"context"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository persists stock movements. Rows are append-only: there is no
// update or delete path.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.StockMovement) error
	ListByProduct(ctx context.Context, productID uuid.UUID, page Page) ([]models.StockMovement, error)
}

// Page selects a window of one product's ledger. The zero value is the whole
// ledger, oldest first.
type Page struct {
	Limit       int
	Offset      int
	NewestFirst bool
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID, page Page) ([]models.StockMovement, error) {
	direction := "ASC"
	if page.NewestFirst {
		direction = "DESC"
	}
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at " + direction).
		Order("id " + direction)
	if page.Limit > 0 {
		query = query.Limit(page.Limit)
	}
	if page.Offset > 0 {
		query = query.Offset(page.Offset)
	}
	var movements []models.StockMovement
	if err := query.Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}
