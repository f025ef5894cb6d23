package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is the catalog row whose stock column is the shared inventory counter.
// Only the inventory service writes Stock.
type Product struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SKU        string          `gorm:"column:sku;not null;uniqueIndex"`
	Name       string          `gorm:"column:name;not null"`
	Price      decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null;default:0"`
	CategoryID *uuid.UUID      `gorm:"column:category_id;type:uuid;index"`
	Stock      int             `gorm:"column:stock;not null;default:0"`
	MinStock   int             `gorm:"column:min_stock;not null;default:0"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// IsLowStock reports whether the counter is at or below the restock threshold.
func (p Product) IsLowStock() bool {
	return p.Stock <= p.MinStock
}

// Category groups products for category-scoped coupons.
type Category struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}
