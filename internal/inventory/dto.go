package inventory

import (
	"time"

	"github.com/angelmondragon/shopcore/pkg/enums"
	"github.com/google/uuid"
)

// Holder identifies who a reservation is held for.
type Holder struct {
	Type enums.ReferenceType `json:"type" validate:"required,oneof=cart order"`
	ID   uuid.UUID           `json:"id" validate:"required"`
}

// ReserveInput describes a new hold.
type ReserveInput struct {
	ProductID uuid.UUID
	Quantity  int
	Holder    Holder
	UserID    *uuid.UUID
	// TTL falls back to the configured default when zero.
	TTL       time.Duration
	CreatedBy *uuid.UUID
}

// AdjustStockInput is an administrative override of a product's counter.
type AdjustStockInput struct {
	ProductID uuid.UUID
	NewStock  int
	// Reason is free text kept in the movement notes. A value naming a
	// restock-style reason ("restock", "order_return") is used as the movement reason.
	Reason    string
	CreatedBy *uuid.UUID
}

// Availability is the derived stock picture of one product.
type Availability struct {
	ProductID         uuid.UUID `json:"product_id"`
	TotalStock        int       `json:"total_stock"`
	AvailableStock    int       `json:"available_stock"`
	ReservedStock     int       `json:"reserved_stock"`
	CommittedStock    int       `json:"committed_stock"`
	RequestedQuantity int       `json:"requested_quantity"`
	IsAvailable       bool      `json:"is_available"`
	HasLowStock       bool      `json:"has_low_stock"`
	CanFulfillRequest bool      `json:"can_fulfill_request"`
}

// AvailabilityRequest is one line of a batch availability check.
type AvailabilityRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gte=0"`
}

func computeAvailability(productID uuid.UUID, stock, minStock, reserved, committed, requested int) Availability {
	available := stock - reserved
	if available < 0 {
		available = 0
	}
	return Availability{
		ProductID:         productID,
		TotalStock:        stock,
		AvailableStock:    available,
		ReservedStock:     reserved,
		CommittedStock:    committed,
		RequestedQuantity: requested,
		IsAvailable:       available > 0,
		HasLowStock:       stock <= minStock,
		CanFulfillRequest: available >= requested,
	}
}
