package enums

import "fmt"

// StockMovementType classifies a stock ledger row.
type StockMovementType string

const (
	StockMovementReserve    StockMovementType = "reserve"
	StockMovementRelease    StockMovementType = "release"
	StockMovementReduce     StockMovementType = "reduce"
	StockMovementRestock    StockMovementType = "restock"
	StockMovementAdjustment StockMovementType = "adjustment"
)

var validStockMovementTypes = []StockMovementType{
	StockMovementReserve,
	StockMovementRelease,
	StockMovementReduce,
	StockMovementRestock,
	StockMovementAdjustment,
}

// IsValid reports whether the value matches a known movement type.
func (t StockMovementType) IsValid() bool {
	for _, candidate := range validStockMovementTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ChangesStock reports whether rows of this type move product.stock.
func (t StockMovementType) ChangesStock() bool {
	switch t {
	case StockMovementReduce, StockMovementRestock, StockMovementAdjustment:
		return true
	case StockMovementReserve, StockMovementRelease:
		return false
	default:
		return false
	}
}

// ParseStockMovementType converts raw input into StockMovementType.
func ParseStockMovementType(value string) (StockMovementType, error) {
	for _, candidate := range validStockMovementTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement type %q", value)
}

// StockMovementReason records why a movement happened.
type StockMovementReason string

const (
	ReasonCartAdd            StockMovementReason = "cart_add"
	ReasonCartRemove         StockMovementReason = "cart_remove"
	ReasonOrderCreate        StockMovementReason = "order_create"
	ReasonPaymentConfirm     StockMovementReason = "payment_confirm"
	ReasonOrderCancel        StockMovementReason = "order_cancel"
	ReasonOrderReturn        StockMovementReason = "order_return"
	ReasonManualAdjustment   StockMovementReason = "manual_adjustment"
	ReasonExpiredReservation StockMovementReason = "expired_reservation"
	ReasonRestock            StockMovementReason = "restock"
)

var validStockMovementReasons = []StockMovementReason{
	ReasonCartAdd,
	ReasonCartRemove,
	ReasonOrderCreate,
	ReasonPaymentConfirm,
	ReasonOrderCancel,
	ReasonOrderReturn,
	ReasonManualAdjustment,
	ReasonExpiredReservation,
	ReasonRestock,
}

// IsValid reports whether the value matches a known movement reason.
func (r StockMovementReason) IsValid() bool {
	for _, candidate := range validStockMovementReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseStockMovementReason converts raw input into StockMovementReason.
func ParseStockMovementReason(value string) (StockMovementReason, error) {
	for _, candidate := range validStockMovementReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid stock movement reason %q", value)
}

// ReferenceType names the kind of record a movement points at.
type ReferenceType string

const (
	ReferenceCart   ReferenceType = "cart"
	ReferenceOrder  ReferenceType = "order"
	ReferenceManual ReferenceType = "manual"
)

var validReferenceTypes = []ReferenceType{
	ReferenceCart,
	ReferenceOrder,
	ReferenceManual,
}

func (r ReferenceType) IsValid() bool {
	for _, candidate := range validReferenceTypes {
		if candidate == r {
			return true
		}
	}
	return false
}

// ReserveReason maps the holder kind onto the reason of its reserve movement.
func (r ReferenceType) ReserveReason() StockMovementReason {
	switch r {
	case ReferenceOrder:
		return ReasonOrderCreate
	case ReferenceCart, ReferenceManual:
		return ReasonCartAdd
	default:
		return ReasonCartAdd
	}
}

func ParseReferenceType(value string) (ReferenceType, error) {
	for _, candidate := range validReferenceTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid reference type %q", value)
}
