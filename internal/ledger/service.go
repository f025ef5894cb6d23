package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service appends and reads stock ledger rows.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.StockMovement, error)
	ListByProduct(ctx context.Context, productID uuid.UUID, page Page) ([]models.StockMovement, error)
}

type service struct {
	repo Repository
}

// RecordInput captures the immutable data a stock movement requires.
type RecordInput struct {
	ProductID     uuid.UUID
	Type          enums.StockMovementType
	Reason        enums.StockMovementReason
	Quantity      int
	StockBefore   int
	StockAfter    int
	ReferenceID   *uuid.UUID
	ReferenceType *enums.ReferenceType
	ExpiresAt     *time.Time
	CreatedBy     *uuid.UUID
	Notes         *string
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, tx *gorm.DB, input RecordInput) (*models.StockMovement, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	movement := &models.StockMovement{
		ProductID:     input.ProductID,
		Type:          input.Type,
		Reason:        input.Reason,
		Quantity:      input.Quantity,
		StockBefore:   input.StockBefore,
		StockAfter:    input.StockAfter,
		ReferenceID:   input.ReferenceID,
		ReferenceType: input.ReferenceType,
		ExpiresAt:     input.ExpiresAt,
		CreatedBy:     input.CreatedBy,
		Notes:         input.Notes,
	}

	if err := s.repo.WithTx(tx).Create(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
	}
	return movement, nil
}

func (s *service) ListByProduct(ctx context.Context, productID uuid.UUID, page Page) ([]models.StockMovement, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if page.Limit < 0 || page.Offset < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit and offset cannot be negative")
	}
	movements, err := s.repo.ListByProduct(ctx, productID, page)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	return movements, nil
}

func validateInput(input RecordInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if !input.Type.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stock movement type %q", input.Type))
	}
	if !input.Reason.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stock movement reason %q", input.Reason))
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "movement quantity must be positive")
	}
	if input.ReferenceType != nil && !input.ReferenceType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid reference type %q", *input.ReferenceType))
	}
	if input.StockAfter < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock cannot go negative")
	}

	if expected := expectedAfter(input.Type, input.StockBefore, input.Quantity); expected != input.StockAfter {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
			"%s movement of %d from %d must end at %d, got %d",
			input.Type, input.Quantity, input.StockBefore, expected, input.StockAfter,
		))
	}
	return nil
}

func expectedAfter(kind enums.StockMovementType, before, qty int) int {
	switch kind {
	case enums.StockMovementRestock:
		return before + qty
	case enums.StockMovementReduce, enums.StockMovementAdjustment:
		return before - qty
	case enums.StockMovementReserve, enums.StockMovementRelease:
		return before
	default:
		return before
	}
}

// VerifyChain checks that movements, in ledger order, form an unbroken
// sequence ending at currentStock.
func VerifyChain(movements []models.StockMovement, currentStock int) error {
	for i := 1; i < len(movements); i++ {
		prev, cur := movements[i-1], movements[i]
		if cur.StockBefore != prev.StockAfter {
			return fmt.Errorf("movement %s starts at %d but previous ended at %d", cur.ID, cur.StockBefore, prev.StockAfter)
		}
	}
	if n := len(movements); n > 0 && movements[n-1].StockAfter != currentStock {
		return fmt.Errorf("last movement ends at %d but product stock is %d", movements[n-1].StockAfter, currentStock)
	}
	return nil
}
