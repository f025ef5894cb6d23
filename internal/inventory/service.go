package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/shopcore/internal/ledger"
	"github.com/angelmondragon/shopcore/pkg/config"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
	"github.com/angelmondragon/shopcore/pkg/metrics"
	"github.com/angelmondragon/shopcore/pkg/outbox"
	"github.com/angelmondragon/shopcore/pkg/outbox/payloads"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"
)

// Service owns product stock, reservations and the availability derived from them.
type Service interface {
	CheckAvailability(ctx context.Context, productID uuid.UUID, requestedQty int) (*Availability, error)
	CheckAvailabilityBatch(ctx context.Context, requests []AvailabilityRequest) ([]Availability, error)
	Reserve(ctx context.Context, input ReserveInput) (*models.StockReservation, error)
	Release(ctx context.Context, reservationID uuid.UUID, reason enums.StockMovementReason) (bool, error)
	Shrink(ctx context.Context, reservationID uuid.UUID, qty int, reason enums.StockMovementReason) (bool, error)
	Confirm(ctx context.Context, reservationID uuid.UUID) (bool, error)
	ReleaseExpired(ctx context.Context, productID *uuid.UUID) (int, error)
	AdjustStock(ctx context.Context, input AdjustStockInput) (bool, error)
	ReleaseForCart(ctx context.Context, cartID uuid.UUID, reason enums.StockMovementReason) (int, error)
	ConfirmForOrder(ctx context.Context, orderID uuid.UUID) (int, error)
	ReleaseForOrder(ctx context.Context, orderID uuid.UUID, reason enums.StockMovementReason) (int, error)
	AttachCartToOrder(ctx context.Context, tx *gorm.DB, cartID, orderID uuid.UUID) ([]models.StockReservation, error)
	ListMovements(ctx context.Context, productID uuid.UUID, page ledger.Page) ([]models.StockMovement, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the inventory service.
type ServiceParams struct {
	DB             txRunner
	Repo           Repository
	Ledger         ledger.Service
	Outbox         eventEmitter
	Logger         *logger.Logger
	Metrics        *metrics.InventoryMetrics
	DefaultTTL     time.Duration
	SweepBatchSize int
	Now            func() time.Time
}

type service struct {
	db         txRunner
	repo       Repository
	ledger     ledger.Service
	outbox     eventEmitter
	logg       *logger.Logger
	metrics    *metrics.InventoryMetrics
	defaultTTL time.Duration
	sweepBatch int
	now        func() time.Time
}

// NewService validates dependencies and returns the inventory service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	ttl := params.DefaultTTL
	if ttl <= 0 {
		ttl = config.DefaultReservationTTL
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		db:         params.DB,
		repo:       params.Repo,
		ledger:     params.Ledger,
		outbox:     params.Outbox,
		logg:       params.Logger,
		metrics:    params.Metrics,
		defaultTTL: ttl,
		sweepBatch: params.SweepBatchSize,
		now:        now,
	}, nil
}

func (s *service) CheckAvailability(ctx context.Context, productID uuid.UUID, requestedQty int) (*Availability, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if requestedQty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "requested quantity cannot be negative")
	}

	if _, err := s.ReleaseExpired(ctx, &productID); err != nil {
		s.logg.Warn(s.logg.WithField(s.logg.WithProductID(ctx, productID.String()), "error", err.Error()), "lazy reservation sweep failed")
	}

	product, err := s.repo.FindProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	reserved, err := s.repo.SumQuantityByStatus(ctx, productID, enums.ReservationActive)
	if err != nil {
		return nil, err
	}
	committed, err := s.repo.SumQuantityByStatus(ctx, productID, enums.ReservationConfirmed)
	if err != nil {
		return nil, err
	}

	availability := computeAvailability(product.ID, product.Stock, product.MinStock, reserved, committed, requestedQty)
	return &availability, nil
}

func (s *service) CheckAvailabilityBatch(ctx context.Context, requests []AvailabilityRequest) ([]Availability, error) {
	out := make([]Availability, 0, len(requests))
	for _, req := range requests {
		availability, err := s.CheckAvailability(ctx, req.ProductID, req.Quantity)
		if err != nil {
			return nil, err
		}
		out = append(out, *availability)
	}
	return out, nil
}

func (s *service) Reserve(ctx context.Context, input ReserveInput) (*models.StockReservation, error) {
	if err := validateReserveInput(input); err != nil {
		return nil, err
	}
	ttl := input.TTL
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	now := s.now()
	expiresAt := now.Add(ttl)

	var (
		reservation *models.StockReservation
		outcome     = "created"
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.LockProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		if _, err := s.expireLocked(ctx, tx, product, now); err != nil {
			return err
		}

		reserved, err := repo.SumQuantityByStatus(ctx, product.ID, enums.ReservationActive)
		if err != nil {
			return err
		}
		available := max(0, product.Stock-reserved)
		if available < input.Quantity {
			outcome = "insufficient"
			return pkgerrors.InsufficientStock(available, input.Quantity)
		}

		existing, err := repo.FindActiveForHolder(ctx, product.ID, input.Holder)
		if err != nil {
			return err
		}
		if existing != nil {
			grown, err := repo.GrowReservation(ctx, existing.ID, input.Quantity, expiresAt)
			if err != nil {
				return err
			}
			if !grown {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation changed while extending it")
			}
			existing.Quantity += input.Quantity
			existing.ExpiresAt = expiresAt
			reservation = existing
			outcome = "grown"
		} else {
			reservation = &models.StockReservation{
				ProductID: product.ID,
				Quantity:  input.Quantity,
				UserID:    input.UserID,
				Status:    enums.ReservationActive,
				ExpiresAt: expiresAt,
			}
			holderID := input.Holder.ID
			if input.Holder.Type == enums.ReferenceOrder {
				reservation.OrderID = &holderID
			} else {
				reservation.CartID = &holderID
			}
			if err := repo.CreateReservation(ctx, reservation); err != nil {
				return err
			}
		}

		holderID, holderType := input.Holder.ID, input.Holder.Type
		return s.record(ctx, tx, ledger.RecordInput{
			ProductID:     product.ID,
			Type:          enums.StockMovementReserve,
			Reason:        holderType.ReserveReason(),
			Quantity:      input.Quantity,
			StockBefore:   product.Stock,
			StockAfter:    product.Stock,
			ReferenceID:   &holderID,
			ReferenceType: &holderType,
			ExpiresAt:     &expiresAt,
			CreatedBy:     input.CreatedBy,
		})
	})
	if err != nil {
		if outcome == "insufficient" {
			s.metrics.IncReservation(outcome)
		}
		return nil, err
	}

	s.metrics.IncReservation(outcome)
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reservation_id": reservation.ID.String(),
		"product_id":     reservation.ProductID.String(),
		"quantity":       input.Quantity,
		"holder_type":    input.Holder.Type,
		"holder_id":      input.Holder.ID.String(),
		"expires_at":     expiresAt,
	})
	s.logg.Info(logCtx, "stock reserved")
	return reservation, nil
}

func (s *service) Release(ctx context.Context, reservationID uuid.UUID, reason enums.StockMovementReason) (bool, error) {
	if reason == "" {
		reason = enums.ReasonCartRemove
	}
	if !reason.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid release reason %q", reason))
	}
	current, err := s.repo.FindReservation(ctx, reservationID)
	if err != nil {
		return false, err
	}
	if current.Status != enums.ReservationActive {
		return false, nil
	}

	released, err := s.terminate(ctx, current.ProductID, reservationID, reason)
	if err != nil {
		return false, err
	}
	if released != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"reservation_id": reservationID.String(),
			"product_id":     released.ProductID.String(),
			"quantity":       released.Quantity,
			"reason":         reason,
		})
		s.logg.Info(logCtx, "reservation released")
	}
	return released != nil, nil
}

// Shrink hands qty units of an active hold back. Taking the whole hold or more
// releases it outright.
func (s *service) Shrink(ctx context.Context, reservationID uuid.UUID, qty int, reason enums.StockMovementReason) (bool, error) {
	if qty <= 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if reason == "" {
		reason = enums.ReasonCartRemove
	}
	if !reason.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid release reason %q", reason))
	}
	current, err := s.repo.FindReservation(ctx, reservationID)
	if err != nil {
		return false, err
	}

	shrunk := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.LockProduct(ctx, current.ProductID)
		if err != nil {
			return err
		}
		reservation, err := repo.FindReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationActive {
			return nil
		}
		if qty >= reservation.Quantity {
			ok, err := repo.TransitionReservation(ctx, reservation.ID, enums.ReservationReleased, s.now())
			if err != nil || !ok {
				return err
			}
			shrunk = true
			return s.recordRelease(ctx, tx, product, reservation, reason)
		}

		ok, err := repo.ShrinkReservation(ctx, reservation.ID, qty)
		if err != nil || !ok {
			return err
		}
		shrunk = true
		partial := *reservation
		partial.Quantity = qty
		return s.recordRelease(ctx, tx, product, &partial, reason)
	})
	if err != nil {
		return false, err
	}
	if shrunk {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"reservation_id": reservationID.String(),
			"quantity":       qty,
			"reason":         reason,
		}), "reservation shrunk")
	}
	return shrunk, nil
}

func (s *service) Confirm(ctx context.Context, reservationID uuid.UUID) (bool, error) {
	current, err := s.repo.FindReservation(ctx, reservationID)
	if err != nil {
		return false, err
	}

	now := s.now()
	expiredOnConfirm := false
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.LockProduct(ctx, current.ProductID)
		if err != nil {
			return err
		}
		reservation, err := repo.FindReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationActive {
			return notActive(reservation)
		}
		if reservation.IsExpiredAt(now) {
			expiredOnConfirm = true
			_, err := s.expireReservation(ctx, tx, product, reservation, now)
			return err
		}
		return s.confirmLocked(ctx, tx, product, reservation, now)
	})
	if err != nil {
		return false, err
	}
	if expiredOnConfirm {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "reservation expired before confirmation").
			WithDetails(map[string]any{"status": enums.ReservationExpired})
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"reservation_id": reservationID.String(),
		"product_id":     current.ProductID.String(),
		"quantity":       current.Quantity,
	})
	s.logg.Info(logCtx, "reservation confirmed")
	return true, nil
}

func (s *service) ReleaseExpired(ctx context.Context, productID *uuid.UUID) (int, error) {
	now := s.now()
	limit := s.sweepBatch
	if productID != nil {
		limit = 0
	}
	rows, err := s.repo.ListExpired(ctx, productID, now, limit)
	if err != nil {
		return 0, err
	}

	var (
		count  int
		failed []error
	)
	for i := range rows {
		row := rows[i]
		expired := false
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			product, err := repo.LockProduct(ctx, row.ProductID)
			if err != nil {
				return err
			}
			current, err := repo.FindReservation(ctx, row.ID)
			if err != nil {
				return err
			}
			if current.Status != enums.ReservationActive || !current.IsExpiredAt(now) {
				return nil
			}
			expired, err = s.expireReservation(ctx, tx, product, current, now)
			return err
		})
		if err != nil {
			failed = append(failed, fmt.Errorf("expire reservation %s: %w", row.ID, err))
			s.logg.Error(s.logg.WithField(ctx, "reservation_id", row.ID.String()), "failed to expire reservation", err)
			continue
		}
		if expired {
			count++
		}
	}

	s.metrics.AddExpired(count)
	if count > 0 {
		fields := map[string]any{"expired": count, "failed": len(failed)}
		if productID != nil {
			fields["product_id"] = productID.String()
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "expired reservations released")
	}
	if len(failed) > 0 {
		return count, &SweepError{Failed: failed}
	}
	return count, nil
}

func (s *service) AdjustStock(ctx context.Context, input AdjustStockInput) (bool, error) {
	if input.ProductID == uuid.Nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.NewStock < 0 {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative").
			WithDetails(map[string]any{"new_stock": input.NewStock})
	}

	var delta int
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.LockProduct(ctx, input.ProductID)
		if err != nil {
			return err
		}
		delta = input.NewStock - product.Stock
		if delta == 0 {
			return nil
		}
		if err := repo.SetStock(ctx, product.ID, input.NewStock); err != nil {
			return err
		}

		movementType := enums.StockMovementRestock
		quantity := delta
		if delta < 0 {
			movementType = enums.StockMovementAdjustment
			quantity = -delta
		}
		refType := enums.ReferenceManual
		var notes *string
		if input.Reason != "" {
			text := input.Reason
			notes = &text
		}
		if err := s.record(ctx, tx, ledger.RecordInput{
			ProductID:     product.ID,
			Type:          movementType,
			Reason:        adjustmentReason(input.Reason, delta),
			Quantity:      quantity,
			StockBefore:   product.Stock,
			StockAfter:    input.NewStock,
			ReferenceType: &refType,
			CreatedBy:     input.CreatedBy,
			Notes:         notes,
		}); err != nil {
			return err
		}
		return s.emitLowStock(ctx, tx, product, product.Stock, input.NewStock)
	})
	if err != nil {
		return false, err
	}
	if delta != 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": input.ProductID.String(),
			"new_stock":  input.NewStock,
			"delta":      delta,
		})
		s.logg.Info(logCtx, "stock adjusted")
	}
	return true, nil
}

func (s *service) ReleaseForCart(ctx context.Context, cartID uuid.UUID, reason enums.StockMovementReason) (int, error) {
	rows, err := s.repo.ListActiveByCart(ctx, cartID)
	if err != nil {
		return 0, err
	}
	return s.releaseAll(ctx, rows, reason)
}

func (s *service) ReleaseForOrder(ctx context.Context, orderID uuid.UUID, reason enums.StockMovementReason) (int, error) {
	if reason == "" {
		reason = enums.ReasonOrderCancel
	}
	rows, err := s.repo.ListActiveByOrder(ctx, orderID)
	if err != nil {
		return 0, err
	}
	return s.releaseAll(ctx, rows, reason)
}

// ConfirmForOrder converts every hold of an order in one transaction; either all
// of them become permanent decrements or none do. An order whose holds were
// released or expired cannot be paid for: its units may already belong to
// someone else.
func (s *service) ConfirmForOrder(ctx context.Context, orderID uuid.UUID) (int, error) {
	now := s.now()
	confirmed := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		rows, err := repo.ListByOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order has no stock holds").
				WithDetails(map[string]any{"order_id": orderID})
		}

		locked := make(map[uuid.UUID]*models.Product, len(rows))
		for _, row := range rows {
			product, ok := locked[row.ProductID]
			if !ok {
				product, err = repo.LockProduct(ctx, row.ProductID)
				if err != nil {
					return err
				}
				locked[row.ProductID] = product
			}
			reservation, err := repo.FindReservation(ctx, row.ID)
			if err != nil {
				return err
			}
			switch reservation.Status {
			case enums.ReservationConfirmed:
				continue
			case enums.ReservationExpired, enums.ReservationReleased:
				return lostHold(orderID, reservation)
			case enums.ReservationActive:
			}
			if reservation.IsExpiredAt(now) {
				expired := *reservation
				expired.Status = enums.ReservationExpired
				return lostHold(orderID, &expired)
			}
			if err := s.confirmLocked(ctx, tx, product, reservation, now); err != nil {
				return err
			}
			confirmed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"order_id":  orderID.String(),
		"confirmed": confirmed,
	}), "order reservations confirmed")
	return confirmed, nil
}

// AttachCartToOrder moves the cart's live holds under the order inside the
// caller's transaction and returns them. Holds already past their expiry stay
// with the cart for the sweep.
func (s *service) AttachCartToOrder(ctx context.Context, tx *gorm.DB, cartID, orderID uuid.UUID) ([]models.StockReservation, error) {
	if cartID == uuid.Nil || orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart id and order id are required")
	}
	repo := s.repo.WithTx(tx)
	rows, err := repo.ListActiveByCart(ctx, cartID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	live := make([]models.StockReservation, 0, len(rows))
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		if row.IsExpiredAt(now) {
			continue
		}
		row.OrderID = &orderID
		live = append(live, row)
		ids = append(ids, row.ID)
	}

	n, err := repo.AssignOrder(ctx, ids, orderID)
	if err != nil {
		return nil, err
	}
	if int(n) != len(ids) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cart holds changed during checkout")
	}
	return live, nil
}

func (s *service) ListMovements(ctx context.Context, productID uuid.UUID, page ledger.Page) ([]models.StockMovement, error) {
	if _, err := s.repo.FindProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.ledger.ListByProduct(ctx, productID, page)
}

func (s *service) releaseAll(ctx context.Context, rows []models.StockReservation, reason enums.StockMovementReason) (int, error) {
	var (
		count int
		errs  error
	)
	for _, row := range rows {
		released, err := s.Release(ctx, row.ID, reason)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release reservation %s: %w", row.ID, err))
			continue
		}
		if released {
			count++
		}
	}
	return count, errs
}

// terminate releases an active reservation under the product lock. The row is
// re-read inside the transaction so the movement carries the quantity that was
// actually held. It returns nil when the hold was no longer active.
func (s *service) terminate(ctx context.Context, productID, reservationID uuid.UUID, reason enums.StockMovementReason) (*models.StockReservation, error) {
	var released *models.StockReservation
	now := s.now()
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		product, err := repo.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		reservation, err := repo.FindReservation(ctx, reservationID)
		if err != nil {
			return err
		}
		if reservation.Status != enums.ReservationActive {
			return nil
		}
		ok, err := repo.TransitionReservation(ctx, reservation.ID, enums.ReservationReleased, now)
		if err != nil || !ok {
			return err
		}
		if err := s.recordRelease(ctx, tx, product, reservation, reason); err != nil {
			return err
		}
		released = reservation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// expireLocked expires the product's stale holds; the caller holds the product lock.
func (s *service) expireLocked(ctx context.Context, tx *gorm.DB, product *models.Product, now time.Time) (int, error) {
	rows, err := s.repo.WithTx(tx).ListExpired(ctx, &product.ID, now, 0)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range rows {
		expired, err := s.expireReservation(ctx, tx, product, &rows[i], now)
		if err != nil {
			return count, err
		}
		if expired {
			count++
		}
	}
	s.metrics.AddExpired(count)
	return count, nil
}

func (s *service) expireReservation(ctx context.Context, tx *gorm.DB, product *models.Product, reservation *models.StockReservation, now time.Time) (bool, error) {
	ok, err := s.repo.WithTx(tx).TransitionReservation(ctx, reservation.ID, enums.ReservationExpired, now)
	if err != nil || !ok {
		return false, err
	}
	if err := s.recordRelease(ctx, tx, product, reservation, enums.ReasonExpiredReservation); err != nil {
		return false, err
	}
	return true, nil
}

func (s *service) confirmLocked(ctx context.Context, tx *gorm.DB, product *models.Product, reservation *models.StockReservation, now time.Time) error {
	repo := s.repo.WithTx(tx)
	decremented, err := repo.DecrementStock(ctx, product.ID, reservation.Quantity)
	if err != nil {
		return err
	}
	if !decremented {
		return pkgerrors.InsufficientStock(product.Stock, reservation.Quantity)
	}
	ok, err := repo.TransitionReservation(ctx, reservation.ID, enums.ReservationConfirmed, now)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "reservation is no longer active")
	}

	before := product.Stock
	after := before - reservation.Quantity
	refID, refType := holderRef(reservation)
	if err := s.record(ctx, tx, ledger.RecordInput{
		ProductID:     product.ID,
		Type:          enums.StockMovementReduce,
		Reason:        enums.ReasonPaymentConfirm,
		Quantity:      reservation.Quantity,
		StockBefore:   before,
		StockAfter:    after,
		ReferenceID:   refID,
		ReferenceType: refType,
	}); err != nil {
		return err
	}
	product.Stock = after

	if s.outbox != nil {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReservationConfirmed,
			AggregateType: enums.AggregateReservation,
			AggregateID:   reservation.ID,
			OccurredAt:    now,
			Data: payloads.ReservationConfirmedEvent{
				ReservationID: reservation.ID,
				ProductID:     product.ID,
				OrderID:       reservation.OrderID,
				Quantity:      reservation.Quantity,
				StockAfter:    after,
				ConfirmedAt:   now,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit reservation confirmed")
		}
	}
	return s.emitLowStock(ctx, tx, product, before, after)
}

func (s *service) recordRelease(ctx context.Context, tx *gorm.DB, product *models.Product, reservation *models.StockReservation, reason enums.StockMovementReason) error {
	refID, refType := holderRef(reservation)
	return s.record(ctx, tx, ledger.RecordInput{
		ProductID:     product.ID,
		Type:          enums.StockMovementRelease,
		Reason:        reason,
		Quantity:      reservation.Quantity,
		StockBefore:   product.Stock,
		StockAfter:    product.Stock,
		ReferenceID:   refID,
		ReferenceType: refType,
	})
}

func (s *service) record(ctx context.Context, tx *gorm.DB, input ledger.RecordInput) error {
	if _, err := s.ledger.Record(ctx, tx, input); err != nil {
		return err
	}
	s.metrics.IncMovement(string(input.Type))
	return nil
}

// emitLowStock queues a stock_low event when a decrease leaves stock at or below min_stock.
func (s *service) emitLowStock(ctx context.Context, tx *gorm.DB, product *models.Product, before, after int) error {
	if s.outbox == nil || after >= before || after > product.MinStock {
		return nil
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventStockLow,
		AggregateType: enums.AggregateProduct,
		AggregateID:   product.ID,
		Data: payloads.StockLowEvent{
			ProductID: product.ID,
			SKU:       product.SKU,
			Stock:     after,
			MinStock:  product.MinStock,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit stock low")
	}
	return nil
}

func validateReserveInput(input ReserveInput) error {
	if input.ProductID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if input.Holder.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "holder id is required")
	}
	switch input.Holder.Type {
	case enums.ReferenceCart, enums.ReferenceOrder:
		return nil
	case enums.ReferenceManual:
		return pkgerrors.New(pkgerrors.CodeValidation, "reservations must be held by a cart or an order")
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid holder type %q", input.Holder.Type))
	}
}

func lostHold(orderID uuid.UUID, reservation *models.StockReservation) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, "order holds are no longer reserved").
		WithDetails(map[string]any{
			"order_id":       orderID,
			"reservation_id": reservation.ID,
			"product_id":     reservation.ProductID,
			"status":         reservation.Status,
		})
}

func notActive(reservation *models.StockReservation) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("reservation is %s", reservation.Status)).
		WithDetails(map[string]any{"status": reservation.Status})
}

func holderRef(reservation *models.StockReservation) (*uuid.UUID, *enums.ReferenceType) {
	switch {
	case reservation.OrderID != nil:
		t := enums.ReferenceOrder
		return reservation.OrderID, &t
	case reservation.CartID != nil:
		t := enums.ReferenceCart
		return reservation.CartID, &t
	default:
		return nil, nil
	}
}

func adjustmentReason(raw string, delta int) enums.StockMovementReason {
	reason, err := enums.ParseStockMovementReason(raw)
	if err != nil {
		return enums.ReasonManualAdjustment
	}
	if delta > 0 && (reason == enums.ReasonRestock || reason == enums.ReasonOrderReturn) {
		return reason
	}
	return enums.ReasonManualAdjustment
}
