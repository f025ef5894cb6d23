package controllers

import (
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore/api/middleware"
	"github.com/angelmondragon/shopcore/api/responses"
	"github.com/angelmondragon/shopcore/api/validators"
	"github.com/angelmondragon/shopcore/internal/inventory"
	"github.com/angelmondragon/shopcore/internal/ledger"
	"github.com/angelmondragon/shopcore/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
)

const (
	defaultMovementLimit = 100
	maxMovementLimit     = 1000
	maxQuantity          = 1_000_000
)

// ProductAvailability reports the derived stock picture for one product.
func ProductAvailability(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		qty, err := validators.ParseQueryInt(r, "quantity", 1, 0, maxQuantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		availability, err := svc.CheckAvailability(r.Context(), productID, qty)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, availability)
	}
}

type availabilityBatchRequest struct {
	Items []inventory.AvailabilityRequest `json:"items" validate:"required,min=1,max=200,dive"`
}

// ProductAvailabilityBatch checks several products in one call.
func ProductAvailabilityBatch(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload availabilityBatchRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		results, err := svc.CheckAvailabilityBatch(r.Context(), payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, results)
	}
}

type reserveRequest struct {
	ProductID  uuid.UUID        `json:"product_id" validate:"required"`
	Quantity   int              `json:"quantity" validate:"gt=0"`
	Holder     inventory.Holder `json:"holder"`
	TTLSeconds int              `json:"ttl_seconds" validate:"gte=0"`
}

// ReserveStock places a hold for a cart or order.
func ReserveStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload reserveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := actorPtr(r)
		reservation, err := svc.Reserve(r.Context(), inventory.ReserveInput{
			ProductID: payload.ProductID,
			Quantity:  payload.Quantity,
			Holder:    payload.Holder,
			UserID:    actor,
			TTL:       time.Duration(payload.TTLSeconds) * time.Second,
			CreatedBy: actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newReservationResponse(reservation))
	}
}

// ReleaseReservation returns a hold to available stock. Releasing a hold that is
// already terminal reports released=false instead of failing.
func ReleaseReservation(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, err := validators.ParseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var reason enums.StockMovementReason
		if raw := strings.TrimSpace(r.URL.Query().Get("reason")); raw != "" {
			parsed, err := enums.ParseStockMovementReason(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid release reason"))
				return
			}
			reason = parsed
		}

		released, err := svc.Release(r.Context(), reservationID, reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"reservation_id": reservationID,
			"released":       released,
		})
	}
}

// ConfirmReservation converts a hold into a permanent stock reduction.
func ConfirmReservation(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reservationID, err := validators.ParseUUIDParam(r, "reservationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		confirmed, err := svc.Confirm(r.Context(), reservationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"reservation_id": reservationID,
			"confirmed":      confirmed,
		})
	}
}

// ReleaseExpiredReservations runs one sweep on demand, optionally for a single product.
// Per-hold failures are reported as a count. A sweep that cannot list its
// candidates fails the request.
func ReleaseExpiredReservations(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var productID *uuid.UUID
		if raw := strings.TrimSpace(r.URL.Query().Get("product_id")); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
				return
			}
			productID = &parsed
		}

		released, err := svc.ReleaseExpired(r.Context(), productID)
		failed := 0
		var partial *inventory.SweepError
		switch {
		case errors.As(err, &partial):
			failed = len(partial.Failed)
			logg.Error(logg.WithField(r.Context(), "failed", failed), "expired reservation sweep had failures", err)
		case err != nil:
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{
			"released": released,
			"failed":   failed,
		})
	}
}

type adjustStockRequest struct {
	NewStock int    `json:"new_stock" validate:"gte=0"`
	Reason   string `json:"reason" validate:"required,max=255"`
}

// AdjustProductStock overrides a product's counter and records the delta in the ledger.
func AdjustProductStock(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload adjustStockRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		changed, err := svc.AdjustStock(r.Context(), inventory.AdjustStockInput{
			ProductID: productID,
			NewStock:  payload.NewStock,
			Reason:    validators.SanitizeString(payload.Reason, 255),
			CreatedBy: actorPtr(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"product_id": productID,
			"stock":      payload.NewStock,
			"changed":    changed,
		})
	}
}

// ProductMovements pages through one product's ledger, newest first unless ?order=asc.
func ProductMovements(svc inventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", defaultMovementLimit, 1, maxMovementLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, math.MaxInt32)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := validators.ParseQueryChoice(r, "order", "desc", "asc", "desc")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page := ledger.Page{Limit: limit, Offset: offset, NewestFirst: order == "desc"}

		rows, err := svc.ListMovements(r.Context(), productID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newMovementResponses(rows))
	}
}

func actorPtr(r *http.Request) *uuid.UUID {
	actor := middleware.ActorFromContext(r.Context())
	if actor == uuid.Nil {
		return nil
	}
	return &actor
}
