package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopcore/api/middleware"
	"github.com/angelmondragon/shopcore/api/responses"
	"github.com/angelmondragon/shopcore/api/validators"
	"github.com/angelmondragon/shopcore/internal/cart"
	"github.com/angelmondragon/shopcore/pkg/db/models"
	pkgerrors "github.com/angelmondragon/shopcore/pkg/errors"
	"github.com/angelmondragon/shopcore/pkg/logger"
)

// CreateCart opens an empty cart for the caller.
func CreateCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := svc.Create(r.Context(), middleware.ActorFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newCartResponse(c))
	}
}

func GetCart(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := loadOwnedCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(c))
	}
}

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gt=0"`
}

// AddCartItem reserves stock for the line and adds it to the caller's cart.
func AddCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := loadOwnedCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.AddItem(r.Context(), cart.AddItemInput{
			CartID:    c.ID,
			ProductID: payload.ProductID,
			Quantity:  payload.Quantity,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(updated))
	}
}

// RemoveCartItem drops a line and releases its hold.
func RemoveCartItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := loadOwnedCart(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.RemoveItem(r.Context(), c.ID, productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCartResponse(updated))
	}
}

// loadOwnedCart resolves {cartId} and hides carts owned by someone else behind NOT_FOUND.
func loadOwnedCart(r *http.Request, svc cart.Service) (*models.Cart, error) {
	cartID, err := validators.ParseUUIDParam(r, "cartId")
	if err != nil {
		return nil, err
	}
	c, err := svc.Get(r.Context(), cartID)
	if err != nil {
		return nil, err
	}
	if c.UserID != middleware.ActorFromContext(r.Context()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return c, nil
}
