package checkout

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/cart"
	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/store"
)

// Handler exposes the checkout endpoint.
type Handler struct {
	Svc *Service
}

type checkoutPayload struct {
	CartID uuid.UUID `json:"cartId"`
	Email  string    `json:"email"`
}

// Checkout handles POST /api/v1/checkout.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout service not configured", nil)
		return
	}
	var payload checkoutPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	order, err := h.Svc.Checkout(r.Context(), Input{
		CartID:     payload.CartID,
		CustomerID: customerID(r),
		Email:      payload.Email,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": order})
}

func customerID(r *http.Request) string {
	id, _ := common.CustomerID(r.Context())
	return id
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "cartId and email are required", nil)
	case errors.Is(err, cart.ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart has no items", nil)
	case errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrOutOfStock):
		common.JSONError(w, http.StatusConflict, "OUT_OF_STOCK", err.Error(), nil)
	case errors.Is(err, store.ErrUsageExhausted):
		common.JSONError(w, http.StatusConflict, "PROMOTION_EXHAUSTED", "a promotion reached its usage limit, re-price the cart", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
