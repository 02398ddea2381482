package cart

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/promo"
	"github.com/arvhein/backend-merch/internal/store"
)

// Handler exposes cart CRUD and pricing endpoints. The optional
// X-Customer-Id header scopes per-user promotion limits.
type Handler struct {
	Svc   *Service
	Promo *promo.Service
}

type addItemPayload struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

type updateItemPayload struct {
	Quantity int `json:"quantity"`
}

// Create handles POST /api/v1/carts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	c, err := h.Svc.Create(r.Context(), customerID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": c})
}

// Get handles GET /api/v1/carts/{id}, returning the cart with its items.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	c, err := h.Svc.Store.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	items, err := h.Svc.Store.Items(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if items == nil {
		items = []store.CartItem{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cart": c, "items": items}})
}

// AddItem handles POST /api/v1/carts/{id}/items.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if payload.ProductID == uuid.Nil || payload.Quantity <= 0 {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", "productId and a positive quantity are required", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), id, payload.ProductID, payload.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cartId": id}})
}

// UpdateItem handles PATCH /api/v1/carts/{id}/items/{productId}.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	var payload updateItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Svc.Store.SetItemQuantity(r.Context(), id, productID, payload.Quantity); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cartId": id}})
}

// RemoveItem handles DELETE /api/v1/carts/{id}/items/{productId}.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	productID, err := uuid.Parse(chi.URLParam(r, "productId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid product id", nil)
		return
	}
	if err := h.Svc.Store.RemoveItem(r.Context(), id, productID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cartId": id}})
}

// Price handles POST /api/v1/carts/{id}/price, running the promotion
// selection pipeline over the cart snapshot.
func (h *Handler) Price(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Promo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing not configured", nil)
		return
	}
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	snapshot, err := h.Svc.Snapshot(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.Promo.Price(r.Context(), snapshot, customerID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"subtotal":     snapshot.Subtotal,
		"shippingCost": snapshot.ShippingCost,
		"pricing":      result,
	}})
}

// Progress handles GET /api/v1/carts/{id}/promotions/{promotionId}/progress.
func (h *Handler) Progress(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Promo == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "pricing not configured", nil)
		return
	}
	id, ok := h.cartID(w, r)
	if !ok {
		return
	}
	promotionID, err := uuid.Parse(chi.URLParam(r, "promotionId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid promotion id", nil)
		return
	}
	snapshot, err := h.Svc.Snapshot(r.Context(), id)
	if err != nil && !errors.Is(err, ErrEmptyCart) {
		h.writeError(w, err)
		return
	}
	entries, err := h.Promo.Progress(r.Context(), snapshot, promotionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	payload := map[string]any{"dimensions": entries}
	if best, ok := promo.Best(entries); ok {
		payload["best"] = best
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": payload})
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, promo.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "not found", nil)
	case errors.Is(err, ErrEmptyCart):
		common.JSONError(w, http.StatusUnprocessableEntity, "EMPTY_CART", "cart has no items", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}

func customerID(r *http.Request) string {
	id, _ := common.CustomerID(r.Context())
	return id
}
