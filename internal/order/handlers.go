package order

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/store"
)

// Store captures the order queries the handlers need.
type Store interface {
	Get(ctx context.Context, id uuid.UUID) (store.Order, error)
	GetByCode(ctx context.Context, code string) (store.Order, error)
	Items(ctx context.Context, orderID uuid.UUID) ([]store.OrderItem, error)
	ListByStatus(ctx context.Context, status string, limit int32) ([]store.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to string) error
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	SetTracking(ctx context.Context, id uuid.UUID, trackingCode string) error
}

// Handler exposes customer-facing order endpoints.
type Handler struct {
	Store  Store
	Events *events.Bus
}

// Get handles GET /api/v1/orders/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	o, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	items, err := h.Store.Items(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []store.OrderItem{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"order": o, "items": items}})
}

// Track handles GET /api/v1/orders/code/{code}, the customer-facing status
// lookup by order code.
func (h *Handler) Track(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	o, err := h.Store.GetByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{
		"code":         o.Code,
		"status":       o.Status,
		"trackingCode": o.TrackingCode,
	}})
}

// Cancel handles POST /api/v1/orders/{id}/cancel. Only unpaid orders can be
// cancelled by the customer.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	if err := h.Store.UpdateStatus(r.Context(), id, store.OrderPendingPayment, store.OrderCancelled); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusConflict, "NOT_CANCELLABLE", "order is not awaiting payment", nil)
			return
		}
		writeError(w, err)
		return
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.KindOrderCancelled, id, nil)
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "status": store.OrderCancelled}})
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}
