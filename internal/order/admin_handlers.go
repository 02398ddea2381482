package order

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/events"
	"github.com/arvhein/backend-merch/internal/store"
)

// EventLog reads the audit trail of an order.
type EventLog interface {
	ListBySubject(ctx context.Context, subjectID uuid.UUID) ([]store.Event, error)
}

// AdminHandler exposes back-office order endpoints.
type AdminHandler struct {
	Store  Store
	Events *events.Bus
	Log    EventLog
	Now    func() time.Time
}

func (h *AdminHandler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// List handles GET /api/v1/admin/orders?status=pending_payment.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = store.OrderPendingPayment
	}
	orders, err := h.Store.ListByStatus(r.Context(), status, 200)
	if err != nil {
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []store.Order{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": orders})
}

// MarkPaid handles POST /api/v1/admin/orders/{id}/mark-paid, the manual
// override when reconciliation cannot match a payment automatically.
func (h *AdminHandler) MarkPaid(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order store not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	if err := h.Store.MarkPaid(r.Context(), id, h.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			common.JSONError(w, http.StatusConflict, "NOT_PENDING", "order is not awaiting payment", nil)
			return
		}
		writeError(w, err)
		return
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), events.KindOrderPaid, id, map[string]any{"manual": true})
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "status": store.OrderPaid}})
}

// EventLog handles GET /api/v1/admin/orders/{id}/events.
func (h *AdminHandler) EventLog(w http.ResponseWriter, r *http.Request) {
	if h.Log == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "event log not configured", nil)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	entries, err := h.Log.ListBySubject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []store.Event{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": entries})
}
