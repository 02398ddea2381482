package batch

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/common"
	"github.com/arvhein/backend-merch/internal/store"
)

// AdminHandler exposes batch management endpoints. All of them sit behind
// the admin API-key middleware.
type AdminHandler struct {
	Svc      *Service
	Validate *validator.Validate
}

type createBatchPayload struct {
	Name  string `json:"name" validate:"required,max=120"`
	Notes string `json:"notes" validate:"max=2000"`
}

func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p createBatchPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(p); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
			return
		}
	}
	b, err := h.Svc.Create(r.Context(), p.Name, p.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, b)
}

func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	_, perPage := common.ParsePagination(r, 50)
	items, err := h.Svc.Batches.List(r.Context(), int32(perPage))
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid batch id", nil)
		return
	}
	b, err := h.Svc.Batches.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	orders, err := h.Svc.Orders.ListByBatch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"batch": b, "orders": orders})
}

type assignPayload struct {
	OrderIDs []uuid.UUID `json:"orderIds" validate:"required,min=1"`
}

func (h *AdminHandler) Assign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid batch id", nil)
		return
	}
	var p assignPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(p); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
			return
		}
	}
	n, err := h.Svc.Assign(r.Context(), id, p.OrderIDs)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"assigned": n})
}

type advancePayload struct {
	Status string `json:"status" validate:"required,oneof=ordered arrived shipped"`
}

func (h *AdminHandler) Advance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid batch id", nil)
		return
	}
	var p advancePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(p); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
			return
		}
	}
	b, err := h.Svc.Advance(r.Context(), id, p.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, b)
}

type trackingPayload struct {
	TrackingCode string `json:"trackingCode" validate:"required,max=64"`
}

func (h *AdminHandler) SetTracking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid order id", nil)
		return
	}
	var p trackingPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(p); err != nil {
			common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION", err.Error(), nil)
			return
		}
	}
	if err := h.Svc.SetTracking(r.Context(), id, p.TrackingCode); err != nil {
		writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "batch not found", nil)
	case errors.Is(err, ErrBatchNotOpen):
		common.JSONError(w, http.StatusConflict, "BATCH_NOT_OPEN", "batch is no longer open", nil)
	case errors.Is(err, ErrInvalidTransition):
		common.JSONError(w, http.StatusConflict, "INVALID_TRANSITION", "batch cannot move to that status", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
