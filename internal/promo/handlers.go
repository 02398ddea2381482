package promo

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/arvhein/backend-merch/internal/common"
)

// Handler serves the public promotion endpoints.
type Handler struct {
	Svc *Service
}

// Active handles GET /api/v1/promotions, the storefront banner feed.
func (h *Handler) Active(w http.ResponseWriter, r *http.Request) {
	promos, err := h.Svc.Active(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
		return
	}
	if promos == nil {
		promos = []Promotion{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": promos})
}

// AdminHandler manages promotion rules.
type AdminHandler struct {
	Svc *Service
}

// List handles GET /api/v1/admin/promotions including inactive rules.
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	promos, err := h.Svc.Store.List(r.Context())
	if err != nil {
		writeRuleError(w, err)
		return
	}
	if promos == nil {
		promos = []Promotion{}
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": promos})
}

// Get handles GET /api/v1/admin/promotions/{id}.
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}
	p, err := h.Svc.Store.Get(r.Context(), id)
	if err != nil {
		writeRuleError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

// Create handles POST /api/v1/admin/promotions.
func (h *AdminHandler) Create(w http.ResponseWriter, r *http.Request) {
	var p Promotion
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	created, err := h.Svc.CreateRule(r.Context(), p)
	if err != nil {
		writeRuleError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{"data": created})
}

// Update handles PUT /api/v1/admin/promotions/{id}.
func (h *AdminHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}
	var p Promotion
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	p.ID = id
	if err := h.Svc.UpdateRule(r.Context(), p); err != nil {
		writeRuleError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": p})
}

type activatePayload struct {
	IsActive bool `json:"isActive"`
}

// SetActive handles PATCH /api/v1/admin/promotions/{id}/active.
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}
	var p activatePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid json body", nil)
		return
	}
	if err := h.Svc.SetRuleActive(r.Context(), id, p.IsActive); err != nil {
		writeRuleError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"id": id, "isActive": p.IsActive}})
}

func ruleID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_ID", "invalid promotion id", nil)
		return uuid.Nil, false
	}
	return id, true
}

func writeRuleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidRule):
		common.JSONError(w, http.StatusUnprocessableEntity, "INVALID_RULE", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "promotion not found", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
	}
}
