package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/repositories"
	"github.com/grantsops/grants-engine/pkg/services"
)

// BudgetLineItemHandler serves the budget line item endpoints.
type BudgetLineItemHandler struct {
	svc    services.BudgetLineItemService
	logger *zap.Logger
}

// NewBudgetLineItemHandler creates a new BudgetLineItemHandler.
func NewBudgetLineItemHandler(svc services.BudgetLineItemService, logger *zap.Logger) *BudgetLineItemHandler {
	return &BudgetLineItemHandler{svc: svc, logger: logger.Named("budget_line_items")}
}

// RegisterRoutes wires the handler's endpoints onto the mux. wrap applies the
// route middleware chain (auth, logging).
func (h *BudgetLineItemHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/v1/budget-line-items", wrap(h.Create))
	mux.HandleFunc("GET /api/v1/budget-line-items", wrap(h.List))
	mux.HandleFunc("GET /api/v1/budget-line-items/{id}", wrap(h.Get))
	mux.HandleFunc("PUT /api/v1/budget-line-items/{id}", wrap(h.Put))
	mux.HandleFunc("PATCH /api/v1/budget-line-items/{id}", wrap(h.Patch))
	mux.HandleFunc("DELETE /api/v1/budget-line-items/{id}", wrap(h.Delete))
}

type createBudgetLineItemRequest struct {
	AgreementID           *int64           `json:"agreement_id"`
	CANID                 *int64           `json:"can_id"`
	ServicesComponentID   *int64           `json:"services_component_id"`
	LineDescription       string           `json:"line_description"`
	Comments              string           `json:"comments"`
	Amount                *decimal.Decimal `json:"amount"`
	ProcShopFeePercentage *decimal.Decimal `json:"proc_shop_fee_percentage"`
	Status                string           `json:"status"`
	DateNeeded            *models.Date     `json:"date_needed"`
}

type updateBudgetLineItemRequest struct {
	AgreementID           *int64           `json:"agreement_id"`
	CANID                 *int64           `json:"can_id"`
	ServicesComponentID   *int64           `json:"services_component_id"`
	LineDescription       *string          `json:"line_description"`
	Comments              *string          `json:"comments"`
	Amount                *decimal.Decimal `json:"amount"`
	ProcShopFeePercentage *decimal.Decimal `json:"proc_shop_fee_percentage"`
	DateNeeded            *models.Date     `json:"date_needed"`
}

func (h *BudgetLineItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBudgetLineItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	bli := &models.BudgetLineItem{
		AgreementID:           req.AgreementID,
		CANID:                 req.CANID,
		ServicesComponentID:   req.ServicesComponentID,
		LineDescription:       req.LineDescription,
		Comments:              req.Comments,
		Amount:                req.Amount,
		ProcShopFeePercentage: req.ProcShopFeePercentage,
		Status:                models.BudgetLineItemStatus(req.Status),
		DateNeeded:            req.DateNeeded,
	}

	created, err := h.svc.Create(r.Context(), bli)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (h *BudgetLineItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	bli, err := h.svc.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, bli)
}

func (h *BudgetLineItemHandler) List(w http.ResponseWriter, r *http.Request) {
	var filter repositories.BudgetLineItemFilter
	if v := r.URL.Query().Get("agreement_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid agreement_id")
			return
		}
		filter.AgreementID = &id
	}
	if v := r.URL.Query().Get("can_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid can_id")
			return
		}
		filter.CANID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.BudgetLineItemStatus(v)
		if !status.Valid() {
			WriteError(w, http.StatusBadRequest, "invalid status")
			return
		}
		filter.Status = &status
	}

	items, err := h.svc.List(r.Context(), filter)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []*models.BudgetLineItem{}
	}
	WriteJSON(w, http.StatusOK, items)
}

func (h *BudgetLineItemHandler) Put(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *BudgetLineItemHandler) Patch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// update runs the edit and picks the status line: 200 when everything applied
// in place, 202 when any change was staged for review.
func (h *BudgetLineItemHandler) update(w http.ResponseWriter, r *http.Request, full bool) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateBudgetLineItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := &services.BudgetLineItemPatch{
		AgreementID:           req.AgreementID,
		CANID:                 req.CANID,
		ServicesComponentID:   req.ServicesComponentID,
		LineDescription:       req.LineDescription,
		Comments:              req.Comments,
		Amount:                req.Amount,
		ProcShopFeePercentage: req.ProcShopFeePercentage,
		DateNeeded:            req.DateNeeded,
	}

	result, err := h.svc.Update(r.Context(), id, patch, full)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if result.Pending() {
		status = http.StatusAccepted
	}
	WriteJSON(w, status, result.BudgetLineItem)
}

func (h *BudgetLineItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pathID parses the {id} path segment, writing a 400 when it is not numeric.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
