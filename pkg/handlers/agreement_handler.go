package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/services"
)

// Page-size bounds shared by the list endpoints.
const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// AgreementHandler serves the agreement and history endpoints.
type AgreementHandler struct {
	svc     services.AgreementService
	history services.HistoryService
	logger  *zap.Logger
}

// NewAgreementHandler creates a new AgreementHandler.
func NewAgreementHandler(svc services.AgreementService, history services.HistoryService, logger *zap.Logger) *AgreementHandler {
	return &AgreementHandler{svc: svc, history: history, logger: logger.Named("agreements")}
}

// RegisterRoutes wires the handler's endpoints onto the mux.
func (h *AgreementHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/v1/agreements", wrap(h.Create))
	mux.HandleFunc("GET /api/v1/agreements/{id}", wrap(h.Get))
	mux.HandleFunc("PUT /api/v1/agreements/{id}", wrap(h.Update))
	mux.HandleFunc("GET /api/v1/agreements/{id}/history", wrap(h.History))
	mux.HandleFunc("GET /api/v1/history/{class_name}/{row_key}", wrap(h.EntityHistory))
}

type agreementRequest struct {
	Name          *string `json:"name"`
	Description   *string `json:"description"`
	Notes         *string `json:"notes"`
	TeamMemberIDs []int64 `json:"team_members"`
}

func (h *AgreementHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req agreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == nil || *req.Name == "" {
		WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	agreement := &models.Agreement{Name: *req.Name}
	if req.Description != nil {
		agreement.Description = *req.Description
	}
	if req.Notes != nil {
		agreement.Notes = *req.Notes
	}

	created, err := h.svc.Create(r.Context(), agreement, req.TeamMemberIDs)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

func (h *AgreementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	agreement, err := h.svc.Get(r.Context(), id)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, agreement)
}

func (h *AgreementHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req agreementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	patch := &services.AgreementPatch{
		Name:          req.Name,
		Description:   req.Description,
		Notes:         req.Notes,
		TeamMemberIDs: req.TeamMemberIDs,
	}

	updated, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

// History returns the agreement's change timeline, newest first.
func (h *AgreementHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	limit, offset := pageParams(r)

	entries, err := h.history.FindAgreementHistory(r.Context(), id, limit, offset)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if entries == nil {
		entries = []*models.HistoryEntry{}
	}
	WriteJSON(w, http.StatusOK, entries)
}

// EntityHistory returns the raw audit records for one entity.
func (h *AgreementHandler) EntityHistory(w http.ResponseWriter, r *http.Request) {
	className := r.PathValue("class_name")
	rowKey := r.PathValue("row_key")

	records, err := h.history.FindEntityHistory(r.Context(), className, rowKey)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, records)
}

func queryInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// pageParams reads limit/offset query parameters, applying the shared
// defaults and cap.
func pageParams(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", defaultListLimit)
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, queryInt(r, "offset", 0)
}
