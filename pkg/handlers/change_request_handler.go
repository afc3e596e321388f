package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/models"
	"github.com/grantsops/grants-engine/pkg/services"
)

// Review actions accepted by the review endpoint.
const (
	reviewActionApprove = "APPROVE"
	reviewActionReject  = "REJECT"
)

// ChangeRequestHandler serves the change request review endpoints.
type ChangeRequestHandler struct {
	svc    services.ChangeReviewService
	logger *zap.Logger
}

// NewChangeRequestHandler creates a new ChangeRequestHandler.
func NewChangeRequestHandler(svc services.ChangeReviewService, logger *zap.Logger) *ChangeRequestHandler {
	return &ChangeRequestHandler{svc: svc, logger: logger.Named("change_requests")}
}

// RegisterRoutes wires the handler's endpoints onto the mux.
func (h *ChangeRequestHandler) RegisterRoutes(mux *http.ServeMux, wrap func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /api/v1/change-requests", wrap(h.List))
	mux.HandleFunc("POST /api/v1/change-requests/review", wrap(h.Review))
}

// List returns a page of the pending change requests the acting user may
// review.
func (h *ChangeRequestHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := pageParams(r)
	requests, err := h.svc.ListForReviewer(r.Context(), limit, offset)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	if requests == nil {
		requests = []*models.ChangeRequest{}
	}
	WriteJSON(w, http.StatusOK, requests)
}

type reviewRequest struct {
	ChangeRequestID string `json:"change_request_id"`
	Action          string `json:"action"`
}

// Review applies a verdict to one pending change request.
func (h *ChangeRequestHandler) Review(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := uuid.Parse(req.ChangeRequestID)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "invalid change_request_id")
		return
	}

	var approve bool
	switch req.Action {
	case reviewActionApprove:
		approve = true
	case reviewActionReject:
		approve = false
	default:
		WriteError(w, http.StatusBadRequest, "action must be APPROVE or REJECT")
		return
	}

	reviewed, err := h.svc.Review(r.Context(), id, approve)
	if err != nil {
		WriteServiceError(w, h.logger, err)
		return
	}
	WriteJSON(w, http.StatusOK, reviewed)
}
