package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/grantsops/grants-engine/pkg/apperrors"
	"github.com/grantsops/grants-engine/pkg/logging"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	Error  string              `json:"error"`
	Fields map[string][]string `json:"fields,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, ErrorResponse{Error: message})
}

// WriteServiceError maps a service-layer error onto its HTTP status. Unknown
// errors become sanitized 500s so driver detail never leaks to clients.
func WriteServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	if ve, ok := apperrors.AsValidationError(err); ok {
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: ve.Fields})
		return
	}

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperrors.ErrAlreadyReviewed):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrEditLocked), errors.Is(err, apperrors.ErrReviewForbidden):
		WriteError(w, http.StatusForbidden, err.Error())
	default:
		logger.Error("request failed", zap.String("error", logging.SanitizeError(err)))
		WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
