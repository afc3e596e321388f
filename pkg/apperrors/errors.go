package apperrors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrEditLocked is returned when a budget line item is not editable in its
	// current state (non-editable status, or already under review).
	ErrEditLocked = errors.New("budget line item is locked for editing")

	// ErrAlreadyReviewed is returned when a change request that has already
	// reached a terminal status is reviewed again.
	ErrAlreadyReviewed = errors.New("change request has already been reviewed")

	// ErrReviewForbidden is returned when the acting user is not a director or
	// deputy director of the change request's managing division.
	ErrReviewForbidden = errors.New("user may not review change requests for this division")
)

// ValidationError carries field-level validation failures. Handlers map it to
// a 400 response with per-field detail.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add appends a message for a field and returns the receiver for chaining.
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields[field] = append(e.Fields[field], message)
	return e
}

// HasErrors reports whether any field failed validation.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for field := range e.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(e.Fields[field], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// AsValidationError unwraps err into a *ValidationError if possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
