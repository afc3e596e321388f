package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grantsops/grants-engine/pkg/audit"
)

// ChangeRequestType is the variant tag of the change-request sum type.
// Variant-specific foreign keys are optional fields validated at
// construction rather than subclass columns.
type ChangeRequestType string

const (
	TypeChangeRequest               ChangeRequestType = "change_request"
	TypeAgreementChangeRequest      ChangeRequestType = "agreement_change_request"
	TypeBudgetLineItemChangeRequest ChangeRequestType = "budget_line_item_change_request"
)

func (t ChangeRequestType) Name() string { return string(t) }

// ChangeRequestStatus is the review state. Transitions are monotonic:
// IN_REVIEW -> APPROVED or REJECTED, exactly once.
type ChangeRequestStatus string

const (
	ChangeRequestInReview ChangeRequestStatus = "IN_REVIEW"
	ChangeRequestApproved ChangeRequestStatus = "APPROVED"
	ChangeRequestRejected ChangeRequestStatus = "REJECTED"
)

func (s ChangeRequestStatus) Name() string { return string(s) }

// Terminal reports whether the status is a final review outcome.
func (s ChangeRequestStatus) Terminal() bool {
	return s == ChangeRequestApproved || s == ChangeRequestRejected
}

// ChangeRequest is a staged, reviewer-gated proposed mutation. A budget
// line item edit that touches budget fields produces one request per field so
// each can be approved or rejected independently.
type ChangeRequest struct {
	ID     uuid.UUID           `json:"id"`
	Type   ChangeRequestType   `json:"type"`
	Status ChangeRequestStatus `json:"status"`

	// RequestedChangeData maps field names to proposed new values.
	RequestedChangeData map[string]any `json:"requested_change_data"`
	// RequestedChangeDiff maps field names to {new, old} pairs.
	RequestedChangeDiff map[string]any `json:"requested_change_diff,omitempty"`
	// RequestedChangeInfo carries display metadata for review screens.
	RequestedChangeInfo map[string]any `json:"requested_change_info,omitempty"`

	AgreementID        *int64 `json:"agreement_id,omitempty"`
	BudgetLineItemID   *int64 `json:"budget_line_item_id,omitempty"`
	ManagingDivisionID *int64 `json:"managing_division_id,omitempty"`

	CreatedBy    *int64     `json:"created_by,omitempty"`
	CreatedOn    time.Time  `json:"created_on"`
	ReviewedByID *int64     `json:"reviewed_by_id,omitempty"`
	ReviewedOn   *time.Time `json:"reviewed_on,omitempty"`
}

// NewBudgetLineItemChangeRequest stages one budget-field change for review.
func NewBudgetLineItemChangeRequest(budgetLineItemID int64, agreementID *int64, field string, newValue, oldValue any) (*ChangeRequest, error) {
	if !IsBudgetField(field) {
		return nil, fmt.Errorf("field %q is not a budget field", field)
	}
	cr := &ChangeRequest{
		ID:                  uuid.New(),
		Type:                TypeBudgetLineItemChangeRequest,
		Status:              ChangeRequestInReview,
		RequestedChangeData: map[string]any{field: newValue},
		RequestedChangeDiff: map[string]any{field: map[string]any{"new": newValue, "old": oldValue}},
		BudgetLineItemID:    &budgetLineItemID,
		AgreementID:         agreementID,
	}
	return cr, cr.Validate()
}

// Validate checks variant invariants: which foreign keys each variant must
// carry, and that budget requests only touch budget fields.
func (c *ChangeRequest) Validate() error {
	switch c.Type {
	case TypeChangeRequest:
	case TypeAgreementChangeRequest:
		if c.AgreementID == nil {
			return fmt.Errorf("agreement change request requires agreement_id")
		}
	case TypeBudgetLineItemChangeRequest:
		if c.BudgetLineItemID == nil {
			return fmt.Errorf("budget line item change request requires budget_line_item_id")
		}
		for field := range c.RequestedChangeData {
			if !IsBudgetField(field) {
				return fmt.Errorf("field %q is not a budget field", field)
			}
		}
	default:
		return fmt.Errorf("unknown change request type %q", c.Type)
	}
	if c.Status.Terminal() && c.ReviewedByID == nil {
		return fmt.Errorf("reviewed change request requires reviewed_by_id")
	}
	return nil
}

// HasBudgetChange reports whether the request touches any budget field.
func (c *ChangeRequest) HasBudgetChange() bool {
	for field := range c.RequestedChangeData {
		if IsBudgetField(field) {
			return true
		}
	}
	return false
}

// TargetClassName is the class of the entity the request proposes to change.
func (c *ChangeRequest) TargetClassName() string {
	switch c.Type {
	case TypeBudgetLineItemChangeRequest:
		return "BudgetLineItem"
	case TypeAgreementChangeRequest:
		return "Agreement"
	}
	return "ChangeRequest"
}

// ClassName is the audited entity class for this variant.
func (c *ChangeRequest) ClassName() string {
	switch c.Type {
	case TypeBudgetLineItemChangeRequest:
		return "BudgetLineItemChangeRequest"
	case TypeAgreementChangeRequest:
		return "AgreementChangeRequest"
	}
	return "ChangeRequest"
}

// Clone returns a copy suitable for capturing a before-snapshot prior to the
// review mutation.
func (c *ChangeRequest) Clone() *ChangeRequest {
	clone := *c
	return &clone
}

// AuditSnapshot captures the change request's audited state.
func (c *ChangeRequest) AuditSnapshot() *audit.Snapshot {
	return &audit.Snapshot{
		ClassName:   c.ClassName(),
		RowKeyParts: []string{c.ID.String()},
		Fields: map[string]any{
			"id":                    c.ID.String(),
			"type":                  c.Type,
			"status":                c.Status,
			"requested_change_data": c.RequestedChangeData,
			"requested_change_diff": c.RequestedChangeDiff,
			"requested_change_info": c.RequestedChangeInfo,
			"agreement_id":          c.AgreementID,
			"budget_line_item_id":   c.BudgetLineItemID,
			"managing_division_id":  c.ManagingDivisionID,
			"created_by":            c.CreatedBy,
			"reviewed_by_id":        c.ReviewedByID,
			"reviewed_on":           c.ReviewedOn,
		},
	}
}
