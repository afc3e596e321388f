package models

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grantsops/grants-engine/pkg/audit"
)

// BudgetLineItemStatus is the funding lifecycle state of a line item. Only
// DRAFT items are directly editable; later states gate budget-affecting
// changes behind reviewer approval.
type BudgetLineItemStatus string

const (
	StatusDraft       BudgetLineItemStatus = "DRAFT"
	StatusPlanned     BudgetLineItemStatus = "PLANNED"
	StatusInExecution BudgetLineItemStatus = "IN_EXECUTION"
	StatusObligated   BudgetLineItemStatus = "OBLIGATED"
)

// Name returns the symbolic name stored in audit records.
func (s BudgetLineItemStatus) Name() string { return string(s) }

// Valid reports whether s is a known status.
func (s BudgetLineItemStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPlanned, StatusInExecution, StatusObligated:
		return true
	}
	return false
}

// BudgetFieldNames are the funding-affecting columns whose edits require
// reviewer approval once a line item has left DRAFT. Everything else (free
// text, services component assignment) applies immediately.
var BudgetFieldNames = []string{"amount", "can_id", "date_needed", "proc_shop_fee_percentage"}

// IsBudgetField reports whether the named field is on the budget allow-list.
func IsBudgetField(name string) bool {
	for _, f := range BudgetFieldNames {
		if f == name {
			return true
		}
	}
	return false
}

// BudgetLineItem is a funded line item against an agreement and a CAN.
type BudgetLineItem struct {
	ID                    int64                `json:"id"`
	AgreementID           *int64               `json:"agreement_id,omitempty"`
	CANID                 *int64               `json:"can_id,omitempty"`
	ServicesComponentID   *int64               `json:"services_component_id,omitempty"`
	LineDescription       string               `json:"line_description,omitempty"`
	Comments              string               `json:"comments,omitempty"`
	Amount                *decimal.Decimal     `json:"amount,omitempty"`
	ProcShopFeePercentage *decimal.Decimal     `json:"proc_shop_fee_percentage,omitempty"`
	Status                BudgetLineItemStatus `json:"status"`
	DateNeeded            *Date                `json:"date_needed,omitempty"`
	CreatedBy             *int64               `json:"created_by,omitempty"`
	CreatedOn             time.Time            `json:"created_on"`
	UpdatedOn             time.Time            `json:"updated_on"`

	// ChangeRequestsInReview holds the pending change requests targeting
	// this line item, nil when there are none.
	ChangeRequestsInReview []*ChangeRequest `json:"change_requests_in_review,omitempty"`
}

// InReview reports whether any change request targeting this line item is
// still pending.
func (b *BudgetLineItem) InReview() bool {
	return len(b.ChangeRequestsInReview) > 0
}

// DisplayName is the human-readable label used in change-request metadata.
func (b *BudgetLineItem) DisplayName() string {
	if b.LineDescription != "" {
		return b.LineDescription
	}
	return "BL " + strconv.FormatInt(b.ID, 10)
}

// ToSlim returns the compact reference form used in audit snapshots.
func (b *BudgetLineItem) ToSlim() map[string]any {
	return map[string]any{
		"id":           b.ID,
		"display_name": b.DisplayName(),
	}
}

// Clone returns a copy suitable for capturing a before-snapshot prior to
// applying changes.
func (b *BudgetLineItem) Clone() *BudgetLineItem {
	clone := *b
	return &clone
}

// AuditSnapshot captures the line item's audited state. Status is included
// here (status changes are audited) even though it is excluded from the
// change-request flow.
func (b *BudgetLineItem) AuditSnapshot() *audit.Snapshot {
	return &audit.Snapshot{
		ClassName:   "BudgetLineItem",
		RowKeyParts: []string{strconv.FormatInt(b.ID, 10)},
		Fields: map[string]any{
			"id":                       b.ID,
			"agreement_id":             b.AgreementID,
			"can_id":                   b.CANID,
			"services_component_id":    b.ServicesComponentID,
			"line_description":         b.LineDescription,
			"comments":                 b.Comments,
			"amount":                   b.Amount,
			"proc_shop_fee_percentage": b.ProcShopFeePercentage,
			"status":                   b.Status,
			"date_needed":              b.DateNeeded,
			"created_by":               b.CreatedBy,
		},
	}
}
