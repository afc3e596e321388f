package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType categorizes what happened to the audited entity.
type AuditEventType string

const (
	AuditEventNew      AuditEventType = "NEW"
	AuditEventUpdated  AuditEventType = "UPDATED"
	AuditEventDeleted  AuditEventType = "DELETED"
	AuditEventError    AuditEventType = "ERROR"
	AuditEventInReview AuditEventType = "IN_REVIEW"
)

// AuditRecord is one immutable entry in the append-only audit trail. It
// references the audited entity weakly (class name + stringified row key) and
// carries a strong foreign key to the owning agreement for scoped history
// queries. Records from one business transaction share a TransactionID.
//
// An UPDATED event with no detected changes is never persisted.
type AuditRecord struct {
	ID            uuid.UUID      `json:"id"`
	EventType     AuditEventType `json:"event_type"`
	ClassName     string         `json:"class_name"`
	RowKey        string         `json:"row_key"`
	EventDetails  map[string]any `json:"event_details,omitempty"`
	Original      map[string]any `json:"original,omitempty"`
	Diff          map[string]any `json:"diff,omitempty"`
	Changes       map[string]any `json:"changes,omitempty"`
	CreatedBy     *int64         `json:"created_by,omitempty"`
	CreatedOn     time.Time      `json:"created_on"`
	AgreementID   *int64         `json:"agreement_id,omitempty"`
	TransactionID uuid.UUID      `json:"transaction_id"`
}
