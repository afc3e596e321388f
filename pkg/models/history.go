package models

import (
	"time"

	"github.com/google/uuid"
)

// LogItemScope distinguishes whole-entity timeline items from per-property
// ones.
type LogItemScope string

const (
	ScopeObject   LogItemScope = "object"
	ScopeProperty LogItemScope = "property"
)

// LogItem is one displayable line in an agreement's history: either a
// whole-entity event (created, deleted, staged for review) or a single
// changed property.
type LogItem struct {
	// EventClassName is the audited entity's class.
	EventClassName string `json:"event_class_name"`
	// TargetClassName is the class of the entity the event is about. For
	// change-request records this is the class the request targets; for
	// everything else it equals EventClassName.
	TargetClassName string         `json:"target_class_name"`
	Scope           LogItemScope   `json:"scope"`
	PropertyKey     string         `json:"property_key,omitempty"`
	Change          map[string]any `json:"change,omitempty"`
	EventType       AuditEventType `json:"event_type"`
	CreatedByName   string         `json:"created_by_user_full_name,omitempty"`
	CreatedOn       time.Time      `json:"created_on"`
}

// HistoryEntry groups the audit records of one business transaction into a
// single timeline entry.
type HistoryEntry struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	CreatedOn     time.Time  `json:"created_on"`
	CreatedByName string     `json:"created_by_user_full_name,omitempty"`
	LogItems      []*LogItem `json:"log_items"`
}
