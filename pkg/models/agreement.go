package models

import (
	"strconv"
	"time"

	"github.com/grantsops/grants-engine/pkg/audit"
)

// Agreement is the contract/grant aggregate that owns budget line items and
// services components. History queries are scoped to an agreement: every
// audit record for an entity reachable from it carries the agreement's id.
type Agreement struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	TeamMembers []*User   `json:"team_members,omitempty"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
}

// DisplayName is the human-readable label used in change-request metadata.
func (a *Agreement) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return "Agreement #" + strconv.FormatInt(a.ID, 10)
}

// AuditSnapshot captures the agreement's audited state. Team membership is
// the independently-editable many-to-many relationship tracked as a
// collection rather than one audited row per member.
func (a *Agreement) AuditSnapshot() *audit.Snapshot {
	members := make([]any, len(a.TeamMembers))
	for i, m := range a.TeamMembers {
		members[i] = m
	}
	return &audit.Snapshot{
		ClassName:   "Agreement",
		RowKeyParts: []string{strconv.FormatInt(a.ID, 10)},
		Fields: map[string]any{
			"id":          a.ID,
			"name":        a.Name,
			"description": a.Description,
			"notes":       a.Notes,
			"created_by":  a.CreatedBy,
		},
		Collections: map[string]audit.Collection{
			"team_members": {RelatedClassName: "User", Members: members},
		},
	}
}

// ServicesComponent is a deliverable grouping under an agreement.
type ServicesComponent struct {
	ID          int64     `json:"id"`
	AgreementID int64     `json:"agreement_id"`
	Number      int       `json:"number"`
	Optional    bool      `json:"optional"`
	Description string    `json:"description,omitempty"`
	PeriodStart *Date     `json:"period_start,omitempty"`
	PeriodEnd   *Date     `json:"period_end,omitempty"`
	CreatedBy   *int64    `json:"created_by,omitempty"`
	CreatedOn   time.Time `json:"created_on"`
}

// AuditSnapshot captures the services component's audited state.
func (s *ServicesComponent) AuditSnapshot() *audit.Snapshot {
	return &audit.Snapshot{
		ClassName:   "ServicesComponent",
		RowKeyParts: []string{strconv.FormatInt(s.ID, 10)},
		Fields: map[string]any{
			"id":           s.ID,
			"agreement_id": s.AgreementID,
			"number":       s.Number,
			"optional":     s.Optional,
			"description":  s.Description,
			"period_start": s.PeriodStart,
			"period_end":   s.PeriodEnd,
			"created_by":   s.CreatedBy,
		},
	}
}
