package models

// Division is an organizational unit. Change requests are routed to the
// division that manages the funding account behind the budget line item, and
// only its director or deputy director may review them.
type Division struct {
	ID                       int64  `json:"id"`
	Name                     string `json:"name"`
	Abbreviation             string `json:"abbreviation"`
	DivisionDirectorID       *int64 `json:"division_director_id,omitempty"`
	DeputyDivisionDirectorID *int64 `json:"deputy_division_director_id,omitempty"`
}

// Portfolio groups funding accounts under a managing division.
type Portfolio struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	DivisionID int64  `json:"division_id"`
}
