package models

// CAN is a Common Accounting Number: a funding account tracked by fiscal
// year. Budget line items draw their funds from a CAN, and the CAN's
// portfolio determines which division reviews budget changes.
type CAN struct {
	ID          int64  `json:"id"`
	Number      string `json:"number"`
	Description string `json:"description,omitempty"`
	PortfolioID *int64 `json:"portfolio_id,omitempty"`
}

// ToSlim returns the compact reference form used in audit snapshots.
func (c *CAN) ToSlim() map[string]any {
	return map[string]any{
		"id":     c.ID,
		"number": c.Number,
	}
}
