package models

import "time"

// User is an account that can author changes and review change requests.
type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	CreatedOn time.Time `json:"created_on"`
}

// ToSlim returns the compact reference form used when a user appears inside
// another entity's audit snapshot.
func (u *User) ToSlim() map[string]any {
	return map[string]any{
		"id":        u.ID,
		"full_name": u.FullName,
	}
}
