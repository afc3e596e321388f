package auth

import (
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims the engine cares about. The subject is the acting
// user's id.
type Claims struct {
	jwt.RegisteredClaims
	FullName string `json:"name,omitempty"`
}

// UserID parses the subject claim as a user id. Returns 0 and false when the
// subject is missing or not numeric.
func (c *Claims) UserID() (int64, bool) {
	if c.Subject == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
