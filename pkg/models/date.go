package models

import (
	"fmt"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date without a time component, stored as a Postgres
// date and serialized as an ISO-8601 date string.
type Date struct {
	time.Time
}

// ParseDate parses an ISO-8601 date string (YYYY-MM-DD).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// ISOFormat renders the date in its canonical ISO-8601 form.
func (d Date) ISOFormat() string {
	return d.Format(dateLayout)
}

func (d Date) String() string {
	return d.ISOFormat()
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.ISOFormat() + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "null" || s == "" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
