package repositories

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/grantsops/grants-engine/pkg/models"
)

// Postgres numeric and date columns pass through text/time intermediates so
// the wire types stay under pgx's native codecs.

func decimalParam(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func toDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid numeric %q: %w", *s, err)
	}
	return &d, nil
}

func dateParam(d *models.Date) *time.Time {
	if d == nil {
		return nil
	}
	return &d.Time
}

func toDate(t *time.Time) *models.Date {
	if t == nil {
		return nil
	}
	return &models.Date{Time: *t}
}
