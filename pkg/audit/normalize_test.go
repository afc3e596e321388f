package audit

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type fakeStatus string

func (s fakeStatus) Name() string { return string(s) }

type fakeDate struct{ t time.Time }

func (d fakeDate) ISOFormat() string { return d.t.Format("2006-01-02") }

type fakeUser struct {
	ID   int64
	Full string
}

func (u *fakeUser) ToSlim() map[string]any {
	return map[string]any{"id": u.ID, "full_name": u.Full}
}

func TestNormalizeValueScalars(t *testing.T) {
	assert.Nil(t, NormalizeValue(nil))
	assert.Equal(t, "hello", NormalizeValue("hello"))
	assert.Equal(t, true, NormalizeValue(true))
	assert.Equal(t, int64(42), NormalizeValue(int64(42)))
	assert.Equal(t, 1.5, NormalizeValue(1.5))
}

func TestNormalizeValueEnums(t *testing.T) {
	assert.Equal(t, "PLANNED", NormalizeValue(fakeStatus("PLANNED")))
}

func TestNormalizeValueDecimals(t *testing.T) {
	d := decimal.RequireFromString("222.22")
	assert.Equal(t, 222.22, NormalizeValue(d))
	assert.Equal(t, 222.22, NormalizeValue(&d))

	var nilDec *decimal.Decimal
	assert.Nil(t, NormalizeValue(nilDec))
}

func TestNormalizeValueDatesAndTimes(t *testing.T) {
	ts := time.Date(2032, 2, 2, 10, 30, 0, 0, time.UTC)

	// A calendar date renders without a time part; a timestamp keeps it.
	assert.Equal(t, "2032-02-02", NormalizeValue(fakeDate{t: ts}))
	assert.Equal(t, "2032-02-02T10:30:00Z", NormalizeValue(ts))
	assert.Equal(t, "2032-02-02T10:30:00Z", NormalizeValue(&ts))

	var nilTime *time.Time
	assert.Nil(t, NormalizeValue(nilTime))
}

func TestNormalizeValueSlimReferences(t *testing.T) {
	u := &fakeUser{ID: 7, Full: "Ada Lovelace"}
	assert.Equal(t, map[string]any{"id": int64(7), "full_name": "Ada Lovelace"}, NormalizeValue(u))
}

func TestNormalizeValuePointers(t *testing.T) {
	id := int64(12)
	assert.Equal(t, int64(12), NormalizeValue(&id))

	var nilID *int64
	assert.Nil(t, NormalizeValue(nilID))
}

func TestNormalizeValueCollections(t *testing.T) {
	members := []*fakeUser{{ID: 1, Full: "A"}, {ID: 2, Full: "B"}}
	normalized := NormalizeValue(members)

	assert.Equal(t, []any{
		map[string]any{"id": int64(1), "full_name": "A"},
		map[string]any{"id": int64(2), "full_name": "B"},
	}, normalized)

	nested := map[string]any{"amount": decimal.RequireFromString("1.50")}
	assert.Equal(t, map[string]any{"amount": 1.5}, NormalizeValue(nested))
}

func TestNormalizeValueFallback(t *testing.T) {
	type opaque struct{ X int }
	assert.Equal(t, "{3}", NormalizeValue(opaque{X: 3}))
}
