// Package audit provides the building blocks of the engine's audit trail:
// value normalization for JSONB storage, snapshot-based change detection, and
// security event logging. It deliberately knows nothing about the domain
// models; entities hand it explicit snapshots of their state.
package audit

import (
	"fmt"
	"reflect"
	"time"

	"github.com/shopspring/decimal"
)

// Namer is implemented by enum-like values. Normalization stores the symbolic
// name rather than the underlying representation.
type Namer interface {
	Name() string
}

// Slimmable is implemented by entities that expose a compact id +
// display-name form. References to other tracked entities normalize to this
// form to avoid unbounded recursion into the object graph.
type Slimmable interface {
	ToSlim() map[string]any
}

// ISOFormatter is implemented by date/time wrappers that render themselves in
// their canonical ISO-8601 form (e.g. a calendar date without a time part).
type ISOFormatter interface {
	ISOFormat() string
}

// NormalizeValue converts an arbitrary domain value into a JSON-safe
// representation for storage and comparison. It never fails: unrecognized
// types degrade to their string form rather than aborting the surrounding
// audit write.
func NormalizeValue(value any) any {
	if value == nil {
		return nil
	}
	// Typed nil pointers would otherwise satisfy the interface cases below
	// and blow up inside their methods.
	if rv := reflect.ValueOf(value); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return nil
	}

	switch v := value.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return v
	case Namer:
		return v.Name()
	case ISOFormatter:
		return v.ISOFormat()
	case decimal.Decimal:
		f, _ := v.Float64()
		return f
	case *decimal.Decimal:
		f, _ := v.Float64()
		return f
	case time.Time:
		return v.Format(time.RFC3339)
	case *time.Time:
		return v.Format(time.RFC3339)
	case Slimmable:
		return v.ToSlim()
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = NormalizeValue(item)
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr:
		if rv.IsNil() {
			return nil
		}
		return NormalizeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = NormalizeValue(rv.Index(i).Interface())
		}
		return out
	}

	return fmt.Sprintf("%v", value)
}
