package audit

import (
	"reflect"
	"strings"
)

// RowKeySeparator joins the stringified primary-key parts of a composite key.
const RowKeySeparator = "|"

// Snapshot is an explicit capture of an entity's audited state. Entities
// build one before and after a mutation; the detector never inspects live
// objects or hidden dirty-tracking state.
type Snapshot struct {
	// ClassName identifies the entity type, e.g. "BudgetLineItem".
	ClassName string
	// RowKeyParts are the stringified primary-key field values, in key order.
	RowKeyParts []string
	// Fields maps column-backed scalar field names to their raw domain
	// values. Values are normalized by the detector.
	Fields map[string]any
	// Collections maps independently-editable many-to-many relationship
	// names to their member lists.
	Collections map[string]Collection
}

// Collection is the state of one many-to-many relationship.
type Collection struct {
	RelatedClassName string
	Members          []any
}

// RowKey joins the primary-key parts with the stable separator.
func (s *Snapshot) RowKey() string {
	return strings.Join(s.RowKeyParts, RowKeySeparator)
}

// NormalizedFields renders the whole snapshot as JSON-safe values: every
// scalar field plus the normalized members of every collection. This is the
// full entity state a persisted record carries alongside its field breakdown.
func (s *Snapshot) NormalizedFields() map[string]any {
	out := make(map[string]any, len(s.Fields)+len(s.Collections))
	for key, value := range s.Fields {
		out[key] = NormalizeValue(value)
	}
	for key, coll := range s.Collections {
		out[key] = normalizeMembers(coll.Members)
	}
	return out
}

// FieldChange describes one changed scalar field. Old is omitted from the
// stored JSON for new-entity events.
type FieldChange struct {
	New any `json:"new"`
	Old any `json:"old,omitempty"`
}

// CollectionChange describes membership changes in one relationship.
type CollectionChange struct {
	RelatedClassName string `json:"related_class_name"`
	Added            []any  `json:"added"`
	Deleted          []any  `json:"deleted,omitempty"`
}

// RecordDiff is the change detector's result: per-field prior values, new
// values, and change descriptors ready for JSONB storage.
type RecordDiff struct {
	RowKey   string
	Original map[string]any
	Diff     map[string]any
	// Changes maps field names to FieldChange and relationship names to
	// CollectionChange. An empty map on an update means the mutation was a
	// no-op and no audit record may be persisted for it.
	Changes map[string]any
}

// Diff compares an entity's prior and current snapshots. For new entities
// pass a nil before; for deletions pass the same snapshot twice (deletes are
// whole-object events with no field breakdown).
func Diff(before, after *Snapshot, isNew bool) RecordDiff {
	result := RecordDiff{
		RowKey:   after.RowKey(),
		Original: make(map[string]any),
		Diff:     make(map[string]any),
		Changes:  make(map[string]any),
	}

	for key, rawCur := range after.Fields {
		cur := NormalizeValue(rawCur)
		var prev any
		if !isNew && before != nil {
			prev = NormalizeValue(before.Fields[key])
		}

		if !isNew && ValuesEqual(prev, cur) {
			// Unchanged fields are still recorded as provenance.
			if cur != nil {
				result.Original[key] = cur
			}
			continue
		}

		if prev != nil {
			result.Original[key] = prev
		}
		result.Diff[key] = cur
		if isNew {
			if cur != nil {
				result.Changes[key] = FieldChange{New: cur}
			}
		} else {
			result.Changes[key] = FieldChange{New: cur, Old: prev}
		}
	}

	for key, curColl := range after.Collections {
		curMembers := normalizeMembers(curColl.Members)
		var prevMembers []any
		if !isNew && before != nil {
			prevMembers = normalizeMembers(before.Collections[key].Members)
		}

		added := memberDifference(curMembers, prevMembers)
		deleted := memberDifference(prevMembers, curMembers)

		if len(added) == 0 && len(deleted) == 0 {
			if len(curMembers) > 0 {
				result.Original[key] = curMembers
			}
			continue
		}

		change := CollectionChange{
			RelatedClassName: curColl.RelatedClassName,
			Added:            added,
		}
		if !isNew {
			change.Deleted = deleted
		}
		result.Changes[key] = change

		if len(prevMembers) > 0 {
			result.Original[key] = prevMembers
		}
		result.Diff[key] = curMembers
	}

	return result
}

func normalizeMembers(members []any) []any {
	if len(members) == 0 {
		return nil
	}
	out := make([]any, len(members))
	for i, m := range members {
		out[i] = NormalizeValue(m)
	}
	return out
}

// memberDifference returns the members of a that are not present in b.
func memberDifference(a, b []any) []any {
	var out []any
	for _, candidate := range a {
		found := false
		for _, existing := range b {
			if ValuesEqual(candidate, existing) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, candidate)
		}
	}
	return out
}

// ValuesEqual compares two normalized values. Normalized values are JSON-safe
// scalars, maps and slices, so deep equality is sufficient.
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}
