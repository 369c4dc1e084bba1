package audit

import (
	"bytes"
	"encoding/json"
)

// Change is the before/after value of one field.
type Change struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// ChangeSet maps field name to its change. Unchanged fields are absent.
type ChangeSet map[string]Change

// Diff compares every key of after with the same key of before by JSON
// serialization. Keys present only in before are ignored.
func Diff(before, after map[string]any) ChangeSet {
	changes := ChangeSet{}
	for key, newVal := range after {
		oldVal, existed := before[key]
		if existed && sameJSON(oldVal, newVal) {
			continue
		}
		changes[key] = Change{Before: oldVal, After: newVal}
	}
	return changes
}

func sameJSON(a, b any) bool {
	ab, errA := json.Marshal(a)
	bb, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}

// ToMap converts v into a map keyed by its JSON field names. nil yields nil.
func ToMap(v any) (map[string]any, error) {
	if v == nil {
		return nil, nil
	}
	if m, ok := v.(map[string]any); ok {
		return m, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// split projects a change set back into before and after maps.
func (cs ChangeSet) split() (before, after map[string]any) {
	before = make(map[string]any, len(cs))
	after = make(map[string]any, len(cs))
	for k, ch := range cs {
		before[k] = ch.Before
		after[k] = ch.After
	}
	return before, after
}
