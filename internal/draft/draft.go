// Package draft holds the local state of forms the assistant can fill in.
//
// Two writers touch a draft: the user, field by field, and the assistant,
// which streams partial props. Merge applies the assistant's update with a
// per-field last-writer-wins policy:
//
//   - a field present in the update overwrites the current value;
//   - a field absent from the update is left alone;
//   - an empty incoming value (null or "") never clears a field the user edited.
package draft

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// Draft is the state of one form. Methods return a new Draft and never
// modify the receiver.
type Draft struct {
	Component string
	Version   uint64
	values    map[string]any
	edited    map[string]struct{}
}

// New returns an empty draft for the named component.
func New(component string) Draft {
	return Draft{
		Component: component,
		values:    map[string]any{},
		edited:    map[string]struct{}{},
	}
}

// Value returns the current value of field.
func (d Draft) Value(field string) (any, bool) {
	v, ok := d.values[field]
	return v, ok
}

// Values returns a copy of all field values.
func (d Draft) Values() map[string]any {
	return maps.Clone(d.nonNilValues())
}

// Edited reports whether the user has edited field.
func (d Draft) Edited(field string) bool {
	_, ok := d.edited[field]
	return ok
}

// EditedFields lists the user-edited fields in sorted order.
func (d Draft) EditedFields() []string {
	return slices.Sorted(maps.Keys(d.edited))
}

// Merge applies a streamed partial update.
func (d Draft) Merge(update map[string]any) Draft {
	next := d.clone()
	for k, v := range update {
		if isEmpty(v) && d.Edited(k) {
			continue
		}
		next.values[k] = v
	}
	next.Version++
	return next
}

// Edit records user edits. They win until a later update overwrites them.
func (d Draft) Edit(fields map[string]any) Draft {
	next := d.clone()
	for k, v := range fields {
		next.values[k] = v
		next.edited[k] = struct{}{}
	}
	next.Version++
	return next
}

// Decode copies the draft's values into target through JSON.
func (d Draft) Decode(target any) error {
	data, err := json.Marshal(d.nonNilValues())
	if err != nil {
		return fmt.Errorf("draft: encode %s: %w", d.Component, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("draft: decode %s: %w", d.Component, err)
	}
	return nil
}

type wireDraft struct {
	Component string         `json:"component"`
	Version   uint64         `json:"version"`
	Values    map[string]any `json:"values"`
	Edited    []string       `json:"edited"`
}

// MarshalJSON exposes values and the edited field list.
func (d Draft) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireDraft{
		Component: d.Component,
		Version:   d.Version,
		Values:    d.nonNilValues(),
		Edited:    d.EditedFields(),
	})
}

func (d Draft) clone() Draft {
	next := d
	next.values = maps.Clone(d.nonNilValues())
	next.edited = maps.Clone(d.edited)
	if next.edited == nil {
		next.edited = map[string]struct{}{}
	}
	return next
}

func (d Draft) nonNilValues() map[string]any {
	if d.values == nil {
		return map[string]any{}
	}
	return d.values
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	return false
}
