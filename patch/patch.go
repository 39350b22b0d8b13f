// Package patch models partial updates where every field carries an explicit
// presence flag, so "absent" and "set to zero/null" stay distinguishable.
package patch

import (
	"bytes"
	"encoding/json"
)

// Field is a patch value. Null reports an explicit JSON null; Value is then
// the zero value.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// UnmarshalJSON is only invoked for keys present in the document, including
// explicit nulls.
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Set {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

// Apply copies the value into dst when present and reports whether it did.
func (f Field[T]) Apply(dst *T) bool {
	if !f.Set {
		return false
	}
	*dst = f.Value
	return true
}

// Changes collects column assignments for a single UPDATE.
type Changes map[string]any

func Put[T any](c Changes, column string, f Field[T]) {
	if f.Set {
		c[column] = f.Value
	}
}

func (c Changes) Empty() bool { return len(c) == 0 }
