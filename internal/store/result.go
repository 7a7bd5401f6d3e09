package store

import (
	"encoding/json"
	"fmt"
)

// Result is a successful store response
type Result struct {
	Status int
	Data   json.RawMessage
}

// Decode unmarshals the response body into v
func (r *Result) Decode(v any) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Rows decodes a result into a slice of T
func Rows[T any](r *Result) ([]T, error) {
	var rows []T
	if err := r.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// First returns the first row of a result, or ok=false when it is empty
func First[T any](r *Result) (T, bool, error) {
	var zero T
	rows, err := Rows[T](r)
	if err != nil {
		return zero, false, err
	}
	if len(rows) == 0 {
		return zero, false, nil
	}
	return rows[0], true, nil
}
