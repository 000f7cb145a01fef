package models

import "encoding/json"

// Optional holds a value that the upstream provider may have omitted.
type Optional[T any] struct {
	Value T
	Valid bool
}

func Some[T any](v T) Optional[T] {
	return Optional[T]{Value: v, Valid: true}
}

func None[T any]() Optional[T] {
	return Optional[T]{}
}

// FromPtr converts a nullable column value.
func FromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Ptr returns nil when the value is absent, for nullable columns.
func (o Optional[T]) Ptr() *T {
	if !o.Valid {
		return nil
	}
	v := o.Value
	return &v
}

// Or returns the value or fallback when absent.
func (o Optional[T]) Or(fallback T) T {
	if !o.Valid {
		return fallback
	}
	return o.Value
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
