package models

import (
	"database/sql/driver"
	"fmt"
)

// scanEnum decodes a database value into a closed string enum and rejects
// anything outside the enum.
func scanEnum[T ~string](dst *T, src any, valid func(T) bool, name string) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		return fmt.Errorf("%s: null value", name)
	default:
		return fmt.Errorf("%s: unsupported type %T", name, src)
	}
	if !valid(T(s)) {
		return fmt.Errorf("%s: unknown value %q", name, s)
	}
	*dst = T(s)
	return nil
}

func valueEnum[T ~string](v T, valid func(T) bool, name string) (driver.Value, error) {
	if !valid(v) {
		return nil, fmt.Errorf("%s: unknown value %q", name, string(v))
	}
	return string(v), nil
}
