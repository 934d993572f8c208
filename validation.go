package rowparse

import (
	"fmt"
	"reflect"
)

// Validatable is implemented by custom types that check their own
// invariants. A decoded column value implementing it is validated right
// after parsing; a validation failure rejects the record like any other
// field error.
type Validatable interface {
	// Validate checks the fields of the value and returns an error
	// if any of the fields are invalid.
	Validate() error
}

// validateValue runs Validate on v, or on a pointer to a copy of v when only
// the pointer type implements Validatable.
func validateValue(v any) error {
	if v == nil {
		return nil
	}
	if val, ok := v.(Validatable); ok {
		return wrapValidation(val.Validate())
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return nil
	}
	ptr := reflect.New(rv.Type())
	ptr.Elem().Set(rv)
	if val, ok := ptr.Interface().(Validatable); ok {
		return wrapValidation(val.Validate())
	}
	return nil
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrValidationFailed, err)
}
