package model

import (
	"errors"
	"fmt"
)

// ValidationError reports a client-side input check that failed before any
// network call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Required returns a ValidationError for an empty required field.
func Required(field string) *ValidationError {
	return &ValidationError{Field: field, Reason: "is required"}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
