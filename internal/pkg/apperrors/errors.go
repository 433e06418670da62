// Package apperrors holds error types shared across domain packages.
package apperrors

import (
	"errors"
	"fmt"
)

// ValidationError is returned for malformed input before any state changes
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation builds a ValidationError
func Validation(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err carries a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ErrForbidden is returned when the caller does not own the resource
var ErrForbidden = errors.New("you do not have permission to modify this resource")
