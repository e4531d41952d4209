package utils

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks across package boundaries.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInsufficientData = errors.New("insufficient data")
)

// InvalidInputError represents a caller-supplied value that violates a precondition
// (non-positive balance, non-positive window, malformed series or signals).
type InvalidInputError struct {
	Field   string
	Message string
}

// Error returns the error message string.
func (e *InvalidInputError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is reports whether target is ErrInvalidInput.
func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInvalidInputError creates a new InvalidInputError for a field.
//
// Parameters:
//   - field: The offending input name. May be empty.
//   - message: The validation error message.
//
// Returns:
//   - An error interface wrapping the InvalidInputError.
func NewInvalidInputError(field, message string) error {
	return &InvalidInputError{
		Field:   field,
		Message: message,
	}
}

// NewInvalidInputErrorf creates a new InvalidInputError with a formatted message.
//
// Parameters:
//   - field: The offending input name. May be empty.
//   - format: The format string.
//   - args: Arguments for the format string.
//
// Returns:
//   - An error interface wrapping the InvalidInputError.
func NewInvalidInputErrorf(field, format string, args ...interface{}) error {
	return &InvalidInputError{
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

// InsufficientDataError is returned when fewer observations reach a component
// than it needs to produce a result.
type InsufficientDataError struct {
	Component string
	Required  int
	Got       int
}

// Error returns the error message string.
func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need at least %d points, got %d", e.Component, e.Required, e.Got)
}

// Is reports whether target is ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// NewInsufficientDataError creates a new InsufficientDataError.
func NewInsufficientDataError(component string, required, got int) error {
	return &InsufficientDataError{
		Component: component,
		Required:  required,
		Got:       got,
	}
}

// IsInvalidInput reports whether err is, or wraps, an InvalidInputError.
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsInsufficientData reports whether err is, or wraps, an InsufficientDataError.
func IsInsufficientData(err error) bool {
	return errors.Is(err, ErrInsufficientData)
}
