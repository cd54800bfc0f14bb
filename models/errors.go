package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a referenced row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned when a unique name or username is already taken.
	ErrDuplicate = errors.New("already exists")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors collects every problem found in one submission so the
// caller can report them together.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, e := range v {
		parts = append(parts, e.Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add appends a field error.
func (v *ValidationErrors) Add(field, format string, args ...any) {
	*v = append(*v, NewValidationError(field, format, args...))
}

// Err returns nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}

// IsValidation reports whether err carries one or more validation failures.
func IsValidation(err error) bool {
	var one *ValidationError
	var many ValidationErrors
	return errors.As(err, &one) || errors.As(err, &many)
}

// StorageIntegrityError wraps a failure inside the submission transaction.
// Nothing from the attempt was persisted and the caller may retry.
type StorageIntegrityError struct {
	Op  string
	Err error
}

func (e *StorageIntegrityError) Error() string {
	return fmt.Sprintf("storage integrity: %s: %v", e.Op, e.Err)
}

func (e *StorageIntegrityError) Unwrap() error { return e.Err }
