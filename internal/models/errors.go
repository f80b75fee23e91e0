package models

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrUnauthenticated is returned for a missing, malformed, expired or
	// unknown bearer credential. The reason is never exposed.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrInvalidCredentials is returned by login for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrForbidden is returned when an authenticated actor may not perform an operation.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a record does not exist or is hidden from the actor.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a unique username or email is already taken.
	ErrConflict = errors.New("username or email already exists")
	// ErrValidation is the sentinel wrapped by ValidationError.
	ErrValidation = errors.New("validation error")
)

// ValidationError describes malformed input, field by field.
type ValidationError struct {
	// Fields maps a field name to a human readable message.
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Unwrap lets errors.Is match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
