package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrSecurity        = errors.New("access denied")
	ErrValidation      = errors.New("validation failed")
	ErrTransient       = errors.New("transient service failure")
	ErrSessionClosed   = errors.New("session is closed")
	ErrInvalidArgument = errors.New("invalid argument")
)

// SchemaError reports a malformed scenario definition with the path of the
// offending field, e.g. "bot_messages[2].content".
type SchemaError struct {
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return "schema: " + e.Reason
	}
	return fmt.Sprintf("schema: %s: %s", e.Field, e.Reason)
}

func NewSchemaError(field, reason string) *SchemaError {
	return &SchemaError{Field: field, Reason: reason}
}
