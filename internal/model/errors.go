package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a message or device id is unknown
var ErrNotFound = errors.New("record not found")

// ErrChannelUnavailable marks a failed push-channel attempt. Never surfaced
// to API callers; polling remains the fallback.
var ErrChannelUnavailable = errors.New("delivery channel unavailable")

// ValidationError reports a missing or malformed request field
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// AsValidationError unwraps err as a *ValidationError if it is one
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
