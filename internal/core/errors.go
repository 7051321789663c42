package core

import (
	"errors"
	"fmt"
)

// Sentinel domain errors. Services return these (or wrap them) so handlers
// can map failures to responses with errors.Is instead of string matching.
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrJobNotFound      = errors.New("processing job not found")
	ErrNotOwner         = errors.New("document is not owned by caller")
	ErrDocumentBusy     = errors.New("document is busy; try again once processing settles")
)

// ValidationError reports a rejected upload with a human-readable reason.
// It is never silently coerced; the reason goes back to the caller verbatim.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for the given field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// OversizeError is raised mid-stream the moment an upload crosses the
// configured byte ceiling, before the rest of the body is consumed.
type OversizeError struct {
	Limit int64
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("upload exceeds the maximum allowed size of %d bytes", e.Limit)
}

// IsOversize reports whether err is (or wraps) an OversizeError.
func IsOversize(err error) bool {
	var oe *OversizeError
	return errors.As(err, &oe)
}
