package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the referenced movie, user or review does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConstraintViolation indicates a uniqueness rule was violated, e.g. a second
	// review of the same movie by the same user.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrTransientConflict indicates contention outlasted the retry budget; callers may resubmit.
	ErrTransientConflict = errors.New("transient conflict")
	// ErrStorageUnavailable indicates the database could not be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUnauthorized indicates missing or wrong credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError reports malformed input. No state is mutated when it is returned.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Message)
}

// IsValidation reports whether err wraps a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
