package builder

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrLookup           = errors.New("lookup failed")
	ErrPersistence      = errors.New("persistence failed")
	ErrLineItemNotFound = errors.New("line item not found")
	ErrUnknownField     = errors.New("unknown field")
	ErrSessionClosed    = errors.New("session closed")
	ErrSessionNotFound  = errors.New("session not found")
)

// CodeMissingRequiredField is the only validation code the builder emits.
const CodeMissingRequiredField = "MissingRequiredField"

// ValidationError reports the first required field that is missing.
type ValidationError struct {
	Field string
	Code  string
}

func missing(field string) *ValidationError {
	return &ValidationError{Field: field, Code: CodeMissingRequiredField}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// LookupFailure is a failed dependent-field lookup. It is logged and
// published, never returned to the editing caller.
type LookupFailure struct {
	Lookup string
	Err    error
}

func (e *LookupFailure) Error() string {
	return fmt.Sprintf("%s lookup: %v", e.Lookup, e.Err)
}

func (e *LookupFailure) Unwrap() error {
	return e.Err
}

func (e *LookupFailure) Is(target error) bool {
	return target == ErrLookup
}

// PersistenceFailure is a failed or rejected save. The draft is kept.
type PersistenceFailure struct {
	Operation string
	Message   string
	Err       error
}

func (e *PersistenceFailure) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Operation, e.Err)
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Operation, e.Message)
	default:
		return fmt.Sprintf("%s: rejected", e.Operation)
	}
}

func (e *PersistenceFailure) Unwrap() error {
	return e.Err
}

func (e *PersistenceFailure) Is(target error) bool {
	return target == ErrPersistence
}
