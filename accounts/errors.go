package accounts

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("account not found")

	ErrMissingColumn = errors.New("missing column")
	ErrNullValue     = errors.New("null in non-optional field")
	ErrTypeMismatch  = errors.New("type mismatch")
)

// FieldError reports which column of a row could not be mapped onto an
// Account. Err wraps one of ErrMissingColumn, ErrNullValue or ErrTypeMismatch.
type FieldError struct {
	Column string
	Err    error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("column %s: %v", e.Column, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
