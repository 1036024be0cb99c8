package tracker

import (
	"errors"
	"fmt"
)

// Validation outcomes. All are caller-input errors; none is retryable and
// none leaves the store in a different state.
var (
	ErrMissingRequiredField = errors.New("required field(s) missing")
	ErrMissingIdentifier    = errors.New("missing _id")
	ErrNoUpdateFields       = errors.New("no update field(s) sent")
	ErrNotFound             = errors.New("issue not found")
)

// Op names the operation an Error came from.
type Op string

const (
	OpList   Op = "list"
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Error carries a validation outcome together with the operation and the
// identifier the caller supplied, if any.
type Error struct {
	Op  Op
	ID  string
	Err error
}

func (e *Error) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s issue: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s issue %s: %v", e.Op, e.ID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsValidation reports whether err is one of the validation outcomes above,
// as opposed to a storage failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrMissingRequiredField) ||
		errors.Is(err, ErrMissingIdentifier) ||
		errors.Is(err, ErrNoUpdateFields) ||
		errors.Is(err, ErrNotFound)
}
