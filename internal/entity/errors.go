package entity

import "errors"

// Error kinds. Concrete errors wrap one of these so callers can classify
// them with errors.Is.
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrPermission      = errors.New("permission denied")
	ErrConflict        = errors.New("conflict")
	ErrUnauthenticated = errors.New("unauthenticated")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func NewValidationError(msg string) error {
	return &kindError{kind: ErrValidation, msg: msg}
}

func NewNotFoundError(msg string) error {
	return &kindError{kind: ErrNotFound, msg: msg}
}

func NewPermissionError(msg string) error {
	return &kindError{kind: ErrPermission, msg: msg}
}

func NewConflictError(msg string) error {
	return &kindError{kind: ErrConflict, msg: msg}
}

func NewUnauthenticatedError(msg string) error {
	return &kindError{kind: ErrUnauthenticated, msg: msg}
}
