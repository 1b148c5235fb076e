package core

import "errors"

var (
	ErrValidation         error = errors.New("validation failed")
	ErrInvalidCredentials error = errors.New("invalid credentials")
	ErrUnauthorized       error = errors.New("access unauthorized")
	ErrForbidden          error = errors.New("action forbidden")
	ErrNotFound           error = errors.New("not found")
)

var (
	ErrUsernameTaken    error = &ValidationError{Err: errors.New("username already taken")}
	ErrEmailTaken       error = &ValidationError{Err: errors.New("email already taken")}
	ErrDuplicateAccount error = &ValidationError{Err: errors.New("username or email already taken")}
	ErrSelfFollow       error = &ValidationError{Err: errors.New("users cannot follow themselves")}
)

// ValidationError carries the reason input was rejected. It matches
// ErrValidation with errors.Is.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() []error {
	return []error{ErrValidation, e.Err}
}
