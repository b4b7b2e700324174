package manager

import (
	"reflexiad/internal/backend"
	"reflexiad/internal/breaker"
)

// invalidInputError signals a request the control loop rejected before
// touching the backend, for 400 mapping.
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return "invalid input: " + e.msg }

// ErrInvalidInput constructs an invalidInputError.
func ErrInvalidInput(msg string) error { return invalidInputError{msg: msg} }

// IsInvalidInput reports whether err is a caller error (return 400).
func IsInvalidInput(err error) bool {
	if _, ok := err.(invalidInputError); ok {
		return true
	}
	return backend.IsInvalidRequest(err)
}

// IsUnavailable reports whether err is an open-circuit rejection: the
// backend was never invoked and the HTTP layer should return 503.
func IsUnavailable(err error) bool {
	return breaker.IsOpen(err)
}
