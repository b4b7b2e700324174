package backend

import (
	"fmt"
	"net/http"
)

// invalidRequestError marks a rejection caused by caller-supplied input.
// These say nothing about backend health and must not trip the breaker.
type invalidRequestError struct{ msg string }

func (e invalidRequestError) Error() string { return "invalid request: " + e.msg }

// IsInvalidRequest reports whether err is a caller error rather than a
// backend failure.
func IsInvalidRequest(err error) bool {
	_, ok := err.(invalidRequestError)
	return ok
}

// statusError is a non-2xx runtime response that counts as a backend failure.
type statusError struct {
	code int
	msg  string
}

func (e statusError) Error() string { return fmt.Sprintf("backend http %d: %s", e.code, e.msg) }

// transportError wraps connection, timeout and decode failures.
type transportError struct{ err error }

func (e transportError) Error() string { return "backend transport: " + e.err.Error() }
func (e transportError) Unwrap() error { return e.err }

// classifyStatus maps an HTTP status to the error taxonomy: validation-style
// 4xx responses are caller errors, everything else is backend unhealthiness.
func classifyStatus(code int, msg string) error {
	switch code {
	case http.StatusBadRequest, http.StatusUnprocessableEntity, http.StatusRequestEntityTooLarge:
		return invalidRequestError{msg: msg}
	default:
		return statusError{code: code, msg: msg}
	}
}
