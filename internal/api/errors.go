package api

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors callers branch on with errors.Is.
var (
	// ErrUnauthenticated means the client holds no usable credential.
	ErrUnauthenticated = errors.New("not signed in")
	// ErrNotFound means the requested remote record does not exist.
	ErrNotFound = errors.New("not found")
)

// Error is a remote failure: a non-2xx response or a transport error.
// Message prefers the server's detail text, falling back to a generic
// category message.
type Error struct {
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("server error (HTTP %d)", e.StatusCode)
}

// Unwrap exposes the underlying transport error, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// transportError classifies a failed round trip into a user-facing message.
func transportError(err error) *Error {
	msg := "network error"
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "request timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		msg = "request timed out"
	case errors.Is(err, context.Canceled):
		msg = "request canceled"
	}
	return &Error{Message: msg, Err: err}
}
