package remote

import (
	"errors"
	"fmt"
)

// ErrRequestTimeout is returned when a request exceeds the client timeout.
var ErrRequestTimeout = errors.New("request timeout")

// NetworkError wraps a transport failure that is not a timeout.
type NetworkError struct {
	Method string
	Path   string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network failure: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// StatusError reports a completed request whose status was not 2xx.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.Status)
}

// IsRetryable reports whether err is a transport failure that may succeed
// on a later attempt (timeout or network failure). Status errors are not.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrRequestTimeout) {
		return true
	}
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsStatus reports whether err is a *StatusError with the given code.
func IsStatus(err error, status int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == status
	}
	return false
}
