package workout

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes state machine errors.
type ErrorCode string

const (
	// ErrCodeInvalidOperation indicates an operation that is not allowed in
	// the session's current phase, or a caller identity that does not match
	// the session. Never retried.
	ErrCodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	// ErrCodeInvalidPlan indicates a plan day that cannot drive a session.
	ErrCodeInvalidPlan ErrorCode = "INVALID_PLAN"
)

// Error is returned by every failing Session operation.
type Error struct {
	Code      ErrorCode
	Message   string
	SessionID string
	Phase     Phase
}

func (e *Error) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s: %s (session=%s, phase=%s)", e.Code, e.Message, e.SessionID, e.Phase)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidOperation reports whether err is an invalid operation error.
// Uses errors.As to handle wrapped errors.
func IsInvalidOperation(err error) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Code == ErrCodeInvalidOperation
	}
	return false
}

// IsInvalidPlan reports whether err is an invalid plan error.
func IsInvalidPlan(err error) bool {
	var we *Error
	if errors.As(err, &we) {
		return we.Code == ErrCodeInvalidPlan
	}
	return false
}

func invalidOperation(s *Session, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeInvalidOperation,
		Message:   fmt.Sprintf(format, args...),
		SessionID: s.ID,
		Phase:     s.Phase,
	}
}

func invalidPlan(format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidPlan,
		Message: fmt.Sprintf(format, args...),
	}
}
