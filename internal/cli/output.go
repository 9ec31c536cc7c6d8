package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/liftsync/internal/cache"
	"github.com/roach88/liftsync/internal/plan"
	"github.com/roach88/liftsync/internal/remote"
	"github.com/roach88/liftsync/internal/store"
	"github.com/roach88/liftsync/internal/syncq"
	"github.com/roach88/liftsync/internal/tracker"
	"github.com/roach88/liftsync/internal/workout"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation refused or partly failed (no session, invalid transition, sync errors)
	ExitCommandError = 2 // Command error (bad flags, unreadable config or database)
)

// Error codes reported in JSON output.
const (
	CodeNoSession        = "NO_SESSION"
	CodeActiveSession    = "ACTIVE_SESSION"
	CodeInvalidOperation = "INVALID_OPERATION"
	CodeInvalidPlan      = "INVALID_PLAN"
	CodeNotFound         = "NOT_FOUND"
	CodeOffline          = "OFFLINE"
	CodeSync             = "SYNC_FAILED"
	CodeRemote           = "REMOTE_ERROR"
	CodeCommand          = "COMMAND_ERROR"
	CodeInternal         = "INTERNAL"
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps a domain error to its JSON error code.
func classify(err error) string {
	var statusErr *remote.StatusError
	var syncErr *syncq.SyncError
	var exitErr *ExitError
	switch {
	case errors.Is(err, tracker.ErrNotFound):
		return CodeNoSession
	case errors.Is(err, tracker.ErrActiveSession):
		return CodeActiveSession
	case workout.IsInvalidOperation(err):
		return CodeInvalidOperation
	case workout.IsInvalidPlan(err), errors.Is(err, plan.ErrDayNotFound):
		return CodeInvalidPlan
	case errors.Is(err, store.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, cache.ErrOfflineNoCache), errors.Is(err, cache.ErrOfflineMutation), errors.Is(err, errOffline):
		return CodeOffline
	case errors.As(err, &syncErr):
		return CodeSync
	case errors.As(err, &statusErr), remote.IsRetryable(err):
		return CodeRemote
	case errors.As(err, &exitErr) && exitErr.Code == ExitCommandError:
		return CodeCommand
	default:
		return CodeInternal
	}
}

// Texter is implemented by results with a human-readable rendering.
type Texter interface {
	Text() string
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	if t, ok := data.(Texter); ok {
		fmt.Fprint(f.Writer, t.Text())
		return nil
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err in the configured format and returns it wrapped in an
// ExitError carrying exitCode, unless it already is one.
func (f *OutputFormatter) Fail(exitCode int, message string, err error) error {
	_ = f.Error(classify(err), fmt.Sprintf("%s: %v", message, err), nil)
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return err
	}
	return WrapExitError(exitCode, message, err)
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
