// Package errors provides centralized error definitions and error handling utilities
// for the dispatcher. It defines sentinel errors, typed errors carrying the
// context an operator needs to diagnose a failed run, and classification helpers.
//
// # Error Types
//
//   - ObservationError: capturing the pane failed (session gone, tmux command
//     error). Fatal for the current session and never retried, since a broken
//     observation channel cannot be told apart from a still-running agent.
//   - DependencyError: a required external binary (tmux, the agent CLI) is not
//     installed. Reported at startup, before any session exists.
//   - SessionError: creating, driving or tearing down the tmux session failed.
//
// # Usage
//
//	err := errors.NewObservationError("capture failed", cause).
//	    WithCommand("tmux capture-pane -t codex_task_1a2b3c4d:0.0 -p").
//	    WithOutput(stdout, stderr)
//
//	var obsErr *errors.ObservationError
//	if errors.As(err, &obsErr) { ... }
//
//	if errors.Is(err, errors.ErrBinaryNotFound) { ... }
//
// User interruption is not an error: callers receive ErrInterrupted only so
// they can tell it apart from normal completion, and ExitCode maps it to 0.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Observation sentinel errors
var (
	// ErrTargetUnavailable indicates the monitored pane no longer exists.
	ErrTargetUnavailable = New("target unavailable")
	// ErrCaptureFailed indicates the multiplexer refused a capture request.
	ErrCaptureFailed = New("pane capture failed")
)

// Session sentinel errors
var (
	// ErrBinaryNotFound indicates a required external binary is not installed.
	ErrBinaryNotFound = New("required binary not found")
	// ErrSessionNotStarted indicates an operation needs a created session.
	ErrSessionNotStarted = New("session not started")
	// ErrSessionExists indicates the session was already created.
	ErrSessionExists = New("session already exists")
)

// Monitoring sentinel errors
var (
	// ErrInterrupted indicates the operator stopped the run.
	ErrInterrupted = New("interrupted")
	// ErrMaxPollsExceeded indicates the poll ceiling was reached before completion.
	ErrMaxPollsExceeded = New("maximum poll count reached before completion")
	// ErrDetectorCompleted indicates a snapshot was offered after completion.
	ErrDetectorCompleted = New("detector already completed")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error
// -----------------------------------------------------------------------------

// DispatchError is implemented by all typed errors in this package.
type DispatchError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

func formatWithContext(kind string, parts []string, message string, cause error) string {
	prefix := kind
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
	}
	if cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, message, cause)
	}
	return fmt.Sprintf("%s: %s", prefix, message)
}

// -----------------------------------------------------------------------------
// ObservationError
// -----------------------------------------------------------------------------

// ObservationError reports a failed pane capture. It carries the command that
// was run and whatever it printed, so the operator can see why tmux refused.
type ObservationError struct {
	baseError
	Target  string
	Command string
	Stdout  string
	Stderr  string
}

// NewObservationError creates a new ObservationError. Observation faults are
// never retried.
func NewObservationError(message string, cause error) *ObservationError {
	return &ObservationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
	}
}

// WithTarget adds the pane target to the error context.
func (e *ObservationError) WithTarget(target string) *ObservationError {
	e.Target = target
	return e
}

// WithCommand records the command line that failed.
func (e *ObservationError) WithCommand(cmd string) *ObservationError {
	e.Command = cmd
	return e
}

// WithOutput records the captured stdout and stderr of the failed command.
func (e *ObservationError) WithOutput(stdout, stderr string) *ObservationError {
	e.Stdout = stdout
	e.Stderr = stderr
	return e
}

// Error returns the formatted error message.
func (e *ObservationError) Error() string {
	var parts []string
	if e.Target != "" {
		parts = append(parts, fmt.Sprintf("target=%s", e.Target))
	}
	return formatWithContext("observation error", parts, e.message, e.cause)
}

// Details renders the command and its output for display after the error line.
func (e *ObservationError) Details() string {
	var sb strings.Builder
	if e.Command != "" {
		sb.WriteString(fmt.Sprintf("command: %s\n", e.Command))
	}
	sb.WriteString(fmt.Sprintf("stdout:\n%s\n", strings.TrimRight(e.Stdout, "\n")))
	sb.WriteString(fmt.Sprintf("stderr:\n%s\n", strings.TrimRight(e.Stderr, "\n")))
	return sb.String()
}

// -----------------------------------------------------------------------------
// DependencyError
// -----------------------------------------------------------------------------

// DependencyError reports a required binary missing from PATH.
type DependencyError struct {
	baseError
	Binary string
}

// NewDependencyError creates a DependencyError for the named binary.
func NewDependencyError(binary string, cause error) *DependencyError {
	if cause == nil {
		cause = ErrBinaryNotFound
	}
	return &DependencyError{
		baseError: baseError{
			message:    fmt.Sprintf("%q is not installed or not on PATH", binary),
			cause:      cause,
			severity:   SeverityCritical,
			userFacing: true,
		},
		Binary: binary,
	}
}

// Error returns the formatted error message.
func (e *DependencyError) Error() string {
	return formatWithContext("dependency error", nil, e.message, e.cause)
}

// Is reports ErrBinaryNotFound for every DependencyError, whatever the
// underlying lookup error was.
func (e *DependencyError) Is(target error) bool {
	return target == ErrBinaryNotFound
}

// -----------------------------------------------------------------------------
// SessionError
// -----------------------------------------------------------------------------

// SessionError represents errors related to tmux session management.
//
// Example:
//
//	err := errors.NewSessionError("failed to create session", cause).WithSession("codex_task_1a2b3c4d")
//	fmt.Println(err) // "session error [session=codex_task_1a2b3c4d]: failed to create session: ..."
type SessionError struct {
	baseError
	Session string
}

// NewSessionError creates a new SessionError.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithSession adds a session name to the error context.
func (e *SessionError) WithSession(name string) *SessionError {
	e.Session = name
	return e
}

// Error returns the formatted error message.
func (e *SessionError) Error() string {
	var parts []string
	if e.Session != "" {
		parts = append(parts, fmt.Sprintf("session=%s", e.Session))
	}
	return formatWithContext("session error", parts, e.message, e.cause)
}

// -----------------------------------------------------------------------------
// Classification
// -----------------------------------------------------------------------------

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var de DispatchError
	if As(err, &de) {
		return de.IsUserFacing()
	}
	return Is(err, ErrMaxPollsExceeded) || Is(err, ErrInvalidInput)
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement DispatchError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	if Is(err, ErrInterrupted) {
		return SeverityInfo
	}
	var de DispatchError
	if As(err, &de) {
		return de.Severity()
	}
	return SeverityError
}

// ExitCode maps a run outcome to a process exit code. Normal completion and
// operator interruption both exit 0; every other failure exits 1.
func ExitCode(err error) int {
	if err == nil || Is(err, ErrInterrupted) {
		return 0
	}
	return 1
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
