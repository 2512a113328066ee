package executor

import (
	"errors"
	"fmt"
)

// ErrorCode classifies executor errors.
type ErrorCode string

const (
	// ErrCodeProcess indicates the command exited with a nonzero status.
	ErrCodeProcess ErrorCode = "PROCESS_ERROR"
	// ErrCodeTransport indicates the shell or ssh invocation could not start.
	ErrCodeTransport ErrorCode = "TRANSPORT_ERROR"
	// ErrCodeNoHosts indicates a remote dispatch without targets.
	ErrCodeNoHosts ErrorCode = "NO_HOSTS"
)

// ExecError represents a failed local or remote command.
type ExecError struct {
	Code     ErrorCode
	Message  string
	Host     string
	ExitCode int
	Cause    error
}

// Error implements the error interface.
func (e *ExecError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Host != "" {
		prefix = fmt.Sprintf("[%s %s]", e.Code, e.Host)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap returns the underlying error.
func (e *ExecError) Unwrap() error {
	return e.Cause
}

// NewProcessError creates an error for a nonzero exit status.
func NewProcessError(host string, code int) *ExecError {
	return &ExecError{
		Code:     ErrCodeProcess,
		Message:  fmt.Sprintf("command exited with code %d", code),
		Host:     host,
		ExitCode: code,
	}
}

// NewTransportError creates an error for an invocation that failed to start.
func NewTransportError(host string, cause error) *ExecError {
	return &ExecError{
		Code:     ErrCodeTransport,
		Message:  "failed to start command",
		Host:     host,
		ExitCode: -1,
		Cause:    cause,
	}
}

// NewNoHostsError creates an error for a remote dispatch with no targets.
func NewNoHostsError() *ExecError {
	return &ExecError{
		Code:     ErrCodeNoHosts,
		Message:  "no hosts to run on",
		ExitCode: -1,
	}
}

func codeOf(err error) (ErrorCode, bool) {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Code, true
	}
	return "", false
}

// IsProcessError checks if the error is a nonzero exit.
func IsProcessError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeProcess
}

// IsTransportError checks if the error is a start failure.
func IsTransportError(err error) bool {
	code, ok := codeOf(err)
	return ok && code == ErrCodeTransport
}

// ExitCode returns the exit status carried by err, 0 for nil and 1 for
// errors that carry none.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var execErr *ExecError
	if errors.As(err, &execErr) && execErr.ExitCode > 0 {
		return execErr.ExitCode
	}
	return 1
}
