package task

import (
	"errors"
	"fmt"
)

// ErrorCode classifies task errors.
type ErrorCode string

const (
	// ErrCodeConfig indicates an invalid namespace, task or hook declaration.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"
	// ErrCodeUnknownTask indicates a name that resolves to no task.
	ErrCodeUnknownTask ErrorCode = "UNKNOWN_TASK"
	// ErrCodeAborted indicates a task action gave up with Abort.
	ErrCodeAborted ErrorCode = "ABORTED"
)

// TaskError represents a failed declaration or invocation.
type TaskError struct {
	Code    ErrorCode
	Message string
	Task    string
	Cause   error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// NewConfigError creates an error for an invalid declaration.
func NewConfigError(message string) *TaskError {
	return &TaskError{
		Code:    ErrCodeConfig,
		Message: message,
	}
}

// NewUnknownTaskError creates an error for a name with no task behind it.
func NewUnknownTaskError(name string) *TaskError {
	return &TaskError{
		Code:    ErrCodeUnknownTask,
		Message: fmt.Sprintf("Unknown task %s", name),
		Task:    name,
	}
}

// NewUnknownCommandError creates the error for a command line task name
// that resolves to nothing. It carries the same code as NewUnknownTaskError.
func NewUnknownCommandError(name string) *TaskError {
	return &TaskError{
		Code:    ErrCodeUnknownTask,
		Message: fmt.Sprintf("Unknown command %s", name),
		Task:    name,
	}
}

// NewAbortError creates the error raised by Scope.Abort.
func NewAbortError(task, message string) *TaskError {
	return &TaskError{
		Code:    ErrCodeAborted,
		Message: message,
		Task:    task,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var taskErr *TaskError
	return errors.As(err, &taskErr) && taskErr.Code == code
}

// IsConfigError checks if the error is a declaration error.
func IsConfigError(err error) bool {
	return hasCode(err, ErrCodeConfig)
}

// IsUnknownTaskError checks if the error is an unresolved task name.
func IsUnknownTaskError(err error) bool {
	return hasCode(err, ErrCodeUnknownTask)
}

// IsAbortError checks if the error was raised by Abort.
func IsAbortError(err error) bool {
	return hasCode(err, ErrCodeAborted)
}
