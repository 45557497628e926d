package core

import (
	"errors"
	"fmt"

	"github.com/devicelab-dev/iossim/pkg/shell"
)

// ExecutionError represents a structured local failure with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, invalid_button, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches predefined errors by code, so copies made by the With* helpers
// still satisfy errors.Is(err, ErrElementNotFound).
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Validation errors
	ErrElementNotFound = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "element_not_found",
		Message:  "element not found",
	}
	ErrInvalidButton = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "invalid_button",
		Message:  "invalid hardware button",
	}
	ErrInvalidDirection = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "invalid_direction",
		Message:  "invalid scroll direction",
	}
	ErrInvalidArgument = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "invalid_argument",
		Message:  "invalid argument",
	}
	ErrAssertionFailed = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "assertion_failed",
		Message:  "assertion failed",
	}
	ErrSimulatorNotFound = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "simulator_not_found",
		Message:  "simulator not found",
	}

	// Process errors
	ErrUnexpectedOutput = &ExecutionError{
		Category: ErrCategoryProcess,
		Code:     "unexpected_output",
		Message:  "could not parse tool output",
	}
	ErrBootTimeout = &ExecutionError{
		Category: ErrCategoryProcess,
		Code:     "boot_timeout",
		Message:  "simulator did not finish booting",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrInvalidFlow = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_flow",
		Message:  "invalid flow",
	}

	// Script errors
	ErrScriptFailed = &ExecutionError{
		Category: ErrCategoryScript,
		Code:     "script_failed",
		Message:  "script failed",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// ExitCode maps an error to the process exit status.
// External tool failures propagate the tool's own status; anything else is 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *shell.ExitError
	if errors.As(err, &exitErr) && exitErr.Code > 0 {
		return exitErr.Code
	}
	return 1
}
