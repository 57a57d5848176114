// Package errors provides structured error types for the tidelake core.
// All errors include a category, code, message, and retryable flag for
// consistent error handling across components.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by failure mode.
type ErrorCategory string

const (
	ErrCategoryValidation    ErrorCategory = "VALIDATION"
	ErrCategoryNotFound      ErrorCategory = "NOT_FOUND"
	ErrCategoryTimeout       ErrorCategory = "TIMEOUT"
	ErrCategoryExecution     ErrorCategory = "EXECUTION"
	ErrCategoryConfiguration ErrorCategory = "CONFIGURATION"
	ErrCategoryInternal      ErrorCategory = "INTERNAL"
)

// Error codes for each category.
const (
	// Validation codes
	CodeInvalidRecord   = "INVALID_RECORD"
	CodeInvalidSchema   = "INVALID_SCHEMA"
	CodeInvalidQuery    = "INVALID_QUERY"
	CodeInvalidStrategy = "INVALID_STRATEGY"
	CodeAccessDenied    = "ACCESS_DENIED"

	// Not-found codes
	CodeDatasetNotFound   = "DATASET_NOT_FOUND"
	CodePartitionNotFound = "PARTITION_NOT_FOUND"
	CodeTableNotFound     = "TABLE_NOT_FOUND"

	// Timeout codes
	CodeBatchTimeout = "BATCH_TIMEOUT"

	// Execution codes
	CodeTaskFailed      = "TASK_FAILED"
	CodeNoWorkers       = "NO_WORKERS_AVAILABLE"
	CodeQueueFull       = "QUEUE_FULL"
	CodeShutdown        = "SHUTDOWN"

	// Configuration codes
	CodeInvalidConfig = "INVALID_CONFIG"

	// Internal codes
	CodeUnexpected = "UNEXPECTED"
)

// CoreError is the structured error type used throughout the system.
type CoreError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *CoreError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *CoreError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *CoreError) Is(target error) bool {
	var t *CoreError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new CoreError.
func New(category ErrorCategory, code, message string) *CoreError {
	return &CoreError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category),
	}
}

// Wrap creates a new CoreError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *CoreError {
	return &CoreError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *CoreError) WithDetails(details map[string]interface{}) *CoreError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a CoreError.
func GetCategory(err error) ErrorCategory {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a CoreError.
func GetCode(err error) string {
	var ce *CoreError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}

// isRetryable determines retryability by category: timeouts and single-task
// execution failures may be retried, everything else is terminal.
func isRetryable(category ErrorCategory) bool {
	switch category {
	case ErrCategoryTimeout, ErrCategoryExecution:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewValidationError(code, message string) *CoreError {
	return New(ErrCategoryValidation, code, message)
}

func NewNotFoundError(code, message string) *CoreError {
	return New(ErrCategoryNotFound, code, message)
}

func NewTimeoutError(message string) *CoreError {
	return New(ErrCategoryTimeout, CodeBatchTimeout, message)
}

func NewExecutionError(code, message string, cause error) *CoreError {
	return Wrap(ErrCategoryExecution, code, message, cause)
}

func NewConfigurationError(message string) *CoreError {
	return New(ErrCategoryConfiguration, CodeInvalidConfig, message)
}

func NewInternalError(message string, cause error) *CoreError {
	return Wrap(ErrCategoryInternal, CodeUnexpected, message, cause)
}
