package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCoreError_Error(t *testing.T) {
	err := New(ErrCategoryValidation, CodeInvalidQuery, "missing sql")
	expected := "[VALIDATION:INVALID_QUERY] missing sql"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestCoreError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryExecution, CodeTaskFailed, "task failed", cause)
	expected := "[EXECUTION:TASK_FAILED] task failed: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestCoreError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryInternal, CodeUnexpected, "unexpected", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestCoreError_Is(t *testing.T) {
	err1 := New(ErrCategoryNotFound, CodeDatasetNotFound, "first")
	err2 := New(ErrCategoryNotFound, CodeDatasetNotFound, "second")
	err3 := New(ErrCategoryNotFound, CodePartitionNotFound, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryTimeout, CodeBatchTimeout, true},
		{ErrCategoryExecution, CodeTaskFailed, true},
		{ErrCategoryValidation, CodeInvalidQuery, false},
		{ErrCategoryNotFound, CodeDatasetNotFound, false},
		{ErrCategoryConfiguration, CodeInvalidConfig, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryTimeout, CodeBatchTimeout, "deadline exceeded")
	if GetCategory(err) != ErrCategoryTimeout {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryTimeout)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-CoreError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryTimeout, CodeBatchTimeout, "deadline exceeded")
	if GetCode(err) != CodeBatchTimeout {
		t.Errorf("got %q, want %q", GetCode(err), CodeBatchTimeout)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-CoreError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	base := New(ErrCategoryValidation, CodeInvalidRecord, "bad record")
	detailed := base.WithDetails(map[string]interface{}{"record": 7})

	if base.Details != nil {
		t.Error("WithDetails should not mutate the original error")
	}
	if detailed.Details["record"] != 7 {
		t.Errorf("got %v, want 7", detailed.Details["record"])
	}
}
