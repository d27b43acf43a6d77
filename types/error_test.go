package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrHandlerFailure, "handler failed").
		WithCause(root).
		WithRetryable(true).
		WithTaskID("analyze")

	if GetErrorCode(err) != ErrHandlerFailure {
		t.Fatalf("expected code %s, got %s", ErrHandlerFailure, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if err.TaskID != "analyze" {
		t.Fatalf("expected task id %q, got %q", "analyze", err.TaskID)
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestError_WrappedCodeDetection(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrWorkflowNotFound, "workflow wf-1 not found")
	wrapped := fmt.Errorf("execute: %w", inner)

	if !IsErrorCode(wrapped, ErrWorkflowNotFound) {
		t.Fatalf("expected wrapped code detection")
	}
	if IsErrorCode(wrapped, ErrDefinition) {
		t.Fatalf("unexpected code match")
	}

	e, ok := AsError(wrapped)
	if !ok {
		t.Fatalf("expected AsError to succeed")
	}
	if e.Code != ErrWorkflowNotFound {
		t.Fatalf("unexpected code %s", e.Code)
	}
}

func TestError_NonStructuredErrors(t *testing.T) {
	t.Parallel()

	plain := errors.New("plain")
	if GetErrorCode(plain) != "" {
		t.Fatalf("expected empty code for plain error")
	}
	if IsRetryable(plain) {
		t.Fatalf("plain errors are never retryable")
	}
	if _, ok := AsError(plain); ok {
		t.Fatalf("expected AsError to fail for plain error")
	}
}

func TestNewErrorf(t *testing.T) {
	t.Parallel()

	err := NewErrorf(ErrTaskNotFound, "task %s not found in workflow %s", "decide", "approval")
	want := "[TASK_NOT_FOUND] task decide not found in workflow approval"
	if err.Error() != want {
		t.Fatalf("expected %q, got %q", want, err.Error())
	}
}
