package service

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	if got := CodeOf(NotFound("task", "t1")); got != CodeNotFound {
		t.Fatalf("expected NotFound, got %q", got)
	}
	wrapped := fmt.Errorf("update: %w", InvalidTransition("task %s is not done", "t1"))
	if got := CodeOf(wrapped); got != CodeInvalidStateTransition {
		t.Fatalf("expected InvalidStateTransition through wrapping, got %q", got)
	}
	if got := CodeOf(errors.New("connection reset")); got != CodeUnknown {
		t.Fatalf("expected UnknownError for plain errors, got %q", got)
	}
	if got := CodeOf(&Error{}); got != CodeUnknown {
		t.Fatalf("expected UnknownError for empty code, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	err := NotFound("task", "t1")
	if err.Error() != "NotFound: task not found: t1" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
	if (&Error{Code: CodeConflict}).Error() != "Conflict" {
		t.Fatalf("expected bare code when message is empty")
	}
}
