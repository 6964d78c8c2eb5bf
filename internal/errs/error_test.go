package errs

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsKindThroughWrapping(t *testing.T) {
	t.Parallel()

	e := New(ErrForbidden, "Forbidden: You cannot delete this note")
	wrapped := fmt.Errorf("delete note: %w", e)

	if !errors.Is(wrapped, ErrForbidden) {
		t.Fatalf("want ErrForbidden through wrap")
	}
	if errors.Is(wrapped, ErrNotFound) {
		t.Fatalf("unexpected match with ErrNotFound")
	}

	var de *Error
	if !errors.As(wrapped, &de) || de.Msg != "Forbidden: You cannot delete this note" {
		t.Fatalf("errors.As failed: %v", de)
	}
}

func TestError_Message(t *testing.T) {
	t.Parallel()

	if got := (&Error{Kind: ErrNotFound}).Error(); got != "not found" {
		t.Fatalf("empty msg falls back to kind, got %q", got)
	}
	v := Validation("All fields are required", "username is required", "email is required")
	if got := v.Error(); got != "All fields are required: username is required; email is required" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(v, ErrValidation) {
		t.Fatalf("Validation must be ErrValidation")
	}
}
