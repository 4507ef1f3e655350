package cerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	underlying := errors.New("boom")
	err := NewError(NotFound, "task not found", underlying)

	if got := err.Error(); got != "[not_found] task not found: boom" {
		t.Errorf("unexpected error string: %s", got)
	}
	if !errors.Is(err, underlying) {
		t.Error("Unwrap should expose the underlying error")
	}
}

func TestIsCode(t *testing.T) {
	err := Newf(Ambiguous, "ambiguous project: %q", "Shared")

	if !IsCode(err, Ambiguous) {
		t.Error("IsCode should match the error's own code")
	}
	if IsCode(err, NotFound) {
		t.Error("IsCode must not match a different code")
	}
	if IsCode(errors.New("plain"), Ambiguous) {
		t.Error("IsCode must not match plain errors")
	}

	wrapped := fmt.Errorf("context: %w", err)
	if !IsCode(wrapped, Ambiguous) {
		t.Error("IsCode should see through wrapping")
	}
}

func TestMessage(t *testing.T) {
	err := NewError(Internal, "failed to persist cache", errors.New("disk full"))
	if got := Message(err); got != "failed to persist cache" {
		t.Errorf("Message should return the human message, got %q", got)
	}
	if got := Message(errors.New("plain")); got != "plain" {
		t.Errorf("Message should fall back to Error(), got %q", got)
	}
}
