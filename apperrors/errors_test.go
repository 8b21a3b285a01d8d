package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAsFindsWrappedAppError(t *testing.T) {
	base := NotFound("project")
	wrapped := fmt.Errorf("load: %w", base)

	got, ok := As(wrapped)
	if !ok {
		t.Fatalf("expected AppError to be found")
	}
	if got.Status != http.StatusNotFound || got.Code != CodeNotFound {
		t.Fatalf("unexpected error %#v", got)
	}
	if !IsNotFound(wrapped) {
		t.Fatalf("expected IsNotFound to be true")
	}
	if IsNotFound(errors.New("plain")) {
		t.Fatalf("plain error must not be NotFound")
	}
}

func TestFieldBuildsValidationError(t *testing.T) {
	err := Field("status", "must be APPROVED or REJECTED")
	if err.Status != http.StatusUnprocessableEntity || err.Code != CodeValidation {
		t.Fatalf("unexpected error %#v", err)
	}
	if msgs := err.Fields["status"]; len(msgs) != 1 {
		t.Fatalf("expected one field message, got %v", msgs)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, "upload failed")
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause to be preserved")
	}
	if err.Error() != "upload failed: disk full" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}
