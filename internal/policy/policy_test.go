package policy

import (
	"testing"

	apperr "github.com/mrivas/defi-agent/internal/errors"
)

func TestCheckCommandAllowed(t *testing.T) {
	if err := CheckCommandAllowed(nil, "swap"); err != nil {
		t.Fatalf("unexpected error with empty allowlist: %v", err)
	}
	if err := CheckCommandAllowed([]string{"swap", "quote"}, "Swap"); err != nil {
		t.Fatalf("expected command to be allowed: %v", err)
	}
	err := CheckCommandAllowed([]string{"quote"}, "transfer")
	if err == nil {
		t.Fatal("expected command to be blocked")
	}
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepToolExecution {
		t.Fatalf("expected structured error, got %v", err)
	}
}
