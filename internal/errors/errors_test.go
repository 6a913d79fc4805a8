package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyPassesStructuredThrough(t *testing.T) {
	inner := New(StepTokenNotFound, "token not found on base")
	wrapped := fmt.Errorf("resolve token: %w", inner)

	got := Classify(wrapped, "quote swap")
	if got.Step != StepTokenNotFound {
		t.Fatalf("Step = %s, want %s", got.Step, StepTokenNotFound)
	}
	if got.Message != "token not found on base" {
		t.Fatalf("Message = %q", got.Message)
	}
}

func TestClassifyWrapsPlainErrors(t *testing.T) {
	got := Classify(errors.New("dial tcp: connection refused"), "quote swap")
	if got.Step != StepExecution {
		t.Fatalf("Step = %s, want %s", got.Step, StepExecution)
	}
	if got.Details["error"] != "dial tcp: connection refused" {
		t.Fatalf("Details = %v", got.Details)
	}
}

func TestClassifyNil(t *testing.T) {
	if got := Classify(nil, "noop"); got != nil {
		t.Fatalf("Classify(nil) = %v", got)
	}
}

func TestExitCodes(t *testing.T) {
	cases := []struct {
		step Step
		want int
	}{
		{StepNetworkValidation, 2},
		{StepProviderValidation, 2},
		{StepTokenNotFound, 2},
		{StepProviderAvailability, 12},
		{StepPriceRetrieval, 12},
		{StepDataRetrieval, 12},
		{StepWalletAccess, 1},
		{StepToolExecution, 1},
		{StepInitialization, 1},
		{StepExecution, 1},
		{StepUnknown, 1},
	}
	for _, tc := range cases {
		if got := ExitCode(New(tc.step, "x")); got != tc.want {
			t.Fatalf("ExitCode(%s) = %d, want %d", tc.step, got, tc.want)
		}
	}
	if got := ExitCode(errors.New("plain")); got != 1 {
		t.Fatalf("ExitCode(plain) = %d, want 1", got)
	}
	if got := ExitCode(nil); got != 0 {
		t.Fatalf("ExitCode(nil) = %d, want 0", got)
	}
}

func TestWithDetailAndUnwrap(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := Wrap(StepProviderAvailability, "jupiter quote failed", cause).
		WithDetail("provider", "jupiter")
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause not reachable via errors.Is")
	}
	if err.Details["provider"] != "jupiter" {
		t.Fatalf("Details = %v", err.Details)
	}
	if got := err.Error(); got != "jupiter quote failed: rpc timeout" {
		t.Fatalf("Error() = %q", got)
	}
}
