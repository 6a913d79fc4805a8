package errors

import (
	"errors"
	"fmt"
)

// Step identifies the pipeline stage at which an error was raised. The set is
// closed: callers switch on it and the agent layer keys remediation on it.
type Step string

const (
	StepNetworkValidation    Step = "NETWORK_VALIDATION"
	StepWalletAccess         Step = "WALLET_ACCESS"
	StepProviderValidation   Step = "PROVIDER_VALIDATION"
	StepProviderAvailability Step = "PROVIDER_AVAILABILITY"
	StepTokenNotFound        Step = "TOKEN_NOT_FOUND"
	StepPriceRetrieval       Step = "PRICE_RETRIEVAL"
	StepToolExecution        Step = "TOOL_EXECUTION"
	StepDataRetrieval        Step = "DATA_RETRIEVAL"
	StepInitialization       Step = "INITIALIZATION"
	StepExecution            Step = "EXECUTION"
	StepUnknown              Step = "UNKNOWN"
)

// Error is a structured pipeline error. It carries the stage tag, a
// human-readable message, and machine-readable details. Once created it is
// never re-tagged by outer layers.
type Error struct {
	Step    Step
	Message string
	Details map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(step Step, message string) *Error {
	return &Error{Step: step, Message: message}
}

func Wrap(step Step, message string, cause error) *Error {
	return &Error{Step: step, Message: message, Cause: cause}
}

// WithDetail returns the same error with one detail key set. Details are
// initialized lazily so zero-detail errors stay cheap.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Classify wraps err into a structured error. An error already carrying a
// step passes through unchanged so the deepest classification survives;
// anything else becomes an EXECUTION error with the original message
// preserved under details.error.
func Classify(err error, context string) *Error {
	if err == nil {
		return nil
	}
	if structured, ok := As(err); ok {
		return structured
	}
	wrapped := Wrap(StepExecution, context, err)
	return wrapped.WithDetail("error", err.Error())
}

// ExitCode maps a terminal error to a process exit code. Validation-class
// steps exit 2, availability-class steps 12, everything else 1.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	structured, ok := As(err)
	if !ok {
		return 1
	}
	switch structured.Step {
	case StepNetworkValidation, StepProviderValidation, StepTokenNotFound:
		return 2
	case StepProviderAvailability, StepPriceRetrieval, StepDataRetrieval:
		return 12
	default:
		return 1
	}
}
