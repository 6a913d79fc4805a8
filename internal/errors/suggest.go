package errors

import (
	"fmt"
	"strings"
)

// Suggestion produces the human-facing remediation hint for a step. This is
// presentation layered on top of the taxonomy, not part of it: templates can
// change without touching classification.
func Suggestion(err *Error) string {
	if err == nil {
		return ""
	}
	switch err.Step {
	case StepNetworkValidation:
		if networks, ok := err.Details["supported_networks"].([]string); ok && len(networks) > 0 {
			return fmt.Sprintf("Use one of the supported networks: %s.", strings.Join(networks, ", "))
		}
		return "Check that the requested network is supported and spelled correctly."
	case StepWalletAccess:
		return "Verify the wallet is configured and its signing key is available."
	case StepProviderValidation:
		if providers, ok := err.Details["available_providers"].([]string); ok && len(providers) > 0 {
			return fmt.Sprintf("Pick one of the registered providers: %s.", strings.Join(providers, ", "))
		}
		return "Pick a registered provider or omit the provider to use the default."
	case StepProviderAvailability:
		return "All matching providers failed; retry later or choose a different network."
	case StepTokenNotFound:
		return "Confirm the token address or symbol exists on the requested network."
	case StepPriceRetrieval:
		return "The quote backend did not return a price; retry or try another provider."
	case StepToolExecution:
		return "Review the operation arguments and retry."
	case StepDataRetrieval:
		return "On-chain state could not be read; check RPC connectivity and retry."
	case StepInitialization:
		return "Fix the configuration and restart the operation."
	case StepExecution:
		return "The transaction failed; inspect details and retry if safe to do so."
	default:
		return "Retry the operation; if the problem persists, inspect the error details."
	}
}
