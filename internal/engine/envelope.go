package engine

import (
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

// successEnvelope renders a confirmed quote execution as the stable success
// boundary. Amounts are reported in decimal units.
func successEnvelope(q model.Quote, transactionHash string) model.SuccessEnvelope {
	return model.SuccessEnvelope{
		Status:          "success",
		Provider:        q.Provider,
		FromToken:       q.FromToken,
		ToToken:         q.ToToken,
		FromAmount:      id.FormatBaseUnitString(q.FromAmount, q.FromToken.Decimals),
		ToAmount:        id.FormatBaseUnitString(q.ToAmount, q.ToToken.Decimals),
		TransactionHash: transactionHash,
		Network:         q.Network,
		PriceImpact:     q.PriceImpact,
		Type:            q.Type,
	}
}

// ErrorEnvelopeFor renders any terminal failure as the stable error boundary.
// Errors that already carry a step keep it; everything else is classified
// here, once, at the outermost layer.
func ErrorEnvelopeFor(err error) model.ErrorEnvelope {
	structured := apperr.Classify(err, "operation failed")
	details := structured.Details
	if details == nil {
		details = map[string]any{}
	}
	return model.ErrorEnvelope{
		Status:     "error",
		ErrorStep:  string(structured.Step),
		Message:    structured.Message,
		Details:    details,
		Suggestion: apperr.Suggestion(structured),
	}
}
