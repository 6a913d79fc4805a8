package model

// QuoteType distinguishes whether the quoted amount fixes the input or the
// output side of the conversion.
type QuoteType string

const (
	QuoteTypeInput  QuoteType = "input"
	QuoteTypeOutput QuoteType = "output"
)

// Token is the canonical resolved form of an asset on one network. Immutable
// once resolved; cached by (address, network) for the process lifetime.
type Token struct {
	Address  string `json:"address"`
	Decimals int    `json:"decimals"`
	Symbol   string `json:"symbol"`
	Network  string `json:"network"`
}

// TransactionPayload is the exact unsigned transaction body a wallet must
// sign. LastValidBlockHeight applies only on chains whose transactions expire
// by block height.
type TransactionPayload struct {
	To                   string `json:"to"`
	Data                 string `json:"data"`
	Value                string `json:"value"`
	GasLimit             string `json:"gas_limit,omitempty"`
	Network              string `json:"network"`
	LastValidBlockHeight uint64 `json:"last_valid_block_height,omitempty"`
}

// Quote is a provider-issued, time-bounded conversion proposal. The embedded
// payload is the one that must eventually be signed; re-deriving it after
// expiry is incorrect, so the store rejects expired quotes instead.
type Quote struct {
	QuoteID      string             `json:"quote_id"`
	Network      string             `json:"network"`
	Provider     string             `json:"provider"`
	FromToken    Token              `json:"from_token"`
	ToToken      Token              `json:"to_token"`
	FromAmount   string             `json:"from_amount"`
	ToAmount     string             `json:"to_amount"`
	Type         QuoteType          `json:"type"`
	SlippageBps  int64              `json:"slippage_bps"`
	PriceImpact  float64            `json:"price_impact"`
	Route        []string           `json:"route,omitempty"`
	EstimatedGas string             `json:"estimated_gas,omitempty"`
	// Spender is the contract that must hold an ERC-20 allowance before the
	// payload can execute. Empty when no approval is involved.
	Spender string `json:"spender,omitempty"`

	Tx TransactionPayload `json:"tx"`
}

// BalanceCheck is the verdict returned by the balance validator. It is never
// an error: callers surface Message to the end user verbatim.
type BalanceCheck struct {
	IsValid bool   `json:"is_valid"`
	Message string `json:"message,omitempty"`
}

// SuccessEnvelope is the stable success boundary consumed by the agent layer.
type SuccessEnvelope struct {
	Status          string    `json:"status"`
	Provider        string    `json:"provider"`
	FromToken       Token     `json:"from_token"`
	ToToken         Token     `json:"to_token"`
	FromAmount      string    `json:"from_amount"`
	ToAmount        string    `json:"to_amount"`
	TransactionHash string    `json:"transaction_hash"`
	Network         string    `json:"network"`
	PriceImpact     float64   `json:"price_impact,omitempty"`
	Type            QuoteType `json:"type,omitempty"`
}

// ErrorEnvelope is the stable error boundary. Every terminal failure resolves
// to one of these with a non-empty suggestion, never a raw error.
type ErrorEnvelope struct {
	Status     string         `json:"status"`
	ErrorStep  string         `json:"error_step"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details"`
	Suggestion string         `json:"suggestion"`
}

// ProviderInfo describes a registered backend for the providers listing and
// the caller-facing schema.
type ProviderInfo struct {
	Name              string   `json:"name"`
	Capabilities      []string `json:"capabilities"`
	SupportedNetworks []string `json:"supported_networks"`
}
