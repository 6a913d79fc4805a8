package providers

import (
	"context"
	"math/big"

	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

// Capability names a quote surface a provider can serve. A provider declares
// its capabilities in Info(); the registry verifies the declaration against
// the implemented interfaces once, at registration.
type Capability string

const (
	CapabilitySwap   Capability = "swap"
	CapabilityBridge Capability = "bridge"
	CapabilityStake  Capability = "stake"
)

type Provider interface {
	Info() model.ProviderInfo
}

// SwapProvider quotes same-chain conversions. The returned quote embeds the
// exact transaction payload to execute it.
type SwapProvider interface {
	Provider
	QuoteSwap(ctx context.Context, req SwapRequest) (model.Quote, error)
}

// BridgeProvider quotes cross-chain transfers.
type BridgeProvider interface {
	Provider
	QuoteBridge(ctx context.Context, req BridgeRequest) (model.Quote, error)
}

// StakingProvider quotes deposits into and withdrawals from a staking
// position.
type StakingProvider interface {
	Provider
	QuoteStake(ctx context.Context, req StakeRequest) (model.Quote, error)
	QuoteUnstake(ctx context.Context, req StakeRequest) (model.Quote, error)
}

type SwapRequest struct {
	Network     id.Chain
	FromToken   model.Token
	ToToken     model.Token
	Amount      *big.Int
	Type        model.QuoteType
	SlippageBps int64
	Wallet      string
}

type BridgeRequest struct {
	FromNetwork id.Chain
	ToNetwork   id.Chain
	FromToken   model.Token
	ToToken     model.Token
	Amount      *big.Int
	Sender      string
	Recipient   string
	SlippageBps int64
}

type StakeRequest struct {
	Network id.Chain
	Token   model.Token
	Amount  *big.Int
	Wallet  string
}
