package engine

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/mrivas/defi-agent/internal/chain"
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/history"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/providers"
	"github.com/mrivas/defi-agent/internal/quote"
)

// The engine orchestrates the quote lifecycle: resolve, adjust, quote,
// validate, approve, execute, confirm. Collaborators are injected behind
// narrow interfaces so every stage can be faked in tests.

type TokenResolver interface {
	Resolve(ctx context.Context, network id.Chain, ref string) (model.Token, error)
}

type AmountAdjuster interface {
	Adjust(ctx context.Context, network id.Chain, tokenAddress string, requested *big.Int, walletAddress string) (*big.Int, error)
}

type BalanceChecker interface {
	Check(ctx context.Context, quote model.Quote, walletAddress string) (model.BalanceCheck, error)
}

type AllowanceService interface {
	Applicable(network id.Chain, tokenAddress, spender string) bool
	CheckAllowance(ctx context.Context, network id.Chain, tokenAddress, owner, spender string) (*big.Int, error)
	BuildApprove(network id.Chain, tokenAddress, spender string, amount *big.Int) (model.TransactionPayload, error)
}

type TransactionExecutor interface {
	Execute(ctx context.Context, network id.Chain, payload model.TransactionPayload) (chain.Receipt, error)
}

// SolanaTransferBuilder builds native and SPL transfer transactions; the
// Solana chain client implements it.
type SolanaTransferBuilder interface {
	BuildTransferPayload(ctx context.Context, network, sender, recipient, tokenAddress string, amount uint64) (model.TransactionPayload, error)
}

type AddressProvider interface {
	Address(network id.Chain) (string, error)
}

type Journal interface {
	Append(record history.Record) (string, error)
}

type Engine struct {
	registry  *providers.Registry
	resolver  TokenResolver
	quotes    *quote.Store
	adjuster  AmountAdjuster
	validator BalanceChecker
	allowance AllowanceService
	executor  TransactionExecutor
	wallet    AddressProvider
	solana    SolanaTransferBuilder
	journal   Journal
	log       *logrus.Entry
}

type Options struct {
	Registry  *providers.Registry
	Resolver  TokenResolver
	Quotes    *quote.Store
	Adjuster  AmountAdjuster
	Validator BalanceChecker
	Allowance AllowanceService
	Executor  TransactionExecutor
	Wallet    AddressProvider
	Solana    SolanaTransferBuilder
	Journal   Journal
	Log       *logrus.Entry
}

func New(opts Options) *Engine {
	return &Engine{
		registry:  opts.Registry,
		resolver:  opts.Resolver,
		quotes:    opts.Quotes,
		adjuster:  opts.Adjuster,
		validator: opts.Validator,
		allowance: opts.Allowance,
		executor:  opts.Executor,
		wallet:    opts.Wallet,
		solana:    opts.Solana,
		journal:   opts.Journal,
		log:       opts.Log,
	}
}

// selectSwapProvider picks the adapter to quote with. An explicit name must
// resolve, carry the capability, and support the network. Without a name,
// candidates are tried in registration order; the first registered provider
// is the default, by policy.
func (e *Engine) selectSwapProvider(network id.Chain, name string) ([]providers.SwapProvider, error) {
	if name != "" {
		p, err := e.registry.Get(name)
		if err != nil {
			return nil, err
		}
		swapper, ok := p.(providers.SwapProvider)
		if !ok {
			return nil, apperr.New(apperr.StepProviderValidation, "provider does not support swaps").
				WithDetail("provider", name)
		}
		if !supportsNetwork(p, network) {
			return nil, providerNetworkMismatch(name, network)
		}
		return []providers.SwapProvider{swapper}, nil
	}
	var out []providers.SwapProvider
	for _, p := range e.registry.GetByNetwork(network) {
		if swapper, ok := p.(providers.SwapProvider); ok {
			out = append(out, swapper)
		}
	}
	if len(out) == 0 {
		return nil, noProviderFor(network, e.registry.ListNames())
	}
	return out, nil
}

func (e *Engine) selectBridgeProvider(network id.Chain, name string) ([]providers.BridgeProvider, error) {
	if name != "" {
		p, err := e.registry.Get(name)
		if err != nil {
			return nil, err
		}
		bridger, ok := p.(providers.BridgeProvider)
		if !ok {
			return nil, apperr.New(apperr.StepProviderValidation, "provider does not support bridging").
				WithDetail("provider", name)
		}
		if !supportsNetwork(p, network) {
			return nil, providerNetworkMismatch(name, network)
		}
		return []providers.BridgeProvider{bridger}, nil
	}
	var out []providers.BridgeProvider
	for _, p := range e.registry.GetByNetwork(network) {
		if bridger, ok := p.(providers.BridgeProvider); ok {
			out = append(out, bridger)
		}
	}
	if len(out) == 0 {
		return nil, noProviderFor(network, e.registry.ListNames())
	}
	return out, nil
}

func (e *Engine) selectStakingProvider(network id.Chain, name string) (providers.StakingProvider, error) {
	if name != "" {
		p, err := e.registry.Get(name)
		if err != nil {
			return nil, err
		}
		staker, ok := p.(providers.StakingProvider)
		if !ok {
			return nil, apperr.New(apperr.StepProviderValidation, "provider does not support staking").
				WithDetail("provider", name)
		}
		if !supportsNetwork(p, network) {
			return nil, providerNetworkMismatch(name, network)
		}
		return staker, nil
	}
	for _, p := range e.registry.GetByNetwork(network) {
		if staker, ok := p.(providers.StakingProvider); ok {
			return staker, nil
		}
	}
	return nil, noProviderFor(network, e.registry.ListNames())
}

func supportsNetwork(p providers.Provider, network id.Chain) bool {
	for _, declared := range p.Info().SupportedNetworks {
		chain, err := id.ParseChain(declared)
		if err == nil && chain.CAIP2 == network.CAIP2 {
			return true
		}
	}
	return false
}

func providerNetworkMismatch(name string, network id.Chain) *apperr.Error {
	return apperr.New(apperr.StepProviderValidation, "provider does not support the requested network").
		WithDetail("provider", name).
		WithDetail("network", network.CAIP2)
}

func noProviderFor(network id.Chain, registered []string) *apperr.Error {
	return apperr.New(apperr.StepProviderAvailability, "no provider supports the requested network").
		WithDetail("network", network.CAIP2).
		WithDetail("available_providers", registered)
}

// retriable reports whether a quote failure should fall through to the next
// candidate provider rather than abort the operation.
func retriable(err error) bool {
	structured, ok := apperr.As(err)
	if !ok {
		return false
	}
	switch structured.Step {
	case apperr.StepProviderAvailability, apperr.StepPriceRetrieval, apperr.StepDataRetrieval:
		return true
	default:
		return false
	}
}

// Providers lists the registered adapters.
func (e *Engine) Providers() []model.ProviderInfo {
	return e.registry.List()
}

// SupportedNetworks is the union of networks the registered adapters declare.
func (e *Engine) SupportedNetworks() []string {
	return e.registry.SupportedNetworks()
}
