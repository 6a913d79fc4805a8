package allowance

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/registry"
)

// Reader reads the current ERC-20 allowance. The EVM chain client implements
// it.
type Reader interface {
	Allowance(ctx context.Context, tokenAddress, owner, spender string) (*big.Int, error)
}

// ReaderSource hands out the allowance reader for a network.
type ReaderSource func(ctx context.Context, network id.Chain) (Reader, error)

// Manager owns the approve-before-spend stage on account-model chains.
// Ledger-model chains have no allowance concept; callers must skip this stage
// there rather than fake it.
type Manager struct {
	readerFor ReaderSource
}

func NewManager(readerFor ReaderSource) *Manager {
	return &Manager{readerFor: readerFor}
}

// Applicable reports whether the allowance stage exists for this spend:
// account-model chain, non-native token, and a known spender.
func (m *Manager) Applicable(network id.Chain, tokenAddress, spender string) bool {
	return network.IsEVM() &&
		!network.IsNativeAsset(tokenAddress) &&
		strings.TrimSpace(spender) != ""
}

// CheckAllowance returns the amount the spender may currently move.
func (m *Manager) CheckAllowance(ctx context.Context, network id.Chain, tokenAddress, owner, spender string) (*big.Int, error) {
	if !network.IsEVM() {
		return nil, apperr.New(apperr.StepExecution, "allowances do not exist on this network").
			WithDetail("network", network.CAIP2)
	}
	reader, err := m.readerFor(ctx, network)
	if err != nil {
		return nil, err
	}
	return reader.Allowance(ctx, tokenAddress, owner, spender)
}

// BuildApprove packs an approve(spender, amount) call against the token
// contract. The payload carries no value and leaves gas estimation to the
// submit path.
func (m *Manager) BuildApprove(network id.Chain, tokenAddress, spender string, amount *big.Int) (model.TransactionPayload, error) {
	if !network.IsEVM() {
		return model.TransactionPayload{}, apperr.New(apperr.StepExecution, "allowances do not exist on this network").
			WithDetail("network", network.CAIP2)
	}
	if !common.IsHexAddress(tokenAddress) {
		return model.TransactionPayload{}, apperr.New(apperr.StepTokenNotFound, "invalid erc20 token address")
	}
	if !common.IsHexAddress(spender) {
		return model.TransactionPayload{}, apperr.New(apperr.StepExecution, "invalid approval spender address")
	}
	if amount == nil || amount.Sign() < 0 {
		return model.TransactionPayload{}, apperr.New(apperr.StepExecution, "invalid approval amount")
	}
	data, err := erc20ABI.Pack("approve", common.HexToAddress(spender), amount)
	if err != nil {
		return model.TransactionPayload{}, apperr.Wrap(apperr.StepExecution, "pack approve call", err)
	}
	return model.TransactionPayload{
		To:      tokenAddress,
		Data:    hexutil.Encode(data),
		Value:   "0",
		Network: network.CAIP2,
	}, nil
}

var erc20ABI = mustABI(registry.ERC20MinimalABI)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
