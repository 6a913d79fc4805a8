package lido

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
	"github.com/mrivas/defi-agent/internal/providers"
	"github.com/mrivas/defi-agent/internal/registry"
)

// Client is the Lido staking adapter for Ethereum mainnet. Both directions
// are built locally from the canonical contract ABIs; no HTTP backend is
// involved, so quotes never fail on availability.
//
// Staking submits ETH to the stETH contract; unstaking files a withdrawal
// request with the queue, which requires a prior stETH allowance for the
// queue contract.
type Client struct{}

func New() *Client {
	return &Client{}
}

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:              "lido",
		Capabilities:      []string{string(providers.CapabilityStake)},
		SupportedNetworks: []string{"ethereum"},
	}
}

func (c *Client) QuoteStake(ctx context.Context, req providers.StakeRequest) (model.Quote, error) {
	stETH, _, err := c.contracts(req)
	if err != nil {
		return model.Quote{}, err
	}
	if !req.Network.IsNativeAsset(req.Token.Address) {
		return model.Quote{}, apperr.New(apperr.StepProviderValidation, "lido stakes the native currency only")
	}

	data, err := stETHABI.Pack("submit", common.Address{})
	if err != nil {
		return model.Quote{}, apperr.Wrap(apperr.StepExecution, "pack submit call", err)
	}
	return model.Quote{
		Network:    req.Network.CAIP2,
		Provider:   "lido",
		FromToken:  req.Token,
		ToToken:    stETHToken(req.Network.CAIP2, stETH),
		FromAmount: req.Amount.String(),
		// stETH mints 1:1 against deposited ETH.
		ToAmount: req.Amount.String(),
		Type:     model.QuoteTypeInput,
		Route:    []string{"Lido"},
		Tx: model.TransactionPayload{
			To:      stETH,
			Data:    hexutil.Encode(data),
			Value:   req.Amount.String(),
			Network: req.Network.CAIP2,
		},
	}, nil
}

func (c *Client) QuoteUnstake(ctx context.Context, req providers.StakeRequest) (model.Quote, error) {
	stETH, queue, err := c.contracts(req)
	if err != nil {
		return model.Quote{}, err
	}
	if !strings.EqualFold(req.Token.Address, stETH) {
		return model.Quote{}, apperr.New(apperr.StepTokenNotFound, "lido unstaking withdraws stETH only").
			WithDetail("expected_token", stETH)
	}
	owner := strings.TrimSpace(req.Wallet)
	if !common.IsHexAddress(owner) {
		return model.Quote{}, apperr.New(apperr.StepWalletAccess, "lido withdrawals require a valid owner address")
	}

	data, err := withdrawalQueueABI.Pack("requestWithdrawals",
		[]*big.Int{new(big.Int).Set(req.Amount)}, common.HexToAddress(owner))
	if err != nil {
		return model.Quote{}, apperr.Wrap(apperr.StepExecution, "pack requestWithdrawals call", err)
	}
	return model.Quote{
		Network:    req.Network.CAIP2,
		Provider:   "lido",
		FromToken:  req.Token,
		ToToken:    nativeETH(req.Network.CAIP2),
		FromAmount: req.Amount.String(),
		// A withdrawal request redeems stETH 1:1 for ETH once finalized.
		ToAmount: req.Amount.String(),
		Type:     model.QuoteTypeInput,
		Route:    []string{"Lido Withdrawal Queue"},
		Spender:  queue,
		Tx: model.TransactionPayload{
			To:      queue,
			Data:    hexutil.Encode(data),
			Value:   "0",
			Network: req.Network.CAIP2,
		},
	}, nil
}

func (c *Client) contracts(req providers.StakeRequest) (string, string, error) {
	if !req.Network.IsEVM() {
		return "", "", apperr.New(apperr.StepProviderValidation, "lido supports only evm networks").
			WithDetail("network", req.Network.CAIP2)
	}
	stETH, queue, ok := registry.LidoContracts(req.Network.EVMChainID)
	if !ok {
		return "", "", apperr.New(apperr.StepProviderValidation, "lido is not deployed on this network").
			WithDetail("network", req.Network.CAIP2)
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return "", "", apperr.New(apperr.StepToolExecution, "stake amount must be positive")
	}
	return stETH, queue, nil
}

func stETHToken(network, address string) model.Token {
	return model.Token{Address: address, Decimals: 18, Symbol: "stETH", Network: network}
}

func nativeETH(network string) model.Token {
	return model.Token{Address: id.NativeEVMSentinel, Decimals: 18, Symbol: "ETH", Network: network}
}

var (
	stETHABI           = mustABI(registry.LidoStETHABI)
	withdrawalQueueABI = mustABI(registry.LidoWithdrawalQueueABI)
)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
