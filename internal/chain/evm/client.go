package evm

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/registry"
)

// Client wraps an ethclient connection for one EVM network. It serves the
// balance, allowance, and token metadata reads plus transaction submission.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
}

func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepInitialization, "connect evm rpc", err)
	}
	chainID, err := eth.ChainID(ctx)
	if err != nil {
		eth.Close()
		return nil, apperr.Wrap(apperr.StepInitialization, "read evm chain id", err)
	}
	return &Client{eth: eth, chainID: chainID}, nil
}

func (c *Client) Close() {
	if c != nil && c.eth != nil {
		c.eth.Close()
	}
}

func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, apperr.New(apperr.StepWalletAccess, "invalid evm wallet address")
	}
	balance, err := c.eth.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepDataRetrieval, "read native balance", err)
	}
	return balance, nil
}

func (c *Client) TokenBalance(ctx context.Context, address, tokenAddress string) (*big.Int, error) {
	out, err := c.callERC20(ctx, tokenAddress, "balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperr.New(apperr.StepDataRetrieval, "invalid balanceOf response type")
	}
	return balance, nil
}

func (c *Client) Allowance(ctx context.Context, tokenAddress, owner, spender string) (*big.Int, error) {
	out, err := c.callERC20(ctx, tokenAddress, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}
	allowance, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperr.New(apperr.StepDataRetrieval, "invalid allowance response type")
	}
	return allowance, nil
}

// TokenMetadata reads decimals and symbol from the contract. Used by the
// token resolver for addresses outside the bootstrap table.
func (c *Client) TokenMetadata(ctx context.Context, tokenAddress string) (int, string, error) {
	decimalsOut, err := c.callERC20(ctx, tokenAddress, "decimals")
	if err != nil {
		return 0, "", err
	}
	decimals, ok := decimalsOut[0].(uint8)
	if !ok {
		return 0, "", apperr.New(apperr.StepTokenNotFound, "invalid decimals response type")
	}
	symbolOut, err := c.callERC20(ctx, tokenAddress, "symbol")
	if err != nil {
		return 0, "", err
	}
	symbol, ok := symbolOut[0].(string)
	if !ok {
		return 0, "", apperr.New(apperr.StepTokenNotFound, "invalid symbol response type")
	}
	return int(decimals), symbol, nil
}

func (c *Client) callERC20(ctx context.Context, tokenAddress, method string, args ...any) ([]any, error) {
	if !common.IsHexAddress(tokenAddress) {
		return nil, apperr.New(apperr.StepTokenNotFound, "invalid erc20 token address")
	}
	data, err := erc20ABI.Pack(method, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepExecution, "pack "+method+" call", err)
	}
	target := common.HexToAddress(tokenAddress)
	raw, err := c.eth.CallContract(ctx, ethereum.CallMsg{To: &target, Data: data}, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepDataRetrieval, "read "+method, err)
	}
	out, err := erc20ABI.Unpack(method, raw)
	if err != nil || len(out) == 0 {
		return nil, apperr.Wrap(apperr.StepDataRetrieval, "decode "+method, err)
	}
	return out, nil
}

var erc20ABI = mustABI(registry.ERC20MinimalABI)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}
