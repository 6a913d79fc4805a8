package solana

import (
	"context"
	"math/big"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
)

// Client wraps a Solana RPC connection for balance reads and raw transaction
// submission.
type Client struct {
	rpc *rpc.Client
}

func New(rpcURL string) *Client {
	return &Client{rpc: rpc.New(rpcURL)}
}

func (c *Client) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	account, err := sol.PublicKeyFromBase58(address)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepWalletAccess, "parse solana wallet address", err)
	}
	balance, err := c.rpc.GetBalance(ctx, account, rpc.CommitmentFinalized)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepDataRetrieval, "read native balance", errors.Wrap(err, "getBalance"))
	}
	return new(big.Int).SetUint64(balance.Value), nil
}

func (c *Client) TokenBalance(ctx context.Context, address, tokenAddress string) (*big.Int, error) {
	owner, err := sol.PublicKeyFromBase58(address)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepWalletAccess, "parse solana wallet address", err)
	}
	// Wrapped SOL doubles as the native sentinel; report the lamport balance.
	if tokenAddress == id.NativeSolanaSentinel {
		return c.NativeBalance(ctx, address)
	}
	mint, err := sol.PublicKeyFromBase58(tokenAddress)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepTokenNotFound, "parse token mint", err)
	}
	ata, err := associatedTokenAddress(mint, owner)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepDataRetrieval, "derive associated token address", err)
	}
	balance, err := c.rpc.GetTokenAccountBalance(ctx, ata, rpc.CommitmentFinalized)
	if err != nil {
		// A missing token account means a zero balance, but RPC surfaces it
		// as an error; report the read failure and let callers decide.
		return nil, apperr.Wrap(apperr.StepDataRetrieval, "read token balance", errors.Wrap(err, "getTokenAccountBalance"))
	}
	amount, ok := new(big.Int).SetString(balance.Value.Amount, 10)
	if !ok {
		return nil, apperr.New(apperr.StepDataRetrieval, "parse token balance")
	}
	return amount, nil
}

// associatedTokenAddress derives the ATA for a mint and owner per the
// Associated Token Account Program conventions.
func associatedTokenAddress(mint, owner sol.PublicKey) (sol.PublicKey, error) {
	seeds := [][]byte{
		owner.Bytes(),
		sol.TokenProgramID.Bytes(),
		mint.Bytes(),
	}
	addr, _, err := sol.FindProgramAddress(seeds, sol.SPLAssociatedTokenAccountProgramID)
	if err != nil {
		return sol.PublicKey{}, errors.Wrap(err, "find program address")
	}
	return addr, nil
}
