package solana

import (
	"context"
	"encoding/base64"

	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

// BuildTransferPayload builds the unsigned transfer transaction for native
// SOL or an SPL token. The recent blockhash is embedded at build time, so the
// payload carries its last valid block height and expires with it.
func (c *Client) BuildTransferPayload(ctx context.Context, network, sender, recipient, tokenAddress string, amount uint64) (model.TransactionPayload, error) {
	from, err := sol.PublicKeyFromBase58(sender)
	if err != nil {
		return model.TransactionPayload{}, apperr.Wrap(apperr.StepWalletAccess, "parse sender address", err)
	}
	to, err := sol.PublicKeyFromBase58(recipient)
	if err != nil {
		return model.TransactionPayload{}, apperr.Wrap(apperr.StepToolExecution, "parse recipient address", err)
	}

	blockhash, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return model.TransactionPayload{}, apperr.Wrap(apperr.StepDataRetrieval, "fetch latest blockhash", errors.Wrap(err, "getLatestBlockhash"))
	}

	var instructions []sol.Instruction
	if tokenAddress == "" || tokenAddress == id.NativeSolanaSentinel {
		instructions = []sol.Instruction{
			system.NewTransferInstruction(amount, from, to).Build(),
		}
	} else {
		mint, err := sol.PublicKeyFromBase58(tokenAddress)
		if err != nil {
			return model.TransactionPayload{}, apperr.Wrap(apperr.StepTokenNotFound, "parse token mint", err)
		}
		sourceATA, err := associatedTokenAddress(mint, from)
		if err != nil {
			return model.TransactionPayload{}, apperr.Wrap(apperr.StepExecution, "derive source token account", err)
		}
		destATA, err := associatedTokenAddress(mint, to)
		if err != nil {
			return model.TransactionPayload{}, apperr.Wrap(apperr.StepExecution, "derive destination token account", err)
		}
		instructions = []sol.Instruction{
			token.NewTransferInstruction(amount, sourceATA, destATA, from, nil).Build(),
		}
	}

	tx, err := sol.NewTransaction(instructions, blockhash.Value.Blockhash, sol.TransactionPayer(from))
	if err != nil {
		return model.TransactionPayload{}, apperr.Wrap(apperr.StepExecution, "build transfer transaction", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return model.TransactionPayload{}, apperr.Wrap(apperr.StepExecution, "serialize transfer transaction", err)
	}

	return model.TransactionPayload{
		To:                   recipient,
		Data:                 base64.StdEncoding.EncodeToString(raw),
		Value:                "0",
		Network:              network,
		LastValidBlockHeight: blockhash.Value.LastValidBlockHeight,
	}, nil
}
