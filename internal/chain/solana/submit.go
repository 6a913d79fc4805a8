package solana

import (
	"context"
	"encoding/base64"
	"time"

	bin "github.com/gagliardetto/binary"
	sol "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/pkg/errors"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/model"
)

// Submit signs the serialized transaction carried in the payload and
// broadcasts it. The payload bytes are used exactly as built; signing twice
// against the same payload yields the same wire transaction.
func (c *Client) Submit(ctx context.Context, key sol.PrivateKey, payload model.TransactionPayload) (*SubmitReceipt, error) {
	raw, err := base64.StdEncoding.DecodeString(payload.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepExecution, "decode transaction payload", err)
	}
	tx, err := sol.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, apperr.Wrap(apperr.StepExecution, "deserialize transaction", errors.Wrap(err, "transaction decode"))
	}

	signerKey := key.PublicKey()
	_, err = tx.Sign(func(pub sol.PublicKey) *sol.PrivateKey {
		if pub.Equals(signerKey) {
			return &key
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StepWalletAccess, "sign transaction", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.StepExecution, "broadcast transaction", errors.Wrap(err, "sendTransaction"))
	}
	return &SubmitReceipt{client: c, sig: sig, pollInterval: 2 * time.Second}, nil
}

// SubmitReceipt is the Solana chain.Receipt: Wait polls signature statuses
// until the transaction is finalized or ctx expires.
type SubmitReceipt struct {
	client       *Client
	sig          sol.Signature
	pollInterval time.Duration
}

func (r *SubmitReceipt) Hash() string {
	return r.sig.String()
}

func (r *SubmitReceipt) Wait(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		statuses, err := r.client.rpc.GetSignatureStatuses(ctx, true, r.sig)
		if err == nil && statuses != nil && len(statuses.Value) > 0 && statuses.Value[0] != nil {
			status := statuses.Value[0]
			if status.Err != nil {
				return apperr.New(apperr.StepExecution, "transaction failed on-chain").WithDetail("transaction_hash", r.sig.String())
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.StepExecution, "timed out waiting for confirmation", ctx.Err())
		case <-ticker.C:
		}
	}
}
