package evm

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/model"
)

// Signer is the minimal signing surface the submit path needs. The wallet
// package provides the local implementation.
type Signer interface {
	AddressHex() string
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

type SubmitOptions struct {
	PollInterval  time.Duration
	GasMultiplier float64
}

func defaultSubmitOptions(opts SubmitOptions) SubmitOptions {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.GasMultiplier <= 1 {
		opts.GasMultiplier = 1.2
	}
	return opts
}

// Submit signs and broadcasts the payload as an EIP-1559 transaction and
// returns a receipt whose Wait polls for inclusion. The payload is used
// exactly as built; only gas fields missing from it are filled in here.
func (c *Client) Submit(ctx context.Context, signer Signer, payload model.TransactionPayload, opts SubmitOptions) (*SubmitReceipt, error) {
	opts = defaultSubmitOptions(opts)
	if strings.TrimSpace(payload.To) == "" || !common.IsHexAddress(payload.To) {
		return nil, apperr.New(apperr.StepExecution, "transaction payload missing valid target")
	}
	target := common.HexToAddress(payload.To)
	data, err := decodeHex(payload.Data)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepExecution, "decode transaction calldata", err)
	}
	value := big.NewInt(0)
	if strings.TrimSpace(payload.Value) != "" {
		parsed, ok := new(big.Int).SetString(strings.TrimSpace(payload.Value), 10)
		if !ok {
			return nil, apperr.New(apperr.StepExecution, "invalid transaction value")
		}
		value = parsed
	}
	from := common.HexToAddress(signer.AddressHex())
	msg := ethereum.CallMsg{From: from, To: &target, Value: value, Data: data}

	gasLimit, err := c.resolveGasLimit(ctx, msg, payload.GasLimit, opts.GasMultiplier)
	if err != nil {
		return nil, err
	}

	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		tipCap = big.NewInt(2_000_000_000) // 2 gwei fallback
	}
	header, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepDataRetrieval, "fetch latest header", err)
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepDataRetrieval, "fetch nonce", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &target,
		Value:     value,
		Data:      data,
	})
	signed, err := signer.SignTx(c.chainID, tx)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepWalletAccess, "sign transaction", err)
	}
	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return nil, apperr.Wrap(apperr.StepExecution, "broadcast transaction", err)
	}
	return &SubmitReceipt{
		client:       c,
		hash:         signed.Hash(),
		pollInterval: opts.PollInterval,
	}, nil
}

func (c *Client) resolveGasLimit(ctx context.Context, msg ethereum.CallMsg, override string, multiplier float64) (uint64, error) {
	if strings.TrimSpace(override) != "" {
		limit, err := strconv.ParseUint(strings.TrimSpace(override), 10, 64)
		if err != nil {
			return 0, apperr.Wrap(apperr.StepExecution, "parse payload gas limit", err)
		}
		return limit, nil
	}
	estimated, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, apperr.Wrap(apperr.StepExecution, "estimate gas", err)
	}
	return uint64(float64(estimated) * multiplier), nil
}

// SubmitReceipt is the EVM chain.Receipt: Wait polls for the transaction
// receipt until confirmed, reverted, or ctx expiry.
type SubmitReceipt struct {
	client       *Client
	hash         common.Hash
	pollInterval time.Duration
}

func (r *SubmitReceipt) Hash() string {
	return r.hash.Hex()
}

func (r *SubmitReceipt) Wait(ctx context.Context) error {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()
	for {
		receipt, err := r.client.eth.TransactionReceipt(ctx, r.hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return nil
			}
			return apperr.New(apperr.StepExecution, "transaction reverted on-chain").WithDetail("transaction_hash", r.hash.Hex())
		}
		// Transient RPC polling failures and ethereum.NotFound are retried
		// until ctx expiry.
		select {
		case <-ctx.Done():
			return apperr.Wrap(apperr.StepExecution, "timed out waiting for receipt", ctx.Err())
		case <-ticker.C:
		}
	}
}

func decodeHex(v string) ([]byte, error) {
	clean := strings.TrimSpace(v)
	clean = strings.TrimPrefix(clean, "0x")
	if clean == "" {
		return []byte{}, nil
	}
	if len(clean)%2 != 0 {
		clean = "0" + clean
	}
	buf, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex: %w", err)
	}
	return buf, nil
}
