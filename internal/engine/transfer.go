package engine

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

// Transfer sends the native currency or a token to a recipient. Native
// amounts pass through the gas-buffer adjustment first, so a "send
// everything" request leaves the wallet able to pay for the transaction.
func (e *Engine) Transfer(ctx context.Context, p TransferParams) (model.SuccessEnvelope, error) {
	network, err := id.ParseChain(p.Network)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	sender, err := e.wallet.Address(network)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	token, err := e.resolver.Resolve(ctx, network, p.Token)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	recipient := strings.TrimSpace(p.Recipient)
	if !id.ValidTokenAddress(network, recipient) || network.IsNativeAsset(recipient) {
		return model.SuccessEnvelope{}, apperr.New(apperr.StepToolExecution, "invalid transfer recipient address").
			WithDetail("recipient", p.Recipient)
	}

	amount, err := id.ParseBaseUnits(p.Amount, token.Decimals)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	amount, err = e.adjuster.Adjust(ctx, network, token.Address, amount, sender)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}

	payload, err := e.buildTransferPayload(ctx, network, token, sender, recipient, amount)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}

	q := model.Quote{
		Network:    network.CAIP2,
		Provider:   "native",
		FromToken:  token,
		ToToken:    token,
		FromAmount: amount.String(),
		ToAmount:   amount.String(),
		Type:       model.QuoteTypeInput,
		Tx:         payload,
	}
	return e.executeQuote(ctx, q, "transfer")
}

func (e *Engine) buildTransferPayload(ctx context.Context, network id.Chain, token model.Token, sender, recipient string, amount *big.Int) (model.TransactionPayload, error) {
	if network.IsSolana() {
		if !amount.IsUint64() {
			return model.TransactionPayload{}, apperr.New(apperr.StepToolExecution, "transfer amount exceeds the representable range")
		}
		return e.solana.BuildTransferPayload(ctx, network.CAIP2, sender, recipient, token.Address, amount.Uint64())
	}
	if network.IsNativeAsset(token.Address) {
		return model.TransactionPayload{
			To:      recipient,
			Data:    "0x",
			Value:   amount.String(),
			Network: network.CAIP2,
		}, nil
	}
	data, err := erc20ABI.Pack("transfer", common.HexToAddress(recipient), amount)
	if err != nil {
		return model.TransactionPayload{}, apperr.Wrap(apperr.StepExecution, "pack transfer call", err)
	}
	return model.TransactionPayload{
		To:      token.Address,
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
