package balance

import (
	"context"
	"fmt"
	"math/big"

	"github.com/mrivas/defi-agent/internal/chain"
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/gas"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

// ReaderSource hands out the balance reader for a network.
type ReaderSource func(ctx context.Context, network id.Chain) (chain.Reader, error)

// Validator checks a quote's spend against live balances. A shortfall is a
// verdict, never an error: the message is surfaced to the end user verbatim.
type Validator struct {
	readerFor ReaderSource
}

func NewValidator(readerFor ReaderSource) *Validator {
	return &Validator{readerFor: readerFor}
}

// Check verifies the wallet can fund the quote. For a native spend the gas
// buffer is added to the required amount; for a token spend the token balance
// must cover the amount and the native balance must separately cover the
// buffer.
func (v *Validator) Check(ctx context.Context, quote model.Quote, walletAddress string) (model.BalanceCheck, error) {
	network, err := id.ParseChain(quote.Network)
	if err != nil {
		return model.BalanceCheck{}, err
	}
	required, ok := new(big.Int).SetString(quote.FromAmount, 10)
	if !ok || required.Sign() < 0 {
		return model.BalanceCheck{}, apperr.New(apperr.StepToolExecution, "quote carries an invalid spend amount").
			WithDetail("from_amount", quote.FromAmount)
	}
	if required.Sign() == 0 {
		return model.BalanceCheck{
			IsValid: false,
			Message: fmt.Sprintf("Spend amount is zero after reserving the %s gas buffer; top up %s and retry.", network.NativeSymbol, network.NativeSymbol),
		}, nil
	}

	reader, err := v.readerFor(ctx, network)
	if err != nil {
		return model.BalanceCheck{}, err
	}
	buffer := gas.BufferFor(network)

	if network.IsNativeAsset(quote.FromToken.Address) {
		balance, err := reader.NativeBalance(ctx, walletAddress)
		if err != nil {
			return model.BalanceCheck{}, err
		}
		total := new(big.Int).Add(required, buffer)
		if balance.Cmp(total) < 0 {
			return model.BalanceCheck{
				IsValid: false,
				Message: shortfallMessage(quote.FromToken, total, balance),
			}, nil
		}
		return model.BalanceCheck{IsValid: true}, nil
	}

	tokenBalance, err := reader.TokenBalance(ctx, walletAddress, quote.FromToken.Address)
	if err != nil {
		return model.BalanceCheck{}, err
	}
	if tokenBalance.Cmp(required) < 0 {
		return model.BalanceCheck{
			IsValid: false,
			Message: shortfallMessage(quote.FromToken, required, tokenBalance),
		}, nil
	}

	nativeBalance, err := reader.NativeBalance(ctx, walletAddress)
	if err != nil {
		return model.BalanceCheck{}, err
	}
	if nativeBalance.Cmp(buffer) < 0 {
		return model.BalanceCheck{
			IsValid: false,
			Message: fmt.Sprintf("Insufficient %s for gas: need at least %s %s, have %s %s.",
				network.NativeSymbol,
				id.FormatBaseUnits(buffer, network.NativeDecimals), network.NativeSymbol,
				id.FormatBaseUnits(nativeBalance, network.NativeDecimals), network.NativeSymbol),
		}, nil
	}
	return model.BalanceCheck{IsValid: true}, nil
}

func shortfallMessage(token model.Token, required, available *big.Int) string {
	return fmt.Sprintf("Insufficient %s balance: need %s %s, have %s %s.",
		token.Symbol,
		id.FormatBaseUnits(required, token.Decimals), token.Symbol,
		id.FormatBaseUnits(available, token.Decimals), token.Symbol)
}
