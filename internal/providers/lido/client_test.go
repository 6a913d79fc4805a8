package lido

import (
	"context"
	"math/big"
	"strings"
	"testing"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/providers"
	"github.com/mrivas/defi-agent/internal/registry"
)

const ownerAddr = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

func ethereumChain(t *testing.T) id.Chain {
	t.Helper()
	chain, err := id.ParseChain("ethereum")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	return chain
}

func TestQuoteStakeBuildsSubmit(t *testing.T) {
	network := ethereumChain(t)
	stETH, _, _ := registry.LidoContracts(1)
	c := New()

	quote, err := c.QuoteStake(context.Background(), providers.StakeRequest{
		Network: network,
		Token:   model.Token{Address: id.NativeEVMSentinel, Decimals: 18, Symbol: "ETH", Network: network.CAIP2},
		Amount:  big.NewInt(1_000_000_000_000_000_000),
		Wallet:  ownerAddr,
	})
	if err != nil {
		t.Fatalf("QuoteStake: %v", err)
	}
	if quote.Tx.To != stETH {
		t.Fatalf("to = %s, want stETH contract", quote.Tx.To)
	}
	if quote.Tx.Value != "1000000000000000000" {
		t.Fatalf("value = %s", quote.Tx.Value)
	}
	// submit(address) selector
	if !strings.HasPrefix(quote.Tx.Data, "0xa1903eab") {
		t.Fatalf("data = %s", quote.Tx.Data)
	}
	if quote.Spender != "" {
		t.Fatal("staking native currency needs no allowance")
	}
	if quote.ToToken.Symbol != "stETH" || quote.ToAmount != quote.FromAmount {
		t.Fatalf("quote = %+v", quote)
	}
}

func TestQuoteUnstakeBuildsWithdrawalRequest(t *testing.T) {
	network := ethereumChain(t)
	stETH, queue, _ := registry.LidoContracts(1)
	c := New()

	quote, err := c.QuoteUnstake(context.Background(), providers.StakeRequest{
		Network: network,
		Token:   model.Token{Address: stETH, Decimals: 18, Symbol: "stETH", Network: network.CAIP2},
		Amount:  big.NewInt(500_000_000_000_000_000),
		Wallet:  ownerAddr,
	})
	if err != nil {
		t.Fatalf("QuoteUnstake: %v", err)
	}
	if quote.Tx.To != queue {
		t.Fatalf("to = %s, want withdrawal queue", quote.Tx.To)
	}
	if quote.Tx.Value != "0" {
		t.Fatalf("value = %s", quote.Tx.Value)
	}
	if quote.Spender != queue {
		t.Fatalf("spender = %s, want withdrawal queue", quote.Spender)
	}
	if !strings.Contains(strings.ToLower(quote.Tx.Data), strings.ToLower(ownerAddr[2:])) {
		t.Fatal("calldata missing owner address")
	}
}

func TestQuoteUnstakeRejectsOtherTokens(t *testing.T) {
	network := ethereumChain(t)
	c := New()

	_, err := c.QuoteUnstake(context.Background(), providers.StakeRequest{
		Network: network,
		Token:   model.Token{Address: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48", Decimals: 6, Symbol: "USDC"},
		Amount:  big.NewInt(1),
		Wallet:  ownerAddr,
	})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepTokenNotFound {
		t.Fatalf("expected TOKEN_NOT_FOUND, got %v", err)
	}
}

func TestQuoteStakeRejectsUnsupportedNetwork(t *testing.T) {
	base, err := id.ParseChain("base")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	c := New()

	_, err = c.QuoteStake(context.Background(), providers.StakeRequest{
		Network: base,
		Token:   model.Token{Address: id.NativeEVMSentinel, Decimals: 18, Symbol: "ETH"},
		Amount:  big.NewInt(1),
		Wallet:  ownerAddr,
	})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepProviderValidation {
		t.Fatalf("expected PROVIDER_VALIDATION, got %v", err)
	}
}

func TestQuoteStakeRejectsZeroAmount(t *testing.T) {
	c := New()
	_, err := c.QuoteStake(context.Background(), providers.StakeRequest{
		Network: ethereumChain(t),
		Token:   model.Token{Address: id.NativeEVMSentinel},
		Amount:  big.NewInt(0),
		Wallet:  ownerAddr,
	})
	if err == nil {
		t.Fatal("expected error for zero amount")
	}
}
