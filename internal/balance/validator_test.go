package balance

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/mrivas/defi-agent/internal/chain"
	"github.com/mrivas/defi-agent/internal/gas"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

type fakeReader struct {
	native *big.Int
	tokens map[string]*big.Int
}

func (f *fakeReader) NativeBalance(ctx context.Context, address string) (*big.Int, error) {
	return new(big.Int).Set(f.native), nil
}

func (f *fakeReader) TokenBalance(ctx context.Context, address, tokenAddress string) (*big.Int, error) {
	if balance, ok := f.tokens[tokenAddress]; ok {
		return new(big.Int).Set(balance), nil
	}
	return big.NewInt(0), nil
}

func newTestValidator(reader *fakeReader) *Validator {
	return NewValidator(func(ctx context.Context, network id.Chain) (chain.Reader, error) {
		return reader, nil
	})
}

const usdcMint = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func usdcQuote(amount string) model.Quote {
	return model.Quote{
		Network:    id.SolanaMainnetCAIP2,
		FromToken:  model.Token{Address: usdcMint, Decimals: 6, Symbol: "USDC", Network: id.SolanaMainnetCAIP2},
		FromAmount: amount,
	}
}

func solQuote(amount string) model.Quote {
	return model.Quote{
		Network:    id.SolanaMainnetCAIP2,
		FromToken:  model.Token{Address: id.NativeSolanaSentinel, Decimals: 9, Symbol: "SOL", Network: id.SolanaMainnetCAIP2},
		FromAmount: amount,
	}
}

func TestCheckTokenBalanceExactlyEqual(t *testing.T) {
	reader := &fakeReader{
		native: big.NewInt(10_000_000),
		tokens: map[string]*big.Int{usdcMint: big.NewInt(176_000_000)},
	}
	v := newTestValidator(reader)

	verdict, err := v.Check(context.Background(), usdcQuote("176000000"), "wallet")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !verdict.IsValid {
		t.Fatalf("exact balance should pass, got message %q", verdict.Message)
	}
}

func TestCheckTokenBalanceOneUnitShort(t *testing.T) {
	reader := &fakeReader{
		native: big.NewInt(10_000_000),
		tokens: map[string]*big.Int{usdcMint: big.NewInt(175_999_999)},
	}
	v := newTestValidator(reader)

	verdict, err := v.Check(context.Background(), usdcQuote("176000000"), "wallet")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.IsValid {
		t.Fatal("one base unit short should fail")
	}
	for _, want := range []string{"USDC", "176", "175.999999"} {
		if !strings.Contains(verdict.Message, want) {
			t.Fatalf("message %q missing %q", verdict.Message, want)
		}
	}
}

func TestCheckNativeIncludesBuffer(t *testing.T) {
	network, err := id.ParseChain("solana")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	buffer := gas.BufferFor(network)
	spend := big.NewInt(500_000_000)

	// Balance covers spend + buffer exactly.
	reader := &fakeReader{native: new(big.Int).Add(spend, buffer)}
	verdict, err := newTestValidator(reader).Check(context.Background(), solQuote(spend.String()), "wallet")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !verdict.IsValid {
		t.Fatalf("spend + buffer == balance should pass, got %q", verdict.Message)
	}

	// One lamport less fails.
	short := new(big.Int).Add(spend, buffer)
	short.Sub(short, big.NewInt(1))
	reader = &fakeReader{native: short}
	verdict, err = newTestValidator(reader).Check(context.Background(), solQuote(spend.String()), "wallet")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.IsValid {
		t.Fatal("spend + buffer > balance should fail")
	}
	if !strings.Contains(verdict.Message, "SOL") {
		t.Fatalf("message %q missing symbol", verdict.Message)
	}
}

func TestCheckTokenSpendNeedsNativeGas(t *testing.T) {
	reader := &fakeReader{
		native: big.NewInt(100), // far below the buffer
		tokens: map[string]*big.Int{usdcMint: big.NewInt(1_000_000_000)},
	}
	v := newTestValidator(reader)

	verdict, err := v.Check(context.Background(), usdcQuote("176000000"), "wallet")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.IsValid {
		t.Fatal("token spend without gas funds should fail")
	}
	if !strings.Contains(verdict.Message, "gas") {
		t.Fatalf("message %q should mention gas", verdict.Message)
	}
}

func TestCheckZeroAmountFailsClearly(t *testing.T) {
	reader := &fakeReader{native: big.NewInt(0)}
	v := newTestValidator(reader)

	verdict, err := v.Check(context.Background(), solQuote("0"), "wallet")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if verdict.IsValid {
		t.Fatal("zero amount should fail validation")
	}
	if verdict.Message == "" {
		t.Fatal("zero amount verdict needs a message")
	}
}

func TestCheckInvalidAmountIsError(t *testing.T) {
	v := newTestValidator(&fakeReader{native: big.NewInt(0)})
	if _, err := v.Check(context.Background(), solQuote("abc"), "wallet"); err == nil {
		t.Fatal("expected error for malformed amount")
	}
}
