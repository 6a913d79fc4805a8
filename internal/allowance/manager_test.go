package allowance

import (
	"context"
	"math/big"
	"strings"
	"testing"

	"github.com/mrivas/defi-agent/internal/id"
)

type fakeAllowanceReader struct {
	allowance *big.Int
	lastToken string
	lastOwner string
	lastSpend string
}

func (f *fakeAllowanceReader) Allowance(ctx context.Context, tokenAddress, owner, spender string) (*big.Int, error) {
	f.lastToken = tokenAddress
	f.lastOwner = owner
	f.lastSpend = spender
	return new(big.Int).Set(f.allowance), nil
}

func evmChain(t *testing.T) id.Chain {
	t.Helper()
	network, err := id.ParseChain("base")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	return network
}

func solChain(t *testing.T) id.Chain {
	t.Helper()
	network, err := id.ParseChain("solana")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	return network
}

const (
	testToken   = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
	testOwner   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	testSpender = "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"
)

func TestCheckAllowanceForwardsArguments(t *testing.T) {
	reader := &fakeAllowanceReader{allowance: big.NewInt(42)}
	m := NewManager(func(ctx context.Context, network id.Chain) (Reader, error) {
		return reader, nil
	})

	got, err := m.CheckAllowance(context.Background(), evmChain(t), testToken, testOwner, testSpender)
	if err != nil {
		t.Fatalf("CheckAllowance: %v", err)
	}
	if got.Cmp(big.NewInt(42)) != 0 {
		t.Fatalf("allowance = %s", got)
	}
	if reader.lastToken != testToken || reader.lastOwner != testOwner || reader.lastSpend != testSpender {
		t.Fatalf("forwarded %s %s %s", reader.lastToken, reader.lastOwner, reader.lastSpend)
	}
}

func TestCheckAllowanceRejectsLedgerChains(t *testing.T) {
	m := NewManager(nil)
	if _, err := m.CheckAllowance(context.Background(), solChain(t), testToken, testOwner, testSpender); err == nil {
		t.Fatal("expected error on ledger-model chain")
	}
}

func TestBuildApprovePacksCalldata(t *testing.T) {
	m := NewManager(nil)
	amount := big.NewInt(176_000_000)

	payload, err := m.BuildApprove(evmChain(t), testToken, testSpender, amount)
	if err != nil {
		t.Fatalf("BuildApprove: %v", err)
	}
	if payload.To != testToken {
		t.Fatalf("to = %s, want token contract", payload.To)
	}
	if payload.Value != "0" {
		t.Fatalf("value = %s, want 0", payload.Value)
	}
	// approve selector
	if !strings.HasPrefix(payload.Data, "0x095ea7b3") {
		t.Fatalf("data = %s, want approve selector prefix", payload.Data)
	}
	if !strings.Contains(strings.ToLower(payload.Data), strings.ToLower(testSpender[2:])) {
		t.Fatal("calldata missing spender address")
	}
}

func TestBuildApproveDeterministic(t *testing.T) {
	m := NewManager(nil)
	amount := big.NewInt(1_000_000)

	a, err := m.BuildApprove(evmChain(t), testToken, testSpender, amount)
	if err != nil {
		t.Fatalf("BuildApprove: %v", err)
	}
	b, err := m.BuildApprove(evmChain(t), testToken, testSpender, amount)
	if err != nil {
		t.Fatalf("BuildApprove: %v", err)
	}
	if a.Data != b.Data || a.To != b.To || a.Value != b.Value {
		t.Fatal("approve payload must be deterministic")
	}
}

func TestBuildApproveValidation(t *testing.T) {
	m := NewManager(nil)
	network := evmChain(t)

	if _, err := m.BuildApprove(network, "not-an-address", testSpender, big.NewInt(1)); err == nil {
		t.Fatal("expected error for bad token address")
	}
	if _, err := m.BuildApprove(network, testToken, "nope", big.NewInt(1)); err == nil {
		t.Fatal("expected error for bad spender")
	}
	if _, err := m.BuildApprove(network, testToken, testSpender, big.NewInt(-1)); err == nil {
		t.Fatal("expected error for negative amount")
	}
	if _, err := m.BuildApprove(solChain(t), testToken, testSpender, big.NewInt(1)); err == nil {
		t.Fatal("expected error on ledger-model chain")
	}
}

func TestApplicable(t *testing.T) {
	m := NewManager(nil)
	evm := evmChain(t)
	sol := solChain(t)

	if !m.Applicable(evm, testToken, testSpender) {
		t.Fatal("erc20 spend with spender should be applicable")
	}
	if m.Applicable(evm, id.NativeEVMSentinel, testSpender) {
		t.Fatal("native spend never needs an allowance")
	}
	if m.Applicable(evm, testToken, "") {
		t.Fatal("unknown spender cannot be approved")
	}
	if m.Applicable(sol, testToken, testSpender) {
		t.Fatal("ledger-model chain has no allowance stage")
	}
}
