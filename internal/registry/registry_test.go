package registry

import (
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

func TestResolveRPCURL(t *testing.T) {
	url, err := ResolveRPCURL("", 1)
	if err != nil || url == "" {
		t.Fatalf("expected default rpc for ethereum, got %q err=%v", url, err)
	}

	url, err = ResolveRPCURL("https://rpc.example.test", 999999)
	if err != nil || url != "https://rpc.example.test" {
		t.Fatalf("expected override to win, got %q err=%v", url, err)
	}

	if _, err := ResolveRPCURL("", 999999); err == nil {
		t.Fatal("expected error for unknown chain id without override")
	}
}

func TestLidoContracts(t *testing.T) {
	stETH, queue, ok := LidoContracts(1)
	if !ok || stETH == "" || queue == "" {
		t.Fatalf("expected mainnet lido contracts, got stETH=%q queue=%q", stETH, queue)
	}
	if _, _, ok := LidoContracts(8453); ok {
		t.Fatal("did not expect lido contracts on base")
	}
}

func TestABIConstantsParse(t *testing.T) {
	abis := []string{
		ERC20MinimalABI,
		LidoStETHABI,
		LidoWithdrawalQueueABI,
	}
	for _, raw := range abis {
		if _, err := abi.JSON(strings.NewReader(raw)); err != nil {
			t.Fatalf("failed to parse abi json: %v", err)
		}
	}
}
