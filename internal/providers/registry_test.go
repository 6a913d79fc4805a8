package providers

import (
	"context"
	"testing"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

type fakeSwapProvider struct {
	name     string
	networks []string
}

func (f *fakeSwapProvider) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:              f.name,
		Capabilities:      []string{string(CapabilitySwap)},
		SupportedNetworks: f.networks,
	}
}

func (f *fakeSwapProvider) QuoteSwap(ctx context.Context, req SwapRequest) (model.Quote, error) {
	return model.Quote{Provider: f.name}, nil
}

type liarProvider struct{}

func (l *liarProvider) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:              "liar",
		Capabilities:      []string{string(CapabilityBridge)},
		SupportedNetworks: []string{"ethereum"},
	}
}

func TestRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeSwapProvider{name: "jupiter", networks: []string{"solana"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	p, err := r.Get("jupiter")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if p.Info().Name != "jupiter" {
		t.Fatalf("name = %s", p.Info().Name)
	}
	// Lookup is case-insensitive.
	if _, err := r.Get("  Jupiter "); err != nil {
		t.Fatalf("Get with padding: %v", err)
	}
}

func TestGetUnknownListsAvailable(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeSwapProvider{name: "jupiter", networks: []string{"solana"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	_, err := r.Get("raydium")
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepProviderValidation {
		t.Fatalf("expected PROVIDER_VALIDATION, got %v", err)
	}
	available, _ := appErr.Details["available_providers"].([]string)
	if len(available) != 1 || available[0] != "jupiter" {
		t.Fatalf("available_providers = %v", available)
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeSwapProvider{name: "jupiter", networks: []string{"solana"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakeSwapProvider{name: "Jupiter", networks: []string{"solana"}}); err == nil {
		t.Fatal("expected duplicate registration to fail")
	}
}

func TestRegisterChecksCapabilities(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&liarProvider{}); err == nil {
		t.Fatal("declaring an unimplemented capability must fail registration")
	}
}

func TestRegisterRejectsUnknownNetwork(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&fakeSwapProvider{name: "x", networks: []string{"tron"}})
	if err == nil {
		t.Fatal("expected unknown network to fail registration")
	}
}

func TestGetByNetworkStableOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alpha", "beta", "gamma"} {
		if err := r.Register(&fakeSwapProvider{name: name, networks: []string{"base", "ethereum"}}); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	base, err := id.ParseChain("base")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	got := r.GetByNetwork(base)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	for i, want := range []string{"alpha", "beta", "gamma"} {
		if got[i].Info().Name != want {
			t.Fatalf("order[%d] = %s, want %s", i, got[i].Info().Name, want)
		}
	}

	sol, err := id.ParseChain("solana")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	if unsupported := r.GetByNetwork(sol); len(unsupported) != 0 {
		t.Fatalf("expected empty list, got %d", len(unsupported))
	}
}

func TestSupportedNetworksUnion(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&fakeSwapProvider{name: "a", networks: []string{"solana"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(&fakeSwapProvider{name: "b", networks: []string{"ethereum", "solana"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	got := r.SupportedNetworks()
	want := []string{id.SolanaMainnetCAIP2, "eip155:1"}
	if len(got) != len(want) {
		t.Fatalf("networks = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("networks[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}
