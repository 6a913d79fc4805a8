package jupiter

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/httpx"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/providers"
)

const (
	usdcMint   = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	testWallet = "4Nd1mYdR6s2Chw7LrcVtGc2ypCq3ihWBMZpamw5er6xf"
)

func solanaRequest(t *testing.T, amount int64) providers.SwapRequest {
	t.Helper()
	network, err := id.ParseChain("solana")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	return providers.SwapRequest{
		Network:   network,
		FromToken: model.Token{Address: id.NativeSolanaSentinel, Decimals: 9, Symbol: "SOL", Network: network.CAIP2},
		ToToken:   model.Token{Address: usdcMint, Decimals: 6, Symbol: "USDC", Network: network.CAIP2},
		Amount:    big.NewInt(amount),
		Type:      model.QuoteTypeInput,
		Wallet:    testWallet,
	}
}

func TestQuoteSwapBuildsPayload(t *testing.T) {
	var swapBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			if got := r.URL.Query().Get("inputMint"); got != id.NativeSolanaSentinel {
				t.Errorf("inputMint = %s", got)
			}
			if got := r.URL.Query().Get("amount"); got != "10000000" {
				t.Errorf("amount = %s", got)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{
				"inAmount": "10000000",
				"outAmount": "1760000",
				"priceImpactPct": "0.01",
				"routePlan": [
					{"swapInfo": {"label": "Whirlpool"}},
					{"swapInfo": {"label": "Whirlpool"}},
					{"swapInfo": {"label": "Raydium"}}
				]
			}`))
		case "/swap":
			if err := json.NewDecoder(r.Body).Decode(&swapBody); err != nil {
				t.Errorf("decode swap body: %v", err)
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"swapTransaction": "c2lnbmVkLXR4", "lastValidBlockHeight": 12345}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c := NewWithBaseURL(httpx.New(5*time.Second, 0), server.URL, "")
	quote, err := c.QuoteSwap(context.Background(), solanaRequest(t, 10_000_000))
	if err != nil {
		t.Fatalf("QuoteSwap: %v", err)
	}

	if quote.Provider != "jupiter" || quote.ToAmount != "1760000" {
		t.Fatalf("quote = %+v", quote)
	}
	if quote.Tx.Data != "c2lnbmVkLXR4" {
		t.Fatalf("tx data = %s", quote.Tx.Data)
	}
	if quote.Tx.LastValidBlockHeight != 12345 {
		t.Fatalf("lastValidBlockHeight = %d", quote.Tx.LastValidBlockHeight)
	}
	if len(quote.Route) != 2 || quote.Route[0] != "Whirlpool" || quote.Route[1] != "Raydium" {
		t.Fatalf("route = %v", quote.Route)
	}
	if swapBody["userPublicKey"] != testWallet {
		t.Fatalf("userPublicKey = %v", swapBody["userPublicKey"])
	}
	if _, ok := swapBody["quoteResponse"].(map[string]any); !ok {
		t.Fatal("swap body missing echoed quoteResponse")
	}
}

func TestQuoteSwapRejectsEVMNetwork(t *testing.T) {
	c := NewWithBaseURL(httpx.New(time.Second, 0), "http://unused", "")
	req := solanaRequest(t, 1)
	network, err := id.ParseChain("ethereum")
	if err != nil {
		t.Fatalf("ParseChain: %v", err)
	}
	req.Network = network

	_, err = c.QuoteSwap(context.Background(), req)
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepProviderValidation {
		t.Fatalf("expected PROVIDER_VALIDATION, got %v", err)
	}
}

func TestQuoteSwapMissingAmountsIsPriceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"routePlan": []}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(httpx.New(time.Second, 0), server.URL, "")
	_, err := c.QuoteSwap(context.Background(), solanaRequest(t, 100))
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepPriceRetrieval {
		t.Fatalf("expected PRICE_RETRIEVAL, got %v", err)
	}
}

func TestQuoteSwapBackendDownIsAvailabilityError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewWithBaseURL(httpx.New(time.Second, 0), server.URL, "")
	_, err := c.QuoteSwap(context.Background(), solanaRequest(t, 100))
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepProviderAvailability {
		t.Fatalf("expected PROVIDER_AVAILABILITY, got %v", err)
	}
}
