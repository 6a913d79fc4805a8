package lifi

import (
	"context"
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
	senderAddr   = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	usdcEthereum = "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48"
	usdcBase     = "0x833589fcd6edb6e08f4c7c32d4f71b54bda02913"
	diamondAddr  = "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"
)

func mustChain(t *testing.T, slug string) id.Chain {
	t.Helper()
	chain, err := id.ParseChain(slug)
	if err != nil {
		t.Fatalf("ParseChain(%s): %v", slug, err)
	}
	return chain
}

func bridgeRequest(t *testing.T) providers.BridgeRequest {
	eth := mustChain(t, "ethereum")
	base := mustChain(t, "base")
	return providers.BridgeRequest{
		FromNetwork: eth,
		ToNetwork:   base,
		FromToken:   model.Token{Address: usdcEthereum, Decimals: 6, Symbol: "USDC", Network: eth.CAIP2},
		ToToken:     model.Token{Address: usdcBase, Decimals: 6, Symbol: "USDC", Network: base.CAIP2},
		Amount:      big.NewInt(100_000_000),
		Sender:      senderAddr,
	}
}

const bridgeQuoteBody = `{
	"estimate": {
		"fromAmount": "100000000",
		"toAmount": "99750000",
		"approvalAddress": "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE"
	},
	"toolDetails": {"name": "Stargate"},
	"transactionRequest": {
		"to": "0x1231DEB6f5749EF6cE6943a275A1D3E7486F4EaE",
		"data": "0xdeadbeef",
		"value": "0x0",
		"gasLimit": "0x7a120"
	}
}`

func TestQuoteBridgeParsesTransactionRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fromChain") != "1" || q.Get("toChain") != "8453" {
			t.Errorf("chains = %s -> %s", q.Get("fromChain"), q.Get("toChain"))
		}
		if q.Get("fromAddress") != senderAddr {
			t.Errorf("fromAddress = %s", q.Get("fromAddress"))
		}
		if q.Get("slippage") != "0.005" {
			t.Errorf("slippage = %s", q.Get("slippage"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(bridgeQuoteBody))
	}))
	defer server.Close()

	c := NewWithBaseURL(httpx.New(5*time.Second, 0), server.URL)
	quote, err := c.QuoteBridge(context.Background(), bridgeRequest(t))
	if err != nil {
		t.Fatalf("QuoteBridge: %v", err)
	}

	if quote.Provider != "lifi" || quote.ToAmount != "99750000" {
		t.Fatalf("quote = %+v", quote)
	}
	if quote.Tx.To != diamondAddr || quote.Tx.Data != "0xdeadbeef" {
		t.Fatalf("tx = %+v", quote.Tx)
	}
	if quote.Tx.Value != "0" {
		t.Fatalf("value = %s, want decimal 0", quote.Tx.Value)
	}
	if quote.Tx.GasLimit != "500000" {
		t.Fatalf("gasLimit = %s, want 500000", quote.Tx.GasLimit)
	}
	if quote.Spender != diamondAddr {
		t.Fatalf("spender = %s", quote.Spender)
	}
	if len(quote.Route) != 1 || quote.Route[0] != "Stargate" {
		t.Fatalf("route = %v", quote.Route)
	}
}

func TestQuoteSwapSameChain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("fromChain") != "1" || q.Get("toChain") != "1" {
			t.Errorf("swap should stay on one chain, got %s -> %s", q.Get("fromChain"), q.Get("toChain"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(bridgeQuoteBody))
	}))
	defer server.Close()

	eth := mustChain(t, "ethereum")
	c := NewWithBaseURL(httpx.New(5*time.Second, 0), server.URL)
	quote, err := c.QuoteSwap(context.Background(), providers.SwapRequest{
		Network:   eth,
		FromToken: model.Token{Address: usdcEthereum, Decimals: 6, Symbol: "USDC", Network: eth.CAIP2},
		ToToken:   model.Token{Address: id.NativeEVMSentinel, Decimals: 18, Symbol: "ETH", Network: eth.CAIP2},
		Amount:    big.NewInt(100_000_000),
		Type:      model.QuoteTypeInput,
		Wallet:    senderAddr,
	})
	if err != nil {
		t.Fatalf("QuoteSwap: %v", err)
	}
	if quote.Type != model.QuoteTypeInput {
		t.Fatalf("type = %s", quote.Type)
	}
}

func TestQuoteSwapRejectsOutputType(t *testing.T) {
	c := NewWithBaseURL(httpx.New(time.Second, 0), "http://unused")
	eth := mustChain(t, "ethereum")
	_, err := c.QuoteSwap(context.Background(), providers.SwapRequest{
		Network: eth,
		Amount:  big.NewInt(1),
		Type:    model.QuoteTypeOutput,
		Wallet:  senderAddr,
	})
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepProviderValidation {
		t.Fatalf("expected PROVIDER_VALIDATION, got %v", err)
	}
}

func TestQuoteBridgeRejectsSolana(t *testing.T) {
	c := NewWithBaseURL(httpx.New(time.Second, 0), "http://unused")
	req := bridgeRequest(t)
	req.FromNetwork = mustChain(t, "solana")

	_, err := c.QuoteBridge(context.Background(), req)
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepProviderValidation {
		t.Fatalf("expected PROVIDER_VALIDATION, got %v", err)
	}
}

func TestQuoteBridgeValueBeyondUint64(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"estimate": {"fromAmount": "32000000000000000000", "toAmount": "31900000000000000000"},
			"transactionRequest": {
				"to": "` + diamondAddr + `",
				"data": "0xdeadbeef",
				"value": "0x1bc16d674ec800000"
			}
		}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(httpx.New(5*time.Second, 0), server.URL)
	quote, err := c.QuoteBridge(context.Background(), bridgeRequest(t))
	if err != nil {
		t.Fatalf("QuoteBridge: %v", err)
	}
	if quote.Tx.Value != "32000000000000000000" {
		t.Fatalf("value = %s, want 32000000000000000000", quote.Tx.Value)
	}
}

func TestQuoteBridgeUnparseableValueIsDataError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"estimate": {"fromAmount": "100000000", "toAmount": "99750000"},
			"transactionRequest": {
				"to": "` + diamondAddr + `",
				"data": "0xdeadbeef",
				"value": "0xnothex"
			}
		}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(httpx.New(time.Second, 0), server.URL)
	_, err := c.QuoteBridge(context.Background(), bridgeRequest(t))
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepDataRetrieval {
		t.Fatalf("expected DATA_RETRIEVAL, got %v", err)
	}
}

func TestQuoteBridgeMissingOutputIsPriceError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"estimate": {}}`))
	}))
	defer server.Close()

	c := NewWithBaseURL(httpx.New(time.Second, 0), server.URL)
	_, err := c.QuoteBridge(context.Background(), bridgeRequest(t))
	appErr, ok := apperr.As(err)
	if !ok || appErr.Step != apperr.StepPriceRetrieval {
		t.Fatalf("expected PRICE_RETRIEVAL, got %v", err)
	}
}
