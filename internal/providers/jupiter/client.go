package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/httpx"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/providers"
	"github.com/mrivas/defi-agent/internal/registry"
)

const defaultSlippageBps = 50

// Client is the Jupiter swap adapter for Solana mainnet. The quote call also
// builds the swap transaction, so the stored quote embeds the exact payload
// to sign.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

func New(httpClient *httpx.Client, apiKey string) *Client {
	apiKey = strings.TrimSpace(apiKey)
	baseURL := registry.JupiterLiteBaseURL
	if apiKey != "" {
		baseURL = registry.JupiterProBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: baseURL,
		apiKey:  apiKey,
	}
}

// NewWithBaseURL is used by tests to point the adapter at a stub server.
func NewWithBaseURL(httpClient *httpx.Client, baseURL, apiKey string) *Client {
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  strings.TrimSpace(apiKey),
	}
}

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:              "jupiter",
		Capabilities:      []string{string(providers.CapabilitySwap)},
		SupportedNetworks: []string{id.SolanaMainnetCAIP2},
	}
}

type quoteResponse struct {
	InAmount       string `json:"inAmount"`
	OutAmount      string `json:"outAmount"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			Label string `json:"label"`
		} `json:"swapInfo"`
	} `json:"routePlan"`
}

type swapResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

func (c *Client) QuoteSwap(ctx context.Context, req providers.SwapRequest) (model.Quote, error) {
	if !req.Network.IsSolana() {
		return model.Quote{}, apperr.New(apperr.StepProviderValidation, "jupiter supports only solana").
			WithDetail("network", req.Network.CAIP2)
	}
	if strings.TrimSpace(req.Wallet) == "" {
		return model.Quote{}, apperr.New(apperr.StepWalletAccess, "jupiter swaps require a wallet address")
	}

	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = defaultSlippageBps
	}

	vals := url.Values{}
	vals.Set("inputMint", req.FromToken.Address)
	vals.Set("outputMint", req.ToToken.Address)
	vals.Set("amount", req.Amount.String())
	vals.Set("slippageBps", strconv.FormatInt(slippage, 10))
	if req.Type == model.QuoteTypeOutput {
		vals.Set("swapMode", "ExactOut")
	}

	endpoint := fmt.Sprintf("%s/quote?%s", strings.TrimRight(c.baseURL, "/"), vals.Encode())
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Quote{}, apperr.Wrap(apperr.StepExecution, "build jupiter quote request", err)
	}
	if c.apiKey != "" {
		hReq.Header.Set("x-api-key", c.apiKey)
	}

	// The raw quote body is echoed back verbatim in the swap-build call, so
	// keep it alongside the decoded form.
	var raw json.RawMessage
	if _, err := c.http.DoJSON(ctx, hReq, &raw); err != nil {
		return model.Quote{}, err
	}
	var resp quoteResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return model.Quote{}, apperr.Wrap(apperr.StepDataRetrieval, "decode jupiter quote", err)
	}
	if strings.TrimSpace(resp.OutAmount) == "" || strings.TrimSpace(resp.InAmount) == "" {
		return model.Quote{}, apperr.New(apperr.StepPriceRetrieval, "jupiter quote missing amounts")
	}

	tx, err := c.buildSwap(ctx, raw, req.Wallet)
	if err != nil {
		return model.Quote{}, err
	}
	tx.Network = req.Network.CAIP2

	return model.Quote{
		Network:     req.Network.CAIP2,
		Provider:    "jupiter",
		FromToken:   req.FromToken,
		ToToken:     req.ToToken,
		FromAmount:  resp.InAmount,
		ToAmount:    resp.OutAmount,
		Type:        req.Type,
		SlippageBps: slippage,
		PriceImpact: parsePriceImpactPct(resp.PriceImpactPct),
		Route:       routeFromPlan(resp.RoutePlan),
		Tx:          tx,
	}, nil
}

func (c *Client) buildSwap(ctx context.Context, rawQuote json.RawMessage, wallet string) (model.TransactionPayload, error) {
	body := map[string]any{
		"quoteResponse":    rawQuote,
		"userPublicKey":    wallet,
		"wrapAndUnwrapSol": true,
	}
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["x-api-key"] = c.apiKey
	}
	var resp swapResponse
	endpoint := strings.TrimRight(c.baseURL, "/") + "/swap"
	if _, err := c.http.PostJSON(ctx, endpoint, body, headers, &resp); err != nil {
		return model.TransactionPayload{}, err
	}
	if strings.TrimSpace(resp.SwapTransaction) == "" {
		return model.TransactionPayload{}, apperr.New(apperr.StepDataRetrieval, "jupiter swap build missing transaction")
	}
	return model.TransactionPayload{
		Data:                 resp.SwapTransaction,
		Value:                "0",
		LastValidBlockHeight: resp.LastValidBlockHeight,
	}, nil
}

func parsePriceImpactPct(v string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func routeFromPlan(plan []struct {
	SwapInfo struct {
		Label string `json:"label"`
	} `json:"swapInfo"`
}) []string {
	var parts []string
	for _, hop := range plan {
		label := strings.TrimSpace(hop.SwapInfo.Label)
		if label == "" {
			continue
		}
		if len(parts) == 0 || parts[len(parts)-1] != label {
			parts = append(parts, label)
		}
	}
	return parts
}
