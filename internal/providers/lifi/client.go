package lifi

import (
	"context"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/httpx"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/providers"
	"github.com/mrivas/defi-agent/internal/registry"
)

const defaultSlippageBps = 50

// Client is the LI.FI adapter. It serves cross-chain bridge quotes and
// same-chain swap quotes on EVM networks; each quote carries the transaction
// request to submit and the approval address to grant allowance to.
type Client struct {
	http    *httpx.Client
	baseURL string
	apiKey  string
}

// New builds the adapter. The API key is optional; LI.FI rate-limits keyless
// traffic more aggressively.
func New(httpClient *httpx.Client, apiKey string) *Client {
	return &Client{http: httpClient, baseURL: registry.LiFiBaseURL, apiKey: strings.TrimSpace(apiKey)}
}

// NewWithBaseURL is used by tests to point the adapter at a stub server.
func NewWithBaseURL(httpClient *httpx.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name: "lifi",
		Capabilities: []string{
			string(providers.CapabilitySwap),
			string(providers.CapabilityBridge),
		},
		SupportedNetworks: []string{"ethereum", "base", "arbitrum", "optimism", "polygon", "bsc"},
	}
}

type quoteResponse struct {
	Estimate struct {
		FromAmount      string `json:"fromAmount"`
		ToAmount        string `json:"toAmount"`
		ApprovalAddress string `json:"approvalAddress"`
	} `json:"estimate"`
	ToolDetails struct {
		Name string `json:"name"`
	} `json:"toolDetails"`
	TransactionRequest struct {
		To       string `json:"to"`
		Data     string `json:"data"`
		Value    string `json:"value"`
		GasLimit string `json:"gasLimit"`
	} `json:"transactionRequest"`
}

func (c *Client) QuoteSwap(ctx context.Context, req providers.SwapRequest) (model.Quote, error) {
	if req.Type == model.QuoteTypeOutput {
		return model.Quote{}, apperr.New(apperr.StepProviderValidation, "lifi quotes fix the input amount only")
	}
	quote, err := c.quote(ctx, req.Network, req.Network, req.FromToken, req.ToToken,
		req.Amount.String(), req.Wallet, req.Wallet, req.SlippageBps)
	if err != nil {
		return model.Quote{}, err
	}
	quote.Type = model.QuoteTypeInput
	return quote, nil
}

func (c *Client) QuoteBridge(ctx context.Context, req providers.BridgeRequest) (model.Quote, error) {
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		recipient = req.Sender
	}
	quote, err := c.quote(ctx, req.FromNetwork, req.ToNetwork, req.FromToken, req.ToToken,
		req.Amount.String(), req.Sender, recipient, req.SlippageBps)
	if err != nil {
		return model.Quote{}, err
	}
	quote.Type = model.QuoteTypeInput
	return quote, nil
}

func (c *Client) quote(ctx context.Context, fromNetwork, toNetwork id.Chain, fromToken, toToken model.Token, amount, sender, recipient string, slippageBps int64) (model.Quote, error) {
	if !fromNetwork.IsEVM() || !toNetwork.IsEVM() {
		return model.Quote{}, apperr.New(apperr.StepProviderValidation, "lifi supports only evm networks").
			WithDetail("network", fromNetwork.CAIP2)
	}
	sender = strings.TrimSpace(sender)
	if !common.IsHexAddress(sender) {
		return model.Quote{}, apperr.New(apperr.StepWalletAccess, "lifi quotes require a valid sender address")
	}
	if slippageBps <= 0 {
		slippageBps = defaultSlippageBps
	}

	vals := url.Values{}
	vals.Set("fromChain", strconv.FormatInt(fromNetwork.EVMChainID, 10))
	vals.Set("toChain", strconv.FormatInt(toNetwork.EVMChainID, 10))
	vals.Set("fromToken", fromToken.Address)
	vals.Set("toToken", toToken.Address)
	vals.Set("fromAmount", amount)
	vals.Set("fromAddress", sender)
	if recipient != "" && !strings.EqualFold(recipient, sender) {
		vals.Set("toAddress", recipient)
	}
	vals.Set("slippage", strconv.FormatFloat(float64(slippageBps)/10_000, 'f', -1, 64))

	endpoint := c.baseURL + "/quote?" + vals.Encode()
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Quote{}, apperr.Wrap(apperr.StepExecution, "build lifi quote request", err)
	}
	if c.apiKey != "" {
		hReq.Header.Set("x-lifi-api-key", c.apiKey)
	}
	var resp quoteResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return model.Quote{}, err
	}
	if strings.TrimSpace(resp.Estimate.ToAmount) == "" {
		return model.Quote{}, apperr.New(apperr.StepPriceRetrieval, "lifi quote missing output amount")
	}
	if strings.TrimSpace(resp.TransactionRequest.To) == "" {
		return model.Quote{}, apperr.New(apperr.StepDataRetrieval, "lifi quote missing transaction request")
	}

	fromAmount := strings.TrimSpace(resp.Estimate.FromAmount)
	if fromAmount == "" {
		fromAmount = amount
	}
	value, err := normalizeValue(resp.TransactionRequest.Value)
	if err != nil {
		return model.Quote{}, err
	}
	gasLimit := normalizeGasLimit(resp.TransactionRequest.GasLimit)

	spender := strings.TrimSpace(resp.Estimate.ApprovalAddress)
	if spender == "" {
		spender = resp.TransactionRequest.To
	}

	var route []string
	if tool := strings.TrimSpace(resp.ToolDetails.Name); tool != "" {
		route = []string{tool}
	}

	return model.Quote{
		Network:      fromNetwork.CAIP2,
		Provider:     "lifi",
		FromToken:    fromToken,
		ToToken:      toToken,
		FromAmount:   fromAmount,
		ToAmount:     resp.Estimate.ToAmount,
		SlippageBps:  slippageBps,
		Route:        route,
		EstimatedGas: gasLimit,
		Spender:      spender,
		Tx: model.TransactionPayload{
			To:       resp.TransactionRequest.To,
			Data:     resp.TransactionRequest.Data,
			Value:    value,
			GasLimit: gasLimit,
			Network:  fromNetwork.CAIP2,
		},
	}, nil
}

// normalizeValue converts the hex-quantity value LI.FI returns into a decimal
// string, passing plain decimals through. Values are arbitrary-precision: a
// native spend can exceed the uint64 range, and an unparseable value must fail
// the quote rather than silently submit a different amount.
func normalizeValue(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "0", nil
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		parsed, ok := new(big.Int).SetString(v[2:], 16)
		if !ok {
			return "", apperr.New(apperr.StepDataRetrieval, "lifi transaction request carries an unparseable value").
				WithDetail("value", v)
		}
		return parsed.String(), nil
	}
	return v, nil
}

func normalizeGasLimit(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		parsed, err := strconv.ParseUint(v[2:], 16, 64)
		if err != nil {
			return ""
		}
		return strconv.FormatUint(parsed, 10)
	}
	if _, err := strconv.ParseUint(v, 10, 64); err != nil {
		return ""
	}
	return v
}
