package across

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
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/providers"
	"github.com/mrivas/defi-agent/internal/registry"
)

const defaultSlippageBps = 50

// Client is the Across bridge adapter for EVM networks. One call to the swap
// approval endpoint yields both the quote and the deposit transaction.
type Client struct {
	http    *httpx.Client
	baseURL string
}

func New(httpClient *httpx.Client) *Client {
	return &Client{http: httpClient, baseURL: registry.AcrossBaseURL}
}

// NewWithBaseURL is used by tests to point the adapter at a stub server.
func NewWithBaseURL(httpClient *httpx.Client, baseURL string) *Client {
	return &Client{http: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) Info() model.ProviderInfo {
	return model.ProviderInfo{
		Name:              "across",
		Capabilities:      []string{string(providers.CapabilityBridge)},
		SupportedNetworks: []string{"ethereum", "base", "arbitrum", "optimism", "polygon"},
	}
}

type swapApprovalResponse struct {
	SwapTx struct {
		ChainID int64  `json:"chainId"`
		To      string `json:"to"`
		Data    string `json:"data"`
		Value   string `json:"value"`
	} `json:"swapTx"`
	MinOutputAmount      string `json:"minOutputAmount"`
	ExpectedOutputAmount string `json:"expectedOutputAmount"`
	ExpectedFillTime     int64  `json:"expectedFillTime"`
}

func (c *Client) QuoteBridge(ctx context.Context, req providers.BridgeRequest) (model.Quote, error) {
	if !req.FromNetwork.IsEVM() || !req.ToNetwork.IsEVM() {
		return model.Quote{}, apperr.New(apperr.StepProviderValidation, "across supports only evm networks").
			WithDetail("network", req.FromNetwork.CAIP2)
	}
	sender := strings.TrimSpace(req.Sender)
	if !common.IsHexAddress(sender) {
		return model.Quote{}, apperr.New(apperr.StepWalletAccess, "across quotes require a valid sender address")
	}
	recipient := strings.TrimSpace(req.Recipient)
	if recipient == "" {
		recipient = sender
	}
	if !common.IsHexAddress(recipient) {
		return model.Quote{}, apperr.New(apperr.StepToolExecution, "invalid bridge recipient address")
	}
	slippage := req.SlippageBps
	if slippage <= 0 {
		slippage = defaultSlippageBps
	}

	vals := url.Values{}
	vals.Set("amount", req.Amount.String())
	vals.Set("inputToken", req.FromToken.Address)
	vals.Set("outputToken", req.ToToken.Address)
	vals.Set("originChainId", strconv.FormatInt(req.FromNetwork.EVMChainID, 10))
	vals.Set("destinationChainId", strconv.FormatInt(req.ToNetwork.EVMChainID, 10))
	vals.Set("depositor", sender)
	vals.Set("recipient", recipient)
	vals.Set("slippage", strconv.FormatFloat(float64(slippage)/100, 'f', -1, 64))

	endpoint := c.baseURL + "/swap/approval?" + vals.Encode()
	hReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.Quote{}, apperr.Wrap(apperr.StepExecution, "build across quote request", err)
	}
	var resp swapApprovalResponse
	if _, err := c.http.DoJSON(ctx, hReq, &resp); err != nil {
		return model.Quote{}, err
	}
	if strings.TrimSpace(resp.SwapTx.To) == "" || strings.TrimSpace(resp.SwapTx.Data) == "" {
		return model.Quote{}, apperr.New(apperr.StepDataRetrieval, "across response missing deposit transaction")
	}
	if resp.SwapTx.ChainID != 0 && resp.SwapTx.ChainID != req.FromNetwork.EVMChainID {
		return model.Quote{}, apperr.New(apperr.StepDataRetrieval, "across deposit transaction targets the wrong chain")
	}
	toAmount := strings.TrimSpace(resp.ExpectedOutputAmount)
	if toAmount == "" {
		toAmount = strings.TrimSpace(resp.MinOutputAmount)
	}
	if toAmount == "" {
		return model.Quote{}, apperr.New(apperr.StepPriceRetrieval, "across quote missing output amount")
	}

	value, err := normalizeValue(resp.SwapTx.Value)
	if err != nil {
		return model.Quote{}, err
	}

	target := common.HexToAddress(resp.SwapTx.To).Hex()
	return model.Quote{
		Network:     req.FromNetwork.CAIP2,
		Provider:    "across",
		FromToken:   req.FromToken,
		ToToken:     req.ToToken,
		FromAmount:  req.Amount.String(),
		ToAmount:    toAmount,
		Type:        model.QuoteTypeInput,
		SlippageBps: slippage,
		Route:       []string{"Across"},
		Spender:     target,
		Tx: model.TransactionPayload{
			To:      target,
			Data:    ensureHexPrefix(resp.SwapTx.Data),
			Value:   value,
			Network: req.FromNetwork.CAIP2,
		},
	}, nil
}

func ensureHexPrefix(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		return v
	}
	return "0x" + v
}

// normalizeValue converts a hex-quantity deposit value into a decimal string,
// passing plain decimals through. Arbitrary precision: native deposits can
// exceed the uint64 range, and an unparseable value fails the quote instead of
// submitting a different amount.
func normalizeValue(v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "0", nil
	}
	if strings.HasPrefix(v, "0x") || strings.HasPrefix(v, "0X") {
		parsed, ok := new(big.Int).SetString(v[2:], 16)
		if !ok {
			return "", apperr.New(apperr.StepDataRetrieval, "across deposit transaction carries an unparseable value").
				WithDetail("value", v)
		}
		return parsed.String(), nil
	}
	return v, nil
}
