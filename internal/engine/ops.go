package engine

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/history"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/providers"
)

type SwapParams struct {
	Network     string
	FromToken   string
	ToToken     string
	Amount      string
	Type        model.QuoteType
	SlippageBps int64
	Provider    string
}

type BridgeParams struct {
	FromNetwork string
	ToNetwork   string
	FromToken   string
	ToToken     string
	Amount      string
	Recipient   string
	SlippageBps int64
	Provider    string
}

type StakeParams struct {
	Network  string
	Token    string
	Amount   string
	Provider string
}

type TransferParams struct {
	Network   string
	Token     string
	Amount    string
	Recipient string
}

// QuoteSwap resolves, adjusts, and quotes a same-chain conversion, storing
// the result for later execution. Without an explicit provider, candidates
// are tried in registration order and backend outages fall through to the
// next one.
func (e *Engine) QuoteSwap(ctx context.Context, p SwapParams) (model.Quote, error) {
	network, err := id.ParseChain(p.Network)
	if err != nil {
		return model.Quote{}, err
	}
	walletAddr, err := e.wallet.Address(network)
	if err != nil {
		return model.Quote{}, err
	}
	fromToken, err := e.resolver.Resolve(ctx, network, p.FromToken)
	if err != nil {
		return model.Quote{}, err
	}
	toToken, err := e.resolver.Resolve(ctx, network, p.ToToken)
	if err != nil {
		return model.Quote{}, err
	}
	quoteType := p.Type
	if quoteType == "" {
		quoteType = model.QuoteTypeInput
	}

	amountDecimals := fromToken.Decimals
	if quoteType == model.QuoteTypeOutput {
		amountDecimals = toToken.Decimals
	}
	amount, err := id.ParseBaseUnits(p.Amount, amountDecimals)
	if err != nil {
		return model.Quote{}, err
	}
	if quoteType == model.QuoteTypeInput {
		amount, err = e.adjuster.Adjust(ctx, network, fromToken.Address, amount, walletAddr)
		if err != nil {
			return model.Quote{}, err
		}
	}

	candidates, err := e.selectSwapProvider(network, p.Provider)
	if err != nil {
		return model.Quote{}, err
	}
	req := providers.SwapRequest{
		Network:     network,
		FromToken:   fromToken,
		ToToken:     toToken,
		Amount:      amount,
		Type:        quoteType,
		SlippageBps: p.SlippageBps,
		Wallet:      walletAddr,
	}
	q, err := quoteWithFallback(candidates, func(sp providers.SwapProvider) (model.Quote, error) {
		return sp.QuoteSwap(ctx, req)
	})
	if err != nil {
		return model.Quote{}, err
	}
	return e.quotes.Put(q), nil
}

// Swap quotes and immediately executes.
func (e *Engine) Swap(ctx context.Context, p SwapParams) (model.SuccessEnvelope, error) {
	q, err := e.QuoteSwap(ctx, p)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	return e.executeQuote(ctx, q, "swap")
}

func (e *Engine) QuoteBridge(ctx context.Context, p BridgeParams) (model.Quote, error) {
	fromNetwork, err := id.ParseChain(p.FromNetwork)
	if err != nil {
		return model.Quote{}, err
	}
	toNetwork, err := id.ParseChain(p.ToNetwork)
	if err != nil {
		return model.Quote{}, err
	}
	sender, err := e.wallet.Address(fromNetwork)
	if err != nil {
		return model.Quote{}, err
	}
	fromToken, err := e.resolver.Resolve(ctx, fromNetwork, p.FromToken)
	if err != nil {
		return model.Quote{}, err
	}
	toToken, err := e.resolver.Resolve(ctx, toNetwork, p.ToToken)
	if err != nil {
		return model.Quote{}, err
	}
	amount, err := id.ParseBaseUnits(p.Amount, fromToken.Decimals)
	if err != nil {
		return model.Quote{}, err
	}
	amount, err = e.adjuster.Adjust(ctx, fromNetwork, fromToken.Address, amount, sender)
	if err != nil {
		return model.Quote{}, err
	}

	candidates, err := e.selectBridgeProvider(fromNetwork, p.Provider)
	if err != nil {
		return model.Quote{}, err
	}
	req := providers.BridgeRequest{
		FromNetwork: fromNetwork,
		ToNetwork:   toNetwork,
		FromToken:   fromToken,
		ToToken:     toToken,
		Amount:      amount,
		Sender:      sender,
		Recipient:   p.Recipient,
		SlippageBps: p.SlippageBps,
	}
	q, err := quoteWithFallback(candidates, func(bp providers.BridgeProvider) (model.Quote, error) {
		return bp.QuoteBridge(ctx, req)
	})
	if err != nil {
		return model.Quote{}, err
	}
	return e.quotes.Put(q), nil
}

func (e *Engine) Bridge(ctx context.Context, p BridgeParams) (model.SuccessEnvelope, error) {
	q, err := e.QuoteBridge(ctx, p)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	return e.executeQuote(ctx, q, "bridge")
}

func (e *Engine) QuoteStake(ctx context.Context, p StakeParams) (model.Quote, error) {
	return e.quoteStaking(ctx, p, false)
}

func (e *Engine) QuoteUnstake(ctx context.Context, p StakeParams) (model.Quote, error) {
	return e.quoteStaking(ctx, p, true)
}

func (e *Engine) quoteStaking(ctx context.Context, p StakeParams, unstake bool) (model.Quote, error) {
	network, err := id.ParseChain(p.Network)
	if err != nil {
		return model.Quote{}, err
	}
	walletAddr, err := e.wallet.Address(network)
	if err != nil {
		return model.Quote{}, err
	}
	token, err := e.resolver.Resolve(ctx, network, p.Token)
	if err != nil {
		return model.Quote{}, err
	}
	amount, err := id.ParseBaseUnits(p.Amount, token.Decimals)
	if err != nil {
		return model.Quote{}, err
	}
	if !unstake {
		amount, err = e.adjuster.Adjust(ctx, network, token.Address, amount, walletAddr)
		if err != nil {
			return model.Quote{}, err
		}
	}

	staker, err := e.selectStakingProvider(network, p.Provider)
	if err != nil {
		return model.Quote{}, err
	}
	req := providers.StakeRequest{
		Network: network,
		Token:   token,
		Amount:  amount,
		Wallet:  walletAddr,
	}
	var q model.Quote
	if unstake {
		q, err = staker.QuoteUnstake(ctx, req)
	} else {
		q, err = staker.QuoteStake(ctx, req)
	}
	if err != nil {
		return model.Quote{}, apperr.Classify(err, "quote staking operation")
	}
	return e.quotes.Put(q), nil
}

func (e *Engine) Stake(ctx context.Context, p StakeParams) (model.SuccessEnvelope, error) {
	q, err := e.QuoteStake(ctx, p)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	return e.executeQuote(ctx, q, "stake")
}

func (e *Engine) Unstake(ctx context.Context, p StakeParams) (model.SuccessEnvelope, error) {
	q, err := e.QuoteUnstake(ctx, p)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	return e.executeQuote(ctx, q, "unstake")
}

// GetQuote returns a stored, unexpired quote.
func (e *Engine) GetQuote(quoteID string) (model.Quote, error) {
	return e.quotes.Get(quoteID)
}

// ExecuteQuote executes a previously stored quote. The stored payload is used
// byte for byte, so executing the same quote id twice submits the identical
// transaction body.
func (e *Engine) ExecuteQuote(ctx context.Context, quoteID string) (model.SuccessEnvelope, error) {
	q, err := e.quotes.Get(quoteID)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	return e.executeQuote(ctx, q, "execute")
}

// quoteWithFallback tries candidates in order, falling through on
// availability-class failures only. The last failure is returned when every
// candidate is down.
func quoteWithFallback[P any](candidates []P, call func(P) (model.Quote, error)) (model.Quote, error) {
	var lastErr error
	for _, candidate := range candidates {
		q, err := call(candidate)
		if err == nil {
			return q, nil
		}
		if !retriable(err) {
			return model.Quote{}, apperr.Classify(err, "quote request failed")
		}
		lastErr = err
	}
	return model.Quote{}, apperr.Classify(lastErr, "all providers failed")
}

func (e *Engine) executeQuote(ctx context.Context, q model.Quote, operation string) (model.SuccessEnvelope, error) {
	network, err := id.ParseChain(q.Network)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	walletAddr, err := e.wallet.Address(network)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}

	verdict, err := e.validator.Check(ctx, q, walletAddr)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	if !verdict.IsValid {
		return model.SuccessEnvelope{}, apperr.New(apperr.StepToolExecution, verdict.Message).
			WithDetail("quote_id", q.QuoteID)
	}

	if err := e.ensureAllowance(ctx, network, q, walletAddr); err != nil {
		return model.SuccessEnvelope{}, err
	}

	receipt, err := e.executor.Execute(ctx, network, q.Tx)
	if err != nil {
		return model.SuccessEnvelope{}, err
	}
	hash := receipt.Hash()
	if err := receipt.Wait(ctx); err != nil {
		e.record(history.Record{
			Operation:       operation,
			Network:         q.Network,
			Provider:        q.Provider,
			Status:          history.StatusFailed,
			TransactionHash: hash,
			FromSymbol:      q.FromToken.Symbol,
			ToSymbol:        q.ToToken.Symbol,
			ErrorStep:       string(stepOf(err)),
		})
		return model.SuccessEnvelope{}, err
	}

	e.record(history.Record{
		Operation:       operation,
		Network:         q.Network,
		Provider:        q.Provider,
		Status:          history.StatusConfirmed,
		TransactionHash: hash,
		FromSymbol:      q.FromToken.Symbol,
		ToSymbol:        q.ToToken.Symbol,
		FromAmount:      q.FromAmount,
		ToAmount:        q.ToAmount,
	})
	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"operation":        operation,
			"provider":         q.Provider,
			"network":          network.Slug,
			"transaction_hash": hash,
		}).Info("operation confirmed")
	}
	return successEnvelope(q, hash), nil
}

// ensureAllowance runs the approve-before-spend stage: when the spender's
// current allowance is short, the approval transaction executes and confirms
// before the spend is submitted. A partial failure after approval leaves the
// allowance increased, so retrying the spend alone is safe.
func (e *Engine) ensureAllowance(ctx context.Context, network id.Chain, q model.Quote, owner string) error {
	if !e.allowance.Applicable(network, q.FromToken.Address, q.Spender) {
		return nil
	}
	required, ok := new(big.Int).SetString(q.FromAmount, 10)
	if !ok {
		return apperr.New(apperr.StepToolExecution, "quote carries an invalid spend amount").
			WithDetail("from_amount", q.FromAmount)
	}
	current, err := e.allowance.CheckAllowance(ctx, network, q.FromToken.Address, owner, q.Spender)
	if err != nil {
		return err
	}
	if current.Cmp(required) >= 0 {
		return nil
	}

	approval, err := e.allowance.BuildApprove(network, q.FromToken.Address, q.Spender, required)
	if err != nil {
		return err
	}
	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"token":   q.FromToken.Symbol,
			"spender": q.Spender,
			"amount":  required.String(),
		}).Info("granting allowance before spend")
	}
	receipt, err := e.executor.Execute(ctx, network, approval)
	if err != nil {
		return err
	}
	return receipt.Wait(ctx)
}

func (e *Engine) record(record history.Record) {
	if e.journal == nil {
		return
	}
	if _, err := e.journal.Append(record); err != nil && e.log != nil {
		e.log.WithError(err).Warn("failed to journal execution")
	}
}

func stepOf(err error) apperr.Step {
	if structured, ok := apperr.As(err); ok {
		return structured.Step
	}
	return apperr.StepUnknown
}
