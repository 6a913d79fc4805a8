package executor

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/mrivas/defi-agent/internal/chain"
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
	"github.com/mrivas/defi-agent/internal/wallet"
)

// Executor submits built payloads through the wallet. It never retries on its
// own: a failed submission surfaces as a structured error for the caller to
// decide on.
type Executor struct {
	wallet wallet.Wallet
	log    *logrus.Entry
}

func New(w wallet.Wallet, log *logrus.Entry) *Executor {
	return &Executor{wallet: w, log: log}
}

// Execute signs and broadcasts the payload, returning a receipt to wait on.
func (e *Executor) Execute(ctx context.Context, network id.Chain, payload model.TransactionPayload) (chain.Receipt, error) {
	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"network": network.Slug,
			"to":      payload.To,
			"value":   payload.Value,
		}).Info("submitting transaction")
	}
	receipt, err := e.wallet.SignAndSendTransaction(ctx, network, payload)
	if err != nil {
		return nil, apperr.Classify(err, "submit transaction")
	}
	if e.log != nil {
		e.log.WithFields(logrus.Fields{
			"network":          network.Slug,
			"transaction_hash": receipt.Hash(),
		}).Info("transaction broadcast")
	}
	return receipt, nil
}

// ExecuteAndWait submits the payload and blocks until the chain confirms it.
func (e *Executor) ExecuteAndWait(ctx context.Context, network id.Chain, payload model.TransactionPayload) (string, error) {
	receipt, err := e.Execute(ctx, network, payload)
	if err != nil {
		return "", err
	}
	if err := receipt.Wait(ctx); err != nil {
		return receipt.Hash(), err
	}
	if e.log != nil {
		e.log.WithField("transaction_hash", receipt.Hash()).Info("transaction confirmed")
	}
	return receipt.Hash(), nil
}
