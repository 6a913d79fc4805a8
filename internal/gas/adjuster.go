package gas

import (
	"context"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/mrivas/defi-agent/internal/chain"
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
)

// Per-namespace gas buffers in native base units. These are withheld from
// native spends so the wallet can still pay fees after the transaction.
var (
	// 0.0003 SOL covers several transaction fees plus rent-exempt minimums.
	solanaBuffer = big.NewInt(300_000)
	// 0.0005 in 18-decimal native units (ETH, BNB, POL).
	evmBuffer = big.NewInt(500_000_000_000_000)
)

// BufferFor returns the gas buffer for a network's native currency.
func BufferFor(network id.Chain) *big.Int {
	if network.IsSolana() {
		return new(big.Int).Set(solanaBuffer)
	}
	return new(big.Int).Set(evmBuffer)
}

// ReaderSource hands out the balance reader for a network.
type ReaderSource func(ctx context.Context, network id.Chain) (chain.Reader, error)

// Adjuster shrinks native-currency spend amounts so the gas buffer survives
// the debit. Non-native amounts pass through untouched.
type Adjuster struct {
	readerFor ReaderSource
	log       *logrus.Entry
}

func NewAdjuster(readerFor ReaderSource, log *logrus.Entry) *Adjuster {
	return &Adjuster{readerFor: readerFor, log: log}
}

// Adjust returns the amount to actually spend. For the native currency it
// reads the live balance and caps the spend at balance minus buffer; it never
// fails on a shortfall alone — a zero result is handed to balance validation
// to reject with a clear message. Side-effect-free beyond the balance read.
func (a *Adjuster) Adjust(ctx context.Context, network id.Chain, tokenAddress string, requested *big.Int, walletAddress string) (*big.Int, error) {
	if requested == nil || requested.Sign() < 0 {
		return nil, apperr.New(apperr.StepToolExecution, "amount must be a non-negative integer")
	}
	if !network.IsNativeAsset(tokenAddress) {
		return new(big.Int).Set(requested), nil
	}

	reader, err := a.readerFor(ctx, network)
	if err != nil {
		return nil, err
	}
	balance, err := reader.NativeBalance(ctx, walletAddress)
	if err != nil {
		return nil, err
	}

	buffer := BufferFor(network)
	spendable := new(big.Int).Sub(balance, buffer)
	if spendable.Sign() < 0 {
		spendable.SetInt64(0)
	}
	if requested.Cmp(spendable) <= 0 {
		return new(big.Int).Set(requested), nil
	}
	if a.log != nil {
		a.log.WithFields(logrus.Fields{
			"network":   network.Slug,
			"requested": requested.String(),
			"adjusted":  spendable.String(),
			"buffer":    buffer.String(),
		}).Info("reduced native spend to preserve gas buffer")
	}
	return spendable, nil
}
