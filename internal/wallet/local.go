package wallet

import (
	"context"
	"sync"

	sol "github.com/gagliardetto/solana-go"

	"github.com/mrivas/defi-agent/internal/chain"
	"github.com/mrivas/defi-agent/internal/chain/evm"
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

// LocalWallet signs with locally held keys. Keys are loaded lazily per
// namespace so a Solana-only session never requires an EVM key and vice
// versa.
type LocalWallet struct {
	pool       *chain.Pool
	keySource  string
	submitOpts evm.SubmitOptions

	evmOnce   sync.Once
	evmSigner *EVMSigner
	evmErr    error

	solOnce sync.Once
	solKey  sol.PrivateKey
	solErr  error
}

type LocalWalletOptions struct {
	KeySource     string
	SubmitOptions evm.SubmitOptions
}

func NewLocalWallet(pool *chain.Pool, opts LocalWalletOptions) *LocalWallet {
	return &LocalWallet{
		pool:       pool,
		keySource:  opts.KeySource,
		submitOpts: opts.SubmitOptions,
	}
}

func (w *LocalWallet) evm() (*EVMSigner, error) {
	w.evmOnce.Do(func() {
		w.evmSigner, w.evmErr = NewEVMSignerFromEnv(w.keySource)
	})
	if w.evmErr != nil {
		return nil, apperr.Wrap(apperr.StepWalletAccess, "load evm signing key", w.evmErr)
	}
	return w.evmSigner, nil
}

func (w *LocalWallet) solana() (sol.PrivateKey, error) {
	w.solOnce.Do(func() {
		w.solKey, w.solErr = loadSolanaKey()
	})
	if w.solErr != nil {
		return nil, apperr.Wrap(apperr.StepWalletAccess, "load solana signing key", w.solErr)
	}
	return w.solKey, nil
}

func (w *LocalWallet) Address(network id.Chain) (string, error) {
	if network.IsSolana() {
		key, err := w.solana()
		if err != nil {
			return "", err
		}
		return key.PublicKey().String(), nil
	}
	signer, err := w.evm()
	if err != nil {
		return "", err
	}
	return signer.AddressHex(), nil
}

func (w *LocalWallet) SignAndSendTransaction(ctx context.Context, network id.Chain, payload model.TransactionPayload) (chain.Receipt, error) {
	if network.IsSolana() {
		key, err := w.solana()
		if err != nil {
			return nil, err
		}
		return w.pool.Solana().Submit(ctx, key, payload)
	}
	signer, err := w.evm()
	if err != nil {
		return nil, err
	}
	client, err := w.pool.EVM(ctx, network)
	if err != nil {
		return nil, err
	}
	return client.Submit(ctx, signer, payload, w.submitOpts)
}
