// Package chain defines the contracts the orchestration engine uses to read
// on-chain state and track submitted transactions, implemented per namespace
// by the evm and solana subpackages.
package chain

import (
	"context"
	"math/big"
)

// Reader exposes the balance reads the gas adjuster and balance validator
// depend on. Implementations are pure reads against live chain state.
type Reader interface {
	// NativeBalance returns the wallet's native-currency balance in base units.
	NativeBalance(ctx context.Context, address string) (*big.Int, error)
	// TokenBalance returns the wallet's balance of the given token in base
	// units. tokenAddress is never the native sentinel.
	TokenBalance(ctx context.Context, address, tokenAddress string) (*big.Int, error)
}

// Receipt tracks one submitted transaction. Wait blocks until the chain's
// inclusion/finality semantics are met or ctx expires.
type Receipt interface {
	Hash() string
	Wait(ctx context.Context) error
}
