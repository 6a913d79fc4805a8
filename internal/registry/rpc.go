package registry

import (
	"fmt"
	"strings"
)

// Canonical default RPC endpoints by EVM chain ID. Used whenever the config
// carries no rpc.endpoints override for a network.
var defaultRPCByChainID = map[int64]string{
	1:     "https://eth.llamarpc.com",
	10:    "https://mainnet.optimism.io",
	56:    "https://bsc-dataseed.binance.org",
	137:   "https://polygon-rpc.com",
	8453:  "https://mainnet.base.org",
	42161: "https://arb1.arbitrum.io/rpc",
}

// DefaultSolanaRPCURL is the public mainnet endpoint used when no override is
// configured.
const DefaultSolanaRPCURL = "https://api.mainnet-beta.solana.com"

func DefaultRPCURL(chainID int64) (string, bool) {
	value, ok := defaultRPCByChainID[chainID]
	return value, ok
}

func ResolveRPCURL(override string, chainID int64) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if value, ok := DefaultRPCURL(chainID); ok {
		return value, nil
	}
	return "", fmt.Errorf("no default rpc configured for chain id %d; provide an rpc override", chainID)
}

func ResolveSolanaRPCURL(override string) string {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override)
	}
	return DefaultSolanaRPCURL
}
