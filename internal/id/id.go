package id

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	apperr "github.com/mrivas/defi-agent/internal/errors"
)

var (
	eip155ChainPattern     = regexp.MustCompile(`^eip155:[0-9]+$`)
	solanaChainPattern     = regexp.MustCompile(`^solana:[1-9A-HJ-NP-Za-km-z]{32,44}$`)
	evmAddressPattern      = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	solanaTokenMintPattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// Native-currency sentinels. A spend of the native asset is requested with
// these addresses; providers and the gas adjuster special-case them.
const (
	NativeEVMSentinel    = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"
	NativeSolanaSentinel = "So11111111111111111111111111111111111111112"
)

const solanaMainnetRef = "5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"

const SolanaMainnetCAIP2 = "solana:" + solanaMainnetRef

// Chain identifies one supported network. CAIP2 is the canonical identifier
// used throughout the engine; EVMChainID is zero for non-EVM chains.
type Chain struct {
	Name           string
	Slug           string
	CAIP2          string
	EVMChainID     int64
	NativeSymbol   string
	NativeDecimals int
}

func (c Chain) Namespace() string {
	parts := strings.SplitN(strings.TrimSpace(c.CAIP2), ":", 2)
	if len(parts) != 2 {
		return ""
	}
	return strings.ToLower(parts[0])
}

func (c Chain) IsEVM() bool {
	return c.Namespace() == "eip155"
}

func (c Chain) IsSolana() bool {
	return c.Namespace() == "solana"
}

// NativeSentinel returns the native-currency placeholder address for the
// chain's namespace.
func (c Chain) NativeSentinel() string {
	if c.IsSolana() {
		return NativeSolanaSentinel
	}
	return NativeEVMSentinel
}

// IsNativeAsset reports whether address denotes the chain's native currency.
// On Solana the wrapped-SOL mint doubles as the native sentinel, matching how
// swap backends address SOL.
func (c Chain) IsNativeAsset(address string) bool {
	addr := strings.TrimSpace(address)
	if addr == "" {
		return true
	}
	if c.IsSolana() {
		return addr == NativeSolanaSentinel
	}
	if strings.EqualFold(addr, NativeEVMSentinel) {
		return true
	}
	return addr == "0x0000000000000000000000000000000000000000"
}

var chainBySlug = map[string]Chain{
	"ethereum": {Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", EVMChainID: 1, NativeSymbol: "ETH", NativeDecimals: 18},
	"mainnet":  {Name: "Ethereum", Slug: "ethereum", CAIP2: "eip155:1", EVMChainID: 1, NativeSymbol: "ETH", NativeDecimals: 18},
	"base":     {Name: "Base", Slug: "base", CAIP2: "eip155:8453", EVMChainID: 8453, NativeSymbol: "ETH", NativeDecimals: 18},
	"arbitrum": {Name: "Arbitrum", Slug: "arbitrum", CAIP2: "eip155:42161", EVMChainID: 42161, NativeSymbol: "ETH", NativeDecimals: 18},
	"optimism": {Name: "Optimism", Slug: "optimism", CAIP2: "eip155:10", EVMChainID: 10, NativeSymbol: "ETH", NativeDecimals: 18},
	"polygon":  {Name: "Polygon", Slug: "polygon", CAIP2: "eip155:137", EVMChainID: 137, NativeSymbol: "POL", NativeDecimals: 18},
	"bsc":      {Name: "BSC", Slug: "bsc", CAIP2: "eip155:56", EVMChainID: 56, NativeSymbol: "BNB", NativeDecimals: 18},
	"solana":   {Name: "Solana", Slug: "solana", CAIP2: SolanaMainnetCAIP2, NativeSymbol: "SOL", NativeDecimals: 9},
}

var chainByID = map[int64]Chain{
	1:     chainBySlug["ethereum"],
	10:    chainBySlug["optimism"],
	56:    chainBySlug["bsc"],
	137:   chainBySlug["polygon"],
	8453:  chainBySlug["base"],
	42161: chainBySlug["arbitrum"],
}

var chainByCAIP2 = func() map[string]Chain {
	out := make(map[string]Chain, len(chainBySlug))
	for _, chain := range chainBySlug {
		out[chain.CAIP2] = chain
	}
	return out
}()

// KnownChains returns the bootstrap chain set in slug order.
func KnownChains() []Chain {
	slugs := []string{"ethereum", "base", "arbitrum", "optimism", "polygon", "bsc", "solana"}
	out := make([]Chain, 0, len(slugs))
	for _, slug := range slugs {
		out = append(out, chainBySlug[slug])
	}
	return out
}

// ParseChain resolves a slug, CAIP-2 identifier, or bare EVM chain id into a
// Chain. Unknown networks fail with NETWORK_VALIDATION.
func ParseChain(input string) (Chain, error) {
	raw := strings.TrimSpace(input)
	if raw == "" {
		return Chain{}, apperr.New(apperr.StepNetworkValidation, "network is required")
	}
	norm := strings.ToLower(raw)

	if chain, ok := chainBySlug[norm]; ok {
		return chain, nil
	}

	if eip155ChainPattern.MatchString(norm) {
		parts := strings.Split(norm, ":")
		id, _ := strconv.ParseInt(parts[1], 10, 64)
		if known, ok := chainByID[id]; ok {
			return known, nil
		}
		return Chain{}, unsupportedChain(input)
	}

	if solanaChainPattern.MatchString(raw) {
		if known, ok := chainByCAIP2[raw]; ok {
			return known, nil
		}
		return Chain{}, unsupportedChain(input)
	}

	if id, err := strconv.ParseInt(norm, 10, 64); err == nil {
		if chain, ok := chainByID[id]; ok {
			return chain, nil
		}
	}

	return Chain{}, unsupportedChain(input)
}

func unsupportedChain(input string) *apperr.Error {
	supported := make([]string, 0, len(chainByCAIP2))
	for _, chain := range KnownChains() {
		supported = append(supported, chain.Slug)
	}
	err := apperr.New(apperr.StepNetworkValidation, fmt.Sprintf("unsupported network: %s", input))
	return err.WithDetail("supported_networks", supported)
}

// ValidTokenAddress reports whether address is syntactically valid for the
// chain's namespace (or is the native sentinel).
func ValidTokenAddress(chain Chain, address string) bool {
	addr := strings.TrimSpace(address)
	if chain.IsNativeAsset(addr) {
		return true
	}
	if chain.IsEVM() {
		return evmAddressPattern.MatchString(addr)
	}
	if chain.IsSolana() {
		return solanaTokenMintPattern.MatchString(addr)
	}
	return false
}

// NormalizeTokenAddress lower-cases EVM addresses; Solana mints are
// case-sensitive and pass through.
func NormalizeTokenAddress(chain Chain, address string) string {
	addr := strings.TrimSpace(address)
	if chain.IsEVM() && !strings.EqualFold(addr, NativeEVMSentinel) {
		return strings.ToLower(addr)
	}
	return addr
}
