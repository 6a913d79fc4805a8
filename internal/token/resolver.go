package token

import (
	"context"
	"fmt"
	"strings"
	"sync"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

// MetadataReader reads decimals and symbol for a contract the bootstrap table
// does not know. The EVM chain client implements it; Solana has no reader, so
// unknown mints fail resolution.
type MetadataReader interface {
	TokenMetadata(ctx context.Context, tokenAddress string) (int, string, error)
}

// MetadataSource hands out the reader for a network, or an error when the
// namespace has none.
type MetadataSource func(ctx context.Context, network id.Chain) (MetadataReader, error)

// Resolver turns a token reference (symbol or address) into its canonical
// form. Results are immutable, so every resolution is memoized for the
// process lifetime.
type Resolver struct {
	metadata MetadataSource

	mu    sync.Mutex
	cache map[string]model.Token
}

func NewResolver(metadata MetadataSource) *Resolver {
	return &Resolver{
		metadata: metadata,
		cache:    make(map[string]model.Token),
	}
}

// Resolve accepts a symbol ("USDC"), an address, the native sentinel, or an
// empty reference (meaning the native asset). Unknown references fail with
// TOKEN_NOT_FOUND.
func (r *Resolver) Resolve(ctx context.Context, network id.Chain, ref string) (model.Token, error) {
	ref = strings.TrimSpace(ref)
	if network.IsNativeAsset(ref) {
		return nativeToken(network), nil
	}

	if entry, ok := lookupBySymbol(network, ref); ok {
		return entry, nil
	}

	if !id.ValidTokenAddress(network, ref) {
		return model.Token{}, apperr.New(apperr.StepTokenNotFound,
			fmt.Sprintf("unknown token %q on %s", ref, network.Slug)).
			WithDetail("network", network.CAIP2)
	}
	address := id.NormalizeTokenAddress(network, ref)

	if entry, ok := lookupByAddress(network, address); ok {
		return entry, nil
	}

	cacheKey := network.CAIP2 + "/" + address
	r.mu.Lock()
	cached, ok := r.cache[cacheKey]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	if !network.IsEVM() || r.metadata == nil {
		return model.Token{}, apperr.New(apperr.StepTokenNotFound,
			fmt.Sprintf("unknown token %q on %s", ref, network.Slug)).
			WithDetail("network", network.CAIP2)
	}
	reader, err := r.metadata(ctx, network)
	if err != nil {
		return model.Token{}, err
	}
	decimals, symbol, err := reader.TokenMetadata(ctx, address)
	if err != nil {
		return model.Token{}, apperr.Wrap(apperr.StepTokenNotFound,
			fmt.Sprintf("token %q is not readable on %s", ref, network.Slug), err).
			WithDetail("network", network.CAIP2)
	}

	resolved := model.Token{
		Address:  address,
		Decimals: decimals,
		Symbol:   symbol,
		Network:  network.CAIP2,
	}
	r.mu.Lock()
	r.cache[cacheKey] = resolved
	r.mu.Unlock()
	return resolved, nil
}

func nativeToken(network id.Chain) model.Token {
	return model.Token{
		Address:  network.NativeSentinel(),
		Decimals: network.NativeDecimals,
		Symbol:   network.NativeSymbol,
		Network:  network.CAIP2,
	}
}

func lookupBySymbol(network id.Chain, ref string) (model.Token, bool) {
	if strings.EqualFold(ref, network.NativeSymbol) {
		return nativeToken(network), true
	}
	for _, entry := range bootstrapTokens[network.CAIP2] {
		if strings.EqualFold(entry.Symbol, ref) {
			return entryToken(network, entry), true
		}
	}
	return model.Token{}, false
}

func lookupByAddress(network id.Chain, normalized string) (model.Token, bool) {
	for _, entry := range bootstrapTokens[network.CAIP2] {
		if id.NormalizeTokenAddress(network, entry.Address) == normalized {
			return entryToken(network, entry), true
		}
	}
	return model.Token{}, false
}

func entryToken(network id.Chain, entry tableEntry) model.Token {
	return model.Token{
		Address:  id.NormalizeTokenAddress(network, entry.Address),
		Decimals: entry.Decimals,
		Symbol:   entry.Symbol,
		Network:  network.CAIP2,
	}
}
