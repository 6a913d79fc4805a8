package providers

import (
	"fmt"
	"strings"
	"sync"

	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/model"
)

// Registry indexes providers by name and declared network support. It does no
// network validation of its own; it only answers who claims to serve what.
type Registry struct {
	mu     sync.RWMutex
	order  []string
	byName map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Provider)}
}

// Register adds a provider. The declared capability set is checked against
// the implemented interfaces here, once, so callers never need per-call
// duck-typing. Duplicate names and unparseable network declarations are
// rejected.
func (r *Registry) Register(p Provider) error {
	info := p.Info()
	name := strings.ToLower(strings.TrimSpace(info.Name))
	if name == "" {
		return apperr.New(apperr.StepInitialization, "provider name is required")
	}
	if len(info.SupportedNetworks) == 0 {
		return apperr.New(apperr.StepInitialization, fmt.Sprintf("provider %s declares no networks", name))
	}
	for _, network := range info.SupportedNetworks {
		if _, err := id.ParseChain(network); err != nil {
			return apperr.Wrap(apperr.StepInitialization, fmt.Sprintf("provider %s declares unknown network %s", name, network), err)
		}
	}
	if err := checkCapabilities(name, p, info.Capabilities); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return apperr.New(apperr.StepInitialization, fmt.Sprintf("provider %s is already registered", name))
	}
	r.byName[name] = p
	r.order = append(r.order, name)
	return nil
}

func checkCapabilities(name string, p Provider, declared []string) error {
	for _, capability := range declared {
		var ok bool
		switch Capability(capability) {
		case CapabilitySwap:
			_, ok = p.(SwapProvider)
		case CapabilityBridge:
			_, ok = p.(BridgeProvider)
		case CapabilityStake:
			_, ok = p.(StakingProvider)
		default:
			return apperr.New(apperr.StepInitialization,
				fmt.Sprintf("provider %s declares unknown capability %q", name, capability))
		}
		if !ok {
			return apperr.New(apperr.StepInitialization,
				fmt.Sprintf("provider %s declares capability %q without implementing it", name, capability))
		}
	}
	return nil
}

// Get returns the provider with the given name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, apperr.New(apperr.StepProviderValidation, fmt.Sprintf("unknown provider: %s", name)).
			WithDetail("available_providers", append([]string(nil), r.order...))
	}
	return p, nil
}

// GetByNetwork returns every provider declaring support for the network, in
// registration order. An empty result is not an error here.
func (r *Registry) GetByNetwork(network id.Chain) []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Provider
	for _, name := range r.order {
		p := r.byName[name]
		if supportsNetwork(p.Info(), network) {
			out = append(out, p)
		}
	}
	return out
}

func supportsNetwork(info model.ProviderInfo, network id.Chain) bool {
	for _, declared := range info.SupportedNetworks {
		chain, err := id.ParseChain(declared)
		if err == nil && chain.CAIP2 == network.CAIP2 {
			return true
		}
	}
	return false
}

// ListNames returns provider names in registration order.
func (r *Registry) ListNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// List returns provider descriptions in registration order.
func (r *Registry) List() []model.ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ProviderInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name].Info())
	}
	return out
}

// SupportedNetworks returns the union of declared networks across providers,
// canonicalized to CAIP-2, in first-declared order. Registering a provider
// grows this set, which feeds the caller-facing schema.
func (r *Registry) SupportedNetworks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, name := range r.order {
		for _, declared := range r.byName[name].Info().SupportedNetworks {
			chain, err := id.ParseChain(declared)
			if err != nil || seen[chain.CAIP2] {
				continue
			}
			seen[chain.CAIP2] = true
			out = append(out, chain.CAIP2)
		}
	}
	return out
}
