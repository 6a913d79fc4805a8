package chain

import (
	"context"
	"sync"

	"github.com/mrivas/defi-agent/internal/chain/evm"
	"github.com/mrivas/defi-agent/internal/chain/solana"
	apperr "github.com/mrivas/defi-agent/internal/errors"
	"github.com/mrivas/defi-agent/internal/id"
	"github.com/mrivas/defi-agent/internal/registry"
)

// Pool owns one client per network, dialed lazily and reused for the process
// lifetime. RPC overrides are keyed by CAIP-2 identifier.
type Pool struct {
	mu           sync.Mutex
	rpcOverrides map[string]string
	solanaRPCURL string
	evmClients   map[int64]*evm.Client
	solClient    *solana.Client
}

func NewPool(rpcOverrides map[string]string, solanaRPCURL string) *Pool {
	return &Pool{
		rpcOverrides: rpcOverrides,
		solanaRPCURL: registry.ResolveSolanaRPCURL(solanaRPCURL),
		evmClients:   make(map[int64]*evm.Client),
	}
}

// EVM returns the client for an eip155 network, dialing on first use.
func (p *Pool) EVM(ctx context.Context, chain id.Chain) (*evm.Client, error) {
	if !chain.IsEVM() {
		return nil, apperr.New(apperr.StepNetworkValidation, "network is not an evm chain")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if client, ok := p.evmClients[chain.EVMChainID]; ok {
		return client, nil
	}
	rpcURL, err := registry.ResolveRPCURL(p.rpcOverrides[chain.CAIP2], chain.EVMChainID)
	if err != nil {
		return nil, apperr.Wrap(apperr.StepInitialization, "resolve rpc url", err)
	}
	client, err := evm.Dial(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	p.evmClients[chain.EVMChainID] = client
	return client, nil
}

// Solana returns the shared Solana client.
func (p *Pool) Solana() *solana.Client {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.solClient == nil {
		p.solClient = solana.New(p.solanaRPCURL)
	}
	return p.solClient
}

// Reader returns the balance reader for any supported network.
func (p *Pool) Reader(ctx context.Context, chain id.Chain) (Reader, error) {
	if chain.IsSolana() {
		return p.Solana(), nil
	}
	return p.EVM(ctx, chain)
}

func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, client := range p.evmClients {
		client.Close()
	}
	p.evmClients = make(map[int64]*evm.Client)
}
