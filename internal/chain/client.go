// Package chain provides read-only JSON-RPC access to the EVM chains that
// host venue settlement contracts.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/oddsmux/oddsmux/internal/domain"
)

// Endpoint describes one supported chain.
type Endpoint struct {
	ChainID int64
	Name    string
	RPCURL  string
}

// DefaultEndpoints lists the chains position tokens settle on: Polygon for
// Polymarket, Base for Limitless.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{ChainID: 137, Name: "polygon", RPCURL: "https://polygon-rpc.com"},
		{ChainID: 8453, Name: "base", RPCURL: "https://mainnet.base.org"},
	}
}

// Caller is the slice of the RPC client used for contract reads.
type Caller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Registry hands out RPC clients by chain ID. Clients are dialed lazily on
// first use and cached for the registry's lifetime; chain IDs outside the
// endpoint allow-list are rejected with domain.ErrUnsupportedChain.
type Registry struct {
	endpoints map[int64]Endpoint

	mu      sync.Mutex
	clients map[int64]*ethclient.Client

	// dial is swappable for tests.
	dial func(ctx context.Context, rawURL string) (*ethclient.Client, error)
}

// NewRegistry creates a Registry over the given endpoints.
func NewRegistry(endpoints []Endpoint) *Registry {
	eps := make(map[int64]Endpoint, len(endpoints))
	for _, e := range endpoints {
		eps[e.ChainID] = e
	}
	return &Registry{
		endpoints: eps,
		clients:   make(map[int64]*ethclient.Client),
		dial:      ethclient.DialContext,
	}
}

// Supported reports whether chainID is in the allow-list.
func (r *Registry) Supported(chainID int64) bool {
	_, ok := r.endpoints[chainID]
	return ok
}

// Client returns the cached client for chainID, dialing it on first use.
func (r *Registry) Client(ctx context.Context, chainID int64) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[chainID]; ok {
		return c, nil
	}

	ep, ok := r.endpoints[chainID]
	if !ok {
		return nil, fmt.Errorf("chain: %w: %d", domain.ErrUnsupportedChain, chainID)
	}

	c, err := r.dial(ctx, ep.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", ep.Name, err)
	}
	r.clients[chainID] = c
	return c, nil
}

// Caller resolves the read surface for chainID.
func (r *Registry) Caller(ctx context.Context, chainID int64) (Caller, error) {
	return r.Client(ctx, chainID)
}

// Close tears down every dialed client.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
