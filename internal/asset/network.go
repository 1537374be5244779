package asset

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Chain IDs
const (
	ChainIDBSC        uint64 = 56
	ChainIDBSCTestnet uint64 = 97
)

// DefaultChainID is used when no network is configured.
const DefaultChainID = ChainIDBSCTestnet

// Network describes a chain the farm is deployed on.
type Network struct {
	ChainID     uint64
	Name        string
	NativeCoin  string
	RPCURL      string
	WSURL       string
	ExplorerURL string
	// Farm is the farm proxy address; zero until configured.
	Farm common.Address
}

// HasFarm reports whether a farm address is set.
func (n Network) HasFarm() bool {
	return n.Farm != (common.Address{})
}

// TxURL returns the explorer link for a transaction hash.
func (n Network) TxURL(hash common.Hash) string {
	if n.ExplorerURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", n.ExplorerURL, hash.Hex())
}

// Registry is a thread-safe registry of known networks keyed by chain ID.
type Registry struct {
	byID map[uint64]Network
	mu   sync.RWMutex
}

// NewRegistry creates a new empty network registry.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[uint64]Network),
	}
}

// DefaultRegistry returns a registry with BSC mainnet and testnet.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(Network{
		ChainID:     ChainIDBSC,
		Name:        "bsc-main",
		NativeCoin:  "BNB",
		RPCURL:      "https://bsc-dataseed.binance.org",
		ExplorerURL: "https://bscscan.com",
	})
	r.Register(Network{
		ChainID:     ChainIDBSCTestnet,
		Name:        "bsc-test",
		NativeCoin:  "tBNB",
		RPCURL:      "https://data-seed-prebsc-1-s1.binance.org:8545",
		ExplorerURL: "https://testnet.bscscan.com",
	})

	return r
}

// Register adds or replaces a network.
func (r *Registry) Register(n Network) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[n.ChainID] = n
}

// Get retrieves a network by chain ID.
func (r *Registry) Get(chainID uint64) (Network, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, ok := r.byID[chainID]
	return n, ok
}

// SetFarm records the farm proxy address for chainID.
func (r *Registry) SetFarm(chainID uint64, farm common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, ok := r.byID[chainID]
	if !ok {
		return fmt.Errorf("asset: unknown chain id %d", chainID)
	}
	n.Farm = farm
	r.byID[chainID] = n
	return nil
}

// All returns every network ordered by chain ID.
func (r *Registry) All() []Network {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Network, 0, len(r.byID))
	for _, n := range r.byID {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}
