package ledger

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry maps asset identifiers to their ledgers in a thread-safe manner.
// The engine resolves both legs of every fill through it.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[common.Address]AssetLedger
}

func NewRegistry() *Registry {
	return &Registry{
		ledgers: make(map[common.Address]AssetLedger),
	}
}

// Register adds a ledger for an asset address.
// Returns error if the asset is already registered.
func (r *Registry) Register(asset common.Address, l AssetLedger) error {
	if l == nil {
		return fmt.Errorf("cannot register nil ledger")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ledgers[asset]; exists {
		return fmt.Errorf("asset %s already registered", asset.Hex())
	}
	r.ledgers[asset] = l
	return nil
}

// Get retrieves the ledger for an asset.
// Returns error if no ledger is registered for it.
func (r *Registry) Get(asset common.Address) (AssetLedger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, exists := r.ledgers[asset]
	if !exists {
		return nil, fmt.Errorf("no ledger registered for asset %s", asset.Hex())
	}
	return l, nil
}

// Count returns the number of registered assets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ledgers)
}
