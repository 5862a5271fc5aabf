package royalty

import (
	"sync"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
)

// Directory resolves a royalty registry reference to its provider.
type Directory struct {
	mu        sync.RWMutex
	providers map[chain.Address]Provider
}

func NewDirectory() *Directory {
	return &Directory{providers: make(map[chain.Address]Provider)}
}

// Register binds address to p, replacing any earlier binding.
func (d *Directory) Register(address chain.Address, p Provider) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.providers[address] = p
}

// Lookup returns the provider registered under address.
func (d *Directory) Lookup(address chain.Address) (Provider, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.providers[address]
	return p, ok
}
