package registry

import (
	"sync"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
)

// Directory maps collection addresses to registries.
type Directory struct {
	mu         sync.RWMutex
	registries map[chain.Address]*Registry
}

func NewDirectory() *Directory {
	return &Directory{registries: make(map[chain.Address]*Registry)}
}

// Register adds r under its own address.
func (d *Directory) Register(r *Registry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.registries[r.Address()] = r
}

// Lookup returns the registry of collection.
func (d *Directory) Lookup(collection chain.Address) (*Registry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.registries[collection]
	return r, ok
}

// Collections lists the registered collection addresses.
func (d *Directory) Collections() []chain.Address {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]chain.Address, 0, len(d.registries))
	for addr := range d.registries {
		out = append(out, addr)
	}
	return out
}
