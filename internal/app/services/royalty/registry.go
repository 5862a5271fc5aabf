// Package royalty implements the royalty registry consulted at mint time:
// an allow-list of collections and the maximum total royalty, in basis
// points, each of them may grant.
package royalty

import (
	"context"
	"sync"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/services/access"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/internal/ordered"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

var (
	ErrCollectionNotAllowed = errors.Permission("collection_not_allowed", "only allowed collections")
	ErrInvalidCap           = errors.Validation("invalid_royalty_cap", "royalty cap exceeds 10000 bp")
	ErrZeroCollection       = errors.Validation("zero_collection", "collection cannot be the zero address")
)

// Provider reports the royalty cap for a collection.
type Provider interface {
	MaxRoyaltyBp(ctx context.Context, collection chain.Address) (uint32, error)
}

var _ Provider = (*Registry)(nil)

// CapGuard vets cap changes against the trading rules that settle with a
// registry. capOf reports the cap each collection would have after the
// change. GuardRoyaltyCap either returns an error or calls commit while the
// rules it checked are still locked.
type CapGuard interface {
	GuardRoyaltyCap(ctx context.Context, registry chain.Address, capOf func(collection chain.Address) uint32, commit func()) error
}

// Registry is an in-memory royalty provider.
type Registry struct {
	caps access.Capabilities
	log  *logger.Logger

	mu       sync.RWMutex
	guard    CapGuard
	address  chain.Address
	totalBp  uint32
	allowed  *ordered.Map[chain.Address, struct{}]
	override map[chain.Address]uint32
}

// New creates an uninitialized registry.
func New(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewDefault("royalty")
	}
	return &Registry{
		log:      log,
		allowed:  ordered.NewMap[chain.Address, struct{}](),
		override: make(map[chain.Address]uint32),
	}
}

// Initialize sets the owner, the registry's own address and the default cap.
func (r *Registry) Initialize(ctx context.Context, caller, address chain.Address, totalRoyaltiesBp uint32) error {
	if totalRoyaltiesBp > chain.BasisPointsDenominator {
		return ErrInvalidCap
	}
	if err := r.caps.Initialize(caller); err != nil {
		return err
	}
	r.mu.Lock()
	r.address = address
	r.totalBp = totalRoyaltiesBp
	r.mu.Unlock()
	r.log.WithContext(ctx).Infof("royalty registry %s initialized with cap %d bp", address, totalRoyaltiesBp)
	return nil
}

// Address returns the registry's own address.
func (r *Registry) Address() chain.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.address
}

func (r *Registry) Owner() chain.Address { return r.caps.Owner() }

// SetGuard installs the check every later cap change must pass. A nil guard
// removes it.
func (r *Registry) SetGuard(g CapGuard) {
	r.mu.Lock()
	r.guard = g
	r.mu.Unlock()
}

// SetTotalRoyalties changes the default cap. Owner only. The guard, when
// set, can veto the change.
func (r *Registry) SetTotalRoyalties(ctx context.Context, caller chain.Address, bp uint32) error {
	if bp > chain.BasisPointsDenominator {
		return ErrInvalidCap
	}
	if err := r.caps.RequireOwner(caller); err != nil {
		return err
	}
	capOf := func(collection chain.Address) uint32 {
		r.mu.RLock()
		defer r.mu.RUnlock()
		if o, ok := r.override[collection]; ok {
			return o
		}
		return bp
	}
	if err := r.changeCap(ctx, capOf, func() { r.totalBp = bp }); err != nil {
		return err
	}
	r.log.WithContext(ctx).Infof("default royalty cap set to %d bp", bp)
	return nil
}

// SetAllowedCollection toggles a collection on the allow-list. Owner only.
func (r *Registry) SetAllowedCollection(ctx context.Context, caller, collection chain.Address, allowed bool) error {
	if collection.IsZero() {
		return ErrZeroCollection
	}
	if err := r.caps.RequireOwner(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if allowed {
		r.allowed.Set(collection, struct{}{})
	} else {
		r.allowed.Delete(collection)
	}
	r.log.WithContext(ctx).WithField("collection", collection).Infof("royalty allow-list set to %t", allowed)
	return nil
}

// SetCollectionCap overrides the default cap for one collection. Owner only.
func (r *Registry) SetCollectionCap(ctx context.Context, caller, collection chain.Address, bp uint32) error {
	if bp > chain.BasisPointsDenominator {
		return ErrInvalidCap
	}
	if collection.IsZero() {
		return ErrZeroCollection
	}
	if err := r.caps.RequireOwner(caller); err != nil {
		return err
	}
	capOf := func(c chain.Address) uint32 {
		if c == collection {
			return bp
		}
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.capLocked(c)
	}
	if err := r.changeCap(ctx, capOf, func() { r.override[collection] = bp }); err != nil {
		return err
	}
	r.log.WithContext(ctx).WithField("collection", collection).Infof("royalty cap set to %d bp", bp)
	return nil
}

// changeCap runs apply under the write lock, through the guard when one is
// installed. The registry lock is not held while the guard runs.
func (r *Registry) changeCap(ctx context.Context, capOf func(chain.Address) uint32, apply func()) error {
	r.mu.RLock()
	guard, address := r.guard, r.address
	r.mu.RUnlock()

	commit := func() {
		r.mu.Lock()
		apply()
		r.mu.Unlock()
	}
	if guard == nil {
		commit()
		return nil
	}
	return guard.GuardRoyaltyCap(ctx, address, capOf, commit)
}

func (r *Registry) capLocked(collection chain.Address) uint32 {
	if bp, ok := r.override[collection]; ok {
		return bp
	}
	return r.totalBp
}

// MaxRoyaltyBp returns the cap for collection, failing for collections that
// are not on the allow-list.
func (r *Registry) MaxRoyaltyBp(ctx context.Context, collection chain.Address) (uint32, error) {
	if err := r.caps.RequireInitialized(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.allowed.Has(collection) {
		return 0, ErrCollectionNotAllowed.WithDetails("collection", collection)
	}
	return r.capLocked(collection), nil
}

// AllowedCollections lists the allow-list in insertion order.
func (r *Registry) AllowedCollections(ctx context.Context) []chain.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allowed.Keys()
}
