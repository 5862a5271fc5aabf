package registry

import (
	"context"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/asset"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
)

// PendingIDs lists pending requests in submission order.
func (r *Registry) PendingIDs(ctx context.Context) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.pending.Keys()
}

// UserPendingIDs lists user's pending requests in submission order.
func (r *Registry) UserPendingIDs(ctx context.Context, user chain.Address) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userPending.Keys(user)
}

// RejectedIDs lists rejected requests in rejection order.
func (r *Registry) RejectedIDs(ctx context.Context) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rejected.Keys()
}

// UserRejectedIDs lists user's rejected requests in rejection order.
func (r *Registry) UserRejectedIDs(ctx context.Context, user chain.Address) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.userRejected.Keys(user)
}

// PendingRequest returns the details of a pending request.
func (r *Registry) PendingRequest(ctx context.Context, id uint64) (asset.MintRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.pending.Get(id)
	if !ok {
		return asset.MintRequest{}, r.transitionErrorLocked(ErrNotPending, id)
	}
	return req.Clone(), nil
}

// RejectedRequest returns the details of a rejected request.
func (r *Registry) RejectedRequest(ctx context.Context, id uint64) (asset.MintRequest, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	req, ok := r.rejected.Get(id)
	if !ok {
		return asset.MintRequest{}, r.transitionErrorLocked(ErrNotRejected, id)
	}
	return req.Clone(), nil
}

// Status reports where id currently sits in the moderation flow.
func (r *Registry) Status(ctx context.Context, id uint64) (asset.Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.statusLocked(id)
	return s, s != 0
}

func (r *Registry) Exists(ctx context.Context, id uint64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.assets.Has(id)
}

func (r *Registry) OwnerOf(ctx context.Context, id uint64) (chain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets.Get(id)
	if !ok {
		return "", ErrAssetNotFound.WithDetails("id", id)
	}
	return a.Owner, nil
}

// Asset returns a confirmed asset.
func (r *Registry) Asset(ctx context.Context, id uint64) (asset.Asset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.assets.Get(id)
	if !ok {
		return asset.Asset{}, ErrAssetNotFound.WithDetails("id", id)
	}
	return a.Clone(), nil
}

// RoyaltiesOf returns the royalty spec frozen at confirmation.
func (r *Registry) RoyaltiesOf(ctx context.Context, id uint64) (asset.RoyaltySpec, error) {
	a, err := r.Asset(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.Royalties, nil
}

// ContentRef returns the content reference of a confirmed asset.
func (r *Registry) ContentRef(ctx context.Context, id uint64) (string, error) {
	a, err := r.Asset(ctx, id)
	if err != nil {
		return "", err
	}
	return a.ContentRef, nil
}

// TotalSupply counts confirmed assets.
func (r *Registry) TotalSupply(ctx context.Context) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(r.assets.Len())
}

// BalanceOf counts the assets owner holds.
func (r *Registry) BalanceOf(ctx context.Context, owner chain.Address) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return uint64(r.holdings.Len(owner))
}

// TokensOf lists owner's assets in acquisition order.
func (r *Registry) TokensOf(ctx context.Context, owner chain.Address) []uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.holdings.Keys(owner)
}
