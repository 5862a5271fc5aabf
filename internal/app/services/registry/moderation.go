package registry

import (
	"context"
	"math/big"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/asset"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/metrics"
	"github.com/R3E-Network/nft_exchange/internal/app/txn"
	"github.com/R3E-Network/nft_exchange/internal/errors"
)

// Mint submits a new request for moderation and returns its id.
//
// beneficiaries and sharesBp are parallel lists; their total may not exceed
// the royalty cap the provider reports for this collection, nor the royalty
// limit when one is configured. payment must
// equal the configured minting fee exactly and is forwarded to the fee
// collector.
func (r *Registry) Mint(ctx context.Context, requester chain.Address, contentRef string, beneficiaries []chain.Address, sharesBp []uint32, payment *big.Int) (uint64, error) {
	if err := r.caps.RequireInitialized(); err != nil {
		return 0, err
	}
	if requester.IsZero() {
		return 0, ErrZeroRequester
	}
	if len(beneficiaries) != len(sharesBp) {
		return 0, ErrInvalidLength.WithDetails("beneficiaries", len(beneficiaries)).WithDetails("shares", len(sharesBp))
	}
	spec := make(asset.RoyaltySpec, 0, len(beneficiaries))
	for i, b := range beneficiaries {
		if b.IsZero() {
			return 0, ErrZeroBeneficiary.WithDetails("index", i)
		}
		spec = append(spec, asset.Royalty{Beneficiary: b, ShareBp: sharesBp[i]})
	}

	r.mu.RLock()
	provider, limit, collection := r.royalties, r.royaltyLimit, r.address
	fee, collector := chain.Amount(r.mintingFee), r.feeCollector
	r.mu.RUnlock()

	if provider == nil {
		return 0, ErrNoRoyaltyProvider
	}
	capBp, err := provider.MaxRoyaltyBp(ctx, collection)
	if err != nil {
		return 0, err
	}
	if limit != nil {
		limitBp, err := limit.MaxRoyaltyBp(ctx, collection)
		if err != nil {
			return 0, err
		}
		capBp = min(capBp, limitBp)
	}
	if spec.TotalBp() > uint64(capBp) {
		return 0, ErrRoyaltyOverCap.WithDetails("total_bp", spec.TotalBp()).WithDetails("cap_bp", capBp)
	}
	if chain.Amount(payment).Cmp(fee) != 0 {
		return 0, ErrPaymentAmount.WithDetails("required", fee.String()).WithDetails("paid", chain.Amount(payment).String())
	}

	ctx, journal, owned := txn.Join(ctx)

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.pending.Set(id, asset.MintRequest{
		ID:         id,
		Requester:  requester,
		ContentRef: contentRef,
		Royalties:  spec,
		Status:     asset.StatusPending,
	})
	r.userPending.Add(requester, id)
	r.mu.Unlock()

	journal.Defer(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.pending.Delete(id)
		r.userPending.Remove(requester, id)
		if r.nextID == id {
			r.nextID--
		}
	})

	if fee.Sign() > 0 {
		if r.value == nil {
			if owned {
				journal.Rollback()
			}
			return 0, errors.TransferFailed("forward minting fee", errors.New("no value transfer configured"))
		}
		if err := r.value.TransferNative(ctx, requester, collector, fee); err != nil {
			if owned {
				journal.Rollback()
			}
			metrics.RecordTransferFailure("mint")
			return 0, errors.TransferFailed("forward minting fee", err)
		}
	}
	if !owned {
		return id, nil
	}
	journal.Commit()

	metrics.RecordTransition("mint")
	r.events.Emit(ctx, events.New(events.AssetMinted, collection, id, requester).WithAmount(chain.NativeCurrency, fee).With("content_ref", contentRef))
	r.log.WithContext(ctx).WithFields(map[string]interface{}{
		"id":        id,
		"requester": requester,
	}).Info("mint request submitted")
	return id, nil
}

// ConfirmNFT turns a pending request into an asset owned by its requester.
// Owner or operator only.
func (r *Registry) ConfirmNFT(ctx context.Context, caller chain.Address, id uint64) error {
	if err := r.caps.RequireOwnerOrOperator(caller); err != nil {
		return err
	}

	r.mu.Lock()
	req, ok := r.pending.Get(id)
	if !ok {
		err := r.transitionErrorLocked(ErrNotPending, id)
		r.mu.Unlock()
		return err
	}
	r.pending.Delete(id)
	r.userPending.Remove(req.Requester, id)
	r.assets.Set(id, asset.Asset{
		ID:         id,
		Owner:      req.Requester,
		ContentRef: req.ContentRef,
		Royalties:  req.Royalties.Clone(),
	})
	r.holdings.Add(req.Requester, id)
	collection := r.address
	r.mu.Unlock()

	metrics.RecordTransition("confirm")
	r.events.Emit(ctx, events.New(events.AssetConfirmed, collection, id, caller).WithCounterparty(req.Requester))
	r.log.WithContext(ctx).WithFields(map[string]interface{}{"id": id, "owner": req.Requester}).Info("mint request confirmed")
	return nil
}

// RejectNFT moves a pending request to the rejected queue. Collected fees
// are kept. Owner or operator only.
func (r *Registry) RejectNFT(ctx context.Context, caller chain.Address, id uint64) error {
	if err := r.caps.RequireOwnerOrOperator(caller); err != nil {
		return err
	}

	r.mu.Lock()
	req, ok := r.pending.Get(id)
	if !ok {
		err := r.transitionErrorLocked(ErrNotPending, id)
		r.mu.Unlock()
		return err
	}
	r.pending.Delete(id)
	r.userPending.Remove(req.Requester, id)
	req.Status = asset.StatusRejected
	r.rejected.Set(id, req)
	r.userRejected.Add(req.Requester, id)
	collection := r.address
	r.mu.Unlock()

	metrics.RecordTransition("reject")
	r.events.Emit(ctx, events.New(events.AssetRejected, collection, id, caller).WithCounterparty(req.Requester))
	r.log.WithContext(ctx).WithField("id", id).Info("mint request rejected")
	return nil
}

// MintTo re-submits a rejected request to the pending queue unchanged.
// Owner or operator only.
func (r *Registry) MintTo(ctx context.Context, caller chain.Address, id uint64) error {
	if err := r.caps.RequireOwnerOrOperator(caller); err != nil {
		return err
	}

	r.mu.Lock()
	req, ok := r.rejected.Get(id)
	if !ok {
		err := r.transitionErrorLocked(ErrNotRejected, id)
		r.mu.Unlock()
		return err
	}
	r.rejected.Delete(id)
	r.userRejected.Remove(req.Requester, id)
	req.Status = asset.StatusPending
	r.pending.Set(id, req)
	r.userPending.Add(req.Requester, id)
	collection := r.address
	r.mu.Unlock()

	metrics.RecordTransition("resubmit")
	r.events.Emit(ctx, events.New(events.AssetResubmitted, collection, id, caller).WithCounterparty(req.Requester))
	r.log.WithContext(ctx).WithField("id", id).Info("mint request re-submitted")
	return nil
}

// Burn destroys an asset and files it as a rejected request of its current
// owner, keeping the content reference and royalties. Asset owner only.
func (r *Registry) Burn(ctx context.Context, caller chain.Address, id uint64) error {
	if err := r.caps.RequireInitialized(); err != nil {
		return err
	}

	r.mu.Lock()
	a, ok := r.assets.Get(id)
	if !ok {
		err := r.transitionErrorLocked(ErrAssetNotFound, id)
		r.mu.Unlock()
		return err
	}
	if a.Owner != caller {
		r.mu.Unlock()
		return ErrNotAssetOwner.WithDetails("id", id).WithDetails("caller", caller)
	}
	r.assets.Delete(id)
	r.holdings.Remove(a.Owner, id)
	delete(r.approvals, id)
	r.rejected.Set(id, asset.MintRequest{
		ID:         id,
		Requester:  a.Owner,
		ContentRef: a.ContentRef,
		Royalties:  a.Royalties.Clone(),
		Status:     asset.StatusRejected,
	})
	r.userRejected.Add(a.Owner, id)
	collection := r.address
	r.mu.Unlock()

	metrics.RecordTransition("burn")
	r.events.Emit(ctx, events.New(events.AssetBurned, collection, id, caller))
	r.log.WithContext(ctx).WithField("id", id).Info("asset burned")
	return nil
}

func (r *Registry) transitionErrorLocked(base *errors.ServiceError, id uint64) error {
	return base.WithDetails("id", id).WithDetails("status", r.statusLocked(id).String())
}

func (r *Registry) statusLocked(id uint64) asset.Status {
	switch {
	case r.pending.Has(id):
		return asset.StatusPending
	case r.rejected.Has(id):
		return asset.StatusRejected
	case r.assets.Has(id):
		return asset.StatusConfirmed
	default:
		return 0
	}
}
