package registry

import (
	"context"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/metrics"
	"github.com/R3E-Network/nft_exchange/internal/app/txn"
)

// MoveCustody transfers asset id from from to to on behalf of operator,
// which must be the owner, the asset's approved address, or an operator
// approved for all of the owner's assets. The per-asset approval is cleared.
//
// When ctx carries a txn journal the move is recorded so the enclosing
// operation can undo it.
func (r *Registry) MoveCustody(ctx context.Context, operator, from, to chain.Address, id uint64) error {
	if err := r.caps.RequireInitialized(); err != nil {
		return err
	}
	if to.IsZero() {
		return ErrTransferToZero
	}

	r.mu.Lock()
	prev, ok := r.assets.Get(id)
	if !ok {
		r.mu.Unlock()
		return ErrAssetNotFound.WithDetails("id", id)
	}
	if prev.Owner != from {
		r.mu.Unlock()
		return ErrIncorrectOwner.WithDetails("id", id).WithDetails("from", from)
	}
	if !r.authorizedLocked(operator, prev.Owner, id) {
		r.mu.Unlock()
		return ErrNotApprovedOrOwner.WithDetails("id", id).WithDetails("operator", operator)
	}

	prevApproval, hadApproval := r.approvals[id]
	holding, _ := r.holdings.Remove(from, id)
	next := prev.Clone()
	next.Owner = to
	r.assets.Set(id, next)
	r.holdings.Add(to, id)
	delete(r.approvals, id)
	collection := r.address
	r.mu.Unlock()

	_, journal, owned := txn.Join(ctx)
	journal.Defer(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.holdings.Remove(to, id)
		r.holdings.Restore(from, holding)
		r.assets.Set(id, prev)
		if hadApproval {
			r.approvals[id] = prevApproval
		}
	})
	if !owned {
		return nil
	}
	journal.Commit()

	metrics.RecordTransition("transfer")
	r.events.Emit(ctx, events.New(events.AssetTransferred, collection, id, from).WithCounterparty(to))
	return nil
}

// Transfer moves an asset the caller owns to to.
func (r *Registry) Transfer(ctx context.Context, caller, to chain.Address, id uint64) error {
	return r.MoveCustody(ctx, caller, caller, to, id)
}

// TransferFrom moves an asset owned by from; caller must be authorised.
func (r *Registry) TransferFrom(ctx context.Context, caller, from, to chain.Address, id uint64) error {
	return r.MoveCustody(ctx, caller, from, to, id)
}

// Approve lets spender move asset id once. The owner or one of the owner's
// approved-for-all operators may call it; a zero spender clears the approval.
func (r *Registry) Approve(ctx context.Context, caller, spender chain.Address, id uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.assets.Get(id)
	if !ok {
		return ErrAssetNotFound.WithDetails("id", id)
	}
	if spender == a.Owner {
		return ErrApproveToOwner
	}
	if caller != a.Owner && !r.operatorApprovals[a.Owner][caller] {
		return ErrNotApprovedOrOwner.WithDetails("id", id).WithDetails("caller", caller)
	}
	if spender.IsZero() {
		delete(r.approvals, id)
		return nil
	}
	r.approvals[id] = spender
	return nil
}

// GetApproved returns the approved address of asset id, if any.
func (r *Registry) GetApproved(ctx context.Context, id uint64) (chain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.assets.Has(id) {
		return "", ErrAssetNotFound.WithDetails("id", id)
	}
	return r.approvals[id], nil
}

// SetApprovalForAll lets operator move every asset of caller.
func (r *Registry) SetApprovalForAll(ctx context.Context, caller, operator chain.Address, approved bool) error {
	if operator == caller {
		return ErrApproveToCaller
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := r.operatorApprovals[caller]
	if ops == nil {
		ops = make(map[chain.Address]bool)
		r.operatorApprovals[caller] = ops
	}
	if approved {
		ops[operator] = true
	} else {
		delete(ops, operator)
	}
	return nil
}

func (r *Registry) IsApprovedForAll(ctx context.Context, owner, operator chain.Address) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.operatorApprovals[owner][operator]
}

func (r *Registry) authorizedLocked(operator, owner chain.Address, id uint64) bool {
	if operator == owner {
		return true
	}
	if approved, ok := r.approvals[id]; ok && approved == operator {
		return true
	}
	return r.operatorApprovals[owner][operator]
}
