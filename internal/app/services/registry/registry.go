// Package registry implements the moderated asset registry.
//
// A requester submits a mint request which waits in the pending queue until
// an owner or operator confirms it (creating the asset) or rejects it.
// Rejected requests can be re-submitted with MintTo, and burning an asset
// turns it back into a rejected request under its last owner:
//
//	Pending --confirm--> Confirmed
//	Pending --reject---> Rejected
//	Rejected --mintTo--> Pending
//	Confirmed --burn---> Rejected
//
// Pending and rejected requests are kept in global and per-user ordered
// indices. Confirmed assets carry ERC-721 style custody with per-asset and
// operator approvals; MoveCustody is the entry point the exchange uses to
// escrow and deliver assets.
package registry

import (
	"context"
	"math/big"
	"sync"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/asset"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/services/access"
	"github.com/R3E-Network/nft_exchange/internal/app/services/royalty"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/internal/ordered"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

var (
	ErrZeroCollection     = errors.Validation("zero_collection", "collection address cannot be zero")
	ErrZeroRequester      = errors.Validation("zero_requester", "requester cannot be the zero address")
	ErrInvalidLength      = errors.Validation("invalid_length", "invalid length")
	ErrZeroBeneficiary    = errors.Validation("zero_beneficiary", "zero address cannot be royalty beneficiary")
	ErrRoyaltyOverCap     = errors.Validation("royalty_over_cap", "invalid total royalties")
	ErrPaymentAmount      = errors.Validation("payment_amount", "insufficient paid amount")
	ErrInvalidFee         = errors.Validation("invalid_fee", "minting fee cannot be negative")
	ErrZeroFeeCollector   = errors.Validation("zero_fee_collector", "fee collector required when a minting fee is set")
	ErrTransferToZero     = errors.Validation("transfer_to_zero", "transfer to the zero address")
	ErrApproveToOwner     = errors.Validation("approve_to_owner", "approval to current owner")
	ErrApproveToCaller    = errors.Validation("approve_to_caller", "approve to caller")
	ErrNoRoyaltyProvider  = errors.StateConflict("no_royalty_provider", "royalty provider not configured")
	ErrNotPending         = errors.StateConflict("not_pending", "mint request is not pending")
	ErrNotRejected        = errors.StateConflict("not_rejected", "mint request is not rejected")
	ErrAssetNotFound      = errors.StateConflict("asset_not_found", "asset does not exist")
	ErrIncorrectOwner     = errors.StateConflict("incorrect_owner", "transfer from incorrect owner")
	ErrNotAssetOwner      = errors.Permission("not_asset_owner", "caller is not the asset owner")
	ErrNotApprovedOrOwner = errors.Permission("not_approved", "caller is not owner nor approved")
)

// Settings is the one-time bootstrap configuration. RoyaltyLimit, when
// set, bounds mint-time royalties in addition to Royalties; the exchange's
// trade configuration plays that part so that every minted asset can
// settle in every pair of the collection.
type Settings struct {
	Address      chain.Address
	Name         string
	Symbol       string
	FeeCollector chain.Address
	MintingFee   *big.Int
	Royalties    royalty.Provider
	RoyaltyLimit royalty.Provider
}

// NativeTransferer forwards minting fees.
type NativeTransferer interface {
	TransferNative(ctx context.Context, from, to chain.Address, amount *big.Int) error
}

// Registry is safe for concurrent use.
type Registry struct {
	caps   access.Capabilities
	value  NativeTransferer
	events *events.Emitter
	log    *logger.Logger

	mu           sync.RWMutex
	address      chain.Address
	name         string
	symbol       string
	feeCollector chain.Address
	mintingFee   *big.Int
	royalties    royalty.Provider
	royaltyLimit royalty.Provider

	nextID            uint64
	pending           *ordered.Map[uint64, asset.MintRequest]
	rejected          *ordered.Map[uint64, asset.MintRequest]
	userPending       *ordered.Index[chain.Address, uint64]
	userRejected      *ordered.Index[chain.Address, uint64]
	assets            *ordered.Map[uint64, asset.Asset]
	holdings          *ordered.Index[chain.Address, uint64]
	approvals         map[uint64]chain.Address
	operatorApprovals map[chain.Address]map[chain.Address]bool
}

// New creates an uninitialized registry. value forwards minting fees and
// sink receives events; either may be nil when unused.
func New(value NativeTransferer, sink events.Recorder, log *logger.Logger) *Registry {
	if log == nil {
		log = logger.NewDefault("registry")
	}
	return &Registry{
		value:             value,
		events:            events.NewEmitter(sink, log),
		log:               log,
		mintingFee:        new(big.Int),
		pending:           ordered.NewMap[uint64, asset.MintRequest](),
		rejected:          ordered.NewMap[uint64, asset.MintRequest](),
		userPending:       ordered.NewIndex[chain.Address, uint64](),
		userRejected:      ordered.NewIndex[chain.Address, uint64](),
		assets:            ordered.NewMap[uint64, asset.Asset](),
		holdings:          ordered.NewIndex[chain.Address, uint64](),
		approvals:         make(map[uint64]chain.Address),
		operatorApprovals: make(map[chain.Address]map[chain.Address]bool),
	}
}

// Initialize runs once; caller becomes the owner.
func (r *Registry) Initialize(ctx context.Context, caller chain.Address, s Settings) error {
	if s.Address.IsZero() {
		return ErrZeroCollection
	}
	if s.MintingFee != nil && s.MintingFee.Sign() < 0 {
		return ErrInvalidFee
	}
	if chain.IsPositive(s.MintingFee) && s.FeeCollector.IsZero() {
		return ErrZeroFeeCollector
	}
	if err := r.caps.Initialize(caller); err != nil {
		return err
	}

	r.mu.Lock()
	r.address = s.Address
	r.name = s.Name
	r.symbol = s.Symbol
	r.feeCollector = s.FeeCollector
	r.mintingFee = chain.Amount(s.MintingFee)
	r.royalties = s.Royalties
	r.royaltyLimit = s.RoyaltyLimit
	r.mu.Unlock()

	r.log.WithContext(ctx).WithFields(map[string]interface{}{
		"collection": s.Address,
		"owner":      caller,
	}).Infof("registry %q initialized", s.Name)
	return nil
}

// =============================================================================
// Administration
// =============================================================================

func (r *Registry) Owner() chain.Address { return r.caps.Owner() }

func (r *Registry) IsOperator(addr chain.Address) bool { return r.caps.IsOperator(addr) }

func (r *Registry) Operators() []chain.Address { return r.caps.Operators() }

// GrantOperator lets op moderate mint requests. Owner only.
func (r *Registry) GrantOperator(ctx context.Context, caller, op chain.Address) error {
	if err := r.caps.GrantOperator(caller, op); err != nil {
		return err
	}
	r.log.WithContext(ctx).WithField("operator", op).Info("operator granted")
	return nil
}

// RevokeOperator withdraws op's moderation capability. Owner only.
func (r *Registry) RevokeOperator(ctx context.Context, caller, op chain.Address) error {
	if err := r.caps.RevokeOperator(caller, op); err != nil {
		return err
	}
	r.log.WithContext(ctx).WithField("operator", op).Info("operator revoked")
	return nil
}

func (r *Registry) TransferOwnership(ctx context.Context, caller, next chain.Address) error {
	return r.caps.TransferOwnership(caller, next)
}

// SetMintingFee changes the exact fee charged per mint. Owner only.
func (r *Registry) SetMintingFee(ctx context.Context, caller chain.Address, fee *big.Int) error {
	if fee == nil || fee.Sign() < 0 {
		return ErrInvalidFee
	}
	if err := r.caps.RequireOwner(caller); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if fee.Sign() > 0 && r.feeCollector.IsZero() {
		return ErrZeroFeeCollector
	}
	r.mintingFee = chain.Amount(fee)
	return nil
}

// SetFeeCollector changes where minting fees are forwarded. Owner only.
func (r *Registry) SetFeeCollector(ctx context.Context, caller, collector chain.Address) error {
	if collector.IsZero() {
		return ErrZeroFeeCollector
	}
	if err := r.caps.RequireOwner(caller); err != nil {
		return err
	}
	r.mu.Lock()
	r.feeCollector = collector
	r.mu.Unlock()
	return nil
}

// SetRoyaltyProvider replaces the registry consulted at mint time. Owner
// only. The royalty limit keeps applying on top of the new provider.
func (r *Registry) SetRoyaltyProvider(ctx context.Context, caller chain.Address, p royalty.Provider) error {
	if err := r.caps.RequireOwner(caller); err != nil {
		return err
	}
	r.mu.Lock()
	r.royalties = p
	r.mu.Unlock()
	return nil
}

func (r *Registry) Address() chain.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.address
}

func (r *Registry) Name() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.name
}

func (r *Registry) Symbol() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.symbol
}

func (r *Registry) MintingFee() *big.Int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return chain.Amount(r.mintingFee)
}

func (r *Registry) FeeCollector() chain.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.feeCollector
}
