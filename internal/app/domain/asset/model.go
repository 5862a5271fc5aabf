package asset

import (
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
)

// Status is the moderation state of a mint request.
type Status int

const (
	StatusPending Status = iota + 1
	StatusRejected
	StatusConfirmed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRejected:
		return "rejected"
	case StatusConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Royalty is one beneficiary's share of every sale, in basis points.
type Royalty struct {
	Beneficiary chain.Address `json:"beneficiary"`
	ShareBp     uint32        `json:"share_bp"`
}

// RoyaltySpec lists royalties in mint order.
type RoyaltySpec []Royalty

// TotalBp sums the shares without overflowing.
func (r RoyaltySpec) TotalBp() uint64 {
	var total uint64
	for _, royalty := range r {
		total += uint64(royalty.ShareBp)
	}
	return total
}

// Clone returns an independent copy. A nil spec stays nil.
func (r RoyaltySpec) Clone() RoyaltySpec {
	if r == nil {
		return nil
	}
	out := make(RoyaltySpec, len(r))
	copy(out, r)
	return out
}

// Beneficiaries returns the beneficiary list in order.
func (r RoyaltySpec) Beneficiaries() []chain.Address {
	out := make([]chain.Address, len(r))
	for i, royalty := range r {
		out[i] = royalty.Beneficiary
	}
	return out
}

// Shares returns the share list in order.
func (r RoyaltySpec) Shares() []uint32 {
	out := make([]uint32, len(r))
	for i, royalty := range r {
		out[i] = royalty.ShareBp
	}
	return out
}

// MintRequest is a submission awaiting moderation, or one that was rejected.
type MintRequest struct {
	ID         uint64        `json:"id"`
	Requester  chain.Address `json:"requester"`
	ContentRef string        `json:"content_ref"`
	Royalties  RoyaltySpec   `json:"royalties"`
	Status     Status        `json:"status"`
}

// Clone returns an independent copy.
func (m MintRequest) Clone() MintRequest {
	m.Royalties = m.Royalties.Clone()
	return m
}

// Asset is a confirmed, singly-owned item.
type Asset struct {
	ID         uint64        `json:"id"`
	Owner      chain.Address `json:"owner"`
	ContentRef string        `json:"content_ref"`
	Royalties  RoyaltySpec   `json:"royalties"`
}

// Clone returns an independent copy.
func (a Asset) Clone() Asset {
	a.Royalties = a.Royalties.Clone()
	return a
}
