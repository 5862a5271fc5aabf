// Package market holds the listing, bid and fee-rule records of the
// exchange together with the settlement split computed from them.
package market

import (
	"math/big"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
)

// Ask is a seller's standing offer for one asset.
type Ask struct {
	Collection   chain.Address `json:"collection"`
	AssetID      uint64        `json:"asset_id"`
	Denomination chain.Address `json:"denomination"`
	Seller       chain.Address `json:"seller"`
	Price        *big.Int      `json:"price"`
	BidOnly      bool          `json:"bid_only"`
	Sequence     uint64        `json:"sequence"`
}

// Clone returns an independent copy.
func (a Ask) Clone() Ask {
	a.Price = chain.Amount(a.Price)
	return a
}

// Bid is an escrowed offer for one asset in one denomination.
type Bid struct {
	Collection   chain.Address `json:"collection"`
	AssetID      uint64        `json:"asset_id"`
	Denomination chain.Address `json:"denomination"`
	Bidder       chain.Address `json:"bidder"`
	Receiver     chain.Address `json:"receiver"`
	Price        *big.Int      `json:"price"`
	Escrow       *big.Int      `json:"escrow"`
}

// Clone returns an independent copy.
func (b Bid) Clone() Bid {
	b.Price = chain.Amount(b.Price)
	b.Escrow = chain.Amount(b.Escrow)
	return b
}

// BookRef identifies the bid book of one asset in one denomination.
type BookRef struct {
	Collection   chain.Address `json:"collection"`
	Denomination chain.Address `json:"denomination"`
	AssetID      uint64        `json:"asset_id"`
}

// FeeEntry is one row of a pair's fee table.
type FeeEntry struct {
	Recipient chain.Address `json:"recipient" yaml:"recipient"`
	ShareBp   uint32        `json:"share_bp" yaml:"share_bp"`
	Burn      bool          `json:"burn" yaml:"burn"`
}

// FeeRule is the trading configuration of a (collection, denomination) pair.
type FeeRule struct {
	Collection      chain.Address `json:"collection"`
	Denomination    chain.Address `json:"denomination"`
	Enabled         bool          `json:"enabled"`
	QuoteEnabled    bool          `json:"quote_enabled"`
	Fees            []FeeEntry    `json:"fees"`
	RoyaltyRegistry chain.Address `json:"royalty_registry"`
	RoyaltyBurn     bool          `json:"royalty_burn"`
}

// Clone returns an independent copy.
func (r FeeRule) Clone() FeeRule {
	if r.Fees != nil {
		fees := make([]FeeEntry, len(r.Fees))
		copy(fees, r.Fees)
		r.Fees = fees
	}
	return r
}

// FeeBp sums the fee table.
func (r FeeRule) FeeBp() uint64 {
	var total uint64
	for _, fee := range r.Fees {
		total += uint64(fee.ShareBp)
	}
	return total
}

// Tradable reports whether both the collection and the quote are enabled.
func (r FeeRule) Tradable() bool {
	return r.Enabled && r.QuoteEnabled
}

// PaysRoyalties reports whether the rule designates a royalty registry.
func (r FeeRule) PaysRoyalties() bool {
	return !r.RoyaltyRegistry.IsZero()
}
