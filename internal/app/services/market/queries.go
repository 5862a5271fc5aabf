package market

import (
	"context"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
)

// Asks lists the open asks of a pair in listing order.
func (e *Engine) Asks(ctx context.Context, collection, denom chain.Address) []market.Ask {
	defer e.read(ctx)()
	return e.collectAsksLocked(e.pairAsks.Keys(pairKey{collection, denom}))
}

// UserAsks lists seller's open asks of a pair in listing order.
func (e *Engine) UserAsks(ctx context.Context, collection, denom, seller chain.Address) []market.Ask {
	defer e.read(ctx)()
	return e.collectAsksLocked(e.sellerAsks.Keys(sellerKey{collection, denom, seller}))
}

// Ask returns the open ask of an asset.
func (e *Engine) Ask(ctx context.Context, collection chain.Address, assetID uint64) (market.Ask, error) {
	defer e.read(ctx)()
	ask, ok := e.asks.Get(askKey{collection, assetID})
	if !ok {
		return market.Ask{}, ErrNotListed.WithDetails("asset_id", assetID)
	}
	return ask.Clone(), nil
}

// OpenListings returns the number of open asks across all pairs.
func (e *Engine) OpenListings(ctx context.Context) int {
	defer e.read(ctx)()
	return e.asks.Len()
}

// Bids lists a book in placement order.
func (e *Engine) Bids(ctx context.Context, collection, denom chain.Address, assetID uint64) []market.Bid {
	defer e.read(ctx)()
	book, ok := e.books[market.BookRef{Collection: collection, Denomination: denom, AssetID: assetID}]
	if !ok {
		return []market.Bid{}
	}
	out := make([]market.Bid, 0, book.Len())
	for _, bid := range book.Values() {
		out = append(out, bid.Clone())
	}
	return out
}

// BidCount returns the size of a book.
func (e *Engine) BidCount(ctx context.Context, collection, denom chain.Address, assetID uint64) int {
	defer e.read(ctx)()
	book, ok := e.books[market.BookRef{Collection: collection, Denomination: denom, AssetID: assetID}]
	if !ok {
		return 0
	}
	return book.Len()
}

// Bid returns bidder's bid in a book.
func (e *Engine) Bid(ctx context.Context, collection, denom chain.Address, assetID uint64, bidder chain.Address) (market.Bid, error) {
	defer e.read(ctx)()
	bid, ok := e.bidLocked(market.BookRef{Collection: collection, Denomination: denom, AssetID: assetID}, bidder)
	if !ok {
		return market.Bid{}, ErrBidNotFound.WithDetails("bidder", bidder)
	}
	return bid.Clone(), nil
}

// UserBids lists the books bidder has an open bid in, oldest first.
func (e *Engine) UserBids(ctx context.Context, bidder chain.Address) []market.BookRef {
	defer e.read(ctx)()
	return e.bidderBooks.Keys(bidder)
}

func (e *Engine) collectAsksLocked(keys []askKey) []market.Ask {
	out := make([]market.Ask, 0, len(keys))
	for _, k := range keys {
		if ask, ok := e.asks.Get(k); ok {
			out = append(out, ask.Clone())
		}
	}
	return out
}
