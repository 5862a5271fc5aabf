package market

import (
	"context"
	"math/big"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/metrics"
	"github.com/R3E-Network/nft_exchange/internal/app/services/value"
)

// PlaceBid escrows price and records caller's bid on a listed asset.
// receiver defaults to caller and is who gets the asset if the bid is
// accepted. Each bidder holds at most one bid per book.
func (e *Engine) PlaceBid(ctx context.Context, caller, collection chain.Address, assetID uint64, denom chain.Address, price, attached *big.Int, receiver chain.Address) error {
	if receiver.IsZero() {
		receiver = caller
	}
	return e.mutate(ctx, "place_bid", func(ctx context.Context) ([]events.Event, error) {
		if !chain.IsPositive(price) {
			return nil, ErrInvalidPrice
		}
		if !e.config.IsEnabled(ctx, collection, denom) {
			return nil, ErrTradingDisabled.WithDetails("collection", collection).WithDetails("denomination", denom)
		}
		ask, ok := e.asks.Get(askKey{collection, assetID})
		if !ok || ask.Denomination != denom {
			return nil, ErrNotListed.WithDetails("asset_id", assetID)
		}
		if caller == ask.Seller {
			return nil, ErrSellerCannotBid
		}
		ref := market.BookRef{Collection: collection, Denomination: denom, AssetID: assetID}
		if book, ok := e.books[ref]; ok && book.Has(caller) {
			return nil, ErrDuplicateBid.WithDetails("bidder", caller)
		}
		if err := checkPayment(denom, price, attached); err != nil {
			return nil, err
		}

		bid := market.Bid{
			Collection:   collection,
			AssetID:      assetID,
			Denomination: denom,
			Bidder:       caller,
			Receiver:     receiver,
			Price:        chain.Amount(price),
			Escrow:       chain.Amount(price),
		}
		e.insertBidLocked(ctx, ref, bid)
		if err := e.router.Move(ctx, value.Transfer{
			Denomination: denom,
			From:         caller,
			To:           e.address,
			Amount:       bid.Escrow,
			Memo:         "escrow bid",
		}); err != nil {
			return nil, err
		}

		ev := events.New(events.BidPlaced, collection, assetID, caller).
			WithAmount(denom, bid.Price).
			WithCounterparty(receiver)
		return []events.Event{ev}, nil
	})
}

// UpdateBidPrice moves caller's bid to newPrice. Raising the bid escrows the
// difference, lowering it refunds the difference to the bidder.
func (e *Engine) UpdateBidPrice(ctx context.Context, caller, collection chain.Address, assetID uint64, denom chain.Address, newPrice, attached *big.Int) error {
	return e.mutate(ctx, "update_bid", func(ctx context.Context) ([]events.Event, error) {
		ref := market.BookRef{Collection: collection, Denomination: denom, AssetID: assetID}
		bid, ok := e.bidLocked(ref, caller)
		if !ok {
			return nil, ErrNotBidder
		}
		if !chain.IsPositive(newPrice) {
			return nil, ErrInvalidPrice
		}
		if bid.Price.Cmp(newPrice) == 0 {
			return nil, ErrSamePrice
		}

		delta := new(big.Int).Sub(newPrice, bid.Escrow)
		var move value.Transfer
		if delta.Sign() > 0 {
			if err := checkPayment(denom, delta, attached); err != nil {
				return nil, err
			}
			move = value.Transfer{Denomination: denom, From: caller, To: e.address, Amount: delta, Memo: "escrow bid increase"}
		} else {
			if !chain.IsZeroAmount(attached) {
				return nil, ErrPaymentAmount.WithDetails("due", "0").WithDetails("attached", attached.String())
			}
			move = value.Transfer{Denomination: denom, From: e.address, To: caller, Amount: new(big.Int).Neg(delta), Memo: "refund bid decrease"}
		}

		next := bid.Clone()
		next.Price = chain.Amount(newPrice)
		next.Escrow = chain.Amount(newPrice)
		e.replaceBidLocked(ctx, ref, bid, next)
		if err := e.router.Move(ctx, move); err != nil {
			return nil, err
		}

		ev := events.New(events.BidRepriced, collection, assetID, caller).
			WithAmount(denom, next.Price).
			With("previous_price", bid.Price.String())
		return []events.Event{ev}, nil
	})
}

// CancelBid withdraws caller's bid and refunds its escrow.
func (e *Engine) CancelBid(ctx context.Context, caller, collection, denom chain.Address, assetID uint64) error {
	return e.mutate(ctx, "cancel_bid", func(ctx context.Context) ([]events.Event, error) {
		ref := market.BookRef{Collection: collection, Denomination: denom, AssetID: assetID}
		bid, ok := e.bidLocked(ref, caller)
		if !ok {
			return nil, ErrBidNotFound.WithDetails("bidder", caller)
		}

		e.removeBidLocked(ctx, ref, caller)
		if err := e.router.Move(ctx, value.Transfer{
			Denomination: denom,
			From:         e.address,
			To:           bid.Bidder,
			Amount:       bid.Escrow,
			Memo:         "refund bid",
		}); err != nil {
			return nil, err
		}

		ev := events.New(events.BidCancelled, collection, assetID, caller).WithAmount(denom, bid.Escrow)
		return []events.Event{ev}, nil
	})
}

// AcceptBid settles the listing against buyer's bid at price. Only the
// seller may accept. The asset goes to the bid's receiver and every other
// bid on the asset is left untouched.
func (e *Engine) AcceptBid(ctx context.Context, caller, collection chain.Address, assetID uint64, denom chain.Address, price *big.Int, buyer chain.Address) error {
	return e.mutate(ctx, "accept_bid", func(ctx context.Context) ([]events.Event, error) {
		ask, ok := e.asks.Get(askKey{collection, assetID})
		if !ok || ask.Denomination != denom {
			return nil, ErrNotListed.WithDetails("asset_id", assetID)
		}
		if caller != ask.Seller {
			return nil, ErrNotSeller
		}
		ref := market.BookRef{Collection: collection, Denomination: denom, AssetID: assetID}
		bid, ok := e.bidLocked(ref, buyer)
		if !ok || bid.Price.Cmp(chain.Amount(price)) != 0 {
			return nil, ErrBidNotFound.WithDetails("bidder", buyer)
		}
		custody, plan, err := e.prepareSaleLocked(ctx, ask, bid.Price)
		if err != nil {
			return nil, err
		}

		e.removeBidLocked(ctx, ref, buyer)
		e.removeAskLocked(ctx, ask)
		if err := custody.MoveCustody(ctx, e.address, e.address, bid.Receiver, assetID); err != nil {
			return nil, err
		}
		settlementID, err := e.payOutLocked(ctx, plan)
		if err != nil {
			return nil, err
		}

		metrics.RecordSettlement(denom, "bid", bid.Price)
		ev := events.New(events.BidAccepted, collection, assetID, caller).
			WithAmount(denom, bid.Price).
			WithCounterparty(buyer).
			With("settlement_id", settlementID).
			With("receiver", bid.Receiver.String())
		return []events.Event{ev}, nil
	})
}

func (e *Engine) bidLocked(ref market.BookRef, bidder chain.Address) (market.Bid, bool) {
	book, ok := e.books[ref]
	if !ok {
		return market.Bid{}, false
	}
	return book.Get(bidder)
}
