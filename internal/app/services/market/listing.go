package market

import (
	"context"
	"math/big"

	"github.com/google/uuid"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/metrics"
	"github.com/R3E-Network/nft_exchange/internal/app/services/value"
	"github.com/R3E-Network/nft_exchange/internal/errors"
)

// ListAsset escrows assetID and opens a fixed-price ask in denom. seller
// defaults to caller and is who receives the proceeds. With bidOnly the ask
// only accepts bids.
func (e *Engine) ListAsset(ctx context.Context, caller, collection chain.Address, assetID uint64, denom chain.Address, price *big.Int, seller chain.Address, bidOnly bool) error {
	if seller.IsZero() {
		seller = caller
	}
	return e.mutate(ctx, "list", func(ctx context.Context) ([]events.Event, error) {
		if !chain.IsPositive(price) {
			return nil, ErrInvalidPrice
		}
		if !e.config.IsEnabled(ctx, collection, denom) {
			return nil, ErrTradingDisabled.WithDetails("collection", collection).WithDetails("denomination", denom)
		}
		if e.asks.Has(askKey{collection, assetID}) {
			return nil, ErrAlreadyListed.WithDetails("asset_id", assetID)
		}
		custody, err := e.custodyLocked(ctx, collection)
		if err != nil {
			return nil, err
		}

		if err := custody.MoveCustody(ctx, e.address, caller, e.address, assetID); err != nil {
			return nil, err
		}
		ask := e.insertAskLocked(ctx, market.Ask{
			Collection:   collection,
			AssetID:      assetID,
			Denomination: denom,
			Seller:       seller,
			Price:        chain.Amount(price),
			BidOnly:      bidOnly,
		})

		ev := events.New(events.ListingCreated, collection, assetID, caller).
			WithAmount(denom, ask.Price).
			WithCounterparty(seller)
		if bidOnly {
			ev = ev.With("bid_only", "true")
		}
		return []events.Event{ev}, nil
	})
}

// CancelListing removes the ask and returns the asset to the seller. Open
// bids on the asset stay in place and remain cancellable by their bidders.
func (e *Engine) CancelListing(ctx context.Context, caller, collection chain.Address, assetID uint64) error {
	return e.mutate(ctx, "cancel_listing", func(ctx context.Context) ([]events.Event, error) {
		ask, ok := e.asks.Get(askKey{collection, assetID})
		if !ok {
			return nil, ErrNotListed.WithDetails("asset_id", assetID)
		}
		if caller != ask.Seller {
			return nil, ErrNotSeller
		}
		custody, err := e.custodyLocked(ctx, collection)
		if err != nil {
			return nil, err
		}

		e.removeAskLocked(ctx, ask)
		if err := custody.MoveCustody(ctx, e.address, e.address, ask.Seller, assetID); err != nil {
			return nil, err
		}
		return []events.Event{events.New(events.ListingCancelled, collection, assetID, caller)}, nil
	})
}

// UpdatePrice reprices an open ask in denom.
func (e *Engine) UpdatePrice(ctx context.Context, caller, collection chain.Address, assetID uint64, denom chain.Address, newPrice *big.Int) error {
	return e.mutate(ctx, "update_price", func(ctx context.Context) ([]events.Event, error) {
		ask, ok := e.asks.Get(askKey{collection, assetID})
		if !ok || ask.Denomination != denom {
			return nil, ErrNotListed.WithDetails("asset_id", assetID)
		}
		if caller != ask.Seller {
			return nil, ErrNotSeller
		}
		if !chain.IsPositive(newPrice) {
			return nil, ErrInvalidPrice
		}
		if ask.Price.Cmp(newPrice) == 0 {
			return nil, ErrSamePrice
		}

		next := ask.Clone()
		next.Price = chain.Amount(newPrice)
		e.replaceAskLocked(ctx, ask, next)

		ev := events.New(events.ListingRepriced, collection, assetID, caller).
			WithAmount(denom, next.Price).
			With("previous_price", ask.Price.String())
		return []events.Event{ev}, nil
	})
}

// BuyFixedPrice buys a listed asset at its ask price. A native payment must
// attach exactly price; a token payment attaches nothing and is pulled from
// caller under the allowance granted to the engine. recipient defaults to
// caller.
func (e *Engine) BuyFixedPrice(ctx context.Context, caller, collection chain.Address, assetID uint64, denom chain.Address, price, attached *big.Int, recipient chain.Address) error {
	if recipient.IsZero() {
		recipient = caller
	}
	return e.mutate(ctx, "buy", func(ctx context.Context) ([]events.Event, error) {
		ask, ok := e.asks.Get(askKey{collection, assetID})
		if !ok || ask.Denomination != denom {
			return nil, ErrNotListed.WithDetails("asset_id", assetID)
		}
		if ask.BidOnly {
			return nil, ErrBidOnly
		}
		if ask.Price.Cmp(chain.Amount(price)) != 0 {
			return nil, ErrPriceMismatch.WithDetails("listed", ask.Price.String())
		}
		if err := checkPayment(denom, ask.Price, attached); err != nil {
			return nil, err
		}
		custody, plan, err := e.prepareSaleLocked(ctx, ask, ask.Price)
		if err != nil {
			return nil, err
		}

		e.removeAskLocked(ctx, ask)
		if err := custody.MoveCustody(ctx, e.address, e.address, recipient, assetID); err != nil {
			return nil, err
		}

		collect := value.Transfer{
			Denomination: denom,
			From:         caller,
			To:           e.address,
			Amount:       ask.Price,
			Memo:         "collect payment",
		}
		if err := e.router.Move(ctx, collect); err != nil {
			return nil, err
		}
		settlementID, err := e.payOutLocked(ctx, plan)
		if err != nil {
			return nil, err
		}

		metrics.RecordSettlement(denom, "fixed_price", ask.Price)
		ev := events.New(events.AssetSold, collection, assetID, caller).
			WithAmount(denom, ask.Price).
			WithCounterparty(ask.Seller).
			With("settlement_id", settlementID).
			With("recipient", recipient.String())
		return []events.Event{ev}, nil
	})
}

// prepareSaleLocked runs every check a settlement of ask at price depends
// on and returns the payout plan. It changes nothing.
func (e *Engine) prepareSaleLocked(ctx context.Context, ask market.Ask, price *big.Int) (Custody, market.Settlement, error) {
	if !e.config.IsEnabled(ctx, ask.Collection, ask.Denomination) {
		return nil, market.Settlement{}, ErrTradingDisabled.WithDetails("collection", ask.Collection).WithDetails("denomination", ask.Denomination)
	}
	custody, err := e.custodyLocked(ctx, ask.Collection)
	if err != nil {
		return nil, market.Settlement{}, err
	}
	royalties, err := custody.RoyaltiesOf(ctx, ask.AssetID)
	if err != nil {
		return nil, market.Settlement{}, err
	}
	rule, err := e.config.FeeRule(ctx, ask.Collection, ask.Denomination)
	if err != nil {
		return nil, market.Settlement{}, err
	}
	rule.Denomination = ask.Denomination
	plan, err := market.PlanSettlement(price, rule, royalties, ask.Seller)
	if err != nil {
		return nil, market.Settlement{}, errors.Internal("settlement plan", err)
	}
	return custody, plan, nil
}

// payOutLocked distributes plan from the engine's escrow balance in plan
// order and returns the settlement id.
func (e *Engine) payOutLocked(ctx context.Context, plan market.Settlement) (string, error) {
	id := uuid.NewString()
	for _, p := range plan.Payouts {
		t := value.Transfer{
			Denomination: plan.Denomination,
			From:         e.address,
			To:           p.Recipient,
			Amount:       p.Amount,
			Burn:         p.Burn,
			Memo:         string(p.Kind),
		}
		if err := e.router.Move(ctx, t); err != nil {
			return "", err
		}
	}
	e.log.WithContext(ctx).WithFields(map[string]interface{}{
		"settlement_id": id,
		"denomination":  plan.Denomination,
		"price":         plan.Price.String(),
		"payouts":       len(plan.Payouts),
	}).Debug("settlement distributed")
	return id, nil
}
