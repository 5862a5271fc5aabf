// Package market implements the exchange engine: fixed-price listings,
// escrowed bids and settlement with ordered fee and royalty distribution.
//
// # Escrow
//
// Listing an asset moves its custody to the engine's own address. Bids move
// the bid amount into the engine's balance. Settlement pays fee recipients
// (fee table order), royalty beneficiaries (mint order) and the seller out
// of that escrow, then the asset goes to the buyer or the bid's receiver.
//
// # Ordering and atomicity
//
// Every mutating operation runs under the engine lock and follows
// checks-effects-interactions: all validation first, then every bookkeeping
// change (asks, bids, indices, custody) and only then value transfers. All
// changes are recorded in a txn journal; if any transfer fails the journal
// is rolled back and the caller receives a transfer failure, so a failed
// operation leaves no trace.
//
// # Reentrancy
//
// Transfers can call back into the engine through recipient hooks. The
// context handed to collaborators is marked; a query made with a marked
// context runs without the lock and observes the already-updated state,
// while a mutation made with it fails with ErrReentrantCall.
//
// A callback must therefore pass on the context it was given. A call made
// with any other context waits for the lock its own operation holds and
// never returns; the engine logs a warning once such a wait exceeds
// LockWaitWarning.
package market

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/asset"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/domain/market"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/metrics"
	"github.com/R3E-Network/nft_exchange/internal/app/services/access"
	"github.com/R3E-Network/nft_exchange/internal/app/services/value"
	"github.com/R3E-Network/nft_exchange/internal/app/txn"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/internal/ordered"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

var (
	ErrInvalidPrice      = errors.Validation("invalid_price", "price must be greater than zero")
	ErrPriceMismatch     = errors.Validation("price_mismatch", "price does not match the listing")
	ErrPaymentAmount     = errors.Validation("payment_amount", "attached value does not match the amount due")
	ErrSamePrice         = errors.Validation("same_price", "price cannot be the same")
	ErrZeroAddress       = errors.Validation("zero_address", "engine address cannot be zero")
	ErrNoTradeConfig     = errors.Validation("no_trade_config", "trade config is required")
	ErrNotSeller         = errors.Permission("not_seller", "only seller")
	ErrNotBidder         = errors.Permission("not_bidder", "only bidder can update the bid price")
	ErrSellerCannotBid   = errors.Permission("seller_cannot_bid", "owner cannot bid")
	ErrTradingDisabled   = errors.StateConflict("trading_disabled", "trading disabled for pair")
	ErrAlreadyListed     = errors.StateConflict("already_listed", "asset already listed")
	ErrNotListed         = errors.StateConflict("not_listed", "token not in sell book")
	ErrBidOnly           = errors.StateConflict("bid_only", "only bid")
	ErrDuplicateBid      = errors.StateConflict("duplicate_bid", "bidder already exists")
	ErrBidNotFound       = errors.StateConflict("bid_not_found", "no matching bid")
	ErrUnknownCollection = errors.StateConflict("unknown_collection", "collection not registered")
	ErrReentrantCall     = errors.StateConflict("reentrant_call", "reentrant call")
)

// TradeConfig supplies the trading rules of a (collection, denomination)
// pair.
type TradeConfig interface {
	IsEnabled(ctx context.Context, collection, denom chain.Address) bool
	FeeRule(ctx context.Context, collection, denom chain.Address) (market.FeeRule, error)
}

// Custody is the part of an asset registry the engine drives.
type Custody interface {
	MoveCustody(ctx context.Context, operator, from, to chain.Address, assetID uint64) error
	OwnerOf(ctx context.Context, assetID uint64) (chain.Address, error)
	Exists(ctx context.Context, assetID uint64) bool
	RoyaltiesOf(ctx context.Context, assetID uint64) (asset.RoyaltySpec, error)
}

// Collections resolves a collection address to its registry.
type Collections interface {
	Custody(ctx context.Context, collection chain.Address) (Custody, error)
}

// CollectionsFunc adapts a function to Collections.
type CollectionsFunc func(ctx context.Context, collection chain.Address) (Custody, error)

func (f CollectionsFunc) Custody(ctx context.Context, collection chain.Address) (Custody, error) {
	return f(ctx, collection)
}

// Settings is the one-time bootstrap configuration.
type Settings struct {
	Address     chain.Address
	TradeConfig TradeConfig
}

type askKey struct {
	collection chain.Address
	assetID    uint64
}

type pairKey struct {
	collection chain.Address
	denom      chain.Address
}

type sellerKey struct {
	collection chain.Address
	denom      chain.Address
	seller     chain.Address
}

type reentryKey struct{ e *Engine }

// LockWaitWarning is how long a call waits for the engine lock before a
// warning is logged.
const LockWaitWarning = 5 * time.Second

// Engine is safe for concurrent use.
type Engine struct {
	caps        access.Capabilities
	collections Collections
	backend     value.Transferer
	events      *events.Emitter
	log         *logger.Logger
	lockWait    time.Duration

	mu          sync.RWMutex
	address     chain.Address
	router      *value.Router
	config      TradeConfig
	askSeq      uint64
	asks        *ordered.Map[askKey, market.Ask]
	pairAsks    *ordered.Index[pairKey, askKey]
	sellerAsks  *ordered.Index[sellerKey, askKey]
	books       map[market.BookRef]*ordered.Map[chain.Address, market.Bid]
	bidderBooks *ordered.Index[chain.Address, market.BookRef]
}

// New creates an uninitialized engine.
func New(collections Collections, backend value.Transferer, sink events.Recorder, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.NewDefault("market")
	}
	return &Engine{
		collections: collections,
		backend:     backend,
		events:      events.NewEmitter(sink, log),
		log:         log,
		lockWait:    LockWaitWarning,
		asks:        ordered.NewMap[askKey, market.Ask](),
		pairAsks:    ordered.NewIndex[pairKey, askKey](),
		sellerAsks:  ordered.NewIndex[sellerKey, askKey](),
		books:       make(map[market.BookRef]*ordered.Map[chain.Address, market.Bid]),
		bidderBooks: ordered.NewIndex[chain.Address, market.BookRef](),
	}
}

// Initialize runs once; caller becomes the owner.
func (e *Engine) Initialize(ctx context.Context, caller chain.Address, s Settings) error {
	if s.Address.IsZero() {
		return ErrZeroAddress
	}
	if s.TradeConfig == nil {
		return ErrNoTradeConfig
	}
	if err := e.caps.Initialize(caller); err != nil {
		return err
	}
	e.mu.Lock()
	e.address = s.Address
	e.config = s.TradeConfig
	e.router = value.NewRouter(e.backend, s.Address)
	e.mu.Unlock()

	e.log.WithContext(ctx).WithFields(map[string]interface{}{
		"address": s.Address,
		"owner":   caller,
	}).Info("exchange initialized")
	return nil
}

// SetTradeConfig swaps the rule source. Owner only.
func (e *Engine) SetTradeConfig(ctx context.Context, caller chain.Address, cfg TradeConfig) error {
	if cfg == nil {
		return ErrNoTradeConfig
	}
	if err := e.caps.RequireOwner(caller); err != nil {
		return err
	}
	e.mu.Lock()
	e.config = cfg
	e.mu.Unlock()
	return nil
}

func (e *Engine) Owner() chain.Address { return e.caps.Owner() }

// Address returns the escrow address assets and funds are held under.
func (e *Engine) Address(ctx context.Context) chain.Address {
	defer e.read(ctx)()
	return e.address
}

// TradeConfig returns the current rule source.
func (e *Engine) TradeConfig(ctx context.Context) TradeConfig {
	defer e.read(ctx)()
	return e.config
}

// =============================================================================
// Operation scaffolding
// =============================================================================

func (e *Engine) reentrant(ctx context.Context) bool {
	return ctx != nil && ctx.Value(reentryKey{e}) != nil
}

// read takes the read lock unless ctx belongs to an operation in progress,
// and returns the matching release.
func (e *Engine) read(ctx context.Context) func() {
	if e.reentrant(ctx) {
		return func() {}
	}
	e.acquire(ctx, "query", e.mu.TryRLock, e.mu.RLock)
	return e.mu.RUnlock
}

// acquire takes the lock through try, falling back to the blocking lock
// and logging a warning if that wait outlasts e.lockWait.
func (e *Engine) acquire(ctx context.Context, op string, try func() bool, lock func()) {
	if try() {
		return
	}
	timer := time.AfterFunc(e.lockWait, func() {
		e.log.WithContext(ctx).WithField("operation", op).WithField("waited", e.lockWait.String()).
			Warn("still waiting for the exchange lock; a callback re-entering the exchange must pass on the context it was given")
	})
	lock()
	timer.Stop()
}

// mutate runs fn as one all-or-nothing operation and emits its events once
// it has committed.
func (e *Engine) mutate(ctx context.Context, op string, fn func(ctx context.Context) ([]events.Event, error)) error {
	if e.reentrant(ctx) {
		err := ErrReentrantCall.WithDetails("operation", op)
		metrics.RecordMarketOperation(op, err)
		return err
	}
	if err := e.caps.RequireInitialized(); err != nil {
		metrics.RecordMarketOperation(op, err)
		return err
	}

	e.acquire(ctx, op, e.mu.TryLock, e.mu.Lock)
	opCtx := context.WithValue(ctx, reentryKey{e}, struct{}{})
	opCtx, journal, owned := txn.Join(opCtx)
	evs, err := fn(opCtx)
	if owned {
		if err != nil {
			journal.Rollback()
		} else {
			journal.Commit()
		}
	}
	listings := e.asks.Len()
	e.mu.Unlock()

	metrics.RecordMarketOperation(op, err)
	metrics.SetOpenListings(listings)
	if err != nil {
		entry := e.log.WithContext(ctx).WithError(err).WithField("operation", op)
		if errors.IsTransferFailure(err) {
			entry.Warn("operation aborted by failed transfer")
		} else {
			entry.Debug("operation rejected")
		}
		return err
	}
	for _, ev := range evs {
		e.events.Emit(ctx, ev)
	}
	return nil
}

func (e *Engine) custodyLocked(ctx context.Context, collection chain.Address) (Custody, error) {
	if e.collections == nil {
		return nil, ErrUnknownCollection.WithDetails("collection", collection)
	}
	c, err := e.collections.Custody(ctx, collection)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrUnknownCollection.WithDetails("collection", collection)
	}
	return c, nil
}

// checkPayment validates the value attached to a call that owes due.
// Native payments must attach exactly due; token payments are pulled with
// an allowance and must attach nothing.
func checkPayment(denom chain.Address, due, attached *big.Int) error {
	if denom.IsNative() {
		if chain.Amount(attached).Cmp(due) != 0 {
			return ErrPaymentAmount.WithDetails("due", due.String()).WithDetails("attached", chain.Amount(attached).String())
		}
		return nil
	}
	if !chain.IsZeroAmount(attached) {
		return ErrPaymentAmount.WithDetails("due", "0").WithDetails("attached", attached.String())
	}
	return nil
}

// =============================================================================
// Bookkeeping (caller holds e.mu; every change is journaled)
// =============================================================================

func (e *Engine) insertAskLocked(ctx context.Context, ask market.Ask) market.Ask {
	e.askSeq++
	ask.Sequence = e.askSeq
	key := askKey{ask.Collection, ask.AssetID}
	pk := pairKey{ask.Collection, ask.Denomination}
	sk := sellerKey{ask.Collection, ask.Denomination, ask.Seller}

	e.asks.Set(key, ask)
	e.pairAsks.Add(pk, key)
	e.sellerAsks.Add(sk, key)
	txn.Record(ctx, func() {
		e.asks.Delete(key)
		e.pairAsks.Remove(pk, key)
		e.sellerAsks.Remove(sk, key)
	})
	return ask
}

func (e *Engine) removeAskLocked(ctx context.Context, ask market.Ask) {
	key := askKey{ask.Collection, ask.AssetID}
	pk := pairKey{ask.Collection, ask.Denomination}
	sk := sellerKey{ask.Collection, ask.Denomination, ask.Seller}

	askEntry, _ := e.asks.Delete(key)
	pairEntry, _ := e.pairAsks.Remove(pk, key)
	sellerEntry, _ := e.sellerAsks.Remove(sk, key)
	txn.Record(ctx, func() {
		e.asks.Restore(askEntry)
		e.pairAsks.Restore(pk, pairEntry)
		e.sellerAsks.Restore(sk, sellerEntry)
	})
}

func (e *Engine) replaceAskLocked(ctx context.Context, prev, next market.Ask) {
	key := askKey{prev.Collection, prev.AssetID}
	e.asks.Set(key, next)
	txn.Record(ctx, func() { e.asks.Set(key, prev) })
}

func (e *Engine) bookLocked(ref market.BookRef) *ordered.Map[chain.Address, market.Bid] {
	book, ok := e.books[ref]
	if !ok {
		book = ordered.NewMap[chain.Address, market.Bid]()
		e.books[ref] = book
	}
	return book
}

func (e *Engine) insertBidLocked(ctx context.Context, ref market.BookRef, bid market.Bid) {
	e.bookLocked(ref).Set(bid.Bidder, bid)
	e.bidderBooks.Add(bid.Bidder, ref)
	txn.Record(ctx, func() {
		e.bookLocked(ref).Delete(bid.Bidder)
		e.bidderBooks.Remove(bid.Bidder, ref)
		e.pruneBookLocked(ref)
	})
}

func (e *Engine) removeBidLocked(ctx context.Context, ref market.BookRef, bidder chain.Address) {
	bidEntry, _ := e.bookLocked(ref).Delete(bidder)
	indexEntry, _ := e.bidderBooks.Remove(bidder, ref)
	e.pruneBookLocked(ref)
	txn.Record(ctx, func() {
		e.bookLocked(ref).Restore(bidEntry)
		e.bidderBooks.Restore(bidder, indexEntry)
	})
}

func (e *Engine) replaceBidLocked(ctx context.Context, ref market.BookRef, prev, next market.Bid) {
	e.bookLocked(ref).Set(next.Bidder, next)
	txn.Record(ctx, func() { e.bookLocked(ref).Set(prev.Bidder, prev) })
}

func (e *Engine) pruneBookLocked(ref market.BookRef) {
	if book, ok := e.books[ref]; ok && book.Len() == 0 {
		delete(e.books, ref)
	}
}
