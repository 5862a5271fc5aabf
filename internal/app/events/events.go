// Package events records successful registry and exchange operations for
// introspection. Events are written after an operation commits; a sink
// failure is logged and never undoes the operation.
package events

import (
	"context"
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

// Type names an event.
type Type string

const (
	AssetMinted      Type = "asset.minted"
	AssetConfirmed   Type = "asset.confirmed"
	AssetRejected    Type = "asset.rejected"
	AssetResubmitted Type = "asset.resubmitted"
	AssetBurned      Type = "asset.burned"
	AssetTransferred Type = "asset.transferred"

	ListingCreated   Type = "market.listed"
	ListingCancelled Type = "market.delisted"
	ListingRepriced  Type = "market.repriced"
	AssetSold        Type = "market.sold"
	BidPlaced        Type = "market.bid_placed"
	BidRepriced      Type = "market.bid_repriced"
	BidCancelled     Type = "market.bid_cancelled"
	BidAccepted      Type = "market.bid_accepted"
)

// Event is one journal record.
type Event struct {
	ID           string            `json:"id"`
	Type         Type              `json:"type"`
	Collection   chain.Address     `json:"collection"`
	AssetID      uint64            `json:"asset_id"`
	Actor        chain.Address     `json:"actor"`
	Counterparty chain.Address     `json:"counterparty,omitempty"`
	Denomination chain.Address     `json:"denomination,omitempty"`
	Amount       string            `json:"amount,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
	OccurredAt   time.Time         `json:"occurred_at"`
}

// New starts an event with a fresh id and the current time.
func New(t Type, collection chain.Address, assetID uint64, actor chain.Address) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Collection: collection,
		AssetID:    assetID,
		Actor:      actor,
		OccurredAt: time.Now().UTC(),
	}
}

// WithAmount sets the denomination and amount in base units.
func (e Event) WithAmount(denom chain.Address, amount *big.Int) Event {
	e.Denomination = denom
	e.Amount = chain.Amount(amount).String()
	return e
}

// WithCounterparty sets the other party of the operation.
func (e Event) WithCounterparty(addr chain.Address) Event {
	e.Counterparty = addr
	return e
}

// With sets an attribute.
func (e Event) With(key, value string) Event {
	attrs := make(map[string]string, len(e.Attributes)+1)
	for k, v := range e.Attributes {
		attrs[k] = v
	}
	attrs[key] = value
	e.Attributes = attrs
	return e
}

// Key identifies the asset an event refers to, e.g. "0xnft/7".
func (e Event) Key() string {
	return string(e.Collection) + "/" + strconv.FormatUint(e.AssetID, 10)
}

// Recorder accepts events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Collection chain.Address
	AssetID    uint64
	Type       Type
	Limit      int
}

// Matches reports whether ev passes the filter, ignoring Limit.
func (f Filter) Matches(ev Event) bool {
	if f.Collection != "" && ev.Collection != f.Collection {
		return false
	}
	if f.AssetID != 0 && ev.AssetID != f.AssetID {
		return false
	}
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	return true
}

// Emitter records events on a sink and logs failures.
type Emitter struct {
	sink Recorder
	log  *logger.Logger
}

// NewEmitter wraps sink. A nil sink drops events.
func NewEmitter(sink Recorder, log *logger.Logger) *Emitter {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Emitter{sink: sink, log: log}
}

// Emit records ev.
func (e *Emitter) Emit(ctx context.Context, ev Event) {
	if e == nil || e.sink == nil {
		return
	}
	if err := e.sink.Record(ctx, ev); err != nil {
		e.log.WithContext(ctx).WithError(err).WithFields(map[string]interface{}{
			"event": ev.Type,
			"asset": ev.Key(),
		}).Warn("record event")
	}
}

// Multi fans an event out to several sinks and reports every failure.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps the most recent events in process.
type Memory struct {
	mu     sync.RWMutex
	limit  int
	events []Event
}

// NewMemory keeps at most limit events; limit <= 0 keeps everything.
func NewMemory(limit int) *Memory {
	return &Memory{limit: limit}
}

func (m *Memory) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	if m.limit > 0 && len(m.events) > m.limit {
		m.events = append([]Event(nil), m.events[len(m.events)-m.limit:]...)
	}
	return nil
}

// List returns matching events, oldest first. With a Limit the newest
// Limit matches are returned.
func (m *Memory) List(_ context.Context, f Filter) []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, 0)
	for _, ev := range m.events {
		if f.Matches(ev) {
			out = append(out, ev)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
