// Package testutil provides test doubles shared by the exchange packages.
package testutil

import (
	"context"
	"math/big"
	"sync"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/events"
)

// Transfer is one call seen by a RecordingTransferer.
type Transfer struct {
	Native  bool
	Token   chain.Address
	Spender chain.Address
	From    chain.Address
	To      chain.Address
	Amount  string
}

// RecordingTransferer records every transfer and fails them all once Fail
// is set.
type RecordingTransferer struct {
	mu    sync.Mutex
	calls []Transfer
	Fail  error
}

func (r *RecordingTransferer) TransferNative(_ context.Context, from, to chain.Address, amount *big.Int) error {
	return r.record(Transfer{Native: true, From: from, To: to, Amount: amount.String()})
}

func (r *RecordingTransferer) TransferToken(_ context.Context, token, spender, from, to chain.Address, amount *big.Int) error {
	return r.record(Transfer{Token: token, Spender: spender, From: from, To: to, Amount: amount.String()})
}

func (r *RecordingTransferer) record(t Transfer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, t)
	return r.Fail
}

// Calls returns a copy of the recorded transfers in call order.
func (r *RecordingTransferer) Calls() []Transfer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Transfer(nil), r.calls...)
}

// EventSink collects events and can be told to reject them.
type EventSink struct {
	mu     sync.Mutex
	events []events.Event
	Fail   error
}

func (s *EventSink) Record(_ context.Context, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	s.events = append(s.events, ev)
	return nil
}

// Types returns the recorded event types in order.
func (s *EventSink) Types() []events.Type {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]events.Type, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

// Events returns a copy of the recorded events.
func (s *EventSink) Events() []events.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]events.Event(nil), s.events...)
}

// Ether returns n whole units of an 18-decimal currency.
func Ether(n int64) *big.Int {
	return Units(n, 18)
}

// Units returns n * 10^decimals.
func Units(n int64, decimals int64) *big.Int {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(decimals), nil)
	return scale.Mul(scale, big.NewInt(n))
}
