// Package storage declares the persistence contracts of the exchange.
package storage

import (
	"context"

	"github.com/R3E-Network/nft_exchange/internal/app/events"
)

// EventLog is a queryable append-only event journal.
type EventLog interface {
	events.Recorder
	List(ctx context.Context, f events.Filter) ([]events.Event, error)
}
