// Package memory provides the in-process EventLog used when no database is
// configured.
package memory

import (
	"context"

	"github.com/R3E-Network/nft_exchange/internal/app/events"
	"github.com/R3E-Network/nft_exchange/internal/app/storage"
)

// Log keeps the newest capacity events in process.
type Log struct {
	mem *events.Memory
}

var _ storage.EventLog = (*Log)(nil)

// New creates a Log; capacity <= 0 keeps everything.
func New(capacity int) *Log {
	return &Log{mem: events.NewMemory(capacity)}
}

func (l *Log) Record(ctx context.Context, ev events.Event) error {
	return l.mem.Record(ctx, ev)
}

func (l *Log) List(ctx context.Context, f events.Filter) ([]events.Event, error) {
	return l.mem.List(ctx, f), nil
}
