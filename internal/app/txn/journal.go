// Package txn carries a compensation journal through context so a
// multi-component operation can be rolled back as a unit.
//
// Each component that mutates state while a journal is active records an
// undo function. If the operation fails the initiator calls Rollback, which
// runs the undo functions newest first. Components never take a lock they
// might already hold inside an undo function, so rollback is safe to run
// while the initiator still holds its own lock.
package txn

import (
	"context"
	"sync"
)

type journalKey struct{}

// Journal collects compensations for one operation.
type Journal struct {
	mu     sync.Mutex
	undo   []func()
	closed bool
}

// Begin returns ctx carrying a new journal.
func Begin(ctx context.Context) (context.Context, *Journal) {
	j := &Journal{}
	return context.WithValue(ctx, journalKey{}, j), j
}

// Join returns the journal already active in ctx, or begins a new one.
// owned reports whether the caller began it and so must Commit or Rollback.
func Join(ctx context.Context) (_ context.Context, j *Journal, owned bool) {
	if j := FromContext(ctx); j != nil {
		return ctx, j, false
	}
	ctx, j = Begin(ctx)
	return ctx, j, true
}

// FromContext returns the active journal, or nil.
func FromContext(ctx context.Context) *Journal {
	if ctx == nil {
		return nil
	}
	j, _ := ctx.Value(journalKey{}).(*Journal)
	return j
}

// Record registers undo on the journal active in ctx. Without a journal the
// call does nothing.
func Record(ctx context.Context, undo func()) {
	if j := FromContext(ctx); j != nil {
		j.Defer(undo)
	}
}

// Defer registers undo. Ignored after Commit or Rollback.
func (j *Journal) Defer(undo func()) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	j.undo = append(j.undo, undo)
}

// Len returns the number of pending compensations.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.undo)
}

// Rollback runs every compensation newest first. Only the first call has an
// effect.
func (j *Journal) Rollback() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	undo := j.undo
	j.undo = nil
	j.mu.Unlock()

	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}

// Commit discards the compensations.
func (j *Journal) Commit() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	j.undo = nil
}
