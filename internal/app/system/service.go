package system

import "context"

// Service represents a lifecycle-managed component. Journals, publishers and
// the ops listener implement it so the manager can start and stop them in a
// deterministic order.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
