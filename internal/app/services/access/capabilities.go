// Package access implements the owner + operator capability set attached to
// each exchange component, together with its initialize-once flag.
package access

import (
	"sync"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/internal/ordered"
)

var (
	ErrAlreadyInitialized = errors.StateConflict("already_initialized", "already initialized")
	ErrNotInitialized     = errors.StateConflict("not_initialized", "not initialized")
	ErrZeroOwner          = errors.Validation("zero_owner", "owner cannot be the zero address")
	ErrZeroOperator       = errors.Validation("zero_operator", "operator cannot be the zero address")
	ErrNotOwner           = errors.Permission("not_owner", "caller is not the owner")
	ErrPermissionDenied   = errors.Permission("permission_denied", "permission denied")
)

// Capabilities is safe for concurrent use. The zero value is an
// uninitialized set.
type Capabilities struct {
	mu          sync.RWMutex
	initialized bool
	owner       chain.Address
	operators   *ordered.Map[chain.Address, struct{}]
}

// Initialize sets the owner. It succeeds exactly once.
func (c *Capabilities) Initialize(owner chain.Address) error {
	if owner.IsZero() {
		return ErrZeroOwner
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.initialized {
		return ErrAlreadyInitialized
	}
	c.initialized = true
	c.owner = owner
	c.operators = ordered.NewMap[chain.Address, struct{}]()
	return nil
}

// Initialized reports whether Initialize has run.
func (c *Capabilities) Initialized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized
}

// Owner returns the current owner.
func (c *Capabilities) Owner() chain.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.owner
}

func (c *Capabilities) IsOwner(addr chain.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized && addr == c.owner
}

func (c *Capabilities) IsOperator(addr chain.Address) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.initialized && c.operators.Has(addr)
}

// Operators lists operators in grant order.
func (c *Capabilities) Operators() []chain.Address {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return []chain.Address{}
	}
	return c.operators.Keys()
}

// GrantOperator adds op to the operator set. Owner only.
func (c *Capabilities) GrantOperator(caller, op chain.Address) error {
	if op.IsZero() {
		return ErrZeroOperator
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwnerLocked(caller); err != nil {
		return err
	}
	c.operators.Set(op, struct{}{})
	return nil
}

// RevokeOperator removes op. Owner only. Revoking an unknown operator is
// not an error.
func (c *Capabilities) RevokeOperator(caller, op chain.Address) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwnerLocked(caller); err != nil {
		return err
	}
	c.operators.Delete(op)
	return nil
}

// TransferOwnership hands the owner capability to next. Owner only.
func (c *Capabilities) TransferOwnership(caller, next chain.Address) error {
	if next.IsZero() {
		return ErrZeroOwner
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.requireOwnerLocked(caller); err != nil {
		return err
	}
	c.owner = next
	return nil
}

func (c *Capabilities) RequireInitialized() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (c *Capabilities) RequireOwner(caller chain.Address) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requireOwnerLocked(caller)
}

// RequireOwnerOrOperator gates moderation operations.
func (c *Capabilities) RequireOwnerOrOperator(caller chain.Address) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.initialized {
		return ErrNotInitialized
	}
	if caller == c.owner || c.operators.Has(caller) {
		return nil
	}
	return ErrPermissionDenied.WithDetails("caller", caller)
}

func (c *Capabilities) requireOwnerLocked(caller chain.Address) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if caller != c.owner {
		return ErrNotOwner.WithDetails("caller", caller)
	}
	return nil
}
