// Package value routes payments to the native-currency or token path based
// on the denomination sentinel.
package value

import (
	"context"
	"fmt"
	"math/big"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/errors"
)

// Transferer moves value between accounts.
//
// TransferNative moves exactly amount of the native currency from from to to
// and fails when from cannot cover it. TransferToken moves amount of token
// from from to to on behalf of spender, which needs a prior allowance unless
// it is from itself.
//
// Implementations that notify recipients must hand them ctx, or a context
// derived from it. The exchange marks ctx for the operation in progress and
// recognises re-entrant calls by that mark; a recipient calling back with
// an unrelated context blocks on the lock its own operation holds.
type Transferer interface {
	TransferNative(ctx context.Context, from, to chain.Address, amount *big.Int) error
	TransferToken(ctx context.Context, token, spender, from, to chain.Address, amount *big.Int) error
}

// Transfer is one movement of value.
type Transfer struct {
	Denomination chain.Address
	From         chain.Address
	To           chain.Address
	Amount       *big.Int
	Burn         bool
	Memo         string
}

// Router dispatches transfers for one spender, typically the exchange
// escrow address.
type Router struct {
	backend Transferer
	spender chain.Address
}

func NewRouter(backend Transferer, spender chain.Address) *Router {
	return &Router{backend: backend, spender: spender}
}

// Spender returns the address token transfers are authorised against.
func (r *Router) Spender() chain.Address { return r.spender }

// Move executes t. Zero amounts are skipped. Burned amounts are sent to
// chain.BurnAddress. Failures are reported as transfer failures.
func (r *Router) Move(ctx context.Context, t Transfer) error {
	if chain.IsZeroAmount(t.Amount) {
		return nil
	}
	if t.Amount.Sign() < 0 {
		return errors.Internal("negative transfer amount", fmt.Errorf("%s", t.Amount))
	}
	to := t.To
	if t.Burn {
		to = chain.BurnAddress
	}
	var err error
	if t.Denomination.IsNative() {
		err = r.backend.TransferNative(ctx, t.From, to, t.Amount)
	} else {
		err = r.backend.TransferToken(ctx, t.Denomination, r.spender, t.From, to, t.Amount)
	}
	if err != nil {
		if errors.IsTransferFailure(err) {
			return err
		}
		return errors.TransferFailed(describe(t, to), err)
	}
	return nil
}

// MoveAll executes transfers in order and stops at the first failure.
func (r *Router) MoveAll(ctx context.Context, transfers []Transfer) error {
	for _, t := range transfers {
		if err := r.Move(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func describe(t Transfer, to chain.Address) string {
	if t.Memo != "" {
		return fmt.Sprintf("%s: %s %s -> %s", t.Memo, t.Amount, t.From, to)
	}
	return fmt.Sprintf("transfer %s %s -> %s", t.Amount, t.From, to)
}
