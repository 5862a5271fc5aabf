// Package ledger is the in-process value substrate behind the exchange.
//
// It keeps balances per (denomination, holder), token allowances, and a
// history of movements. Native currency is the denomination
// chain.NativeCurrency; every other denomination is a token whose
// transfers by a third party need an allowance.
//
// Flow of an escrowed purchase:
//  1. The buyer holds a balance (Credit stands in for a deposit).
//  2. The exchange pulls the price into its own balance.
//  3. Settlement pays fee recipients, royalty beneficiaries and the seller.
//  4. If any leg fails the operation's txn journal reverses every applied
//     movement, so balances and history look untouched.
//
// Recipients may register a receive hook which runs after funds arrive. A
// hook error fails the transfer, which is how callback-capable recipients
// (and recipients that refuse payment) are modelled.
package ledger

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/R3E-Network/nft_exchange/internal/app/domain/chain"
	"github.com/R3E-Network/nft_exchange/internal/app/services/value"
	"github.com/R3E-Network/nft_exchange/internal/app/txn"
	"github.com/R3E-Network/nft_exchange/internal/errors"
	"github.com/R3E-Network/nft_exchange/pkg/logger"
)

const (
	TxTypeDeposit  = "deposit"
	TxTypeTransfer = "transfer"
	TxTypeBurn     = "burn"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.Validation("invalid_amount", "amount must be positive")
	ErrNativeAllowance       = errors.Validation("native_allowance", "native currency has no allowances")
)

// ReceiveHook runs after amount of denom from from has been credited to the
// hook's holder. ctx is derived from the context of the transfer and carries
// the caller's values; a hook that calls back into the exchange must pass it
// on, since a fresh context deadlocks against the operation paying it.
type ReceiveHook func(ctx context.Context, denom, from chain.Address, amount *big.Int) error

// Entry is one recorded movement.
type Entry struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Denomination chain.Address `json:"denomination"`
	Spender      chain.Address `json:"spender,omitempty"`
	From         chain.Address `json:"from,omitempty"`
	To           chain.Address `json:"to"`
	Amount       *big.Int      `json:"amount"`
	CreatedAt    time.Time     `json:"created_at"`
}

type holding struct {
	denom  chain.Address
	holder chain.Address
}

type allowanceKey struct {
	token   chain.Address
	owner   chain.Address
	spender chain.Address
}

var _ value.Transferer = (*Ledger)(nil)

// Ledger is safe for concurrent use.
type Ledger struct {
	mu         sync.RWMutex
	balances   map[holding]*big.Int
	allowances map[allowanceKey]*big.Int
	hooks      map[chain.Address]ReceiveHook
	entries    []Entry
	log        *logger.Logger
}

// New creates an empty ledger.
func New(log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	return &Ledger{
		balances:   make(map[holding]*big.Int),
		allowances: make(map[allowanceKey]*big.Int),
		hooks:      make(map[chain.Address]ReceiveHook),
		log:        log,
	}
}

// =============================================================================
// Balances
// =============================================================================

// Credit adds amount of denom to holder. It stands in for a deposit.
func (l *Ledger) Credit(ctx context.Context, denom, holder chain.Address, amount *big.Int) error {
	if !chain.IsPositive(amount) {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.addLocked(denom, holder, amount)
	l.entries = append(l.entries, Entry{
		ID:           uuid.New().String(),
		Type:         TxTypeDeposit,
		Denomination: denom,
		To:           holder,
		Amount:       chain.Amount(amount),
		CreatedAt:    time.Now().UTC(),
	})
	return nil
}

// BalanceOf returns holder's balance of denom.
func (l *Ledger) BalanceOf(ctx context.Context, denom, holder chain.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return chain.Amount(l.balances[holding{denom, holder}])
}

// Entries returns the movement history, oldest first.
func (l *Ledger) Entries(ctx context.Context) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		e.Amount = chain.Amount(e.Amount)
		out[i] = e
	}
	return out
}

// =============================================================================
// Allowances
// =============================================================================

// Approve sets the amount of token spender may move out of owner's balance.
func (l *Ledger) Approve(ctx context.Context, token, owner, spender chain.Address, amount *big.Int) error {
	if token.IsNative() {
		return ErrNativeAllowance
	}
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[allowanceKey{token, owner, spender}] = chain.Amount(amount)
	return nil
}

// Allowance returns the remaining allowance.
func (l *Ledger) Allowance(ctx context.Context, token, owner, spender chain.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return chain.Amount(l.allowances[allowanceKey{token, owner, spender}])
}

// =============================================================================
// Hooks
// =============================================================================

// OnReceive registers hook for holder. A nil hook removes it.
func (l *Ledger) OnReceive(holder chain.Address, hook ReceiveHook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if hook == nil {
		delete(l.hooks, holder)
		return
	}
	l.hooks[holder] = hook
}

// =============================================================================
// Transfers
// =============================================================================

// TransferNative moves native currency.
func (l *Ledger) TransferNative(ctx context.Context, from, to chain.Address, amount *big.Int) error {
	return l.transfer(ctx, chain.NativeCurrency, from, from, to, amount)
}

// TransferToken moves token on behalf of spender.
func (l *Ledger) TransferToken(ctx context.Context, token, spender, from, to chain.Address, amount *big.Int) error {
	if token.IsNative() {
		return l.transfer(ctx, chain.NativeCurrency, from, from, to, amount)
	}
	return l.transfer(ctx, token, spender, from, to, amount)
}

func (l *Ledger) transfer(ctx context.Context, denom, spender, from, to chain.Address, amount *big.Int) error {
	if !chain.IsPositive(amount) {
		return ErrInvalidAmount
	}
	ctx, journal, owned := txn.Join(ctx)

	l.mu.Lock()
	available := chain.Amount(l.balances[holding{denom, from}])
	if available.Cmp(amount) < 0 {
		l.mu.Unlock()
		if owned {
			journal.Rollback()
		}
		return fmt.Errorf("%w: %s holds %s of %s, required %s", ErrInsufficientBalance, from, available, denom, amount)
	}
	useAllowance := spender != from
	if useAllowance {
		key := allowanceKey{denom, from, spender}
		allowed := chain.Amount(l.allowances[key])
		if allowed.Cmp(amount) < 0 {
			l.mu.Unlock()
			if owned {
				journal.Rollback()
			}
			return fmt.Errorf("%w: %s may move %s of %s for %s, required %s", ErrInsufficientAllowance, spender, allowed, denom, from, amount)
		}
		l.allowances[key] = allowed.Sub(allowed, amount)
	}
	l.subLocked(denom, from, amount)
	l.addLocked(denom, to, amount)

	txType := TxTypeTransfer
	if to == chain.BurnAddress {
		txType = TxTypeBurn
	}
	entryID := uuid.New().String()
	l.entries = append(l.entries, Entry{
		ID:           entryID,
		Type:         txType,
		Denomination: denom,
		Spender:      spender,
		From:         from,
		To:           to,
		Amount:       chain.Amount(amount),
		CreatedAt:    time.Now().UTC(),
	})
	hook := l.hooks[to]
	l.mu.Unlock()

	moved := chain.Amount(amount)
	journal.Defer(func() {
		l.revert(entryID, denom, spender, from, to, moved, useAllowance)
	})

	if hook != nil {
		if err := hook(ctx, denom, from, chain.Amount(amount)); err != nil {
			if owned {
				journal.Rollback()
			}
			return fmt.Errorf("recipient %s rejected %s of %s: %w", to, amount, denom, err)
		}
	}
	if owned {
		journal.Commit()
	}
	return nil
}

func (l *Ledger) revert(entryID string, denom, spender, from, to chain.Address, amount *big.Int, useAllowance bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.subLocked(denom, to, amount)
	l.addLocked(denom, from, amount)
	if useAllowance {
		key := allowanceKey{denom, from, spender}
		restored := chain.Amount(l.allowances[key])
		l.allowances[key] = restored.Add(restored, amount)
	}
	for i := len(l.entries) - 1; i >= 0; i-- {
		if l.entries[i].ID == entryID {
			l.entries = append(l.entries[:i], l.entries[i+1:]...)
			break
		}
	}
	l.log.WithField("entry", entryID).Debugf("reverted %s of %s from %s to %s", amount, denom, to, from)
}

func (l *Ledger) addLocked(denom, holder chain.Address, amount *big.Int) {
	key := holding{denom, holder}
	cur := chain.Amount(l.balances[key])
	l.balances[key] = cur.Add(cur, amount)
}

func (l *Ledger) subLocked(denom, holder chain.Address, amount *big.Int) {
	key := holding{denom, holder}
	cur := chain.Amount(l.balances[key])
	l.balances[key] = cur.Sub(cur, amount)
}
