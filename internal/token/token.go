// Package token defines the external collaborator interfaces the ledger
// consumes: the principal and yield claim tokens, the base-asset wrapper
// that holds deposits and pays withdrawals, and the revenue pool that
// collects early-exit fees. The ledger never reimplements token semantics —
// it only mints, burns, and queries through these interfaces.
//
// Two adapter families exist: in-memory (development and tests) and
// EVM-backed (evm.go).
package token

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"
)

var (
	// ErrInsufficientBalance is returned when a burn exceeds the holder's
	// balance. Settlement relies on this as its final authorization check.
	ErrInsufficientBalance = errors.New("token: insufficient balance")

	// ErrInsufficientLiquidity is returned when a wrapper withdrawal exceeds
	// the wrapped deposits.
	ErrInsufficientLiquidity = errors.New("token: insufficient wrapper liquidity")
)

// ClaimToken is the narrow mint/burn/query surface of a claim token. Both
// the principal claim and the yield claim satisfy it.
type ClaimToken interface {
	Mint(ctx context.Context, to string, amount math.Int) error
	Burn(ctx context.Context, from string, amount math.Int) error
	TotalSupply(ctx context.Context) (math.Int, error)
	BalanceOf(ctx context.Context, holder string) (math.Int, error)
}

// BaseAssetWrapper converts wrapped deposits back to the raw asset and pays
// the recipient. Deposited principal enters the wrapper out-of-band; the
// ledger only ever withdraws.
type BaseAssetWrapper interface {
	Withdraw(ctx context.Context, to string, amount math.Int) error
	Balance(ctx context.Context) (math.Int, error)
}

// RevenuePool is the opaque sink for collected early-exit fees.
type RevenuePool interface {
	Collect(ctx context.Context, amount math.Int) error
	Collected(ctx context.Context) (math.Int, error)
}

// --- In-memory adapters ---

// MemoryToken is an in-memory ClaimToken. Used for development and tests.
type MemoryToken struct {
	mu       sync.RWMutex
	symbol   string
	balances map[string]math.Int
	supply   math.Int
}

// NewMemoryToken creates an empty in-memory claim token.
func NewMemoryToken(symbol string) *MemoryToken {
	return &MemoryToken{
		symbol:   symbol,
		balances: make(map[string]math.Int),
		supply:   math.ZeroInt(),
	}
}

func (t *MemoryToken) Mint(_ context.Context, to string, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%s: mint negative amount", t.symbol)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[to] = t.balanceLocked(to).Add(amount)
	t.supply = t.supply.Add(amount)
	return nil
}

func (t *MemoryToken) Burn(_ context.Context, from string, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%s: burn negative amount", t.symbol)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal := t.balanceLocked(from)
	if bal.LT(amount) {
		return fmt.Errorf("%s burn %s from %s (balance %s): %w",
			t.symbol, amount, from, bal, ErrInsufficientBalance)
	}
	t.balances[from] = bal.Sub(amount)
	t.supply = t.supply.Sub(amount)
	return nil
}

func (t *MemoryToken) TotalSupply(_ context.Context) (math.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.supply, nil
}

func (t *MemoryToken) BalanceOf(_ context.Context, holder string) (math.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.balanceLocked(holder), nil
}

func (t *MemoryToken) balanceLocked(holder string) math.Int {
	if b, ok := t.balances[holder]; ok {
		return b
	}
	return math.ZeroInt()
}

// MemoryWrapper is an in-memory BaseAssetWrapper holding a single pooled
// balance. Deposit exists so tests and the dev server can fund it.
type MemoryWrapper struct {
	mu      sync.RWMutex
	balance math.Int
	paid    map[string]math.Int
}

// NewMemoryWrapper creates an empty in-memory wrapper.
func NewMemoryWrapper() *MemoryWrapper {
	return &MemoryWrapper{
		balance: math.ZeroInt(),
		paid:    make(map[string]math.Int),
	}
}

// Deposit adds wrapped balance. Out-of-band in production; explicit here.
func (w *MemoryWrapper) Deposit(amount math.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balance = w.balance.Add(amount)
}

func (w *MemoryWrapper) Withdraw(_ context.Context, to string, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("wrapper: withdraw negative amount")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.balance.LT(amount) {
		return fmt.Errorf("withdraw %s (balance %s): %w", amount, w.balance, ErrInsufficientLiquidity)
	}
	w.balance = w.balance.Sub(amount)
	prev, ok := w.paid[to]
	if !ok {
		prev = math.ZeroInt()
	}
	w.paid[to] = prev.Add(amount)
	return nil
}

func (w *MemoryWrapper) Balance(_ context.Context) (math.Int, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.balance, nil
}

// PaidTo returns the cumulative amount withdrawn to one recipient.
func (w *MemoryWrapper) PaidTo(to string) math.Int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if p, ok := w.paid[to]; ok {
		return p
	}
	return math.ZeroInt()
}

// revenueRecipient is the wrapper recipient fees are withdrawn to.
const revenueRecipient = "revenue"

// MemoryRevenuePool is an in-memory fee sink. Like the EVM adapter it is
// funded via wrapper withdrawals, so fees leave the wrapper balance.
type MemoryRevenuePool struct {
	mu        sync.RWMutex
	wrapper   *MemoryWrapper
	collected math.Int
}

// NewMemoryRevenuePool creates an empty revenue pool drawing on w.
func NewMemoryRevenuePool(w *MemoryWrapper) *MemoryRevenuePool {
	return &MemoryRevenuePool{wrapper: w, collected: math.ZeroInt()}
}

func (p *MemoryRevenuePool) Collect(ctx context.Context, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("revenue: collect negative amount")
	}
	if amount.IsZero() {
		return nil
	}
	if err := p.wrapper.Withdraw(ctx, revenueRecipient, amount); err != nil {
		return fmt.Errorf("revenue: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.collected = p.collected.Add(amount)
	return nil
}

func (p *MemoryRevenuePool) Collected(_ context.Context) (math.Int, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.collected, nil
}
