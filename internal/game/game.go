package game

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Bank moves value on behalf of a game. The engine decides how much goes to
// whom; the bank does the transfers.
type Bank interface {
	// Collect takes the entrance fee for entry into the game's pool. The
	// entry is passed along so a persistent bank can record it in the same
	// unit of work.
	Collect(ctx context.Context, entry Guess, amount *big.Int) error
	// Payout pays every winner or nobody.
	Payout(ctx context.Context, payouts []Payout) error
}

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrPoolExhausted     = errors.New("payout exceeds pooled balance")
)

// MemoryBank is an in-process Bank over a map of balances. Useful for
// simulations and tests; it keeps its own copy of the pooled amount.
type MemoryBank struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	pool     *big.Int
}

func NewMemoryBank() *MemoryBank {
	return &MemoryBank{
		balances: make(map[common.Address]*big.Int),
		pool:     new(big.Int),
	}
}

// Fund credits an account outside of any game.
func (b *MemoryBank) Fund(addr common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balanceLocked(addr).Add(b.balanceLocked(addr), amount)
}

// Deposit moves an amount straight into the pool (the host's stake).
func (b *MemoryBank) Deposit(amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pool.Add(b.pool, amount)
}

func (b *MemoryBank) Balance(addr common.Address) *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.balanceLocked(addr))
}

func (b *MemoryBank) Pool() *big.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return new(big.Int).Set(b.pool)
}

func (b *MemoryBank) Collect(_ context.Context, entry Guess, amount *big.Int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	bal := b.balanceLocked(entry.Player)
	if bal.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}
	bal.Sub(bal, amount)
	b.pool.Add(b.pool, amount)
	return nil
}

func (b *MemoryBank) Payout(_ context.Context, payouts []Payout) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := Total(payouts)
	if total.Cmp(b.pool) > 0 {
		return ErrPoolExhausted
	}
	for _, p := range payouts {
		bal := b.balanceLocked(p.Player)
		bal.Add(bal, p.Amount)
	}
	b.pool.Sub(b.pool, total)
	return nil
}

func (b *MemoryBank) balanceLocked(addr common.Address) *big.Int {
	bal, ok := b.balances[addr]
	if !ok {
		bal = new(big.Int)
		b.balances[addr] = bal
	}
	return bal
}
