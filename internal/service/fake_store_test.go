package service

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"

	"guess_game/internal/domain"
	"guess_game/internal/game"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// fakeStore mirrors GameRepository's ledger rules in memory.
type fakeStore struct {
	mu          sync.Mutex
	accounts    map[common.Address]*big.Int
	games       map[uuid.UUID]*domain.Game
	guesses     map[uuid.UUID][]domain.GuessEntry
	settlements map[uuid.UUID]*game.Settlement
	nextID      int64

	failCreate error
	failSettle error
	failRecord error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:    make(map[common.Address]*big.Int),
		games:       make(map[uuid.UUID]*domain.Game),
		guesses:     make(map[uuid.UUID][]domain.GuessEntry),
		settlements: make(map[uuid.UUID]*game.Settlement),
	}
}

func (f *fakeStore) fund(addr common.Address, amount int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credit(addr, big.NewInt(amount))
}

func (f *fakeStore) balance(addr common.Address) *big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.accounts[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (f *fakeStore) credit(addr common.Address, amount *big.Int) {
	b, ok := f.accounts[addr]
	if !ok {
		b = new(big.Int)
		f.accounts[addr] = b
	}
	b.Add(b, amount)
}

func (f *fakeStore) debit(addr common.Address, amount *big.Int) error {
	b, ok := f.accounts[addr]
	if !ok || b.Cmp(amount) < 0 {
		return game.ErrInsufficientFunds
	}
	b.Sub(b, amount)
	return nil
}

func (f *fakeStore) Create(_ context.Context, g *domain.Game) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failCreate != nil {
		return f.failCreate
	}
	if g.MintFunding {
		f.credit(g.Host, g.EntranceFee)
	}
	if err := f.debit(g.Host, g.EntranceFee); err != nil {
		return err
	}
	g.Escrow = new(big.Int).Set(g.EntranceFee)
	g.Status = domain.GameStatusOpen
	cp := *g
	f.games[g.ID] = &cp
	return nil
}

func (f *fakeStore) InsertGuess(_ context.Context, gameID uuid.UUID, entry game.Guess, fee *big.Int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	if g.Status != domain.GameStatusOpen {
		return game.ErrGameClosed
	}
	for _, e := range f.guesses[gameID] {
		if e.Player == entry.Player {
			return game.ErrPlayerAlreadyGuessed
		}
		if e.Number == entry.Number {
			return game.ErrNumberAlreadyGuessed
		}
	}
	if err := f.debit(entry.Player, fee); err != nil {
		return err
	}

	g.Escrow = new(big.Int).Add(g.Escrow, fee)
	f.nextID++
	f.guesses[gameID] = append(f.guesses[gameID], domain.GuessEntry{
		ID: f.nextID, GameID: gameID, Player: entry.Player, Number: entry.Number,
	})
	g.PlayersCount = len(f.guesses[gameID])
	return nil
}

func (f *fakeStore) Settle(_ context.Context, gameID uuid.UUID, payouts []game.Payout) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failSettle != nil {
		return f.failSettle
	}
	g, ok := f.games[gameID]
	if !ok {
		return ErrGameNotFound
	}
	if g.Status != domain.GameStatusOpen {
		return game.ErrGameClosed
	}
	if game.Total(payouts).Cmp(g.Escrow) != 0 {
		return errors.New("escrow mismatch")
	}
	for _, p := range payouts {
		f.credit(p.Player, p.Amount)
	}
	g.Escrow = new(big.Int)
	g.Status = domain.GameStatusClosed
	return nil
}

func (f *fakeStore) RecordReveal(_ context.Context, gameID uuid.UUID, s *game.Settlement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failRecord != nil {
		return f.failRecord
	}
	f.settlements[gameID] = s
	n := s.Number
	f.games[gameID].RevealedNumber = &n
	return nil
}

func (f *fakeStore) Get(_ context.Context, id uuid.UUID) (*domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (f *fakeStore) List(_ context.Context, status string, limit int) ([]*domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*domain.Game
	for _, g := range f.games {
		if status == "" || g.Status == status {
			cp := *g
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeStore) Guesses(_ context.Context, gameID uuid.UUID) ([]domain.GuessEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.GuessEntry(nil), f.guesses[gameID]...), nil
}

func (f *fakeStore) Settlement(_ context.Context, gameID uuid.UUID) (*game.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settlements[gameID], nil
}

func (f *fakeStore) FindByCommitments(_ context.Context, nonceHash, nonceNumHash common.Hash) (*domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var best *domain.Game
	for _, g := range f.games {
		if g.NonceHash == nonceHash && g.NonceNumHash == nonceNumHash {
			if best == nil || g.CreatedAt.After(best.CreatedAt) {
				cp := *g
				best = &cp
			}
		}
	}
	return best, nil
}

type memCache struct {
	mu    sync.Mutex
	snaps map[uuid.UUID]domain.GameSnapshot
	loads int
}

func newMemCache() *memCache {
	return &memCache{snaps: make(map[uuid.UUID]domain.GameSnapshot)}
}

func (c *memCache) Save(_ context.Context, id uuid.UUID, snap domain.GameSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps[id] = snap
	return nil
}

func (c *memCache) Load(_ context.Context, id uuid.UUID) (domain.GameSnapshot, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loads++
	s, ok := c.snaps[id]
	return s, ok, nil
}

type event struct {
	gameID uuid.UUID
	typ    string
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) Publish(gameID uuid.UUID, eventType string, _ any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{gameID, eventType})
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.typ)
	}
	return out
}
