package game

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

var (
	ErrNilBank          = errors.New("game needs a bank")
	ErrGuessOutOfBounds = errors.New("guess index out of bounds")
)

// Params are fixed when the game is created.
type Params struct {
	NonceCommitment       common.Hash `json:"nonce_hash"`
	NonceNumberCommitment common.Hash `json:"nonce_num_hash"`
	RequiredPlayers       int         `json:"num_of_players"`
}

// Settlement describes a successful reveal.
type Settlement struct {
	Number   int64    `json:"number"`
	Pool     *big.Int `json:"pool"`
	Distance uint64   `json:"distance"`
	Payouts  []Payout `json:"payouts"`
}

// GuessGame is a single-use commit-reveal guessing round. The host's funding
// sets the entrance fee; players pay it to guess, and the reveal pays the whole
// pool to the closest guesses.
type GuessGame struct {
	params      Params
	entranceFee *big.Int
	balance     *big.Int
	open        bool

	guesses []Guess
	claimed map[int64]common.Address
	players map[common.Address]int64

	settlement *Settlement
	bank       Bank
	mu         sync.RWMutex
}

// New creates an open game. funding is the host's stake, already held by the
// bank's pool, and doubles as the entrance fee.
func New(params Params, funding *big.Int, bank Bank) (*GuessGame, error) {
	if funding == nil || funding.Sign() <= 0 {
		return nil, ErrVoidFund
	}
	if params.RequiredPlayers < 2 {
		return nil, ErrInvalidPlayerCount
	}
	if bank == nil {
		return nil, ErrNilBank
	}

	return &GuessGame{
		params:      params,
		entranceFee: new(big.Int).Set(funding),
		balance:     new(big.Int).Set(funding),
		open:        true,
		claimed:     make(map[int64]common.Address),
		players:     make(map[common.Address]int64),
		bank:        bank,
	}, nil
}

// SubmitGuess admits caller's guess after collecting the entrance fee. Checks
// run in a fixed order and the first failure is returned; a failed call leaves
// the game untouched.
func (g *GuessGame) SubmitGuess(ctx context.Context, caller common.Address, number int64, paid *big.Int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return ErrGameClosed
	}
	if paid == nil || paid.Cmp(g.entranceFee) != 0 {
		return ErrInvalidETHAmount
	}
	if !validGuess(number) {
		return ErrInvalidGuessNumber
	}
	if _, ok := g.players[caller]; ok {
		return ErrPlayerAlreadyGuessed
	}
	if _, ok := g.claimed[number]; ok {
		return ErrNumberAlreadyGuessed
	}
	if len(g.guesses) >= g.params.RequiredPlayers {
		return ErrNumberOfPlayersLimitReached
	}

	entry := Guess{Player: caller, Number: number}
	if err := g.bank.Collect(ctx, entry, paid); err != nil {
		return fmt.Errorf("collect entrance fee: %w", err)
	}

	g.guesses = append(g.guesses, entry)
	g.claimed[number] = caller
	g.players[caller] = number
	g.balance.Add(g.balance, paid)
	return nil
}

// Reveal checks the pre-images against the commitments and, when every slot
// is filled, pays the pool out to the closest guesses and closes the game.
// Anyone holding the pre-images may reveal.
func (g *GuessGame) Reveal(ctx context.Context, nonce string, number int64) (*Settlement, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.open {
		return nil, ErrGameClosed
	}
	if NonceCommitment(nonce) != g.params.NonceCommitment {
		return nil, ErrInvalidNonce
	}
	if !validGuess(number) || NonceNumberCommitment(nonce, number) != g.params.NonceNumberCommitment {
		return nil, ErrInvalidGuessNumber
	}
	if len(g.guesses) != g.params.RequiredPlayers {
		return nil, ErrNotEnoughPlayers
	}

	pool := new(big.Int).Set(g.balance)
	payouts := Distribute(g.guesses, number, pool)

	if err := g.bank.Payout(ctx, payouts); err != nil {
		return nil, fmt.Errorf("pay out winners: %w", err)
	}

	s := &Settlement{
		Number:   number,
		Pool:     pool,
		Distance: Distance(payouts[0].Number, number),
		Payouts:  payouts,
	}
	g.open = false
	g.balance.SetInt64(0)
	g.settlement = s
	return s, nil
}

func (g *GuessGame) NonceCommitment() common.Hash {
	return g.params.NonceCommitment
}

func (g *GuessGame) NonceNumberCommitment() common.Hash {
	return g.params.NonceNumberCommitment
}

func (g *GuessGame) RequiredPlayers() int {
	return g.params.RequiredPlayers
}

func (g *GuessGame) Params() Params {
	return g.params
}

func (g *GuessGame) EntranceFee() *big.Int {
	return new(big.Int).Set(g.entranceFee)
}

func (g *GuessGame) IsOpen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.open
}

func (g *GuessGame) Status() Status {
	if g.IsOpen() {
		return StatusOpen
	}
	return StatusClosed
}

// Balance is the pooled amount: fee × (1 + guesses) while open, zero after.
func (g *GuessGame) Balance() *big.Int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return new(big.Int).Set(g.balance)
}

func (g *GuessGame) PlayersCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.guesses)
}

// Guesses returns the recorded guesses in submission order.
func (g *GuessGame) Guesses() []Guess {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Guess(nil), g.guesses...)
}

// GuessNumber returns the i-th submitted number.
func (g *GuessGame) GuessNumber(i int) (int64, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if i < 0 || i >= len(g.guesses) {
		return 0, ErrGuessOutOfBounds
	}
	return g.guesses[i].Number, nil
}

// HasGuessed reports whether player already holds a slot.
func (g *GuessGame) HasGuessed(player common.Address) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.players[player]
	return ok
}

// Settlement is nil until the game is revealed.
func (g *GuessGame) Settlement() *Settlement {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.settlement
}
