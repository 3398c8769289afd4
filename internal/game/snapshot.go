package game

import (
	"errors"
	"fmt"
	"math/big"
)

var ErrCorruptSnapshot = errors.New("snapshot violates game invariants")

// Snapshot is the serialisable state of a game, used for the read cache and
// for reloading open games after a restart.
type Snapshot struct {
	Params      Params      `json:"params"`
	EntranceFee *big.Int    `json:"entrance_fee"`
	Balance     *big.Int    `json:"balance"`
	Open        bool        `json:"is_open"`
	Guesses     []Guess     `json:"guesses"`
	Settlement  *Settlement `json:"settlement,omitempty"`
}

func (g *GuessGame) Snapshot() Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return Snapshot{
		Params:      g.params,
		EntranceFee: new(big.Int).Set(g.entranceFee),
		Balance:     new(big.Int).Set(g.balance),
		Open:        g.open,
		Guesses:     append([]Guess(nil), g.guesses...),
		Settlement:  g.settlement,
	}
}

// Restore rebuilds a game from a snapshot, re-checking every invariant the
// engine maintains.
func Restore(s Snapshot, bank Bank) (*GuessGame, error) {
	g, err := New(s.Params, s.EntranceFee, bank)
	if err != nil {
		return nil, err
	}

	if len(s.Guesses) > s.Params.RequiredPlayers {
		return nil, fmt.Errorf("%w: %d guesses for %d players", ErrCorruptSnapshot, len(s.Guesses), s.Params.RequiredPlayers)
	}
	for _, guess := range s.Guesses {
		if !validGuess(guess.Number) {
			return nil, fmt.Errorf("%w: number %d out of range", ErrCorruptSnapshot, guess.Number)
		}
		if _, ok := g.players[guess.Player]; ok {
			return nil, fmt.Errorf("%w: player %s guessed twice", ErrCorruptSnapshot, guess.Player.Hex())
		}
		if _, ok := g.claimed[guess.Number]; ok {
			return nil, fmt.Errorf("%w: number %d guessed twice", ErrCorruptSnapshot, guess.Number)
		}
		g.guesses = append(g.guesses, guess)
		g.players[guess.Player] = guess.Number
		g.claimed[guess.Number] = guess.Player
	}

	if s.Open {
		want := expectedPool(g.entranceFee, len(g.guesses))
		if s.Balance == nil || s.Balance.Cmp(want) != 0 {
			return nil, fmt.Errorf("%w: balance %v, want %v", ErrCorruptSnapshot, s.Balance, want)
		}
		g.balance.Set(want)
		return g, nil
	}

	if s.Settlement == nil {
		return nil, fmt.Errorf("%w: closed without settlement", ErrCorruptSnapshot)
	}
	g.open = false
	g.balance.SetInt64(0)
	g.settlement = s.Settlement
	return g, nil
}

// expectedPool is fee × (1 + players).
func expectedPool(fee *big.Int, players int) *big.Int {
	return new(big.Int).Mul(fee, big.NewInt(int64(players+1)))
}

