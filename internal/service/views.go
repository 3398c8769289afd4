package service

import (
	"math/big"
	"time"

	"guess_game/internal/domain"
	"guess_game/internal/game"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// GameView is the public shape of a game. Wei amounts are decimal strings.
type GameView struct {
	ID              uuid.UUID       `json:"id"`
	Host            common.Address  `json:"host"`
	NonceHash       common.Hash     `json:"nonce_hash"`
	NonceNumHash    common.Hash     `json:"nonce_num_hash"`
	RequiredPlayers int             `json:"num_of_players"`
	EntranceFee     string          `json:"entrance_fee"`
	Balance         string          `json:"balance"`
	Status          string          `json:"status"`
	PlayersCount    int             `json:"players_count"`
	Guesses         []GuessView     `json:"guesses,omitempty"`
	Settlement      *SettlementView `json:"settlement,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

type GuessView struct {
	Player common.Address `json:"player"`
	Number int64          `json:"number"`
}

type SettlementView struct {
	GameID   uuid.UUID    `json:"game_id"`
	Number   int64        `json:"number"`
	Pool     string       `json:"pool"`
	Distance uint64       `json:"distance"`
	Payouts  []PayoutView `json:"payouts"`
}

type PayoutView struct {
	Player common.Address `json:"player"`
	Number int64          `json:"number"`
	Amount string         `json:"amount"`
}

func viewFromSnapshot(id uuid.UUID, snap domain.GameSnapshot) GameView {
	s := snap.Snapshot
	v := GameView{
		ID:              id,
		Host:            snap.Host,
		NonceHash:       s.Params.NonceCommitment,
		NonceNumHash:    s.Params.NonceNumberCommitment,
		RequiredPlayers: s.Params.RequiredPlayers,
		EntranceFee:     weiString(s.EntranceFee),
		Balance:         weiString(s.Balance),
		Status:          domain.GameStatusClosed,
		PlayersCount:    len(s.Guesses),
		CreatedAt:       snap.CreatedAt,
	}
	if s.Open {
		v.Status = domain.GameStatusOpen
	}

	for _, g := range s.Guesses {
		v.Guesses = append(v.Guesses, GuessView{Player: g.Player, Number: g.Number})
	}
	if s.Settlement != nil {
		v.Settlement = settlementView(id, s.Settlement)
	}
	return v
}

func settlementView(id uuid.UUID, s *game.Settlement) *SettlementView {
	out := &SettlementView{
		GameID:   id,
		Number:   s.Number,
		Pool:     weiString(s.Pool),
		Distance: s.Distance,
		Payouts:  make([]PayoutView, 0, len(s.Payouts)),
	}
	for _, p := range s.Payouts {
		out.Payouts = append(out.Payouts, PayoutView{
			Player: p.Player,
			Number: p.Number,
			Amount: weiString(p.Amount),
		})
	}
	return out
}

func weiString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
