package domain

import (
	"math/big"
	"time"

	"guess_game/internal/game"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

const (
	GameStatusOpen   = "open"
	GameStatusClosed = "closed"
)

// Game is the persisted side of one guessing game. Escrow holds the pooled
// wei while the game is open.
type Game struct {
	ID              uuid.UUID      `db:"id" json:"id"`
	Host            common.Address `db:"host" json:"host"`
	NonceHash       common.Hash    `db:"nonce_hash" json:"nonce_hash"`
	NonceNumHash    common.Hash    `db:"nonce_num_hash" json:"nonce_num_hash"`
	RequiredPlayers int            `db:"required_players" json:"num_of_players"`
	EntranceFee     *big.Int       `db:"entrance_fee" json:"entrance_fee"`
	Escrow          *big.Int       `db:"escrow" json:"escrow"`
	Status          string         `db:"status" json:"status"`
	RevealedNumber  *int64         `db:"revealed_number" json:"revealed_number,omitempty"`
	PlayersCount    int            `db:"players_count" json:"players_count"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	ClosedAt        *time.Time     `db:"closed_at" json:"closed_at,omitempty"`

	// MintFunding credits the host with the funding in the same transaction
	// that creates the game, instead of debiting an existing balance.
	MintFunding bool `db:"-" json:"-"`
}

// GuessEntry is a stored guess; ID order is submission order.
type GuessEntry struct {
	ID        int64          `db:"id" json:"id"`
	GameID    uuid.UUID      `db:"game_id" json:"game_id"`
	Player    common.Address `db:"player" json:"player"`
	Number    int64          `db:"number" json:"number"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// GameSnapshot is what the read cache keeps per game: the engine snapshot
// plus the fields only the service knows.
type GameSnapshot struct {
	Host      common.Address `json:"host"`
	CreatedAt time.Time      `json:"created_at"`
	Snapshot  game.Snapshot  `json:"snapshot"`
}
