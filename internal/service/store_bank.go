package service

import (
	"context"
	"math/big"

	"guess_game/internal/game"

	"github.com/google/uuid"
)

// storeBank is the game.Bank of one hosted game: wei moves between player
// accounts and that game's escrow row.
type storeBank struct {
	store  GameStore
	gameID uuid.UUID
}

func (b storeBank) Collect(ctx context.Context, entry game.Guess, amount *big.Int) error {
	return b.store.InsertGuess(ctx, b.gameID, entry, amount)
}

func (b storeBank) Payout(ctx context.Context, payouts []game.Payout) error {
	return b.store.Settle(ctx, b.gameID, payouts)
}
