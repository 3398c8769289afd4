package service

import (
	"context"
	"errors"
	"fmt"

	"guess_game/internal/config"
	"guess_game/internal/domain"
	"guess_game/internal/game"
)

// Bootstrap creates the game described by the GUESS_GAME_* settings, the way
// the contract used to be deployed at startup. The host's funding is minted
// together with the game, so a failed create leaves no credit behind. Running
// it again with the same nonce and number returns the existing game.
func (s *GameService) Bootstrap(ctx context.Context, b config.Bootstrap) (*GameView, error) {
	if !b.Enabled() {
		return nil, nil
	}

	nonceHash, nonceNumHash := game.Commit(b.Nonce, b.Number)
	v, err := s.FindByCommitments(ctx, nonceHash, nonceNumHash)
	switch {
	case err == nil:
		s.log.Info("bootstrap game already exists", "game_id", v.ID, "status", v.Status)
		return v, nil
	case !errors.Is(err, ErrGameNotFound):
		return nil, err
	}

	fund, err := domain.EtherToWei(b.FundETH)
	if err != nil {
		return nil, fmt.Errorf("bootstrap fund: %w", err)
	}

	return s.createGame(ctx, b.Host, game.Params{
		NonceCommitment:       nonceHash,
		NonceNumberCommitment: nonceNumHash,
		RequiredPlayers:       b.NumOfPlayers,
	}, fund, true)
}
