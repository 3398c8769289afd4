package game

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("open game survives a JSON round trip", func(t *testing.T) {
		g, bank := newTestGame(t, 3)
		require.NoError(t, g.SubmitGuess(ctx, alice, 400, ether(1)))
		require.NoError(t, g.SubmitGuess(ctx, bob, 600, ether(1)))

		raw, err := json.Marshal(g.Snapshot())
		require.NoError(t, err)
		var snap Snapshot
		require.NoError(t, json.Unmarshal(raw, &snap))

		restored, err := Restore(snap, bank)
		require.NoError(t, err)
		assert.True(t, restored.IsOpen())
		assert.Equal(t, g.Guesses(), restored.Guesses())
		assert.Equal(t, ether(3), restored.Balance())

		require.ErrorIs(t, restored.SubmitGuess(ctx, alice, 1, ether(1)), ErrPlayerAlreadyGuessed)
		require.ErrorIs(t, restored.SubmitGuess(ctx, carol, 600, ether(1)), ErrNumberAlreadyGuessed)
		require.NoError(t, restored.SubmitGuess(ctx, carol, 501, ether(1)))

		s, err := restored.Reveal(ctx, testNonce, testNumber)
		require.NoError(t, err)
		assert.Equal(t, carol, s.Payouts[0].Player)
	})

	t.Run("closed game stays closed", func(t *testing.T) {
		g, bank := newTestGame(t, 2)
		require.NoError(t, g.SubmitGuess(ctx, alice, 1, ether(1)))
		require.NoError(t, g.SubmitGuess(ctx, bob, 2, ether(1)))
		_, err := g.Reveal(ctx, testNonce, testNumber)
		require.NoError(t, err)

		restored, err := Restore(g.Snapshot(), bank)
		require.NoError(t, err)
		assert.False(t, restored.IsOpen())
		assert.Zero(t, restored.Balance().Sign())
		require.ErrorIs(t, restored.SubmitGuess(ctx, carol, 3, ether(1)), ErrGameClosed)
	})

	t.Run("rejects broken invariants", func(t *testing.T) {
		g, bank := newTestGame(t, 2)
		base := g.Snapshot()

		dupPlayer := base
		dupPlayer.Guesses = []Guess{{Player: alice, Number: 1}, {Player: alice, Number: 2}}
		dupPlayer.Balance = ether(3)
		_, err := Restore(dupPlayer, bank)
		require.ErrorIs(t, err, ErrCorruptSnapshot)

		dupNumber := base
		dupNumber.Guesses = []Guess{{Player: alice, Number: 1}, {Player: bob, Number: 1}}
		dupNumber.Balance = ether(3)
		_, err = Restore(dupNumber, bank)
		require.ErrorIs(t, err, ErrCorruptSnapshot)

		tooMany := base
		tooMany.Guesses = []Guess{{Player: alice, Number: 1}, {Player: bob, Number: 2}, {Player: carol, Number: 3}}
		tooMany.Balance = ether(4)
		_, err = Restore(tooMany, bank)
		require.ErrorIs(t, err, ErrCorruptSnapshot)

		badBalance := base
		badBalance.Balance = big.NewInt(5)
		_, err = Restore(badBalance, bank)
		require.ErrorIs(t, err, ErrCorruptSnapshot)

		closedNoSettlement := base
		closedNoSettlement.Open = false
		_, err = Restore(closedNoSettlement, bank)
		require.ErrorIs(t, err, ErrCorruptSnapshot)

		outOfRange := base
		outOfRange.Guesses = []Guess{{Player: alice, Number: 1000}}
		outOfRange.Balance = ether(2)
		_, err = Restore(outOfRange, bank)
		require.ErrorIs(t, err, ErrCorruptSnapshot)
	})
}
