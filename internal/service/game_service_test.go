package service

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"guess_game/internal/config"
	"guess_game/internal/domain"
	"guess_game/internal/game"

	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	host  = common.HexToAddress("0x00000000000000000000000000000000000000a0")
	alice = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	bob   = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	carol = common.HexToAddress("0x00000000000000000000000000000000000000c3")
)

const (
	testNonce  = "s3cret"
	testNumber = 500
	testFee    = 100
)

func testParams(players int) game.Params {
	nonceHash, numHash := game.Commit(testNonce, testNumber)
	return game.Params{
		NonceCommitment:       nonceHash,
		NonceNumberCommitment: numHash,
		RequiredPlayers:       players,
	}
}

func newTestService(t *testing.T) (*GameService, *fakeStore, *quartz.Mock) {
	t.Helper()
	store := newFakeStore()
	for _, a := range []common.Address{host, alice, bob, carol} {
		store.fund(a, 1000)
	}
	clock := quartz.NewMock(t)
	return NewGameService(store, clock), store, clock
}

func wei(n int64) *big.Int { return big.NewInt(n) }

func TestCreateGame(t *testing.T) {
	svc, store, clock := newTestService(t)
	events := &recorder{}
	svc.SetEvents(events)
	ctx := context.Background()

	v, err := svc.CreateGame(ctx, host, testParams(2), wei(testFee))
	require.NoError(t, err)
	assert.Equal(t, domain.GameStatusOpen, v.Status)
	assert.Equal(t, "100", v.EntranceFee)
	assert.Equal(t, "100", v.Balance)
	assert.Equal(t, clock.Now(), v.CreatedAt)
	assert.Equal(t, wei(900), store.balance(host))
	assert.Equal(t, []string{EventGameCreated}, events.types())

	_, err = svc.CreateGame(ctx, host, testParams(2), wei(0))
	assert.ErrorIs(t, err, game.ErrVoidFund)
	_, err = svc.CreateGame(ctx, host, testParams(1), wei(testFee))
	assert.ErrorIs(t, err, game.ErrInvalidPlayerCount)

	_, err = svc.CreateGame(ctx, host, testParams(2), wei(5000))
	assert.ErrorIs(t, err, game.ErrInsufficientFunds)
	assert.Equal(t, wei(900), store.balance(host))
}

func TestFullRound(t *testing.T) {
	svc, store, _ := newTestService(t)
	events := &recorder{}
	svc.SetEvents(events)
	settled := make(chan GameView, 1)
	svc.SetSettlementNotifyCallback(func(v GameView) { settled <- v })
	ctx := context.Background()

	v, err := svc.CreateGame(ctx, host, testParams(3), wei(testFee))
	require.NoError(t, err)

	_, err = svc.SubmitGuess(ctx, v.ID, alice, 490, wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, v.ID, bob, 510, wei(testFee))
	require.NoError(t, err)

	_, err = svc.Reveal(ctx, v.ID, host, testNonce, testNumber)
	assert.ErrorIs(t, err, game.ErrNotEnoughPlayers)

	after, err := svc.SubmitGuess(ctx, v.ID, carol, 10, wei(testFee))
	require.NoError(t, err)
	assert.Equal(t, 3, after.PlayersCount)
	assert.Equal(t, "400", after.Balance)

	_, err = svc.Reveal(ctx, v.ID, carol, "wrong", testNumber)
	assert.ErrorIs(t, err, game.ErrInvalidNonce)
	_, err = svc.Reveal(ctx, v.ID, carol, testNonce, testNumber+1)
	assert.ErrorIs(t, err, game.ErrInvalidGuessNumber)

	res, err := svc.Reveal(ctx, v.ID, carol, testNonce, testNumber)
	require.NoError(t, err)
	assert.Equal(t, domain.GameStatusClosed, res.Status)
	assert.Equal(t, "0", res.Balance)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, uint64(10), res.Settlement.Distance)
	require.Len(t, res.Settlement.Payouts, 2)
	assert.Equal(t, "200", res.Settlement.Payouts[0].Amount)
	assert.Equal(t, "200", res.Settlement.Payouts[1].Amount)

	assert.Equal(t, wei(1100), store.balance(alice))
	assert.Equal(t, wei(1100), store.balance(bob))
	assert.Equal(t, wei(900), store.balance(carol))
	assert.Equal(t, wei(900), store.balance(host))

	svc.mu.RLock()
	_, hosted := svc.games[v.ID]
	svc.mu.RUnlock()
	assert.False(t, hosted, "settled game still held in memory")

	got, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Settlement)
	assert.Equal(t, int64(testNumber), got.Settlement.Number)

	_, err = svc.Reveal(ctx, v.ID, carol, testNonce, testNumber)
	assert.ErrorIs(t, err, game.ErrGameClosed)
	_, err = svc.SubmitGuess(ctx, v.ID, host, 1, wei(testFee))
	assert.ErrorIs(t, err, game.ErrGameClosed)

	select {
	case got := <-settled:
		assert.Equal(t, v.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("settlement callback not called")
	}
	assert.Equal(t, []string{EventGameCreated, EventGuessSubmitted, EventGuessSubmitted, EventGuessSubmitted, EventGameSettled}, events.types())
}

func TestSubmitGuessRejections(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	poor := common.HexToAddress("0x00000000000000000000000000000000000000d4")

	v, err := svc.CreateGame(ctx, host, testParams(2), wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, v.ID, alice, 7, wei(testFee))
	require.NoError(t, err)

	tests := []struct {
		name   string
		player common.Address
		number int64
		paid   *big.Int
		want   error
	}{
		{"wrong amount", bob, 8, wei(testFee - 1), game.ErrInvalidETHAmount},
		{"out of range", bob, 1000, wei(testFee), game.ErrInvalidGuessNumber},
		{"negative", bob, -1, wei(testFee), game.ErrInvalidGuessNumber},
		{"player twice", alice, 8, wei(testFee), game.ErrPlayerAlreadyGuessed},
		{"number taken", bob, 7, wei(testFee), game.ErrNumberAlreadyGuessed},
		{"no funds", poor, 8, wei(testFee), game.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SubmitGuess(ctx, v.ID, tt.player, tt.number, tt.paid)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	got, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlayersCount)
	assert.Equal(t, "200", got.Balance)
	assert.Equal(t, wei(1000), store.balance(bob))

	_, err = svc.SubmitGuess(ctx, v.ID, bob, 8, wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, v.ID, carol, 9, wei(testFee))
	assert.ErrorIs(t, err, game.ErrNumberOfPlayersLimitReached)

	_, err = svc.SubmitGuess(ctx, uuid.New(), bob, 8, wei(testFee))
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRevealPayoutFailureKeepsGameOpen(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	v, err := svc.CreateGame(ctx, host, testParams(2), wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, v.ID, alice, 1, wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, v.ID, bob, 2, wei(testFee))
	require.NoError(t, err)

	store.failSettle = errors.New("db down")
	_, err = svc.Reveal(ctx, v.ID, host, testNonce, testNumber)
	require.Error(t, err)
	assert.False(t, game.IsRuleViolation(err))

	got, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameStatusOpen, got.Status)
	assert.Equal(t, "300", got.Balance)

	store.failSettle = nil
	res, err := svc.Reveal(ctx, v.ID, host, testNonce, testNumber)
	require.NoError(t, err)
	require.Len(t, res.Settlement.Payouts, 1)
	assert.Equal(t, bob, res.Settlement.Payouts[0].Player)
	assert.Equal(t, "300", res.Settlement.Payouts[0].Amount)
}

func TestRevealRecordFailureKeepsSettlementReadable(t *testing.T) {
	svc, store, _ := newTestService(t)
	cache := newMemCache()
	svc.SetCache(cache)
	ctx := context.Background()

	v, err := svc.CreateGame(ctx, host, testParams(2), wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, v.ID, alice, 499, wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, v.ID, bob, 10, wei(testFee))
	require.NoError(t, err)

	store.failRecord = errors.New("write timeout")
	res, err := svc.Reveal(ctx, v.ID, host, testNonce, testNumber)
	require.NoError(t, err)
	require.NotNil(t, res.Settlement)
	assert.Equal(t, wei(1200), store.balance(alice))

	got, err := svc.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameStatusClosed, got.Status)
	require.NotNil(t, got.Settlement)
	require.Len(t, got.Settlement.Payouts, 1)
	assert.Equal(t, alice, got.Settlement.Payouts[0].Player)
}

func TestRestoreAndReadPaths(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	open, err := svc.CreateGame(ctx, host, testParams(2), wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, open.ID, alice, 3, wei(testFee))
	require.NoError(t, err)

	clock.Advance(time.Minute)
	closed, err := svc.CreateGame(ctx, host, testParams(2), wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, closed.ID, alice, 3, wei(testFee))
	require.NoError(t, err)
	_, err = svc.SubmitGuess(ctx, closed.ID, bob, 4, wei(testFee))
	require.NoError(t, err)
	_, err = svc.Reveal(ctx, closed.ID, host, testNonce, testNumber)
	require.NoError(t, err)

	// a fresh process over the same store
	cache := newMemCache()
	restarted := NewGameService(store, clock)
	restarted.SetCache(cache)
	n, err := restarted.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := restarted.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.PlayersCount)
	assert.Equal(t, "200", got.Balance)

	num, err := restarted.GuessNumber(ctx, open.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), num)
	_, err = restarted.GuessNumber(ctx, open.ID, 1)
	assert.ErrorIs(t, err, game.ErrGuessOutOfBounds)

	_, err = restarted.SubmitGuess(ctx, open.ID, bob, 3, wei(testFee))
	assert.ErrorIs(t, err, game.ErrNumberAlreadyGuessed)
	_, err = restarted.SubmitGuess(ctx, open.ID, bob, 4, wei(testFee))
	require.NoError(t, err)

	// closed games come from Postgres once, then from the cache
	c, err := restarted.Get(ctx, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.GameStatusClosed, c.Status)
	require.NotNil(t, c.Settlement)
	assert.Equal(t, int64(testNumber), c.Settlement.Number)
	_, cached, _ := cache.Load(ctx, closed.ID)
	assert.True(t, cached)

	_, err = restarted.Reveal(ctx, closed.ID, host, testNonce, testNumber)
	assert.ErrorIs(t, err, game.ErrGameClosed)

	list, err := restarted.List(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, closed.ID, list[0].ID)
	assert.Nil(t, list[0].Guesses)

	_, err = restarted.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestRestoreSkipsCorruptGames(t *testing.T) {
	svc, store, clock := newTestService(t)
	ctx := context.Background()

	v, err := svc.CreateGame(ctx, host, testParams(2), wei(testFee))
	require.NoError(t, err)
	store.games[v.ID].Escrow = wei(1)

	n, err := NewGameService(store, clock).Restore(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBootstrap(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	deployer := common.HexToAddress("0x00000000000000000000000000000000000000e5")

	b := config.Bootstrap{
		Nonce:        testNonce,
		Number:       testNumber,
		NumOfPlayers: 2,
		Host:         deployer,
		FundETH:      decimal.RequireFromString("0.000000000000000100"),
	}

	store.failCreate = errors.New("db down")
	_, err := svc.Bootstrap(ctx, b)
	require.Error(t, err)
	assert.Zero(t, store.balance(deployer).Sign(), "failed create must not leave the funding behind")
	store.failCreate = nil

	v, err := svc.Bootstrap(ctx, b)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "100", v.EntranceFee)
	assert.Equal(t, deployer, v.Host)
	assert.Zero(t, store.balance(deployer).Sign())

	again, err := svc.Bootstrap(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, v.ID, again.ID)

	none, err := svc.Bootstrap(ctx, config.Bootstrap{})
	require.NoError(t, err)
	assert.Nil(t, none)
}
