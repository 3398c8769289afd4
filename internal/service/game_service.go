package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"guess_game/internal/domain"
	"guess_game/internal/game"
	"guess_game/internal/logger"
	"guess_game/internal/metrics"

	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

var ErrGameNotFound = errors.New("game not found")

const (
	EventGameCreated    = "game_created"
	EventGuessSubmitted = "guess_submitted"
	EventGameSettled    = "game_settled"
)

// open games reloaded at boot
const restoreLimit = 10000

// GameStore is the persistent side of the games: rows plus the wei moved in
// and out of each game's escrow. Implemented by repository.GameRepository.
type GameStore interface {
	Create(ctx context.Context, g *domain.Game) error
	InsertGuess(ctx context.Context, gameID uuid.UUID, entry game.Guess, fee *big.Int) error
	Settle(ctx context.Context, gameID uuid.UUID, payouts []game.Payout) error
	RecordReveal(ctx context.Context, gameID uuid.UUID, s *game.Settlement) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Game, error)
	List(ctx context.Context, status string, limit int) ([]*domain.Game, error)
	Guesses(ctx context.Context, gameID uuid.UUID) ([]domain.GuessEntry, error)
	Settlement(ctx context.Context, gameID uuid.UUID) (*game.Settlement, error)
	FindByCommitments(ctx context.Context, nonceHash, nonceNumHash common.Hash) (*domain.Game, error)
}

type SnapshotCache interface {
	Save(ctx context.Context, id uuid.UUID, snap domain.GameSnapshot) error
	Load(ctx context.Context, id uuid.UUID) (domain.GameSnapshot, bool, error)
}

type EventPublisher interface {
	Publish(gameID uuid.UUID, eventType string, payload any)
}

type Auditor interface {
	Log(ctx context.Context, address, action, category string, details map[string]interface{})
}

// GuessEvent is the payload of guess_submitted.
type GuessEvent struct {
	Player          common.Address `json:"player"`
	Number          int64          `json:"number"`
	PlayersCount    int            `json:"players_count"`
	RequiredPlayers int            `json:"num_of_players"`
}

type hostedGame struct {
	engine *game.GuessGame
	host   common.Address
	meta   domain.Game
}

// GameService hosts one engine per game, keyed by id, and binds each engine
// to a bank backed by the GameStore.
type GameService struct {
	store  GameStore
	cache  SnapshotCache
	events EventPublisher
	audit  Auditor
	clock  quartz.Clock
	log    *slog.Logger

	onSettled func(GameView)

	mu    sync.RWMutex
	games map[uuid.UUID]*hostedGame
}

func NewGameService(store GameStore, clock quartz.Clock) *GameService {
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &GameService{
		store: store,
		clock: clock,
		log:   logger.With("component", "game_service"),
		games: make(map[uuid.UUID]*hostedGame),
	}
}

// SetCache enables the snapshot read cache.
func (s *GameService) SetCache(c SnapshotCache) { s.cache = c }

func (s *GameService) SetEvents(p EventPublisher) { s.events = p }

func (s *GameService) SetAuditor(a Auditor) { s.audit = a }

// SetSettlementNotifyCallback registers a hook run after every settlement.
func (s *GameService) SetSettlementNotifyCallback(fn func(GameView)) { s.onSettled = fn }

// CreateGame validates the parameters through the engine, moves the host's
// funding into a new escrow and starts hosting the game.
func (s *GameService) CreateGame(ctx context.Context, host common.Address, params game.Params, funding *big.Int) (*GameView, error) {
	return s.createGame(ctx, host, params, funding, false)
}

func (s *GameService) createGame(ctx context.Context, host common.Address, params game.Params, funding *big.Int, mint bool) (*GameView, error) {
	id := uuid.New()
	eng, err := game.New(params, funding, storeBank{store: s.store, gameID: id})
	if err != nil {
		return nil, err
	}

	rec := &domain.Game{
		ID:              id,
		Host:            host,
		NonceHash:       params.NonceCommitment,
		NonceNumHash:    params.NonceNumberCommitment,
		RequiredPlayers: params.RequiredPlayers,
		EntranceFee:     eng.EntranceFee(),
		CreatedAt:       s.clock.Now(),
		MintFunding:     mint,
	}
	if err := s.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("create game: %w", err)
	}

	hg := &hostedGame{engine: eng, host: host, meta: *rec}
	s.mu.Lock()
	s.games[id] = hg
	s.mu.Unlock()

	metrics.GamesCreated.Inc()
	metrics.OpenGames.Inc()

	view := hg.view(id)
	s.saveSnapshot(ctx, id, hg)
	s.publish(id, EventGameCreated, view)
	s.auditLog(ctx, host, domain.AuditActionGameCreate, map[string]interface{}{
		"game_id":        id.String(),
		"fund":           funding.String(),
		"num_of_players": params.RequiredPlayers,
	})
	s.log.Info("game created", "game_id", id, "host", host.Hex(), "players", params.RequiredPlayers, "fee", funding.String())
	return &view, nil
}

// SubmitGuess admits player's guess into the game.
func (s *GameService) SubmitGuess(ctx context.Context, id uuid.UUID, player common.Address, number int64, paid *big.Int) (*GameView, error) {
	hg, err := s.hosted(ctx, id)
	if err != nil {
		return nil, err
	}

	err = hg.engine.SubmitGuess(ctx, player, number, paid)
	metrics.Guesses.WithLabelValues(metrics.Result(err, game.Code(err))).Inc()
	if err != nil {
		if !game.IsRuleViolation(err) {
			s.log.Error("submit guess failed", "game_id", id, "player", player.Hex(), "error", err)
		}
		return nil, err
	}

	view := hg.view(id)
	s.saveSnapshot(ctx, id, hg)
	s.publish(id, EventGuessSubmitted, GuessEvent{
		Player:          player,
		Number:          number,
		PlayersCount:    view.PlayersCount,
		RequiredPlayers: view.RequiredPlayers,
	})
	s.auditLog(ctx, player, domain.AuditActionGameGuess, map[string]interface{}{
		"game_id": id.String(),
		"number":  number,
		"paid":    paid.String(),
	})
	return &view, nil
}

// Reveal settles the game. The caller is recorded but not checked: holding
// the pre-images is the authorization.
func (s *GameService) Reveal(ctx context.Context, id uuid.UUID, caller common.Address, nonce string, number int64) (*GameView, error) {
	hg, err := s.hosted(ctx, id)
	if err != nil {
		return nil, err
	}

	settlement, err := hg.engine.Reveal(ctx, nonce, number)
	metrics.Reveals.WithLabelValues(metrics.Result(err, game.Code(err))).Inc()
	if err != nil {
		if !game.IsRuleViolation(err) {
			s.log.Error("reveal failed", "game_id", id, "error", err)
		}
		return nil, err
	}

	// the payout is committed at this point; a missing summary is logged and
	// the cached snapshot still carries it
	if err := s.store.RecordReveal(ctx, id, settlement); err != nil {
		s.log.Error("failed to record reveal", "game_id", id, "error", err)
	}
	metrics.OpenGames.Dec()
	metrics.AddWei(metrics.PayoutWei, settlement.Pool)

	view := hg.view(id)
	s.saveSnapshot(ctx, id, hg)

	// closed games are served from the cache and Postgres from now on
	s.mu.Lock()
	delete(s.games, id)
	s.mu.Unlock()
	s.publish(id, EventGameSettled, view.Settlement)
	s.auditLog(ctx, caller, domain.AuditActionGameReveal, map[string]interface{}{
		"game_id": id.String(),
		"number":  number,
		"pool":    settlement.Pool.String(),
		"winners": len(settlement.Payouts),
	})
	s.log.Info("game settled", "game_id", id, "number", number, "pool", settlement.Pool.String(), "winners", len(settlement.Payouts))

	if s.onSettled != nil {
		go s.onSettled(view)
	}
	return &view, nil
}

// Get reads a game from memory, then the snapshot cache, then Postgres.
func (s *GameService) Get(ctx context.Context, id uuid.UUID) (*GameView, error) {
	s.mu.RLock()
	hg, ok := s.games[id]
	s.mu.RUnlock()
	if ok {
		v := hg.view(id)
		return &v, nil
	}

	if s.cache != nil {
		snap, found, err := s.cache.Load(ctx, id)
		if err != nil {
			s.log.Warn("snapshot cache load failed", "game_id", id, "error", err)
		} else if found {
			v := viewFromSnapshot(id, snap)
			return &v, nil
		}
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrGameNotFound
	}

	entries, err := s.store.Guesses(ctx, id)
	if err != nil {
		return nil, err
	}
	var settlement *game.Settlement
	if rec.Status == domain.GameStatusClosed {
		if settlement, err = s.store.Settlement(ctx, id); err != nil {
			return nil, err
		}
	}

	snap := snapshotFromRecord(rec, entries, settlement)
	if s.cache != nil {
		if err := s.cache.Save(ctx, id, snap); err != nil {
			s.log.Warn("snapshot cache save failed", "game_id", id, "error", err)
		}
	}
	v := viewFromSnapshot(id, snap)
	return &v, nil
}

// List returns game summaries, newest first. status is "open", "closed" or
// empty for both.
func (s *GameService) List(ctx context.Context, status string, limit int) ([]GameView, error) {
	recs, err := s.store.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}

	out := make([]GameView, 0, len(recs))
	for _, rec := range recs {
		s.mu.RLock()
		hg, ok := s.games[rec.ID]
		s.mu.RUnlock()

		var v GameView
		if ok {
			v = hg.view(rec.ID)
		} else {
			v = viewFromSnapshot(rec.ID, snapshotFromRecord(rec, nil, nil))
			v.PlayersCount = rec.PlayersCount
		}
		v.Guesses = nil
		out = append(out, v)
	}
	return out, nil
}

// GuessNumber returns the number of the index-th guess of a game.
func (s *GameService) GuessNumber(ctx context.Context, id uuid.UUID, index int) (int64, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if index < 0 || index >= len(v.Guesses) {
		return 0, game.ErrGuessOutOfBounds
	}
	return v.Guesses[index].Number, nil
}

// Restore reloads every open game from Postgres. Games whose stored state
// breaks an engine invariant are logged and skipped.
func (s *GameService) Restore(ctx context.Context) (int, error) {
	recs, err := s.store.List(ctx, domain.GameStatusOpen, restoreLimit)
	if err != nil {
		return 0, fmt.Errorf("list open games: %w", err)
	}

	restored := 0
	for _, rec := range recs {
		hg, err := s.load(ctx, rec)
		if err != nil {
			s.log.Error("skipping game on restore", "game_id", rec.ID, "error", err)
			continue
		}
		s.mu.Lock()
		s.games[rec.ID] = hg
		s.mu.Unlock()
		restored++
	}

	metrics.OpenGames.Set(float64(restored))
	s.log.Info("games restored", "count", restored, "open", len(recs))
	return restored, nil
}

// FindByCommitments returns the newest game, open or closed, committed to
// exactly these digests.
func (s *GameService) FindByCommitments(ctx context.Context, nonceHash, nonceNumHash common.Hash) (*GameView, error) {
	rec, err := s.store.FindByCommitments(ctx, nonceHash, nonceNumHash)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrGameNotFound
	}
	return s.Get(ctx, rec.ID)
}

func (s *GameService) hosted(ctx context.Context, id uuid.UUID) (*hostedGame, error) {
	s.mu.RLock()
	hg, ok := s.games[id]
	s.mu.RUnlock()
	if ok {
		return hg, nil
	}

	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrGameNotFound
	}
	if rec.Status != domain.GameStatusOpen {
		return nil, game.ErrGameClosed
	}

	loaded, err := s.load(ctx, rec)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.games[id]; ok {
		return existing, nil
	}
	s.games[id] = loaded
	return loaded, nil
}

// load rebuilds an open game's engine from its stored rows.
func (s *GameService) load(ctx context.Context, rec *domain.Game) (*hostedGame, error) {
	entries, err := s.store.Guesses(ctx, rec.ID)
	if err != nil {
		return nil, err
	}

	snap := snapshotFromRecord(rec, entries, nil)
	eng, err := game.Restore(snap.Snapshot, storeBank{store: s.store, gameID: rec.ID})
	if err != nil {
		return nil, fmt.Errorf("restore game %s: %w", rec.ID, err)
	}
	return &hostedGame{engine: eng, host: rec.Host, meta: *rec}, nil
}

func (s *GameService) saveSnapshot(ctx context.Context, id uuid.UUID, hg *hostedGame) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Save(ctx, id, hg.snapshot()); err != nil {
		s.log.Warn("snapshot cache save failed", "game_id", id, "error", err)
	}
}

func (s *GameService) publish(id uuid.UUID, eventType string, payload any) {
	if s.events != nil {
		s.events.Publish(id, eventType, payload)
	}
}

func (s *GameService) auditLog(ctx context.Context, who common.Address, action string, details map[string]interface{}) {
	if s.audit != nil {
		s.audit.Log(ctx, who.Hex(), action, domain.AuditCategoryGame, details)
	}
}

func (h *hostedGame) snapshot() domain.GameSnapshot {
	return domain.GameSnapshot{
		Host:      h.host,
		CreatedAt: h.meta.CreatedAt,
		Snapshot:  h.engine.Snapshot(),
	}
}

func (h *hostedGame) view(id uuid.UUID) GameView {
	return viewFromSnapshot(id, h.snapshot())
}

func snapshotFromRecord(rec *domain.Game, entries []domain.GuessEntry, settlement *game.Settlement) domain.GameSnapshot {
	guesses := make([]game.Guess, 0, len(entries))
	for _, e := range entries {
		guesses = append(guesses, game.Guess{Player: e.Player, Number: e.Number})
	}

	return domain.GameSnapshot{
		Host:      rec.Host,
		CreatedAt: rec.CreatedAt,
		Snapshot: game.Snapshot{
			Params: game.Params{
				NonceCommitment:       rec.NonceHash,
				NonceNumberCommitment: rec.NonceNumHash,
				RequiredPlayers:       rec.RequiredPlayers,
			},
			EntranceFee: rec.EntranceFee,
			Balance:     rec.Escrow,
			Open:        rec.Status == domain.GameStatusOpen,
			Guesses:     guesses,
			Settlement:  settlement,
		},
	}
}
