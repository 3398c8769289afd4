package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"time"

	"guess_game/internal/domain"
	"guess_game/internal/game"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrGameNotFound   = errors.New("game not found")
	ErrEscrowMismatch = errors.New("payouts do not match the game escrow")
)

// GameStats is a platform-wide summary used by the admin bot.
type GameStats struct {
	Open     int
	Closed   int
	Escrowed *big.Int
}

// GameRepository persists games and moves wei between accounts and game
// escrows. Every value movement runs in one pgx transaction together with the
// row changes that justify it.
type GameRepository struct {
	db       *pgxpool.Pool
	accounts *AccountRepository
	txs      *TransactionRepository
}

func NewGameRepository(db *pgxpool.Pool) *GameRepository {
	return &GameRepository{
		db:       db,
		accounts: NewAccountRepository(db),
		txs:      NewTransactionRepository(db),
	}
}

// Create debits the host's funding into a new escrow and stores the game.
// With MintFunding set the funding is credited to the host first, inside the
// same transaction.
func (r *GameRepository) Create(ctx context.Context, g *domain.Game) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if g.MintFunding {
		if _, err := r.accounts.CreditWithTx(ctx, tx, g.Host, g.EntranceFee); err != nil {
			return fmt.Errorf("mint host funding: %w", err)
		}
		if err := r.txs.CreateWithTx(ctx, tx, &domain.Transaction{
			Address: g.Host,
			Type:    domain.TxTypeCredit,
			Amount:  new(big.Int).Set(g.EntranceFee),
			GameID:  &g.ID,
			Meta:    map[string]interface{}{"reason": "bootstrap"},
		}); err != nil {
			return err
		}
	}

	if _, err := r.accounts.DebitWithTx(ctx, tx, g.Host, g.EntranceFee); err != nil {
		return fmt.Errorf("debit host: %w", err)
	}

	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO games (id, host, nonce_hash, nonce_num_hash, required_players, entrance_fee, escrow, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6, $7, $8)
	`, g.ID, g.Host.Hex(), g.NonceHash.Hex(), g.NonceNumHash.Hex(), g.RequiredPlayers,
		toNumeric(g.EntranceFee), domain.GameStatusOpen, g.CreatedAt)
	if err != nil {
		return err
	}
	g.Escrow = new(big.Int).Set(g.EntranceFee)
	g.Status = domain.GameStatusOpen

	if err = r.txs.CreateWithTx(ctx, tx, &domain.Transaction{
		Address: g.Host,
		Type:    domain.TxTypeGameFund,
		Amount:  new(big.Int).Neg(g.EntranceFee),
		GameID:  &g.ID,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// InsertGuess debits the player's fee into the escrow and records the guess.
func (r *GameRepository) InsertGuess(ctx context.Context, gameID uuid.UUID, entry game.Guess, fee *big.Int) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	status, _, err := lockGame(ctx, tx, gameID)
	if err != nil {
		return err
	}
	if status != domain.GameStatusOpen {
		return game.ErrGameClosed
	}

	if _, err := r.accounts.DebitWithTx(ctx, tx, entry.Player, fee); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `
		UPDATE games SET escrow = escrow + $2 WHERE id = $1
	`, gameID, toNumeric(fee)); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx, `
		INSERT INTO guesses (game_id, player, number)
		VALUES ($1, $2, $3)
	`, gameID, entry.Player.Hex(), entry.Number); err != nil {
		return uniqueGuessError(err)
	}

	if err = r.txs.CreateWithTx(ctx, tx, &domain.Transaction{
		Address: entry.Player,
		Type:    domain.TxTypeGuessFee,
		Amount:  new(big.Int).Neg(fee),
		GameID:  &gameID,
		Meta:    map[string]interface{}{"number": entry.Number},
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Settle credits every payout, empties the escrow and closes the game. The
// payouts must add up to the escrow exactly.
func (r *GameRepository) Settle(ctx context.Context, gameID uuid.UUID, payouts []game.Payout) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	status, escrow, err := lockGame(ctx, tx, gameID)
	if err != nil {
		return err
	}
	if status != domain.GameStatusOpen {
		return game.ErrGameClosed
	}
	if total := game.Total(payouts); total.Cmp(escrow) != 0 {
		return fmt.Errorf("%w: paying %s of %s", ErrEscrowMismatch, total, escrow)
	}

	for _, p := range payouts {
		if _, err := r.accounts.CreditWithTx(ctx, tx, p.Player, p.Amount); err != nil {
			return fmt.Errorf("credit %s: %w", p.Player.Hex(), err)
		}
		if err := r.txs.CreateWithTx(ctx, tx, &domain.Transaction{
			Address: p.Player,
			Type:    domain.TxTypePayout,
			Amount:  p.Amount,
			GameID:  &gameID,
			Meta:    map[string]interface{}{"number": p.Number},
		}); err != nil {
			return err
		}
	}

	if _, err = tx.Exec(ctx, `
		UPDATE games SET escrow = 0, status = $2, closed_at = now() WHERE id = $1
	`, gameID, domain.GameStatusClosed); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecordReveal stores the revealed number and the settlement summary of a
// game that Settle already closed.
func (r *GameRepository) RecordReveal(ctx context.Context, gameID uuid.UUID, s *game.Settlement) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, `
		UPDATE games SET revealed_number = $2, settlement = $3 WHERE id = $1
	`, gameID, s.Number, raw)
	return err
}

// Get returns nil, nil when no game has that id.
func (r *GameRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Game, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+gameColumns+`
		FROM games
		WHERE id = $1
	`, id)

	g, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

// List returns the newest games first; an empty status lists all of them.
func (r *GameRepository) List(ctx context.Context, status string, limit int) ([]*domain.Game, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+gameColumns+`
		FROM games
		WHERE $1 = '' OR status = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Game
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Guesses returns a game's guesses in submission order.
func (r *GameRepository) Guesses(ctx context.Context, gameID uuid.UUID) ([]domain.GuessEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, game_id, player, number, created_at
		FROM guesses
		WHERE game_id = $1
		ORDER BY id
	`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.GuessEntry
	for rows.Next() {
		var (
			e      domain.GuessEntry
			player string
		)
		if err := rows.Scan(&e.ID, &e.GameID, &player, &e.Number, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Player = common.HexToAddress(player)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Settlement returns the stored settlement of a closed game, nil when the
// game is open or the reveal was not recorded.
func (r *GameRepository) Settlement(ctx context.Context, gameID uuid.UUID) (*game.Settlement, error) {
	var raw []byte
	err := r.db.QueryRow(ctx, `SELECT settlement FROM games WHERE id = $1`, gameID).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var s game.Settlement
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// FindByCommitments returns the newest game with both digests, nil, nil when
// there is none.
func (r *GameRepository) FindByCommitments(ctx context.Context, nonceHash, nonceNumHash common.Hash) (*domain.Game, error) {
	row := r.db.QueryRow(ctx, `
		SELECT `+gameColumns+`
		FROM games
		WHERE nonce_hash = $1 AND nonce_num_hash = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, nonceHash.Hex(), nonceNumHash.Hex())

	g, err := scanGame(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return g, nil
}

func (r *GameRepository) Stats(ctx context.Context) (GameStats, error) {
	var (
		s      GameStats
		escrow pgtype.Numeric
	)
	err := r.db.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'open'),
			count(*) FILTER (WHERE status = 'closed'),
			COALESCE(sum(escrow), 0)
		FROM games
	`).Scan(&s.Open, &s.Closed, &escrow)
	if err != nil {
		return s, err
	}
	s.Escrowed, err = fromNumeric(escrow)
	return s, err
}

const gameColumns = `id, host, nonce_hash, nonce_num_hash, required_players, entrance_fee, escrow,
		status, revealed_number, created_at, closed_at,
		(SELECT count(*) FROM guesses gu WHERE gu.game_id = games.id)`

func scanGame(row pgx.Row) (*domain.Game, error) {
	var (
		g                        domain.Game
		host, nonceHash, numHash string
		fee, escrow              pgtype.Numeric
	)
	if err := row.Scan(&g.ID, &host, &nonceHash, &numHash, &g.RequiredPlayers, &fee, &escrow,
		&g.Status, &g.RevealedNumber, &g.CreatedAt, &g.ClosedAt, &g.PlayersCount); err != nil {
		return nil, err
	}

	g.Host = common.HexToAddress(host)
	g.NonceHash = common.HexToHash(nonceHash)
	g.NonceNumHash = common.HexToHash(numHash)

	var err error
	if g.EntranceFee, err = fromNumeric(fee); err != nil {
		return nil, err
	}
	if g.Escrow, err = fromNumeric(escrow); err != nil {
		return nil, err
	}
	return &g, nil
}

func lockGame(ctx context.Context, tx pgx.Tx, id uuid.UUID) (string, *big.Int, error) {
	var (
		status string
		escrow pgtype.Numeric
	)
	err := tx.QueryRow(ctx, `
		SELECT status, escrow FROM games WHERE id = $1 FOR UPDATE
	`, id).Scan(&status, &escrow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil, ErrGameNotFound
		}
		return "", nil, err
	}

	amount, err := fromNumeric(escrow)
	return status, amount, err
}

// uniqueGuessError maps the guesses unique constraints back onto the engine's
// admission errors.
func uniqueGuessError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "guesses_game_id_player_key":
			return game.ErrPlayerAlreadyGuessed
		case "guesses_game_id_number_key":
			return game.ErrNumberAlreadyGuessed
		}
	}
	return err
}
