package repository

import (
	"context"
	"errors"
	"math/big"

	"guess_game/internal/domain"
	"guess_game/internal/game"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInsufficientFunds is shared with the engine so bank failures surface the
// same sentinel no matter which bank produced them.
var ErrInsufficientFunds = game.ErrInsufficientFunds

type AccountRepository struct {
	db *pgxpool.Pool
}

func NewAccountRepository(db *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{db: db}
}

// Get returns nil, nil for an address that never held funds.
func (r *AccountRepository) Get(ctx context.Context, addr common.Address) (*domain.Account, error) {
	var (
		a       domain.Account
		balance pgtype.Numeric
	)
	err := r.db.QueryRow(ctx, `
		SELECT balance, created_at, updated_at
		FROM accounts
		WHERE address = $1
	`, addr.Hex()).Scan(&balance, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	a.Address = addr
	if a.Balance, err = fromNumeric(balance); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreditWithTx adds amount to addr, creating the account on first credit.
func (r *AccountRepository) CreditWithTx(ctx context.Context, tx pgx.Tx, addr common.Address, amount *big.Int) (*big.Int, error) {
	var balance pgtype.Numeric
	err := tx.QueryRow(ctx, `
		INSERT INTO accounts (address, balance)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE
		SET balance = accounts.balance + EXCLUDED.balance, updated_at = now()
		RETURNING balance
	`, addr.Hex(), toNumeric(amount)).Scan(&balance)
	if err != nil {
		return nil, err
	}
	return fromNumeric(balance)
}

// DebitWithTx subtracts amount from addr, failing with ErrInsufficientFunds
// when the balance (or the account) is missing.
func (r *AccountRepository) DebitWithTx(ctx context.Context, tx pgx.Tx, addr common.Address, amount *big.Int) (*big.Int, error) {
	var balance pgtype.Numeric
	err := tx.QueryRow(ctx, `
		UPDATE accounts
		SET balance = balance - $2, updated_at = now()
		WHERE address = $1 AND balance >= $2
		RETURNING balance
	`, addr.Hex(), toNumeric(amount)).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInsufficientFunds
		}
		return nil, err
	}
	return fromNumeric(balance)
}
