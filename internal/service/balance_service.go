package service

import (
	"context"
	"errors"
	"math/big"

	"guess_game/internal/domain"
	"guess_game/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvalidAmount = errors.New("amount must be positive")

const defaultHistoryLimit = 50

// BalanceService handles off-chain wei balances. Game escrow movements go
// through GameRepository; this service covers everything else.
type BalanceService struct {
	db              *pgxpool.Pool
	accountRepo     *repository.AccountRepository
	transactionRepo *repository.TransactionRepository
}

func NewBalanceService(db *pgxpool.Pool) *BalanceService {
	return &BalanceService{
		db:              db,
		accountRepo:     repository.NewAccountRepository(db),
		transactionRepo: repository.NewTransactionRepository(db),
	}
}

// GetBalance returns zero for an address that never held funds.
func (s *BalanceService) GetBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	acc, err := s.accountRepo.Get(ctx, addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return new(big.Int), nil
	}
	return acc.Balance, nil
}

// Credit adds amount to addr and records a credit transaction.
func (s *BalanceService) Credit(ctx context.Context, addr common.Address, amount *big.Int, meta map[string]interface{}) (*big.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	balance, err := s.accountRepo.CreditWithTx(ctx, tx, addr, amount)
	if err != nil {
		return nil, err
	}

	if err = s.transactionRepo.CreateWithTx(ctx, tx, &domain.Transaction{
		Address: addr,
		Type:    domain.TxTypeCredit,
		Amount:  amount,
		Meta:    meta,
	}); err != nil {
		return nil, err
	}

	if err = tx.Commit(ctx); err != nil {
		return nil, err
	}
	return balance, nil
}

// History returns the newest ledger movements of addr.
func (s *BalanceService) History(ctx context.Context, addr common.Address, limit int) ([]*domain.Transaction, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultHistoryLimit
	}
	return s.transactionRepo.GetByAddress(ctx, addr, limit)
}
