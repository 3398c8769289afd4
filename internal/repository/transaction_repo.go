package repository

import (
	"context"
	"encoding/json"

	"guess_game/internal/domain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TransactionRepository struct {
	db *pgxpool.Pool
}

func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// CreateWithTx records a ledger movement inside the caller's transaction.
func (r *TransactionRepository) CreateWithTx(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	metaJSON, err := json.Marshal(t.Meta)
	if err != nil || t.Meta == nil {
		metaJSON = []byte("{}")
	}

	return tx.QueryRow(ctx, `
		INSERT INTO transactions (address, type, amount, game_id, meta)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, t.Address.Hex(), t.Type, toNumeric(t.Amount), t.GameID, metaJSON).Scan(&t.ID, &t.CreatedAt)
}

// GetByAddress returns the newest movements first.
func (r *TransactionRepository) GetByAddress(ctx context.Context, addr common.Address, limit int) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, address, type, amount, game_id::text, meta, created_at
		FROM transactions
		WHERE address = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, addr.Hex(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		var (
			t        domain.Transaction
			address  string
			amount   pgtype.Numeric
			metaJSON []byte
		)
		if err := rows.Scan(&t.ID, &address, &t.Type, &amount, &t.GameID, &metaJSON, &t.CreatedAt); err != nil {
			return nil, err
		}
		t.Address = common.HexToAddress(address)
		if t.Amount, err = fromNumeric(amount); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(metaJSON, &t.Meta); err != nil {
			t.Meta = make(map[string]interface{})
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
