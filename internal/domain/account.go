package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Account is a player's off-chain wei balance, keyed by wallet address.
type Account struct {
	Address   common.Address `db:"address" json:"address"`
	Balance   *big.Int       `db:"balance" json:"balance"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`
}

// Transaction is one ledger movement. Amount is signed: negative for debits.
type Transaction struct {
	ID        int64                  `db:"id" json:"id"`
	Address   common.Address         `db:"address" json:"address"`
	Type      string                 `db:"type" json:"type"`
	Amount    *big.Int               `db:"amount" json:"amount"`
	GameID    *uuid.UUID             `db:"game_id" json:"game_id,omitempty"`
	Meta      map[string]interface{} `db:"meta" json:"meta"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// ledger transaction types
const (
	TxTypeCredit   = "credit"
	TxTypeGameFund = "game_fund"
	TxTypeGuessFee = "guess_fee"
	TxTypePayout   = "payout"
)
