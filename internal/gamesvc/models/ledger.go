package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerKind is the type of balance change.
type LedgerKind string

const (
	LedgerDeposit  LedgerKind = "deposit"
	LedgerWithdraw LedgerKind = "withdraw"
	LedgerBet      LedgerKind = "bet"
	LedgerWin      LedgerKind = "win"
	LedgerRefund   LedgerKind = "refund"
)

// RefType names the entity a ledger entry's RefID points at.
const (
	RefWager  = "wager"
	RefManual = "manual"
)

// LedgerEntry is an immutable balance-change record. Summing a player's
// deltas reproduces the player's balance.
type LedgerEntry struct {
	ID            int64           `json:"id"`
	PlayerID      int64           `json:"player_id"`
	Kind          LedgerKind      `json:"kind"`
	Delta         decimal.Decimal `json:"delta"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	RefType       string          `json:"ref_type"`
	RefID         int64           `json:"ref_id"`
	CreatedAt     time.Time       `json:"created_at"`
}
