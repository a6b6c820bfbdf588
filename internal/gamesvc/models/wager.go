package models

import (
	"time"

	"github.com/avvvet/dice-services/internal/dice"
	"github.com/shopspring/decimal"
)

type WagerState string

const (
	WagerPending  WagerState = "pending"
	WagerWon      WagerState = "won"
	WagerLost     WagerState = "lost"
	WagerRefunded WagerState = "refunded"
)

// Wager is a player's bet on a round. Odds are the multiplier in force when
// the wager was placed and are never re-read from configuration.
type Wager struct {
	ID        int64           `json:"id"`
	RoundID   int64           `json:"round_id"`
	PlayerID  int64           `json:"player_id"`
	WagerType dice.Code       `json:"wager_type"`
	RawText   string          `json:"raw_text"`
	Content   dice.Content    `json:"content"`
	Amount    decimal.Decimal `json:"amount"`
	Odds      decimal.Decimal `json:"odds"`
	State     WagerState      `json:"state"`
	Payout    decimal.Decimal `json:"payout"`
	CreatedAt time.Time       `json:"created_at"`
	SettledAt *time.Time      `json:"settled_at,omitempty"`
}

// Winner is a won wager joined with its player's display name.
type Winner struct {
	WagerID   int64           `json:"wager_id"`
	PlayerID  int64           `json:"player_id"`
	Username  string          `json:"username"`
	WagerType dice.Code       `json:"wager_type"`
	Amount    decimal.Decimal `json:"amount"`
	Payout    decimal.Decimal `json:"payout"`
}
