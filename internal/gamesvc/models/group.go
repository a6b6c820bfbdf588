package models

import (
	"time"

	"github.com/avvvet/dice-services/internal/dice"
	"github.com/shopspring/decimal"
)

// Player is a member of one group. Balances are isolated per group.
type Player struct {
	ID         int64           `json:"id"`
	GroupID    int64           `json:"group_id"`
	ExternalID int64           `json:"external_id"` // chat transport user id
	Username   string          `json:"username,omitempty"`
	Balance    decimal.Decimal `json:"balance"`
	TotalBet   decimal.Decimal `json:"total_bet"`
	TotalWin   decimal.Decimal `json:"total_win"`
	Banned     bool            `json:"banned"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Group is a chat group owned by a tenant.
type Group struct {
	ID       int64  `json:"id"`
	TenantID int64  `json:"tenant_id"`
	ChatID   int64  `json:"chat_id"`
	Name     string `json:"name"`
	Active   bool   `json:"active"`
}

// Schedule is the round cadence of one family in one group.
type Schedule struct {
	GroupID         int64       `json:"group_id"`
	TenantID        int64       `json:"tenant_id"`
	ChatID          int64       `json:"chat_id"`
	Family          dice.Family `json:"family"`
	IntervalMinutes int         `json:"interval_minutes"`
	Enabled         bool        `json:"enabled"`
}

// WagerRule is a wager type as configured for a group: the odds to snapshot
// and the accepted bet range.
type WagerRule struct {
	Family  dice.Family     `json:"family"`
	Code    dice.Code       `json:"code"`
	Name    string          `json:"name"`
	Odds    decimal.Decimal `json:"odds"`
	MinBet  decimal.Decimal `json:"min_bet"`
	MaxBet  decimal.Decimal `json:"max_bet"`
	Enabled bool            `json:"enabled"`
}
