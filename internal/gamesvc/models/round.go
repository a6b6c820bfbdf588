package models

import (
	"time"

	"github.com/avvvet/dice-services/internal/dice"
)

type RoundState string

const (
	RoundBetting   RoundState = "betting"
	RoundClosed    RoundState = "closed"
	RoundDrawing   RoundState = "drawing"
	RoundSettled   RoundState = "settled"
	RoundCancelled RoundState = "cancelled"
)

// Terminal reports whether no further transition can leave the state.
func (s RoundState) Terminal() bool {
	return s == RoundSettled || s == RoundCancelled
}

// CanTransition reports whether from -> to is an edge of the round lifecycle:
// betting -> closed -> drawing -> settled, with cancel from betting or closed.
func CanTransition(from, to RoundState) bool {
	switch from {
	case RoundBetting:
		return to == RoundClosed || to == RoundCancelled
	case RoundClosed:
		return to == RoundDrawing || to == RoundCancelled
	case RoundDrawing:
		return to == RoundSettled
	default:
		return false
	}
}

// Round is one timed betting cycle for a group and game family.
type Round struct {
	ID        int64       `json:"id"`
	GroupID   int64       `json:"group_id"`
	ChatID    int64       `json:"chat_id"` // chat the group is bound to
	Family    dice.Family `json:"family"`
	Sequence  string      `json:"sequence"` // e.g. 20240101120500
	State     RoundState  `json:"state"`
	OpenAt    time.Time   `json:"open_at"`
	CloseAt   time.Time   `json:"close_at"`
	DrawAt    *time.Time  `json:"draw_at,omitempty"`
	Dice      []int       `json:"dice,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// EndedAt is the instant the next round's interval counts from: the draw
// time, or the last update for a round cancelled before drawing.
func (r *Round) EndedAt() time.Time {
	if r.DrawAt != nil {
		return *r.DrawAt
	}
	return r.UpdatedAt
}

// DiceOutcome is one die's drawn value for a round. Index starts at 1.
type DiceOutcome struct {
	RoundID int64 `json:"round_id"`
	Index   int   `json:"index"`
	Value   int   `json:"value"`
}

// Outcomes expands drawn values into per-die records.
func Outcomes(roundID int64, values []int) []DiceOutcome {
	out := make([]DiceOutcome, len(values))
	for i, v := range values {
		out[i] = DiceOutcome{RoundID: roundID, Index: i + 1, Value: v}
	}
	return out
}
