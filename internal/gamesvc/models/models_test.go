package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	all := []RoundState{RoundBetting, RoundClosed, RoundDrawing, RoundSettled, RoundCancelled}
	allowed := map[[2]RoundState]bool{
		{RoundBetting, RoundClosed}:    true,
		{RoundBetting, RoundCancelled}: true,
		{RoundClosed, RoundDrawing}:    true,
		{RoundClosed, RoundCancelled}:  true,
		{RoundDrawing, RoundSettled}:   true,
	}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]RoundState{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, RoundSettled.Terminal())
	assert.True(t, RoundCancelled.Terminal())
	assert.False(t, RoundDrawing.Terminal())
}

func TestEndedAt(t *testing.T) {
	updated := time.Date(2024, 5, 1, 12, 3, 0, 0, time.UTC)
	r := &Round{UpdatedAt: updated}
	assert.Equal(t, updated, r.EndedAt())

	drawn := updated.Add(-time.Minute)
	r.DrawAt = &drawn
	assert.Equal(t, drawn, r.EndedAt())
}

func TestOutcomes(t *testing.T) {
	got := Outcomes(9, []int{4, 1, 6})
	assert.Equal(t, []DiceOutcome{
		{RoundID: 9, Index: 1, Value: 4},
		{RoundID: 9, Index: 2, Value: 1},
		{RoundID: 9, Index: 3, Value: 6},
	}, got)
	assert.Empty(t, Outcomes(9, nil))
}
