package dice

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRollIsDeterministicForSeed(t *testing.T) {
	a, err := Roll(42, 3)
	require.NoError(t, err)
	b, err := Roll(42, 3)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 3)
}

func TestRollRejectsInvalidCount(t *testing.T) {
	for _, n := range []int{-1, 0, 4} {
		_, err := Roll(1, n)
		assert.ErrorIs(t, err, ErrInvalidDiceCount)
	}
	_, err := NewSeededGenerator(1).Roll(0)
	assert.ErrorIs(t, err, ErrInvalidDiceCount)
}

func TestGeneratorIsRoughlyUniform(t *testing.T) {
	g := NewSeededGenerator(7)
	const draws = 60000
	counts := make(map[int]int)
	for i := 0; i < draws/3; i++ {
		values, err := g.Roll(3)
		require.NoError(t, err)
		for _, v := range values {
			require.GreaterOrEqual(t, v, 1)
			require.LessOrEqual(t, v, 6)
			counts[v]++
		}
	}
	expected := draws / Faces
	for face := 1; face <= Faces; face++ {
		assert.InDeltaf(t, expected, counts[face], float64(expected)*0.05, "face %d", face)
	}
}

func TestNewGenerator(t *testing.T) {
	g, err := NewGenerator()
	require.NoError(t, err)
	values, err := g.Roll(2)
	require.NoError(t, err)
	assert.Len(t, values, 2)
}

func TestDefaultCatalog(t *testing.T) {
	types, err := DefaultCatalog()
	require.NoError(t, err)

	byFamily := make(map[Family]int)
	for _, wt := range types {
		byFamily[wt.Family]++
		assert.True(t, wt.Odds.IsPositive())
	}
	assert.Equal(t, 9, byFamily[FamilyMineSweeper])
	assert.Equal(t, 4, byFamily[FamilyDragonTiger])
	assert.Equal(t, 15, byFamily[FamilyK3])
}

func TestLoadCatalogRejectsBadInput(t *testing.T) {
	tcs := map[string]string{
		"unknown family": `families: [{code: Roulette, dice: 1}]`,
		"dice mismatch":  `families: [{code: K3, dice: 2}]`,
		"unknown code": `families: [{code: DragonTiger, dice: 2, tiers: [{code: OneStar, wagers: [{code: Leopard, odds: "3"}]}]}]`,
		"zero odds":    `families: [{code: DragonTiger, dice: 2, tiers: [{code: OneStar, wagers: [{code: Tie, odds: "0"}]}]}]`,
		"bad odds":     `families: [{code: DragonTiger, dice: 2, tiers: [{code: OneStar, wagers: [{code: Tie, odds: "x"}]}]}]`,
		"duplicate":    `families: [{code: DragonTiger, dice: 2, tiers: [{code: OneStar, wagers: [{code: Tie, odds: "8"}, {code: Tie, odds: "8"}]}]}]`,
	}
	for name, doc := range tcs {
		_, err := LoadCatalog([]byte(doc))
		assert.Error(t, err, name)
	}
}
