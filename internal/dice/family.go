// Package dice holds the round engine's pure parts: game families and their
// wager catalog, the dice roller, the wager text parser and the outcome rules.
package dice

import (
	"errors"
	"fmt"
)

// Family is a dice-game variant. Each family rolls a fixed number of dice.
type Family string

const (
	FamilyMineSweeper Family = "MineSweeper" // 1 die
	FamilyDragonTiger Family = "DragonTiger" // 2 dice
	FamilyK3          Family = "K3"          // 3 dice
)

var ErrUnknownFamily = errors.New("unknown game family")

// Families lists every supported family in catalog order.
var Families = []Family{FamilyMineSweeper, FamilyDragonTiger, FamilyK3}

// DiceCount returns how many dice a round of the family draws, or 0 for an
// unknown family.
func (f Family) DiceCount() int {
	switch f {
	case FamilyMineSweeper:
		return 1
	case FamilyDragonTiger:
		return 2
	case FamilyK3:
		return 3
	default:
		return 0
	}
}

func (f Family) Valid() bool {
	return f.DiceCount() > 0
}

// ParseFamily resolves a family code.
func ParseFamily(s string) (Family, error) {
	f := Family(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownFamily, s)
	}
	return f, nil
}

// Code identifies a wager type within a family.
type Code string

const (
	CodeBig       Code = "Big"
	CodeSmall     Code = "Small"
	CodeOdd       Code = "Odd"
	CodeEven      Code = "Even"
	CodeBigOdd    Code = "BigOdd"
	CodeBigEven   Code = "BigEven"
	CodeSmallOdd  Code = "SmallOdd"
	CodeSmallEven Code = "SmallEven"
	CodePosition  Code = "Position"

	CodeDragon      Code = "Dragon"
	CodeTiger       Code = "Tiger"
	CodeTie         Code = "Tie"
	CodeFrontDragon Code = "FrontDragon"
	CodeBackDragon  Code = "BackDragon"

	CodeCompound   Code = "Compound"
	CodeLeopard    Code = "Leopard"
	CodeStraight   Code = "Straight"
	CodeGroupThree Code = "GroupThree"
	CodeGroupSix   Code = "GroupSix"
)
