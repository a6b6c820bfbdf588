package service

import (
	"context"
	"fmt"

	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type WagerSettler interface {
	ListPending(ctx context.Context, roundID int64) ([]*models.Wager, error)
	SettleWager(ctx context.Context, w *models.Wager, won bool, payout decimal.Decimal) (bool, error)
}

// Settlement counts what one pass over a round's pending wagers did.
type Settlement struct {
	RoundID int64
	Won     int
	Lost    int
	Skipped int // settled concurrently by another worker
	Failed  int // left pending for the next pass
	Paid    decimal.Decimal
}

// Complete reports whether every wager seen by the pass reached a final state.
func (s Settlement) Complete() bool {
	return s.Failed == 0
}

type Settler struct {
	wagers WagerSettler
}

func NewSettler(wagers WagerSettler) *Settler {
	return &Settler{wagers: wagers}
}

// Payout is the credit for a won wager: stake times the odds snapshot,
// rounded to cents.
func Payout(w *models.Wager) decimal.Decimal {
	return w.Amount.Mul(w.Odds).Round(2)
}

// SettleRound resolves every pending wager of a drawn round against its dice.
// Each wager commits on its own; a failure is logged and counted and the
// wager stays pending. Running it again after a complete pass does nothing.
func (s *Settler) SettleRound(ctx context.Context, round *models.Round) (Settlement, error) {
	result := Settlement{RoundID: round.ID, Paid: decimal.Zero}
	if len(round.Dice) != round.Family.DiceCount() {
		return result, fmt.Errorf("round %d has %d dice, %s needs %d",
			round.ID, len(round.Dice), round.Family, round.Family.DiceCount())
	}

	pending, err := s.wagers.ListPending(ctx, round.ID)
	if err != nil {
		return result, err
	}

	logger := log.WithFields(log.Fields{"round_id": round.ID, "group_id": round.GroupID})
	for _, w := range pending {
		won := dice.Evaluate(w.WagerType, w.Content, round.Dice)
		payout := decimal.Zero
		if won {
			payout = Payout(w)
		}

		ok, err := s.wagers.SettleWager(ctx, w, won, payout)
		switch {
		case err != nil:
			result.Failed++
			logger.WithField("wager_id", w.ID).Errorf("settle wager: %v", err)
		case !ok:
			result.Skipped++
		case won:
			result.Won++
			result.Paid = result.Paid.Add(payout)
		default:
			result.Lost++
		}
	}

	logger.Infof("settled dice %v: won=%d lost=%d skipped=%d failed=%d paid=%s",
		round.Dice, result.Won, result.Lost, result.Skipped, result.Failed, result.Paid.StringFixed(2))
	return result, nil
}
