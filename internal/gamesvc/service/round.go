package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
)

var ErrNotCancellable = errors.New("round can no longer be cancelled")

type RoundAdmin interface {
	RoundFinder
	ClaimTransition(ctx context.Context, roundID int64, from, to models.RoundState) (bool, error)
}

type RoundWagers interface {
	ListByRound(ctx context.Context, roundID int64) ([]*models.Wager, error)
	ListPending(ctx context.Context, roundID int64) ([]*models.Wager, error)
	RefundWager(ctx context.Context, w *models.Wager) (bool, error)
}

type RuleLister interface {
	ListRules(ctx context.Context, groupID int64, family dice.Family) ([]models.WagerRule, error)
}

// Publisher sends round events. Delivery is best effort.
type Publisher interface {
	PublishRoundEvent(ev comm.RoundEvent)
}

type RoundService struct {
	rounds  RoundAdmin
	wagers  RoundWagers
	players PlayerFinder
	rules   RuleLister
	events  Publisher
}

func NewRoundService(rounds RoundAdmin, wagers RoundWagers, players PlayerFinder,
	rules RuleLister, events Publisher) *RoundService {
	return &RoundService{rounds: rounds, wagers: wagers, players: players, rules: rules, events: events}
}

// CurrentRound returns the active round of a group and family, or
// store.ErrNotFound.
func (s *RoundService) CurrentRound(ctx context.Context, groupID int64, family dice.Family) (*models.Round, error) {
	r, err := s.rounds.ActiveRound(ctx, groupID, family)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, store.ErrNotFound
	}
	return r, nil
}

// CancelRound stops a betting or closed round and refunds its pending
// wagers. Calling it again on a cancelled round retries refunds that failed.
func (s *RoundService) CancelRound(ctx context.Context, roundID int64) (*models.Round, int, error) {
	round, err := s.rounds.GetRound(ctx, roundID)
	if err != nil {
		return nil, 0, err
	}

	switch round.State {
	case models.RoundBetting, models.RoundClosed:
		ok, err := s.rounds.ClaimTransition(ctx, round.ID, round.State, models.RoundCancelled)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, fmt.Errorf("round %d: %w", round.ID, ErrNotCancellable)
		}
		round.State = models.RoundCancelled
		s.events.PublishRoundEvent(comm.NewRoundEvent(comm.RoundCancelled, round, nil))
	case models.RoundCancelled:
	default:
		return nil, 0, fmt.Errorf("round %d is %s: %w", round.ID, round.State, ErrNotCancellable)
	}

	pending, err := s.wagers.ListPending(ctx, round.ID)
	if err != nil {
		return round, 0, err
	}
	refunded := 0
	var failed error
	for _, w := range pending {
		ok, err := s.wagers.RefundWager(ctx, w)
		if err != nil {
			log.WithFields(log.Fields{"round_id": round.ID, "wager_id": w.ID}).Errorf("refund wager: %v", err)
			failed = errors.Join(failed, err)
			continue
		}
		if ok {
			refunded++
		}
	}
	log.WithField("round_id", round.ID).Infof("round %s cancelled, %d wagers refunded", round.Sequence, refunded)
	return round, refunded, failed
}

// Wagers lists every wager of a round in placement order.
func (s *RoundService) Wagers(ctx context.Context, roundID int64) ([]*models.Wager, error) {
	if _, err := s.rounds.GetRound(ctx, roundID); err != nil {
		return nil, err
	}
	return s.wagers.ListByRound(ctx, roundID)
}

func (s *RoundService) Player(ctx context.Context, playerID int64) (*models.Player, error) {
	return s.players.GetPlayer(ctx, playerID)
}

func (s *RoundService) Catalog(ctx context.Context, groupID int64, family dice.Family) ([]models.WagerRule, error) {
	return s.rules.ListRules(ctx, groupID, family)
}
