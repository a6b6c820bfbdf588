// Package scheduler drives rounds through betting, closed, drawing and
// settled on a fixed tick. Every step is a claim on the round's persisted
// state, so several schedulers may poll the same database.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/avvvet/dice-services/internal/gamesvc/service"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// SequenceLayout formats round sequence numbers from the UTC open time.
const SequenceLayout = "20060102150405"

type Rounds interface {
	ListDueForClose(ctx context.Context, now time.Time) ([]*models.Round, error)
	ListDueForDraw(ctx context.Context, cutoff time.Time) ([]*models.Round, error)
	ListUnsettled(ctx context.Context, cutoff time.Time) ([]*models.Round, error)
	ClaimTransition(ctx context.Context, roundID int64, from, to models.RoundState) (bool, error)
	RecordDraw(ctx context.Context, roundID int64, values []int, drawAt time.Time) (bool, error)
	ActiveRound(ctx context.Context, groupID int64, family dice.Family) (*models.Round, error)
	LastRound(ctx context.Context, groupID int64, family dice.Family) (*models.Round, error)
	CreateRound(ctx context.Context, r *models.Round) (*models.Round, error)
}

type Schedules interface {
	ListSchedules(ctx context.Context) ([]models.Schedule, error)
}

type Entitlements interface {
	IsEntitled(ctx context.Context, tenantID int64, now time.Time) (bool, error)
}

type Settler interface {
	SettleRound(ctx context.Context, round *models.Round) (service.Settlement, error)
}

type Winners interface {
	ListWinners(ctx context.Context, roundID int64) ([]models.Winner, error)
}

type Roller interface {
	Roll(count int) ([]int, error)
}

type Config struct {
	TickInterval time.Duration
	CloseBuffer  time.Duration // betting stops this long before the interval ends
	DrawBuffer   time.Duration // delay between close and draw
	Parallelism  int           // rounds processed at once within a stage
	UnitTimeout  time.Duration // bound on one claim-and-act unit
}

func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		CloseBuffer:  30 * time.Second,
		DrawBuffer:   10 * time.Second,
		Parallelism:  8,
		UnitTimeout:  15 * time.Second,
	}
}

type Deps struct {
	Rounds       Rounds
	Schedules    Schedules
	Entitlements Entitlements
	Settler      Settler
	Winners      Winners
	Roller       Roller
	Events       service.Publisher
	Now          func() time.Time
}

type Scheduler struct {
	cfg Config
	Deps
}

func New(cfg Config, deps Deps) *Scheduler {
	def := DefaultConfig()
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = def.Parallelism
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = def.UnitTimeout
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Scheduler{cfg: cfg, Deps: deps}
}

// Run ticks until ctx is cancelled. A tick in progress when ctx ends stops
// starting new units and waits for the running ones.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	log.Infof("scheduler started: tick=%s close_buffer=%s draw_buffer=%s parallelism=%d",
		s.cfg.TickInterval, s.cfg.CloseBuffer, s.cfg.DrawBuffer, s.cfg.Parallelism)
	for {
		select {
		case <-ctx.Done():
			log.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one pass of every stage in order: close, draw and settle, settle
// retries, open. Storage errors are logged and the pass moves on.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.Now()

	if rounds, err := s.Rounds.ListDueForClose(ctx, now); err != nil {
		log.Errorf("list rounds due for close: %v", err)
	} else {
		s.each(ctx, rounds, s.closeRound)
	}

	if rounds, err := s.Rounds.ListDueForDraw(ctx, now.Add(-s.cfg.DrawBuffer)); err != nil {
		log.Errorf("list rounds due for draw: %v", err)
	} else {
		s.each(ctx, rounds, s.drawRound)
	}

	if rounds, err := s.Rounds.ListUnsettled(ctx, now.Add(-s.cfg.DrawBuffer)); err != nil {
		log.Errorf("list unsettled rounds: %v", err)
	} else {
		s.each(ctx, rounds, s.settleRound)
	}

	if schedules, err := s.Schedules.ListSchedules(ctx); err != nil {
		log.Errorf("list schedules: %v", err)
	} else {
		s.eachSchedule(ctx, schedules)
	}
}

// each runs fn for every round with bounded parallelism. Units are detached
// from ctx so a shutdown never interrupts one half way; ctx only stops new
// units from starting.
func (s *Scheduler) each(ctx context.Context, rounds []*models.Round, fn func(context.Context, *models.Round)) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for _, r := range rounds {
		if ctx.Err() != nil {
			break
		}
		r := r
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			unit, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UnitTimeout)
			defer cancel()
			fn(unit, r)
			return nil
		})
	}
	_ = g.Wait()
}

func (s *Scheduler) eachSchedule(ctx context.Context, schedules []models.Schedule) {
	var g errgroup.Group
	g.SetLimit(s.cfg.Parallelism)
	for _, sc := range schedules {
		if ctx.Err() != nil {
			break
		}
		sc := sc
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			unit, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.UnitTimeout)
			defer cancel()
			s.openRound(unit, sc)
			return nil
		})
	}
	_ = g.Wait()
}

func roundLogger(r *models.Round) *log.Entry {
	return log.WithFields(log.Fields{
		"round_id": r.ID,
		"group_id": r.GroupID,
		"family":   r.Family,
		"sequence": r.Sequence,
	})
}

func (s *Scheduler) closeRound(ctx context.Context, r *models.Round) {
	ok, err := s.Rounds.ClaimTransition(ctx, r.ID, models.RoundBetting, models.RoundClosed)
	if err != nil {
		roundLogger(r).Errorf("close round: %v", err)
		return
	}
	if !ok {
		roundLogger(r).Debug("close claimed elsewhere")
		return
	}
	r.State = models.RoundClosed
	roundLogger(r).Info("round closed")
	s.Events.PublishRoundEvent(comm.NewRoundEvent(comm.RoundClosed, r, nil))
}

// drawRound rolls the dice, stores them together with the drawing state and
// settles straight away.
func (s *Scheduler) drawRound(ctx context.Context, r *models.Round) {
	values, err := s.Roller.Roll(r.Family.DiceCount())
	if err != nil {
		roundLogger(r).Errorf("roll dice: %v", err)
		return
	}
	drawAt := s.Now()
	ok, err := s.Rounds.RecordDraw(ctx, r.ID, values, drawAt)
	if err != nil {
		roundLogger(r).Errorf("record draw: %v", err)
		return
	}
	if !ok {
		roundLogger(r).Debug("draw claimed elsewhere")
		return
	}

	r.State = models.RoundDrawing
	r.DrawAt = &drawAt
	r.Dice = values
	roundLogger(r).Infof("round drawn %v", values)
	s.Events.PublishRoundEvent(comm.NewRoundEvent(comm.RoundDrawn, r, nil))

	s.settleRound(ctx, r)
}

// settleRound settles the pending wagers of a drawn round and, once none
// failed, claims the settled state. Failed wagers keep the round in drawing
// for the next tick's retry.
func (s *Scheduler) settleRound(ctx context.Context, r *models.Round) {
	result, err := s.Settler.SettleRound(ctx, r)
	if err != nil {
		roundLogger(r).Errorf("settle round: %v", err)
		return
	}
	if !result.Complete() {
		roundLogger(r).Warnf("%d wagers left pending, retrying next tick", result.Failed)
		return
	}

	ok, err := s.Rounds.ClaimTransition(ctx, r.ID, models.RoundDrawing, models.RoundSettled)
	if err != nil {
		roundLogger(r).Errorf("mark round settled: %v", err)
		return
	}
	if !ok {
		roundLogger(r).Debug("settle claimed elsewhere")
		return
	}
	r.State = models.RoundSettled

	winners, err := s.Winners.ListWinners(ctx, r.ID)
	if err != nil {
		roundLogger(r).Warnf("list winners: %v", err)
	}
	roundLogger(r).Infof("round settled, %d winners", len(winners))
	s.Events.PublishRoundEvent(comm.NewRoundEvent(comm.RoundSettled, r, winners))
}

// openRound starts the next round of a schedule when the tenant is entitled,
// nothing is running and the previous round ended at least one interval ago.
func (s *Scheduler) openRound(ctx context.Context, sc models.Schedule) {
	logger := log.WithFields(log.Fields{"group_id": sc.GroupID, "family": sc.Family})
	if !sc.Enabled || !sc.Family.Valid() {
		return
	}
	interval := time.Duration(sc.IntervalMinutes) * time.Minute
	if interval <= s.cfg.CloseBuffer {
		logger.Warnf("interval %s leaves no betting time before the %s close buffer", interval, s.cfg.CloseBuffer)
		return
	}

	now := s.Now()
	entitled, err := s.Entitlements.IsEntitled(ctx, sc.TenantID, now)
	if err != nil {
		logger.Errorf("check entitlement: %v", err)
		return
	}
	if !entitled {
		logger.Debugf("tenant %d has no valid subscription", sc.TenantID)
		return
	}

	active, err := s.Rounds.ActiveRound(ctx, sc.GroupID, sc.Family)
	if err != nil {
		logger.Errorf("get active round: %v", err)
		return
	}
	if active != nil {
		return
	}

	last, err := s.Rounds.LastRound(ctx, sc.GroupID, sc.Family)
	if err != nil {
		logger.Errorf("get last round: %v", err)
		return
	}
	if last != nil && last.EndedAt().Add(interval).After(now) {
		return
	}

	r, err := s.Rounds.CreateRound(ctx, &models.Round{
		GroupID:  sc.GroupID,
		ChatID:   sc.ChatID,
		Family:   sc.Family,
		Sequence: now.UTC().Format(SequenceLayout),
		OpenAt:   now,
		CloseAt:  now.Add(interval - s.cfg.CloseBuffer),
	})
	if errors.Is(err, store.ErrClaimLost) {
		logger.Debug("open claimed elsewhere")
		return
	}
	if err != nil {
		logger.Errorf("open round: %v", err)
		return
	}
	roundLogger(r).Infof("round opened, closes at %s", r.CloseAt.Format(time.RFC3339))
	s.Events.PublishRoundEvent(comm.NewRoundEvent(comm.RoundOpened, r, nil))
}
