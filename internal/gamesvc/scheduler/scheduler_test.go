package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/avvvet/dice-services/internal/gamesvc/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	store  *memStore
	clock  *clock
	events *recorder
	sched  *Scheduler
}

func newHarness(family dice.Family, intervalMinutes int, roll ...int) *harness {
	m := newMemStore()
	m.schedules = []models.Schedule{{GroupID: 7, TenantID: 3, ChatID: -1007, Family: family,
		IntervalMinutes: intervalMinutes, Enabled: true}}
	m.entitled[3] = true

	h := &harness{store: m, clock: &clock{now: t0}, events: &recorder{}}
	h.sched = h.newScheduler(roll...)
	return h
}

func (h *harness) newScheduler(roll ...int) *Scheduler {
	return New(DefaultConfig(), Deps{
		Rounds:       h.store,
		Schedules:    h.store,
		Entitlements: h.store,
		Settler:      service.NewSettler(h.store),
		Winners:      h.store,
		Roller:       fixedRoller(roll),
		Events:       h.events,
		Now:          h.clock.Now,
	})
}

func (h *harness) tickAt(d time.Duration) {
	h.clock.Set(t0.Add(d))
	h.sched.Tick(context.Background())
}

func (h *harness) onlyRound(t *testing.T) models.Round {
	t.Helper()
	rounds := h.store.list(func(*models.Round) bool { return true })
	require.Len(t, rounds, 1)
	return *rounds[0]
}

func TestTickOpensRound(t *testing.T) {
	h := newHarness(dice.FamilyK3, 1, 6, 5, 4)
	h.tickAt(0)

	r := h.onlyRound(t)
	assert.Equal(t, models.RoundBetting, r.State)
	assert.Equal(t, "20240501120000", r.Sequence)
	assert.Equal(t, t0, r.OpenAt)
	assert.Equal(t, t0.Add(30*time.Second), r.CloseAt)
	assert.Equal(t, []comm.EventType{comm.RoundOpened}, h.events.types())
	assert.Equal(t, int64(-1007), h.events.last().ChatID)
}

func TestTickFullLifecycle(t *testing.T) {
	h := newHarness(dice.FamilyK3, 1, 6, 5, 4)
	h.tickAt(0)
	r := h.onlyRound(t)
	big := h.store.addWager(r.ID, 100, dice.CodeBig, 10, "1.96")
	small := h.store.addWager(r.ID, 101, dice.CodeSmall, 10, "1.96")

	h.tickAt(29 * time.Second)
	assert.Equal(t, models.RoundBetting, h.store.round(r.ID).State)

	h.tickAt(30 * time.Second)
	assert.Equal(t, models.RoundClosed, h.store.round(r.ID).State)

	h.tickAt(39 * time.Second)
	assert.Equal(t, models.RoundClosed, h.store.round(r.ID).State, "draw waits for the buffer")

	h.tickAt(40 * time.Second)
	got := h.store.round(r.ID)
	assert.Equal(t, models.RoundSettled, got.State)
	assert.Equal(t, []int{6, 5, 4}, got.Dice)
	require.NotNil(t, got.DrawAt)
	assert.Equal(t, t0.Add(40*time.Second), *got.DrawAt)

	assert.Equal(t, models.WagerWon, h.store.wagers[big.ID].State)
	assert.True(t, h.store.wagers[big.ID].Payout.Equal(decimal.RequireFromString("19.6")))
	assert.Equal(t, models.WagerLost, h.store.wagers[small.ID].State)

	assert.Equal(t, []comm.EventType{comm.RoundOpened, comm.RoundClosed, comm.RoundDrawn, comm.RoundSettled},
		h.events.types())
	settled := h.events.last()
	assert.Equal(t, []int{6, 5, 4}, settled.Dice)
	require.Len(t, settled.Winners, 1)
	assert.Equal(t, int64(100), settled.Winners[0].PlayerID)

	// next round waits one interval from the draw
	h.tickAt(99 * time.Second)
	assert.Len(t, h.store.list(func(*models.Round) bool { return true }), 1)

	h.tickAt(100 * time.Second)
	next, err := h.store.ActiveRound(context.Background(), 7, dice.FamilyK3)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "20240501120140", next.Sequence)
	assert.Equal(t, []models.RoundState{models.RoundBetting, models.RoundClosed, models.RoundDrawing, models.RoundSettled},
		h.store.history[r.ID])
}

func TestTickIsIdempotent(t *testing.T) {
	h := newHarness(dice.FamilyDragonTiger, 2, 5, 2)
	h.tickAt(0)
	r := h.onlyRound(t)
	h.store.addWager(r.ID, 100, dice.CodeDragon, 10, "1.96")

	h.tickAt(90 * time.Second)
	h.tickAt(100 * time.Second)
	require.Equal(t, models.RoundSettled, h.store.round(r.ID).State)
	events := len(h.events.types())
	entries := len(h.store.ledger)

	for i := 0; i < 3; i++ {
		h.tickAt(100 * time.Second)
	}
	assert.Len(t, h.events.types(), events)
	assert.Len(t, h.store.ledger, entries)
	assert.Equal(t, []models.RoundState{models.RoundBetting, models.RoundClosed, models.RoundDrawing, models.RoundSettled},
		h.store.history[r.ID])
}

func TestConcurrentSchedulersClaimOnce(t *testing.T) {
	h := newHarness(dice.FamilyK3, 1, 1, 2, 3)
	schedulers := []*Scheduler{h.sched, h.newScheduler(1, 2, 3), h.newScheduler(1, 2, 3), h.newScheduler(1, 2, 3)}

	run := func(d time.Duration) {
		h.clock.Set(t0.Add(d))
		var wg sync.WaitGroup
		for _, s := range schedulers {
			wg.Add(1)
			go func(s *Scheduler) {
				defer wg.Done()
				s.Tick(context.Background())
			}(s)
		}
		wg.Wait()
	}

	run(0)
	r := h.onlyRound(t)
	for i := int64(0); i < 20; i++ {
		h.store.addWager(r.ID, 100+i, dice.CodeStraight, 5, "8")
	}
	run(30 * time.Second)
	run(40 * time.Second)

	assert.Equal(t, []comm.EventType{comm.RoundOpened, comm.RoundClosed, comm.RoundDrawn, comm.RoundSettled},
		h.events.types())
	assert.Equal(t, models.RoundSettled, h.store.round(r.ID).State)

	wins := decimal.Zero
	for _, e := range h.store.ledger {
		wins = wins.Add(e.Delta)
	}
	assert.Len(t, h.store.ledger, 20)
	assert.True(t, wins.Equal(decimal.NewFromInt(800)), wins.String())
}

func TestFailedWagerKeepsRoundDrawingUntilRetried(t *testing.T) {
	h := newHarness(dice.FamilyMineSweeper, 1, 6)
	h.tickAt(0)
	r := h.onlyRound(t)
	w := h.store.addWager(r.ID, 100, dice.CodeBig, 10, "1.96")
	h.store.failSettle[w.ID] = 1

	h.tickAt(30 * time.Second)
	h.tickAt(40 * time.Second)
	assert.Equal(t, models.RoundDrawing, h.store.round(r.ID).State)
	assert.Equal(t, models.WagerPending, h.store.wagers[w.ID].State)
	assert.NotContains(t, h.events.types(), comm.RoundSettled)

	// retry waits for the draw buffer after the draw
	h.tickAt(49 * time.Second)
	assert.Equal(t, models.RoundDrawing, h.store.round(r.ID).State)

	h.tickAt(50 * time.Second)
	assert.Equal(t, models.RoundSettled, h.store.round(r.ID).State)
	assert.Equal(t, models.WagerWon, h.store.wagers[w.ID].State)
	assert.Len(t, h.store.ledger, 1)
	assert.Equal(t, comm.RoundSettled, h.events.last().Type)
}

func TestOpenRequiresEntitlement(t *testing.T) {
	h := newHarness(dice.FamilyK3, 1, 1, 1, 1)
	h.store.entitled[3] = false
	h.tickAt(0)
	assert.Empty(t, h.store.list(func(*models.Round) bool { return true }))

	h.store.entitled[3] = true
	h.tickAt(time.Second)
	assert.Len(t, h.store.list(func(*models.Round) bool { return true }), 1)
}

func TestOpenSkipsDisabledAndShortSchedules(t *testing.T) {
	h := newHarness(dice.FamilyK3, 1, 1, 1, 1)
	h.store.schedules[0].Enabled = false
	h.tickAt(0)
	assert.Empty(t, h.store.list(func(*models.Round) bool { return true }))

	h.store.schedules[0].Enabled = true
	h.sched.cfg.CloseBuffer = time.Minute
	h.tickAt(time.Second)
	assert.Empty(t, h.store.list(func(*models.Round) bool { return true }))
}

func TestOpenAfterCancelledRound(t *testing.T) {
	h := newHarness(dice.FamilyK3, 1, 1, 1, 1)
	h.tickAt(0)
	r := h.onlyRound(t)
	ok, err := h.store.ClaimTransition(context.Background(), r.ID, models.RoundBetting, models.RoundCancelled)
	require.NoError(t, err)
	require.True(t, ok)
	h.store.rounds[r.ID].UpdatedAt = t0.Add(10 * time.Second)

	h.tickAt(69 * time.Second)
	assert.Len(t, h.store.list(func(*models.Round) bool { return true }), 1)
	h.tickAt(70 * time.Second)
	assert.Len(t, h.store.list(func(*models.Round) bool { return true }), 2)
}

func TestCancelledContextStartsNothing(t *testing.T) {
	h := newHarness(dice.FamilyK3, 1, 1, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.sched.Tick(ctx)
	assert.Empty(t, h.store.list(func(*models.Round) bool { return true }))
	assert.Empty(t, h.events.types())
}

func TestRunStopsOnCancel(t *testing.T) {
	h := newHarness(dice.FamilyK3, 1, 1, 1, 1)
	h.sched.cfg.TickInterval = 5 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.sched.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.events.types()) > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
