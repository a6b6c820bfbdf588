package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
	"github.com/shopspring/decimal"
)

// memStore is an in-memory stand-in for the Postgres stores with the same
// claim semantics and the one-active-round constraint.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	rounds    map[int64]*models.Round
	history   map[int64][]models.RoundState
	wagers    map[int64]*models.Wager
	balances  map[int64]decimal.Decimal
	ledger    []models.LedgerEntry
	schedules []models.Schedule
	entitled  map[int64]bool

	failSettle map[int64]int // wager id -> remaining failures
}

func newMemStore() *memStore {
	return &memStore{
		rounds:     map[int64]*models.Round{},
		history:    map[int64][]models.RoundState{},
		wagers:     map[int64]*models.Wager{},
		balances:   map[int64]decimal.Decimal{},
		entitled:   map[int64]bool{},
		failSettle: map[int64]int{},
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) list(match func(*models.Round) bool) []*models.Round {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Round
	for _, r := range m.rounds {
		if match(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) ListDueForClose(_ context.Context, now time.Time) ([]*models.Round, error) {
	return m.list(func(r *models.Round) bool {
		return r.State == models.RoundBetting && !r.CloseAt.After(now)
	}), nil
}

func (m *memStore) ListDueForDraw(_ context.Context, cutoff time.Time) ([]*models.Round, error) {
	return m.list(func(r *models.Round) bool {
		return r.State == models.RoundClosed && !r.CloseAt.After(cutoff)
	}), nil
}

func (m *memStore) ListUnsettled(_ context.Context, cutoff time.Time) ([]*models.Round, error) {
	return m.list(func(r *models.Round) bool {
		return r.State == models.RoundDrawing && r.DrawAt != nil && !r.DrawAt.After(cutoff)
	}), nil
}

// transition must be called with mu held.
func (m *memStore) transition(r *models.Round, to models.RoundState) {
	r.State = to
	m.history[r.ID] = append(m.history[r.ID], to)
}

func (m *memStore) ClaimTransition(_ context.Context, id int64, from, to models.RoundState) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok || r.State != from {
		return false, nil
	}
	m.transition(r, to)
	return true, nil
}

func (m *memStore) RecordDraw(_ context.Context, id int64, values []int, drawAt time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rounds[id]
	if !ok || r.State != models.RoundClosed {
		return false, nil
	}
	r.Dice = append([]int(nil), values...)
	r.DrawAt = &drawAt
	m.transition(r, models.RoundDrawing)
	return true, nil
}

func (m *memStore) ActiveRound(_ context.Context, groupID int64, family dice.Family) (*models.Round, error) {
	rounds := m.list(func(r *models.Round) bool {
		return r.GroupID == groupID && r.Family == family && !r.State.Terminal()
	})
	if len(rounds) == 0 {
		return nil, nil
	}
	return rounds[0], nil
}

func (m *memStore) LastRound(_ context.Context, groupID int64, family dice.Family) (*models.Round, error) {
	rounds := m.list(func(r *models.Round) bool { return r.GroupID == groupID && r.Family == family })
	if len(rounds) == 0 {
		return nil, nil
	}
	return rounds[len(rounds)-1], nil
}

func (m *memStore) CreateRound(_ context.Context, r *models.Round) (*models.Round, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.rounds {
		if existing.GroupID != r.GroupID || existing.Family != r.Family {
			continue
		}
		if !existing.State.Terminal() || existing.Sequence == r.Sequence {
			return nil, store.ErrClaimLost
		}
	}
	r.ID = m.id()
	r.State = models.RoundBetting
	r.UpdatedAt = r.OpenAt
	cp := *r
	m.rounds[r.ID] = &cp
	m.history[r.ID] = []models.RoundState{models.RoundBetting}
	return r, nil
}

func (m *memStore) ListSchedules(context.Context) ([]models.Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Schedule(nil), m.schedules...), nil
}

func (m *memStore) IsEntitled(_ context.Context, tenantID int64, _ time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entitled[tenantID], nil
}

func (m *memStore) addWager(roundID, playerID int64, code dice.Code, amount int64, odds string) *models.Wager {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := &models.Wager{ID: m.id(), RoundID: roundID, PlayerID: playerID, WagerType: code,
		Amount: decimal.NewFromInt(amount), Odds: decimal.RequireFromString(odds), State: models.WagerPending}
	m.wagers[w.ID] = w
	return w
}

func (m *memStore) ListPending(_ context.Context, roundID int64) ([]*models.Wager, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Wager
	for _, w := range m.wagers {
		if w.RoundID == roundID && w.State == models.WagerPending {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) SettleWager(_ context.Context, w *models.Wager, won bool, payout decimal.Decimal) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSettle[w.ID] > 0 {
		m.failSettle[w.ID]--
		return false, context.DeadlineExceeded
	}
	stored := m.wagers[w.ID]
	if stored.State != models.WagerPending {
		return false, nil
	}
	if won {
		before := m.balances[w.PlayerID]
		m.balances[w.PlayerID] = before.Add(payout)
		m.ledger = append(m.ledger, models.LedgerEntry{ID: m.id(), PlayerID: w.PlayerID, Kind: models.LedgerWin,
			Delta: payout, BalanceBefore: before, BalanceAfter: before.Add(payout), RefType: models.RefWager, RefID: w.ID})
		stored.State, stored.Payout = models.WagerWon, payout
	} else {
		stored.State = models.WagerLost
	}
	return true, nil
}

func (m *memStore) ListWinners(_ context.Context, roundID int64) ([]models.Winner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Winner
	for _, w := range m.wagers {
		if w.RoundID == roundID && w.State == models.WagerWon {
			out = append(out, models.Winner{WagerID: w.ID, PlayerID: w.PlayerID, WagerType: w.WagerType,
				Amount: w.Amount, Payout: w.Payout})
		}
	}
	return out, nil
}

func (m *memStore) round(id int64) models.Round {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rounds[id]
}

type fixedRoller []int

func (f fixedRoller) Roll(count int) ([]int, error) {
	return append([]int(nil), f[:count]...), nil
}

type recorder struct {
	mu     sync.Mutex
	events []comm.RoundEvent
}

func (r *recorder) PublishRoundEvent(ev comm.RoundEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) types() []comm.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []comm.EventType
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

func (r *recorder) last() comm.RoundEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
