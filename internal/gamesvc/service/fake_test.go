package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
	"github.com/shopspring/decimal"
)

// fakeStore keeps everything in memory with the same compare-and-set
// semantics as the Postgres store.
type fakeStore struct {
	mu      sync.Mutex
	groups  map[int64]*models.Group
	players map[int64]*models.Player
	rounds  map[int64]*models.Round
	wagers  map[int64]*models.Wager
	rules   map[dice.Code]*models.WagerRule
	ledger  []models.LedgerEntry
	nextID  int64

	failSettle map[int64]error // wager id -> error returned once
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		groups:     map[int64]*models.Group{},
		players:    map[int64]*models.Player{},
		rounds:     map[int64]*models.Round{},
		wagers:     map[int64]*models.Wager{},
		rules:      map[dice.Code]*models.WagerRule{},
		failSettle: map[int64]error{},
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) addGroup(chatID int64) *models.Group {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := &models.Group{ID: f.id(), TenantID: 1, ChatID: chatID, Active: true}
	f.groups[g.ID] = g
	return g
}

func (f *fakeStore) addPlayer(groupID int64, balance int64) *models.Player {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := &models.Player{ID: f.id(), GroupID: groupID, ExternalID: 1000 + f.nextID,
		Username: "p", Balance: decimal.NewFromInt(balance)}
	f.players[p.ID] = p
	return p
}

func (f *fakeStore) addRound(groupID int64, family dice.Family, state models.RoundState, values ...int) *models.Round {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	r := &models.Round{ID: f.id(), GroupID: groupID, Family: family, Sequence: now.Format("20060102150405"),
		State: state, OpenAt: now, CloseAt: now.Add(time.Minute), Dice: values, UpdatedAt: now}
	f.rounds[r.ID] = r
	return r
}

func (f *fakeStore) addRule(family dice.Family, code dice.Code, odds string) *models.WagerRule {
	r := &models.WagerRule{Family: family, Code: code, Odds: decimal.RequireFromString(odds),
		MinBet: store.DefaultMinBet, MaxBet: store.DefaultMaxBet, Enabled: true}
	f.rules[code] = r
	return r
}

func (f *fakeStore) GetRound(_ context.Context, id int64) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rounds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ActiveRound(_ context.Context, groupID int64, family dice.Family) (*models.Round, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rounds {
		if r.GroupID == groupID && r.Family == family && !r.State.Terminal() {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ClaimTransition(_ context.Context, id int64, from, to models.RoundState) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rounds[id]
	if !ok || r.State != from {
		return false, nil
	}
	r.State = to
	r.UpdatedAt = time.Now()
	return true, nil
}

func (f *fakeStore) GetPlayer(_ context.Context, id int64) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.players[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetOrCreate(_ context.Context, groupID, externalID int64, username string) (*models.Player, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.players {
		if p.GroupID == groupID && p.ExternalID == externalID {
			cp := *p
			return &cp, nil
		}
	}
	p := &models.Player{ID: f.id(), GroupID: groupID, ExternalID: externalID, Username: username}
	f.players[p.ID] = p
	cp := *p
	return &cp, nil
}

func (f *fakeStore) GetByChatID(_ context.Context, chatID int64) (*models.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.groups {
		if g.ChatID == chatID {
			return g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) Rule(_ context.Context, _ int64, family dice.Family, code dice.Code) (*models.WagerRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rules[code]
	if !ok || r.Family != family {
		return nil, store.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) ListRules(_ context.Context, _ int64, family dice.Family) ([]models.WagerRule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.WagerRule
	for _, r := range f.rules {
		if r.Family == family {
			out = append(out, *r)
		}
	}
	return out, nil
}

// applyDelta must be called with mu held.
func (f *fakeStore) applyDelta(playerID int64, delta decimal.Decimal, kind models.LedgerKind, refID int64) error {
	p, ok := f.players[playerID]
	if !ok {
		return store.ErrNotFound
	}
	after := p.Balance.Add(delta)
	if after.IsNegative() {
		return store.ErrInsufficientFunds
	}
	f.ledger = append(f.ledger, models.LedgerEntry{ID: f.id(), PlayerID: playerID, Kind: kind, Delta: delta,
		BalanceBefore: p.Balance, BalanceAfter: after, RefType: models.RefWager, RefID: refID})
	p.Balance = after
	return nil
}

func (f *fakeStore) PlaceWager(_ context.Context, w *models.Wager) (*models.Wager, *models.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rounds[w.RoundID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	if r.State != models.RoundBetting {
		return nil, nil, store.ErrRoundNotBetting
	}
	p, ok := f.players[w.PlayerID]
	if !ok {
		return nil, nil, store.ErrNotFound
	}
	if p.Banned {
		return nil, nil, store.ErrPlayerBanned
	}
	w.ID = f.id()
	if err := f.applyDelta(w.PlayerID, w.Amount.Neg(), models.LedgerBet, w.ID); err != nil {
		return nil, nil, err
	}
	p.TotalBet = p.TotalBet.Add(w.Amount)
	w.State = models.WagerPending
	cp := *w
	f.wagers[w.ID] = &cp
	entry := f.ledger[len(f.ledger)-1]
	return w, &entry, nil
}

func (f *fakeStore) ListByRound(_ context.Context, roundID int64) ([]*models.Wager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Wager
	for id := int64(0); id <= f.nextID; id++ {
		if w, ok := f.wagers[id]; ok && w.RoundID == roundID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListPending(_ context.Context, roundID int64) ([]*models.Wager, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Wager
	for id := int64(0); id <= f.nextID; id++ {
		if w, ok := f.wagers[id]; ok && w.RoundID == roundID && w.State == models.WagerPending {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SettleWager(_ context.Context, w *models.Wager, won bool, payout decimal.Decimal) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failSettle[w.ID]; ok {
		delete(f.failSettle, w.ID)
		return false, err
	}
	stored := f.wagers[w.ID]
	if stored.State != models.WagerPending {
		return false, nil
	}
	if won {
		if err := f.applyDelta(w.PlayerID, payout, models.LedgerWin, w.ID); err != nil {
			return false, err
		}
		stored.State, stored.Payout = models.WagerWon, payout
		f.players[w.PlayerID].TotalWin = f.players[w.PlayerID].TotalWin.Add(payout)
	} else {
		stored.State = models.WagerLost
	}
	return true, nil
}

func (f *fakeStore) RefundWager(_ context.Context, w *models.Wager) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := f.wagers[w.ID]
	if stored.State != models.WagerPending {
		return false, nil
	}
	if err := f.applyDelta(w.PlayerID, w.Amount, models.LedgerRefund, w.ID); err != nil {
		return false, err
	}
	stored.State = models.WagerRefunded
	return true, nil
}

func (f *fakeStore) entries(kind models.LedgerKind) []models.LedgerEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LedgerEntry
	for _, e := range f.ledger {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []comm.RoundEvent
}

func (p *fakePublisher) PublishRoundEvent(ev comm.RoundEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

var errStorage = errors.New("connection reset")
