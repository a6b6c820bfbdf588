package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type GroupStore struct {
	db *pgxpool.Pool
}

func NewGroupStore(db *pgxpool.Pool) *GroupStore {
	return &GroupStore{db: db}
}

func (s *GroupStore) GetByChatID(ctx context.Context, chatID int64) (*models.Group, error) {
	g := &models.Group{}
	err := s.db.QueryRow(ctx, `
		SELECT id, tenant_id, chat_id, name, active FROM groups WHERE chat_id = $1`, chatID,
	).Scan(&g.ID, &g.TenantID, &g.ChatID, &g.Name, &g.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get group by chat %d: %w", chatID, err)
	}
	return g, nil
}

// ListSchedules returns the enabled schedules of active groups.
func (s *GroupStore) ListSchedules(ctx context.Context) ([]models.Schedule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT sc.group_id, g.tenant_id, g.chat_id, sc.family, sc.interval_minutes, sc.enabled
		FROM schedule_configs sc
		JOIN groups g ON g.id = sc.group_id
		WHERE sc.enabled AND g.active
		ORDER BY sc.group_id, sc.family`)
	if err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.Schedule
	for rows.Next() {
		var sc models.Schedule
		if err := rows.Scan(&sc.GroupID, &sc.TenantID, &sc.ChatID, &sc.Family,
			&sc.IntervalMinutes, &sc.Enabled); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		schedules = append(schedules, sc)
	}
	return schedules, rows.Err()
}

// IsEntitled reports whether the tenant holds an active subscription that
// has not ended at now.
func (s *GroupStore) IsEntitled(ctx context.Context, tenantID int64, now time.Time) (bool, error) {
	var ok bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE tenant_id = $1 AND status = 'active' AND starts_at <= $2 AND ends_at > $2
		)`, tenantID, now).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check entitlement of tenant %d: %w", tenantID, err)
	}
	return ok, nil
}

type PlayerStore struct {
	db *pgxpool.Pool
}

func NewPlayerStore(db *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{db: db}
}

const playerColumns = `id, group_id, external_id, username, balance, total_bet, total_win, banned, created_at, updated_at`

func scanPlayer(row pgx.Row) (*models.Player, error) {
	p := &models.Player{}
	err := row.Scan(&p.ID, &p.GroupID, &p.ExternalID, &p.Username, &p.Balance,
		&p.TotalBet, &p.TotalWin, &p.Banned, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *PlayerStore) GetPlayer(ctx context.Context, playerID int64) (*models.Player, error) {
	p, err := scanPlayer(s.db.QueryRow(ctx, `SELECT `+playerColumns+` FROM players WHERE id = $1`, playerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get player %d: %w", playerID, err)
	}
	return p, nil
}

// GetOrCreate returns the group member with the given chat user id,
// registering it with a zero balance on first contact. The username is
// refreshed when it changed.
func (s *PlayerStore) GetOrCreate(ctx context.Context, groupID, externalID int64, username string) (*models.Player, error) {
	p, err := scanPlayer(s.db.QueryRow(ctx, `
		INSERT INTO players (group_id, external_id, username)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_id, external_id)
		DO UPDATE SET username = CASE WHEN EXCLUDED.username = '' THEN players.username ELSE EXCLUDED.username END
		RETURNING `+playerColumns, groupID, externalID, username))
	if err != nil {
		return nil, fmt.Errorf("get or create player %d in group %d: %w", externalID, groupID, err)
	}
	return p, nil
}

type CatalogStore struct {
	db *pgxpool.Pool
}

func NewCatalogStore(db *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{db: db}
}

// DefaultMinBet and DefaultMaxBet bound wagers of groups without an explicit
// wager configuration row.
var (
	DefaultMinBet = decimal.NewFromInt(1)
	DefaultMaxBet = decimal.NewFromInt(10000)
)

// Rule resolves the wager rule of a group: catalog odds unless the group set
// custom odds, and the group's bet range. ErrNotFound means the wager type is
// not in the active catalog.
func (s *CatalogStore) Rule(ctx context.Context, groupID int64, family dice.Family, code dice.Code) (*models.WagerRule, error) {
	var (
		rule       = &models.WagerRule{Family: family, Code: code}
		customOdds decimal.NullDecimal
		minBet     decimal.NullDecimal
		maxBet     decimal.NullDecimal
		enabled    *bool
	)
	err := s.db.QueryRow(ctx, `
		SELECT wt.name, wt.default_odds, gc.custom_odds, gc.min_bet, gc.max_bet, gc.enabled
		FROM wager_types wt
		LEFT JOIN group_wager_configs gc
			ON gc.family = wt.family AND gc.code = wt.code AND gc.group_id = $1
		WHERE wt.family = $2 AND wt.code = $3 AND wt.active`,
		groupID, family, code,
	).Scan(&rule.Name, &rule.Odds, &customOdds, &minBet, &maxBet, &enabled)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get wager rule %s/%s: %w", family, code, err)
	}

	rule.Enabled = enabled == nil || *enabled
	if customOdds.Valid {
		rule.Odds = customOdds.Decimal
	}
	rule.MinBet, rule.MaxBet = DefaultMinBet, DefaultMaxBet
	if minBet.Valid {
		rule.MinBet = minBet.Decimal
	}
	if maxBet.Valid {
		rule.MaxBet = maxBet.Decimal
	}
	return rule, nil
}

// ListRules lists the group's resolved rules for a family in catalog order.
func (s *CatalogStore) ListRules(ctx context.Context, groupID int64, family dice.Family) ([]models.WagerRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT wt.code, wt.name, COALESCE(gc.custom_odds, wt.default_odds),
			COALESCE(gc.min_bet, $3), COALESCE(gc.max_bet, $4), COALESCE(gc.enabled, true)
		FROM wager_types wt
		LEFT JOIN group_wager_configs gc
			ON gc.family = wt.family AND gc.code = wt.code AND gc.group_id = $1
		WHERE wt.family = $2 AND wt.active
		ORDER BY wt.tier, wt.code`, groupID, family, DefaultMinBet, DefaultMaxBet)
	if err != nil {
		return nil, fmt.Errorf("list wager rules of group %d: %w", groupID, err)
	}
	defer rows.Close()

	var rules []models.WagerRule
	for rows.Next() {
		r := models.WagerRule{Family: family}
		if err := rows.Scan(&r.Code, &r.Name, &r.Odds, &r.MinBet, &r.MaxBet, &r.Enabled); err != nil {
			return nil, fmt.Errorf("scan wager rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// SeedCatalog upserts the wager types. Existing default odds are updated;
// group overrides are left alone.
func (s *CatalogStore) SeedCatalog(ctx context.Context, types []dice.WagerType) error {
	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, wt := range types {
			batch.Queue(`
				INSERT INTO wager_types (family, code, tier, name, default_odds)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (family, code)
				DO UPDATE SET tier = EXCLUDED.tier, name = EXCLUDED.name, default_odds = EXCLUDED.default_odds`,
				wt.Family, wt.Code, wt.Tier, wt.Name, wt.Odds)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}
		return nil
	})
}
