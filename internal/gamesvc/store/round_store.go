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
)

type RoundStore struct {
	db *pgxpool.Pool
}

func NewRoundStore(db *pgxpool.Pool) *RoundStore {
	return &RoundStore{db: db}
}

const roundColumns = `
	r.id, r.group_id, g.chat_id, r.family, r.sequence, r.state,
	r.open_at, r.close_at, r.draw_at, r.created_at, r.updated_at,
	COALESCE((SELECT array_agg(d.value ORDER BY d.idx) FROM dice_outcomes d WHERE d.round_id = r.id), '{}')`

const roundFrom = ` FROM rounds r JOIN groups g ON g.id = r.group_id `

func scanRound(row pgx.Row) (*models.Round, error) {
	r := &models.Round{}
	err := row.Scan(&r.ID, &r.GroupID, &r.ChatID, &r.Family, &r.Sequence, &r.State,
		&r.OpenAt, &r.CloseAt, &r.DrawAt, &r.CreatedAt, &r.UpdatedAt, &r.Dice)
	if err != nil {
		return nil, err
	}
	if len(r.Dice) == 0 {
		r.Dice = nil
	}
	return r, nil
}

func (s *RoundStore) listRounds(ctx context.Context, where string, args ...any) ([]*models.Round, error) {
	rows, err := s.db.Query(ctx, `SELECT `+roundColumns+roundFrom+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rounds []*models.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	return rounds, rows.Err()
}

// ListDueForClose returns betting rounds whose close deadline has passed.
func (s *RoundStore) ListDueForClose(ctx context.Context, now time.Time) ([]*models.Round, error) {
	rounds, err := s.listRounds(ctx, `WHERE r.state = $1 AND r.close_at <= $2 ORDER BY r.close_at`,
		models.RoundBetting, now)
	if err != nil {
		return nil, fmt.Errorf("list rounds due for close: %w", err)
	}
	return rounds, nil
}

// ListDueForDraw returns closed rounds that closed at or before cutoff.
func (s *RoundStore) ListDueForDraw(ctx context.Context, cutoff time.Time) ([]*models.Round, error) {
	rounds, err := s.listRounds(ctx, `WHERE r.state = $1 AND r.close_at <= $2 ORDER BY r.close_at`,
		models.RoundClosed, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list rounds due for draw: %w", err)
	}
	return rounds, nil
}

// ListUnsettled returns rounds left in drawing that were drawn at or before
// cutoff, so a settlement pass that stopped early gets retried.
func (s *RoundStore) ListUnsettled(ctx context.Context, cutoff time.Time) ([]*models.Round, error) {
	rounds, err := s.listRounds(ctx, `WHERE r.state = $1 AND r.draw_at <= $2 ORDER BY r.draw_at`,
		models.RoundDrawing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list unsettled rounds: %w", err)
	}
	return rounds, nil
}

// ClaimTransition moves a round from one state to another only if it is
// still in the expected state. It reports false when another worker won.
func (s *RoundStore) ClaimTransition(ctx context.Context, roundID int64, from, to models.RoundState) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("illegal round transition %s -> %s", from, to)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE rounds SET state = $3, updated_at = now()
		WHERE id = $1 AND state = $2`, roundID, from, to)
	if err != nil {
		return false, fmt.Errorf("claim round %d %s -> %s: %w", roundID, from, to, err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecordDraw persists the dice and moves the round from closed to drawing in
// a single transaction. It reports false when the round was not closed.
func (s *RoundStore) RecordDraw(ctx context.Context, roundID int64, values []int, drawAt time.Time) (bool, error) {
	claimed := false
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE rounds SET state = $3, draw_at = $4, updated_at = now()
			WHERE id = $1 AND state = $2`,
			roundID, models.RoundClosed, models.RoundDrawing, drawAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrClaimLost
		}

		batch := &pgx.Batch{}
		for _, o := range models.Outcomes(roundID, values) {
			batch.Queue(`INSERT INTO dice_outcomes (round_id, idx, value) VALUES ($1, $2, $3)`,
				o.RoundID, o.Index, o.Value)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert dice: %w", err)
		}
		claimed = true
		return nil
	})
	if errors.Is(err, ErrClaimLost) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("record draw for round %d: %w", roundID, err)
	}
	return claimed, nil
}

// ActiveRound returns the non-terminal round of a group and family, or nil.
func (s *RoundStore) ActiveRound(ctx context.Context, groupID int64, family dice.Family) (*models.Round, error) {
	r, err := scanRound(s.db.QueryRow(ctx, `SELECT `+roundColumns+roundFrom+`
		WHERE r.group_id = $1 AND r.family = $2 AND r.state IN ($3, $4, $5)
		LIMIT 1`, groupID, family, models.RoundBetting, models.RoundClosed, models.RoundDrawing))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active round: %w", err)
	}
	return r, nil
}

// LastRound returns the most recently opened round of a group and family,
// or nil when none exists.
func (s *RoundStore) LastRound(ctx context.Context, groupID int64, family dice.Family) (*models.Round, error) {
	r, err := scanRound(s.db.QueryRow(ctx, `SELECT `+roundColumns+roundFrom+`
		WHERE r.group_id = $1 AND r.family = $2
		ORDER BY r.open_at DESC, r.id DESC
		LIMIT 1`, groupID, family))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last round: %w", err)
	}
	return r, nil
}

func (s *RoundStore) GetRound(ctx context.Context, roundID int64) (*models.Round, error) {
	r, err := scanRound(s.db.QueryRow(ctx, `SELECT `+roundColumns+roundFrom+`WHERE r.id = $1`, roundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get round %d: %w", roundID, err)
	}
	return r, nil
}

// CreateRound inserts a betting round. A concurrent open for the same group
// and family trips the active-round or sequence index and returns
// ErrClaimLost.
func (s *RoundStore) CreateRound(ctx context.Context, r *models.Round) (*models.Round, error) {
	err := s.db.QueryRow(ctx, `
		INSERT INTO rounds (group_id, family, sequence, state, open_at, close_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`,
		r.GroupID, r.Family, r.Sequence, models.RoundBetting, r.OpenAt, r.CloseAt,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrClaimLost
		}
		return nil, fmt.Errorf("create round: %w", err)
	}
	r.State = models.RoundBetting
	return r, nil
}
