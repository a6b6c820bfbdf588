package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type WagerStore struct {
	db *pgxpool.Pool
}

func NewWagerStore(db *pgxpool.Pool) *WagerStore {
	return &WagerStore{db: db}
}

const wagerColumns = `id, round_id, player_id, wager_type, raw_text, content, amount, odds, state, payout, created_at, settled_at`

func scanWager(row pgx.Row) (*models.Wager, error) {
	w := &models.Wager{}
	var content []byte
	err := row.Scan(&w.ID, &w.RoundID, &w.PlayerID, &w.WagerType, &w.RawText, &content,
		&w.Amount, &w.Odds, &w.State, &w.Payout, &w.CreatedAt, &w.SettledAt)
	if err != nil {
		return nil, err
	}
	if w.Content, err = dice.UnmarshalContent(content); err != nil {
		return nil, fmt.Errorf("wager %d: %w", w.ID, err)
	}
	return w, nil
}

func (s *WagerStore) listWagers(ctx context.Context, where string, args ...any) ([]*models.Wager, error) {
	rows, err := s.db.Query(ctx, `SELECT `+wagerColumns+` FROM wagers `+where, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wagers []*models.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	return wagers, rows.Err()
}

func (s *WagerStore) ListPending(ctx context.Context, roundID int64) ([]*models.Wager, error) {
	wagers, err := s.listWagers(ctx, `WHERE round_id = $1 AND state = $2 ORDER BY id`,
		roundID, models.WagerPending)
	if err != nil {
		return nil, fmt.Errorf("list pending wagers of round %d: %w", roundID, err)
	}
	return wagers, nil
}

func (s *WagerStore) ListByRound(ctx context.Context, roundID int64) ([]*models.Wager, error) {
	wagers, err := s.listWagers(ctx, `WHERE round_id = $1 ORDER BY id`, roundID)
	if err != nil {
		return nil, fmt.Errorf("list wagers of round %d: %w", roundID, err)
	}
	return wagers, nil
}

// PlaceWager debits the player and records the wager with its bet entry in
// one transaction. The round must still be betting when the row locks are
// taken, so a wager racing the close claim either lands before it or fails
// with ErrRoundNotBetting.
func (s *WagerStore) PlaceWager(ctx context.Context, w *models.Wager) (*models.Wager, *models.LedgerEntry, error) {
	content, err := dice.MarshalContent(w.Content)
	if err != nil {
		return nil, nil, err
	}

	var entry *models.LedgerEntry
	err = inTx(ctx, s.db, func(tx pgx.Tx) error {
		var state models.RoundState
		err := tx.QueryRow(ctx, `SELECT state FROM rounds WHERE id = $1 FOR SHARE`, w.RoundID).Scan(&state)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock round %d: %w", w.RoundID, err)
		}
		if state != models.RoundBetting {
			return ErrRoundNotBetting
		}

		var banned bool
		err = tx.QueryRow(ctx, `SELECT banned FROM players WHERE id = $1 FOR UPDATE`, w.PlayerID).Scan(&banned)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock player %d: %w", w.PlayerID, err)
		}
		if banned {
			return ErrPlayerBanned
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO wagers (round_id, player_id, wager_type, raw_text, content, amount, odds, state)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, created_at`,
			w.RoundID, w.PlayerID, w.WagerType, w.RawText, content, w.Amount, w.Odds, models.WagerPending,
		).Scan(&w.ID, &w.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert wager: %w", err)
		}
		w.State = models.WagerPending
		w.Payout = decimal.Zero

		entry, err = applyDelta(ctx, tx, w.PlayerID, w.Amount.Neg(), models.LedgerBet, models.RefWager, w.ID)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `UPDATE players SET total_bet = total_bet + $2 WHERE id = $1`, w.PlayerID, w.Amount)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return w, entry, nil
}

// SettleWager moves one pending wager to won or lost. A won wager credits
// the payout and writes the win entry in the same transaction. It reports
// false when the wager was no longer pending.
func (s *WagerStore) SettleWager(ctx context.Context, w *models.Wager, won bool, payout decimal.Decimal) (bool, error) {
	state := models.WagerLost
	if won {
		state = models.WagerWon
	} else {
		payout = decimal.Zero
	}

	settled := false
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE wagers SET state = $3, payout = $4, settled_at = now()
			WHERE id = $1 AND state = $2`,
			w.ID, models.WagerPending, state, payout)
		if err != nil {
			return fmt.Errorf("mark wager %d %s: %w", w.ID, state, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if won && payout.IsPositive() {
			if _, err := applyDelta(ctx, tx, w.PlayerID, payout, models.LedgerWin, models.RefWager, w.ID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `UPDATE players SET total_win = total_win + $2 WHERE id = $1`,
				w.PlayerID, payout); err != nil {
				return fmt.Errorf("update total win of player %d: %w", w.PlayerID, err)
			}
		}
		settled = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return settled, nil
}

// RefundWager returns a pending wager's stake to the player.
func (s *WagerStore) RefundWager(ctx context.Context, w *models.Wager) (bool, error) {
	refunded := false
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE wagers SET state = $3, settled_at = now()
			WHERE id = $1 AND state = $2`,
			w.ID, models.WagerPending, models.WagerRefunded)
		if err != nil {
			return fmt.Errorf("mark wager %d refunded: %w", w.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := applyDelta(ctx, tx, w.PlayerID, w.Amount, models.LedgerRefund, models.RefWager, w.ID); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE players SET total_bet = total_bet - $2 WHERE id = $1`,
			w.PlayerID, w.Amount); err != nil {
			return fmt.Errorf("update total bet of player %d: %w", w.PlayerID, err)
		}
		refunded = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return refunded, nil
}

// ListWinners returns the won wagers of a round with the players' names,
// largest payout first.
func (s *WagerStore) ListWinners(ctx context.Context, roundID int64) ([]models.Winner, error) {
	rows, err := s.db.Query(ctx, `
		SELECT w.id, w.player_id, p.username, w.wager_type, w.amount, w.payout
		FROM wagers w
		JOIN players p ON p.id = w.player_id
		WHERE w.round_id = $1 AND w.state = $2
		ORDER BY w.payout DESC, w.id`, roundID, models.WagerWon)
	if err != nil {
		return nil, fmt.Errorf("list winners of round %d: %w", roundID, err)
	}
	defer rows.Close()

	var winners []models.Winner
	for rows.Next() {
		var w models.Winner
		if err := rows.Scan(&w.WagerID, &w.PlayerID, &w.Username, &w.WagerType, &w.Amount, &w.Payout); err != nil {
			return nil, fmt.Errorf("scan winner: %w", err)
		}
		winners = append(winners, w)
	}
	return winners, rows.Err()
}
