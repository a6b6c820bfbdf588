package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type LedgerStore struct {
	db *pgxpool.Pool
}

func NewLedgerStore(db *pgxpool.Pool) *LedgerStore {
	return &LedgerStore{db: db}
}

// GetBalance returns the player's current balance.
func (s *LedgerStore) GetBalance(ctx context.Context, playerID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.db.QueryRow(ctx, `SELECT balance FROM players WHERE id = $1`, playerID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, fmt.Errorf("get balance: %w", err)
	}
	return balance, nil
}

// ApplyDelta changes a player's balance and records the entry in one
// transaction. A delta that would take the balance below zero fails with
// ErrInsufficientFunds.
func (s *LedgerStore) ApplyDelta(ctx context.Context, playerID int64, delta decimal.Decimal,
	kind models.LedgerKind, refType string, refID int64) (*models.LedgerEntry, error) {

	var entry *models.LedgerEntry
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		var err error
		entry, err = applyDelta(ctx, tx, playerID, delta, kind, refType, refID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Entries lists a player's ledger, oldest first.
func (s *LedgerStore) Entries(ctx context.Context, playerID int64) ([]models.LedgerEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, player_id, kind, delta, balance_before, balance_after, ref_type, ref_id, created_at
		FROM ledger_entries
		WHERE player_id = $1
		ORDER BY id`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(&e.ID, &e.PlayerID, &e.Kind, &e.Delta, &e.BalanceBefore,
			&e.BalanceAfter, &e.RefType, &e.RefID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// applyDelta is the ledger write shared by every balance-changing
// transaction. The player row stays locked until tx ends.
func applyDelta(ctx context.Context, tx pgx.Tx, playerID int64, delta decimal.Decimal,
	kind models.LedgerKind, refType string, refID int64) (*models.LedgerEntry, error) {

	var before decimal.Decimal
	err := tx.QueryRow(ctx, `SELECT balance FROM players WHERE id = $1 FOR UPDATE`, playerID).Scan(&before)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock player %d: %w", playerID, err)
	}

	after := before.Add(delta)
	if after.IsNegative() {
		return nil, ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `
		UPDATE players SET balance = $2, updated_at = now() WHERE id = $1`,
		playerID, after); err != nil {
		return nil, fmt.Errorf("update balance of player %d: %w", playerID, err)
	}

	entry := &models.LedgerEntry{
		PlayerID:      playerID,
		Kind:          kind,
		Delta:         delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		RefType:       refType,
		RefID:         refID,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (player_id, kind, delta, balance_before, balance_after, ref_type, ref_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		playerID, kind, delta, before, after, refType, refID,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	return entry, nil
}
