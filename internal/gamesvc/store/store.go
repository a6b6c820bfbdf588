// Package store is the Postgres persistence of rounds, wagers, players and
// the balance ledger. Round and wager state changes are compare-and-set
// updates so any number of workers can share the same database.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound = errors.New("not found")

	// ErrClaimLost means another worker already moved the row out of the
	// expected state. Callers treat it as a no-op.
	ErrClaimLost = errors.New("transition claimed by another worker")

	ErrRoundNotBetting   = errors.New("round is not accepting wagers")
	ErrPlayerBanned      = errors.New("player is banned")
	ErrInsufficientFunds = errors.New("insufficient balance")
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// inTx runs fn in a transaction, committing when fn returns nil.
func inTx(ctx context.Context, db *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
