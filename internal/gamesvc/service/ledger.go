package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

var ErrInvalidAdjustment = errors.New("invalid balance adjustment")

type LedgerBook interface {
	GetBalance(ctx context.Context, playerID int64) (decimal.Decimal, error)
	ApplyDelta(ctx context.Context, playerID int64, delta decimal.Decimal,
		kind models.LedgerKind, refType string, refID int64) (*models.LedgerEntry, error)
	Entries(ctx context.Context, playerID int64) ([]models.LedgerEntry, error)
}

// LedgerService handles manual deposits and withdrawals. Wager debits and
// credits go through the wager store.
type LedgerService struct {
	book LedgerBook
}

func NewLedgerService(book LedgerBook) *LedgerService {
	return &LedgerService{book: book}
}

// Adjust deposits or withdraws amount. refID is the operator's reference
// for the adjustment, if any.
func (s *LedgerService) Adjust(ctx context.Context, playerID int64, kind models.LedgerKind,
	amount decimal.Decimal, refID int64) (*models.LedgerEntry, error) {

	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidAdjustment)
	}
	delta := amount.Round(2)
	switch kind {
	case models.LedgerDeposit:
	case models.LedgerWithdraw:
		delta = delta.Neg()
	default:
		return nil, fmt.Errorf("%w: kind %q", ErrInvalidAdjustment, kind)
	}

	entry, err := s.book.ApplyDelta(ctx, playerID, delta, kind, models.RefManual, refID)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"player_id": playerID, "kind": kind, "delta": delta}).Info("balance adjusted")
	return entry, nil
}

// Statement is a player's balance with the entries that produced it.
type Statement struct {
	PlayerID int64                `json:"player_id"`
	Balance  decimal.Decimal      `json:"balance"`
	Entries  []models.LedgerEntry `json:"entries"`
}

func (s *LedgerService) Statement(ctx context.Context, playerID int64) (*Statement, error) {
	balance, err := s.book.GetBalance(ctx, playerID)
	if err != nil {
		return nil, err
	}
	entries, err := s.book.Entries(ctx, playerID)
	if err != nil {
		return nil, err
	}
	return &Statement{PlayerID: playerID, Balance: balance, Entries: entries}, nil
}
