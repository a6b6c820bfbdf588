package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/avvvet/dice-services/internal/gamesvc/service"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

type stubPlacer struct {
	placed *service.Placement
	err    error
	got    comm.WagerRequest
}

func (s *stubPlacer) PlaceInGroup(_ context.Context, chatID, externalID int64, username string,
	family dice.Family, text string) (*service.Placement, error) {
	s.got = comm.WagerRequest{ChatID: chatID, UserID: externalID, Username: username, Family: family, Text: text}
	return s.placed, s.err
}

func TestAnswerAccepted(t *testing.T) {
	p := &stubPlacer{placed: &service.Placement{
		Round: &models.Round{Sequence: "20240501120000"},
		Wager: &models.Wager{ID: 77},
		Entry: &models.LedgerEntry{BalanceAfter: decimal.NewFromInt(90)},
	}}
	req := comm.WagerRequest{ChatID: -100, UserID: 5, Username: "amy", Family: dice.FamilyK3, Text: "大10"}

	res := NewBroker(nil, p).answer(context.Background(), req)
	assert.Equal(t, req, p.got)
	assert.True(t, res.OK)
	assert.Equal(t, int64(77), res.WagerID)
	assert.Equal(t, "20240501120000", res.Sequence)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(90)))
}

func TestAnswerRejected(t *testing.T) {
	p := &stubPlacer{err: &service.PlacementError{Code: service.CodeInsufficientBalance, Message: "balance 5.00 below 10"}}
	res := NewBroker(nil, p).answer(context.Background(), comm.WagerRequest{Text: "大10"})
	assert.False(t, res.OK)
	assert.Equal(t, "INSUFFICIENT_BALANCE", res.Code)
	assert.Equal(t, "balance 5.00 below 10", res.Message)

	p = &stubPlacer{err: errors.New("conn refused")}
	res = NewBroker(nil, p).answer(context.Background(), comm.WagerRequest{Text: "大10"})
	assert.False(t, res.OK)
	assert.Equal(t, "INTERNAL", res.Code)
	assert.NotContains(t, res.Message, "conn refused")
}
