package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/avvvet/dice-services/internal/gamesvc/store"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type RoundFinder interface {
	GetRound(ctx context.Context, roundID int64) (*models.Round, error)
	ActiveRound(ctx context.Context, groupID int64, family dice.Family) (*models.Round, error)
}

type PlayerFinder interface {
	GetPlayer(ctx context.Context, playerID int64) (*models.Player, error)
	GetOrCreate(ctx context.Context, groupID, externalID int64, username string) (*models.Player, error)
}

type GroupFinder interface {
	GetByChatID(ctx context.Context, chatID int64) (*models.Group, error)
}

type RuleFinder interface {
	Rule(ctx context.Context, groupID int64, family dice.Family, code dice.Code) (*models.WagerRule, error)
}

type WagerPlacer interface {
	PlaceWager(ctx context.Context, w *models.Wager) (*models.Wager, *models.LedgerEntry, error)
}

// Placement is an accepted wager with the bet entry that paid for it.
type Placement struct {
	Round *models.Round
	Wager *models.Wager
	Entry *models.LedgerEntry
}

type WagerService struct {
	rounds  RoundFinder
	players PlayerFinder
	groups  GroupFinder
	rules   RuleFinder
	wagers  WagerPlacer
}

func NewWagerService(rounds RoundFinder, players PlayerFinder, groups GroupFinder,
	rules RuleFinder, wagers WagerPlacer) *WagerService {
	return &WagerService{
		rounds:  rounds,
		players: players,
		groups:  groups,
		rules:   rules,
		wagers:  wagers,
	}
}

// PlaceWager parses text against the round's family and, when the wager is
// configured, within limits and covered by the balance, debits the player
// and records it as pending. Rejections are *PlacementError and leave no
// trace in storage.
func (s *WagerService) PlaceWager(ctx context.Context, playerID, roundID int64, text string) (*Placement, error) {
	round, err := s.rounds.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reject(CodeRoundNotFound, fmt.Sprintf("round %d does not exist", roundID), nil)
		}
		return nil, err
	}
	spec, err := readWager(round, text)
	if err != nil {
		return nil, err
	}
	return s.place(ctx, playerID, round, text, spec)
}

// PlaceInGroup places a wager sent from a chat to the family's open round in
// that chat. The sender is registered on first contact, once the text reads
// as a wager for a betting round.
func (s *WagerService) PlaceInGroup(ctx context.Context, chatID, externalID int64, username string,
	family dice.Family, text string) (*Placement, error) {

	group, err := s.groups.GetByChatID(ctx, chatID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reject(CodeRoundNotFound, fmt.Sprintf("chat %d is not a game group", chatID), nil)
		}
		return nil, err
	}
	round, err := s.rounds.ActiveRound(ctx, group.ID, family)
	if err != nil {
		return nil, err
	}
	if round == nil {
		return nil, reject(CodeRoundNotOpen, fmt.Sprintf("no %s round in chat %d", family, chatID), nil)
	}
	spec, err := readWager(round, text)
	if err != nil {
		return nil, err
	}
	player, err := s.players.GetOrCreate(ctx, group.ID, externalID, username)
	if err != nil {
		return nil, err
	}
	return s.place(ctx, player.ID, round, text, spec)
}

// readWager checks the round still takes wagers and parses text for its family.
func readWager(round *models.Round, text string) (dice.WagerSpec, error) {
	if round.State != models.RoundBetting {
		return dice.WagerSpec{}, reject(CodeRoundNotOpen, fmt.Sprintf("round %s is %s", round.Sequence, round.State), nil)
	}
	spec, err := dice.Parse(round.Family, text)
	if err != nil {
		return dice.WagerSpec{}, reject(CodeParse, fmt.Sprintf("cannot read wager %q", text), err)
	}
	return spec, nil
}

func (s *WagerService) place(ctx context.Context, playerID int64, round *models.Round, text string, spec dice.WagerSpec) (*Placement, error) {
	player, err := s.players.GetPlayer(ctx, playerID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, reject(CodePlayerNotFound, fmt.Sprintf("player %d does not exist", playerID), nil)
		}
		return nil, err
	}
	if player.GroupID != round.GroupID {
		return nil, reject(CodePlayerNotFound, fmt.Sprintf("player %d is not in group %d", playerID, round.GroupID), nil)
	}
	if player.Banned {
		return nil, reject(CodePlayerBanned, fmt.Sprintf("player %d is banned", playerID), nil)
	}

	rule, err := s.rules.Rule(ctx, round.GroupID, round.Family, spec.Code)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if rule == nil || !rule.Enabled {
		return nil, reject(CodeConfigMissing, fmt.Sprintf("%s/%s is not offered in this group", round.Family, spec.Code), nil)
	}

	amount := decimal.NewFromInt(spec.Amount)
	if amount.LessThan(rule.MinBet) || amount.GreaterThan(rule.MaxBet) {
		return nil, reject(CodeLimitExceeded,
			fmt.Sprintf("amount %s outside %s-%s", amount, rule.MinBet, rule.MaxBet), nil)
	}
	if player.Balance.LessThan(amount) {
		return nil, reject(CodeInsufficientBalance,
			fmt.Sprintf("balance %s below %s", player.Balance.StringFixed(2), amount), nil)
	}

	wager := &models.Wager{
		RoundID:   round.ID,
		PlayerID:  playerID,
		WagerType: spec.Code,
		RawText:   text,
		Content:   spec.Content,
		Amount:    amount,
		Odds:      rule.Odds,
	}
	wager, entry, err := s.wagers.PlaceWager(ctx, wager)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrRoundNotBetting):
			return nil, reject(CodeRoundNotOpen, fmt.Sprintf("round %s closed", round.Sequence), err)
		case errors.Is(err, store.ErrInsufficientFunds):
			return nil, reject(CodeInsufficientBalance, "balance changed", err)
		case errors.Is(err, store.ErrPlayerBanned):
			return nil, reject(CodePlayerBanned, fmt.Sprintf("player %d is banned", playerID), err)
		case errors.Is(err, store.ErrNotFound):
			return nil, reject(CodeRoundNotFound, fmt.Sprintf("round %d or player %d vanished", round.ID, playerID), err)
		}
		return nil, fmt.Errorf("place wager: %w", err)
	}

	log.WithFields(log.Fields{
		"round_id":  round.ID,
		"player_id": playerID,
		"wager_id":  wager.ID,
	}).Infof("wager %s %s at %s accepted", wager.WagerType, wager.Amount, wager.Odds)

	return &Placement{Round: round, Wager: wager, Entry: entry}, nil
}
