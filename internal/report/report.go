// Package report archives settled rounds to MongoDB.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type WinnerDoc struct {
	PlayerID  int64  `bson:"player_id"`
	Username  string `bson:"username"`
	WagerType string `bson:"wager_type"`
	Amount    string `bson:"amount"`
	Payout    string `bson:"payout"`
}

// RoundReport is one archived round. The document id is the round id so a
// redelivered event overwrites instead of duplicating.
type RoundReport struct {
	RoundID     int64       `bson:"_id"`
	GroupID     int64       `bson:"group_id"`
	ChatID      int64       `bson:"chat_id"`
	Family      string      `bson:"family"`
	Sequence    string      `bson:"sequence"`
	OpenAt      time.Time   `bson:"open_at"`
	CloseAt     time.Time   `bson:"close_at"`
	DrawAt      *time.Time  `bson:"draw_at,omitempty"`
	Dice        []int       `bson:"dice"`
	Winners     []WinnerDoc `bson:"winners"`
	TotalPayout string      `bson:"total_payout"`
	SettledAt   time.Time   `bson:"settled_at"`
	ExpiresAt   time.Time   `bson:"expires_at"`
}

// Build converts a settled event into its archive document.
func Build(ev comm.RoundEvent, retention time.Duration) (RoundReport, error) {
	if ev.Type != comm.RoundSettled {
		return RoundReport{}, fmt.Errorf("event %s is not %s", ev.Type, comm.RoundSettled)
	}
	total := decimal.Zero
	winners := make([]WinnerDoc, 0, len(ev.Winners))
	for _, w := range ev.Winners {
		total = total.Add(w.Payout)
		winners = append(winners, WinnerDoc{
			PlayerID:  w.PlayerID,
			Username:  w.Username,
			WagerType: string(w.WagerType),
			Amount:    w.Amount.StringFixed(2),
			Payout:    w.Payout.StringFixed(2),
		})
	}
	return RoundReport{
		RoundID:     ev.RoundID,
		GroupID:     ev.GroupID,
		ChatID:      ev.ChatID,
		Family:      string(ev.Family),
		Sequence:    ev.Sequence,
		OpenAt:      ev.OpenAt,
		CloseAt:     ev.CloseAt,
		DrawAt:      ev.DrawAt,
		Dice:        ev.Dice,
		Winners:     winners,
		TotalPayout: total.StringFixed(2),
		SettledAt:   ev.OccurredAt,
		ExpiresAt:   ev.OccurredAt.Add(retention),
	}, nil
}

// Collection is the part of *mongo.Collection the archiver writes through.
type Collection interface {
	ReplaceOne(ctx context.Context, filter interface{}, replacement interface{}, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

type Archiver struct {
	coll      Collection
	retention time.Duration
}

func NewArchiver(coll Collection, retention time.Duration) *Archiver {
	return &Archiver{coll: coll, retention: retention}
}

// HandleRoundEvent stores settled rounds and ignores every other event.
func (a *Archiver) HandleRoundEvent(ctx context.Context, ev comm.RoundEvent) error {
	if ev.Type != comm.RoundSettled {
		return nil
	}
	doc, err := Build(ev, a.retention)
	if err != nil {
		return err
	}
	_, err = a.coll.ReplaceOne(ctx, bson.M{"_id": doc.RoundID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("archive round %d: %w", doc.RoundID, err)
	}
	log.WithFields(log.Fields{"round_id": doc.RoundID, "winners": len(doc.Winners)}).Info("round archived")
	return nil
}
