package broker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/service"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

type Placer interface {
	PlaceInGroup(ctx context.Context, chatID, externalID int64, username string,
		family dice.Family, text string) (*service.Placement, error)
}

type Broker struct {
	Conn   *nats.Conn
	Wagers Placer
}

func NewBroker(nc *nats.Conn, wagers Placer) *Broker {
	return &Broker{Conn: nc, Wagers: wagers}
}

// PublishRoundEvent sends ev on the round events subject. Failures are
// logged and dropped.
func (b *Broker) PublishRoundEvent(ev comm.RoundEvent) {
	payload, err := comm.EncodeRoundEvent(ev)
	if err != nil {
		log.Errorf("error [PublishRoundEvent] marshaling %s for round %d: %v", ev.Type, ev.RoundID, err)
		return
	}
	_ = b.Publish(comm.TopicRoundEvents, payload)
}

// handles wager text forwarded by the chat transport
func (b *Broker) handleWagerRequest(msg *nats.Msg) {
	var req comm.WagerRequest
	var res comm.WagerResult
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		log.Errorf("Error decoding wager request: %s", err)
		res = comm.WagerResult{Code: "BAD_REQUEST", Message: err.Error()}
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		res = b.answer(ctx, req)
	}

	if msg.Reply == "" {
		return
	}
	payload, err := json.Marshal(res)
	if err != nil {
		log.Errorf("Error encoding wager result: %s", err)
		return
	}
	if err := msg.Respond(payload); err != nil {
		log.Errorf("Error responding to wager request: %s", err)
	}
}

func (b *Broker) answer(ctx context.Context, req comm.WagerRequest) comm.WagerResult {
	placed, err := b.Wagers.PlaceInGroup(ctx, req.ChatID, req.UserID, req.Username, req.Family, req.Text)
	if err != nil {
		var pe *service.PlacementError
		if errors.As(err, &pe) {
			return comm.WagerResult{Code: string(pe.Code), Message: pe.Message}
		}
		log.Errorf("Error [WagerService.PlaceInGroup] chat %d user %d: %s", req.ChatID, req.UserID, err)
		return comm.WagerResult{Code: "INTERNAL", Message: "wager could not be placed"}
	}
	return comm.WagerResult{
		OK:       true,
		WagerID:  placed.Wager.ID,
		Sequence: placed.Round.Sequence,
		Balance:  placed.Entry.BalanceAfter,
	}
}

// consume wager requests (Queue) so replicas share the load
func (b *Broker) QueueSubscribeWagers(topic, queueGroup string) (*nats.Subscription, error) {
	sub, err := b.Conn.QueueSubscribe(topic, queueGroup, b.handleWagerRequest)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) Publish(topic string, payload []byte) error {
	err := b.Conn.Publish(topic, payload)
	if err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}

	return nil
}
