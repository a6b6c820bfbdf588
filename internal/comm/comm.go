package comm

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/avvvet/dice-services/internal/dice"
	"github.com/avvvet/dice-services/internal/gamesvc/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NATS subjects shared by the services.
const (
	TopicRoundEvents   = "round.events"
	TopicWagerRequests = "wager.requests"
)

// Message is the envelope of everything sent over NATS.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type EventType string

const (
	RoundOpened    EventType = "round-opened"
	RoundClosed    EventType = "round-closed"
	RoundDrawn     EventType = "round-drawn"
	RoundSettled   EventType = "round-settled"
	RoundCancelled EventType = "round-cancelled"
)

type Winner struct {
	PlayerID  int64           `json:"player_id"`
	Username  string          `json:"username"`
	WagerType dice.Code       `json:"wager_type"`
	Amount    decimal.Decimal `json:"amount"`
	Payout    decimal.Decimal `json:"payout"`
}

// RoundEvent is emitted on every round state change.
type RoundEvent struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	RoundID    int64             `json:"round_id"`
	GroupID    int64             `json:"group_id"`
	ChatID     int64             `json:"chat_id"`
	Family     dice.Family       `json:"family"`
	Sequence   string            `json:"sequence"`
	State      models.RoundState `json:"state"`
	OpenAt     time.Time         `json:"open_at"`
	CloseAt    time.Time         `json:"close_at"`
	DrawAt     *time.Time        `json:"draw_at,omitempty"`
	Dice       []int             `json:"dice,omitempty"`
	Winners    []Winner          `json:"winners,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func NewRoundEvent(t EventType, r *models.Round, winners []models.Winner) RoundEvent {
	ev := RoundEvent{
		ID:         uuid.NewString(),
		Type:       t,
		RoundID:    r.ID,
		GroupID:    r.GroupID,
		ChatID:     r.ChatID,
		Family:     r.Family,
		Sequence:   r.Sequence,
		State:      r.State,
		OpenAt:     r.OpenAt,
		CloseAt:    r.CloseAt,
		DrawAt:     r.DrawAt,
		Dice:       r.Dice,
		OccurredAt: time.Now().UTC(),
	}
	for _, w := range winners {
		ev.Winners = append(ev.Winners, Winner{
			PlayerID:  w.PlayerID,
			Username:  w.Username,
			WagerType: w.WagerType,
			Amount:    w.Amount,
			Payout:    w.Payout,
		})
	}
	return ev
}

// EncodeRoundEvent wraps ev in the message envelope.
func EncodeRoundEvent(ev RoundEvent) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Type: string(ev.Type), Data: data})
}

// DecodeRoundEvent unwraps a round event published on TopicRoundEvents.
func DecodeRoundEvent(payload []byte) (RoundEvent, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return RoundEvent{}, fmt.Errorf("decode envelope: %w", err)
	}
	var ev RoundEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		return RoundEvent{}, fmt.Errorf("decode %s event: %w", msg.Type, err)
	}
	return ev, nil
}

// WagerRequest carries wager text typed in a chat.
type WagerRequest struct {
	ChatID   int64       `json:"chat_id"`
	UserID   int64       `json:"user_id"`
	Username string      `json:"username"`
	Family   dice.Family `json:"family"`
	Text     string      `json:"text"`
}

// WagerResult answers a WagerRequest. Code is empty on success.
type WagerResult struct {
	OK       bool            `json:"ok"`
	Code     string          `json:"code,omitempty"`
	Message  string          `json:"message,omitempty"`
	WagerID  int64           `json:"wager_id,omitempty"`
	Sequence string          `json:"sequence,omitempty"`
	Balance  decimal.Decimal `json:"balance"`
}
