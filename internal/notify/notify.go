// Package notify turns round events into chat messages for the group the
// round belongs to.
package notify

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/avvvet/dice-services/internal/comm"
	"github.com/avvvet/dice-services/internal/dice"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Sender delivers a text to a chat.
type Sender interface {
	Send(chatID int64, text string) error
}

// TelegramSender posts messages through the bot API.
type TelegramSender struct {
	bot *tgbotapi.BotAPI
}

func NewTelegramSender(botToken string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return &TelegramSender{bot: bot}, nil
}

func (ts *TelegramSender) Send(chatID int64, text string) error {
	_, err := ts.bot.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// queueSize bounds the backlog of one chat. Texts beyond it are dropped.
const queueSize = 64

// Notifier is the notification sink. Delivery is fire-and-forget: failures
// are logged and never returned. Each chat has its own queue, so texts reach
// a chat in the order they were sent.
type Notifier struct {
	sender Sender
	now    func() time.Time

	mu     sync.Mutex
	queues map[int64]chan string
	closed bool
	wg     sync.WaitGroup
}

func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender, now: time.Now, queues: map[int64]chan string{}}
}

// Notify queues text for chatID.
func (n *Notifier) Notify(chatID int64, text string) {
	if n == nil || n.sender == nil || text == "" {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	q, ok := n.queues[chatID]
	if !ok {
		q = make(chan string, queueSize)
		n.queues[chatID] = q
		n.wg.Add(1)
		go n.drain(chatID, q)
	}
	select {
	case q <- text:
	default:
		log.WithField("chat_id", chatID).Warn("telegram queue full, message dropped")
	}
}

func (n *Notifier) drain(chatID int64, q <-chan string) {
	defer n.wg.Done()
	for text := range q {
		if err := n.sender.Send(chatID, text); err != nil {
			log.WithField("chat_id", chatID).Warnf("failed to send telegram message: %v", err)
		}
	}
}

// Close stops accepting texts and waits until every queued one is sent.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		for _, q := range n.queues {
			close(q)
		}
	}
	n.mu.Unlock()
	n.wg.Wait()
}

// HandleRoundEvent renders ev and sends every resulting message.
func (n *Notifier) HandleRoundEvent(ev comm.RoundEvent) {
	if ev.ChatID == 0 {
		return
	}
	for _, text := range Render(ev, n.now()) {
		n.Notify(ev.ChatID, text)
	}
}

// Render returns the chat texts for ev. A settled round yields a winner
// list only when somebody won.
func Render(ev comm.RoundEvent, now time.Time) []string {
	switch ev.Type {
	case comm.RoundOpened:
		left := ev.CloseAt.Sub(now).Seconds()
		if left < 0 {
			left = 0
		}
		return []string{fmt.Sprintf("🎲 %s 第 %s 期 开始!\n\n⏰ 距封盘: %.0f 秒\n📝 请下注...",
			familyName(ev.Family), ev.Sequence, left)}
	case comm.RoundClosed:
		return []string{fmt.Sprintf("🚫 第 %s 期 停止下注!", ev.Sequence)}
	case comm.RoundDrawn:
		return []string{drawText(ev)}
	case comm.RoundSettled:
		if len(ev.Winners) == 0 {
			return nil
		}
		lines := make([]string, 0, len(ev.Winners))
		for _, w := range ev.Winners {
			lines = append(lines, fmt.Sprintf("🏆 %s: +%s", w.Username, w.Payout.StringFixed(2)))
		}
		return []string{"💰 中奖榜单:\n\n" + strings.Join(lines, "\n")}
	case comm.RoundCancelled:
		return []string{fmt.Sprintf("⚠️ 第 %s 期 已取消, 下注已退回", ev.Sequence)}
	}
	return nil
}

func drawText(ev comm.RoundEvent) string {
	faces := make([]string, len(ev.Dice))
	for i, d := range ev.Dice {
		faces[i] = fmt.Sprintf("🎲%d", d)
	}
	return fmt.Sprintf("🎉 第 %s 期 开奖\n\n%s\n%s", ev.Sequence, strings.Join(faces, " "), summary(ev.Dice))
}

func summary(d []int) string {
	switch len(d) {
	case 1:
		return fmt.Sprintf("点数: %d", d[0])
	case 2:
		switch {
		case d[0] > d[1]:
			return "龙"
		case d[0] < d[1]:
			return "虎"
		default:
			return "和"
		}
	case 3:
		total := d[0] + d[1] + d[2]
		if d[0] == d[1] && d[1] == d[2] {
			return fmt.Sprintf("总和: %d (豹子)", total)
		}
		size, parity := "小", "双"
		if total >= 11 {
			size = "大"
		}
		if total%2 == 1 {
			parity = "单"
		}
		return fmt.Sprintf("总和: %d (%s/%s)", total, size, parity)
	}
	return ""
}

func familyName(f dice.Family) string {
	switch f {
	case dice.FamilyMineSweeper:
		return "扫雷"
	case dice.FamilyDragonTiger:
		return "龙虎"
	case dice.FamilyK3:
		return "快三"
	}
	return string(f)
}
