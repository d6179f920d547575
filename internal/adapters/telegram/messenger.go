package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	"atomicgo.dev/schedule"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
)

// MaxMessageLength is Telegram's limit for one text message, in runes.
const MaxMessageLength = 4096

const deleteTimeout = 10 * time.Second

// BotAPI is the subset of telego.Bot the bot uses, so tests can mock it.
type BotAPI interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error
	SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

// Messenger delivers texts and schedules their removal.
type Messenger struct {
	api    BotAPI
	admins []int64
	after  func(d time.Duration, fn func())
	log    *logger.ClassLogger
}

func NewMessenger(api BotAPI, admins []int64) *Messenger {
	m := &Messenger{
		api:    api,
		admins: admins,
		after: func(d time.Duration, fn func()) {
			schedule.After(d, fn)
		},
	}
	m.log = logger.NewLogger(m, nil)
	return m
}

func (m *Messenger) API() BotAPI { return m.api }

func (m *Messenger) Admins() []int64 { return m.admins }

// Send delivers text to a chat, split into several messages when it exceeds
// MaxMessageLength. The last message sent is returned.
func (m *Messenger) Send(ctx context.Context, chatID int64, text string) (*telego.Message, error) {
	var last *telego.Message
	for _, part := range SplitText(text, MaxMessageLength) {
		msg, err := m.api.SendMessage(ctx, tu.Message(tu.ID(chatID), part))
		if err != nil {
			return last, fmt.Errorf("send to %d: %w", chatID, err)
		}
		last = msg
	}
	return last, nil
}

func (m *Messenger) SendParams(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	return m.api.SendMessage(ctx, params)
}

// SendTemp sends text and removes it, together with the optional user
// message, after ttl. Failures to delete are only logged.
func (m *Messenger) SendTemp(ctx context.Context, chatID int64, text string, ttl time.Duration, userMsgID int) {
	msg, err := m.Send(ctx, chatID, text)
	if err != nil {
		m.log.Warn(fmt.Sprintf("Temp message to %d not sent: %v", chatID, err))
	}
	ids := []int{}
	if msg != nil {
		ids = append(ids, msg.MessageID)
	}
	if userMsgID != 0 {
		ids = append(ids, userMsgID)
	}
	if len(ids) > 0 {
		m.DeleteLater(chatID, ttl, ids...)
	}
}

// DeleteLater removes the given messages once ttl has passed.
func (m *Messenger) DeleteLater(chatID int64, ttl time.Duration, messageIDs ...int) {
	m.after(ttl, func() {
		for _, id := range messageIDs {
			m.Delete(context.Background(), chatID, id)
		}
	})
}

// Delete removes one message. Errors are swallowed: the message may already
// be gone or too old to delete.
func (m *Messenger) Delete(ctx context.Context, chatID int64, messageID int) {
	ctx, cancel := context.WithTimeout(ctx, deleteTimeout)
	defer cancel()
	err := m.api.DeleteMessage(ctx, &telego.DeleteMessageParams{ChatID: tu.ID(chatID), MessageID: messageID})
	if err != nil {
		m.log.JustLog(fmt.Sprintf("Delete of message %d in %d failed: %v", messageID, chatID, err))
	}
}

// NotifyAdmins sends text to every admin. One failing admin does not stop
// the others.
func (m *Messenger) NotifyAdmins(ctx context.Context, text string) {
	for _, id := range m.admins {
		if _, err := m.Send(ctx, id, text); err != nil {
			m.log.Warn(fmt.Sprintf("Admin %d not notified: %v", id, err))
		}
	}
}

func (m *Messenger) Answer(ctx context.Context, queryID, text string, alert bool) error {
	return m.api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: queryID,
		Text:            text,
		ShowAlert:       alert,
	})
}

// SplitText breaks text on line boundaries into chunks of at most limit
// runes. A single line longer than limit is cut hard.
func SplitText(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}
	var (
		parts []string
		cur   strings.Builder
		size  int
	)
	flush := func() {
		if size > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			size = 0
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		r := []rune(line)
		for len(r) > limit {
			flush()
			parts = append(parts, string(r[:limit]))
			r = r[limit:]
		}
		if size+len(r) > limit {
			flush()
		}
		cur.WriteString(string(r))
		size += len(r)
	}
	flush()
	return parts
}
