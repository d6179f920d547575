package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	"go.uber.org/ratelimit"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/telegram"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/report"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/worker"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/metrics"
)

const (
	updateTimeout    = 30 * time.Second
	defaultAckTTL    = 72 * time.Hour
	updatesPerSecond = 20
)

// Store is the credential store as seen by chat commands.
type Store interface {
	Load() (*model.Data, error)
	AddAccount(uid, tgUsername string, acc model.Account) (bool, error)
	DeleteAccount(uid, name string) (bool, error)
	DeleteAccountAnywhere(name string) (string, bool, error)
	DeleteUser(uid string) ([]string, error)
	SetMode(uid string, mode bool) error
	SetSchedule(uid string, hour, minute int) error
}

type Runner interface {
	Run(ctx context.Context, req worker.Request) (*worker.Report, error)
	Stats(ctx context.Context, uid, account string, days int) ([]model.CheckinResult, error)
}

type Acquirer interface {
	Login(ctx context.Context, session *model.Session, username, password string) (string, error)
}

type Scheduler interface {
	Register(uid string, hour, minute int)
	Remove(uid string)
}

type Activity interface {
	ForDay(day time.Time) ([]model.LogEntry, error)
	Recent(uid string, limit int) ([]model.LogEntry, error)
	DeleteUser(uid string) error
}

type Options struct {
	Messenger *telegram.Messenger
	Updates   <-chan telego.Update
	Store     Store
	Runner    Runner
	Acquirer  Acquirer
	Scheduler Scheduler
	Activity  Activity
	Admins    []int64
	ReplyURL  string
	Location  *time.Location
	AckTTL    time.Duration
	Debug     bool
}

// Bot routes Telegram updates to command handlers.
type Bot struct {
	msg         *telegram.Messenger
	updates     <-chan telego.Update
	store       Store
	runner      Runner
	acquirer    Acquirer
	scheduler   Scheduler
	activity    Activity
	admins      map[int64]struct{}
	replyURL    string
	loc         *time.Location
	acks        *AckStore
	debug       bool
	ratelimiter ratelimit.Limiter
	handlers    map[string]handlerFunc
	replyWindow time.Duration
	now         func() time.Time
	log         *logger.ClassLogger
}

func New(opts Options) (*Bot, error) {
	switch {
	case opts.Messenger == nil:
		return nil, errors.New("messenger cannot be nil")
	case opts.Store == nil:
		return nil, errors.New("credential store cannot be nil")
	case opts.Runner == nil:
		return nil, errors.New("runner cannot be nil")
	case opts.Acquirer == nil:
		return nil, errors.New("session acquirer cannot be nil")
	case opts.Scheduler == nil:
		return nil, errors.New("scheduler cannot be nil")
	case opts.Activity == nil:
		return nil, errors.New("activity log cannot be nil")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.AckTTL <= 0 {
		opts.AckTTL = defaultAckTTL
	}

	b := &Bot{
		msg:         opts.Messenger,
		updates:     opts.Updates,
		store:       opts.Store,
		runner:      opts.Runner,
		acquirer:    opts.Acquirer,
		scheduler:   opts.Scheduler,
		activity:    opts.Activity,
		admins:      map[int64]struct{}{},
		replyURL:    opts.ReplyURL,
		loc:         opts.Location,
		acks:        NewAckStore(opts.AckTTL),
		debug:       opts.Debug,
		ratelimiter: ratelimit.New(updatesPerSecond),
		replyWindow: updateTimeout,
		now:         time.Now,
	}
	for _, id := range opts.Admins {
		b.admins[id] = struct{}{}
	}
	b.handlers = map[string]handlerFunc{
		"start":   b.handleStart,
		"add":     b.handleAdd,
		"del":     b.handleDelete,
		"mode":    b.requireAccount(b.handleMode),
		"list":    b.handleList,
		"check":   b.handleCheck,
		"log":     b.requireAccount(b.handleLog),
		"stats":   b.requireAccount(b.handleStats),
		"settime": b.requireAccount(b.handleSetTime),
		"hz":      b.handleSummary,
		"txt":     b.handleBroadcast,
	}
	b.log = logger.NewLogger(b, nil)
	return b, nil
}

func (b *Bot) isAdmin(id int64) bool {
	_, ok := b.admins[id]
	return ok
}

// Start reads updates until ctx is done or the channel closes. Each update
// is handled in its own goroutine.
func (b *Bot) Start(ctx context.Context) {
	if b.updates == nil {
		b.log.Error("Updates channel is nil, cannot start")
		return
	}
	b.log.Log("Listening for updates...")

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			b.log.Log("Context done, waiting for handlers to finish")
			wg.Wait()
			return
		case update, ok := <-b.updates:
			if !ok {
				b.log.Warn("Updates channel closed")
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// processUpdate routes one update. Quick replies get a bounded context;
// logins and check-ins run on ctx with their own timeouts.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	b.ratelimiter.Take()

	defer func() {
		if r := recover(); r != nil {
			b.log.Error(fmt.Sprintf("PANIC recovered in processUpdate: %v\n%s", r, debug.Stack()))
			sentry.CurrentHub().Recover(r)
			sentry.Flush(2 * time.Second)
		}
	}()

	quick, cancel := context.WithTimeout(ctx, b.replyWindow)
	defer cancel()

	switch {
	case update.Message != nil:
		message := *update.Message
		if message.From == nil || !strings.HasPrefix(message.Text, "/") {
			return
		}
		metrics.BotUpdates.WithLabelValues("command").Inc()
		b.handleCommand(quick, ctx, message)
	case update.CallbackQuery != nil:
		metrics.BotUpdates.WithLabelValues("callback").Inc()
		b.handleCallback(quick, *update.CallbackQuery)
	default:
		if b.debug {
			b.log.JustLog(fmt.Sprintf("Ignoring update %d", update.UpdateID))
		}
	}
}

type command struct {
	name     string
	args     string
	message  telego.Message
	uid      string
	userID   int64
	chatID   int64
	admin    bool
	private  bool
	username string
	// base outlives the per-update deadline; long operations use it
	base     context.Context
}

func (c *command) fields() []string {
	return strings.Fields(c.args)
}

// displayName is the Telegram username, or the id prefixed with "id:".
func (c *command) displayName() string {
	if c.username != "" {
		return c.username
	}
	return "id:" + c.uid
}

type handlerFunc func(ctx context.Context, c *command) error

func parseCommand(text string) (name, args string) {
	text = strings.TrimSpace(text)
	head, rest := text, ""
	if i := strings.IndexFunc(text, unicode.IsSpace); i >= 0 {
		head, rest = text[:i], text[i:]
	}
	head = strings.TrimPrefix(head, "/")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}

func (b *Bot) handleCommand(ctx, base context.Context, message telego.Message) {
	name, args := parseCommand(message.Text)
	handler, ok := b.handlers[name]
	if !ok {
		return
	}
	c := &command{
		name:     name,
		args:     args,
		message:  message,
		uid:      strconv.FormatInt(message.From.ID, 10),
		userID:   message.From.ID,
		chatID:   message.Chat.ID,
		admin:    b.isAdmin(message.From.ID),
		private:  message.Chat.Type == telego.ChatTypePrivate,
		username: message.From.Username,
		base:     base,
	}
	session := &model.Session{UserID: c.uid}
	if b.debug {
		b.log.With(session).JustLog("Executing /" + name)
	}
	if err := handler(ctx, c); err != nil {
		b.log.With(session).Error(fmt.Sprintf("/%s failed: %v", name, err))
		sentry.CaptureException(fmt.Errorf("/%s handler error: %w", name, err))
		replyCtx, cancel := b.followUp(c)
		defer cancel()
		b.reply(replyCtx, c, msgInternalError, ttlShort)
	}
}

// reply sends a temporary answer that is removed together with the
// command message.
func (b *Bot) reply(ctx context.Context, c *command, text string, ttl time.Duration) {
	b.msg.SendTemp(ctx, c.chatID, text, ttl, c.message.MessageID)
}

// followUp is the context for messages sent after a long operation ran on
// c.base. The per-update deadline may have passed by then.
func (b *Bot) followUp(c *command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.base, b.replyWindow)
}

// requireAccount rejects commands from users without a bound account.
func (b *Bot) requireAccount(next handlerFunc) handlerFunc {
	return func(ctx context.Context, c *command) error {
		data, err := b.store.Load()
		if err != nil {
			return err
		}
		if u, ok := data.User(c.uid); !ok || !u.HasAccounts() {
			b.reply(ctx, c, msgNeedAccount, ttlShort)
			return nil
		}
		return next(ctx, c)
	}
}

func (b *Bot) handleStart(ctx context.Context, c *command) error {
	_, err := b.msg.Send(ctx, c.chatID, report.HelpText(c.admin))
	return err
}

// refreshMenu installs the private-chat menu matching the user's state.
// Failures are logged only.
func (b *Bot) refreshMenu(ctx context.Context, uid string, hasAccounts bool) {
	id, err := strconv.ParseInt(uid, 10, 64)
	if err != nil {
		return
	}
	menu := telegram.MenuFor(b.isAdmin(id), hasAccounts)
	if err := b.msg.SetChatMenu(ctx, id, menu); err != nil {
		b.log.Warn(fmt.Sprintf("Menu refresh for %s failed: %v", uid, err))
	}
}

// SetupMenus installs the base menus, one menu per known user and one per
// admin without accounts.
func (b *Bot) SetupMenus(ctx context.Context) error {
	if err := b.msg.SetBaseMenus(ctx); err != nil {
		return err
	}
	data, err := b.store.Load()
	if err != nil {
		return err
	}
	for _, uid := range data.UserIDs() {
		b.refreshMenu(ctx, uid, data.Users[uid].HasAccounts())
	}
	for id := range b.admins {
		uid := strconv.FormatInt(id, 10)
		if _, ok := data.User(uid); !ok {
			b.refreshMenu(ctx, uid, false)
		}
	}
	return nil
}
