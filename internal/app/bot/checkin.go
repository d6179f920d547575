package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/report"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/worker"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
)

const (
	defaultLogDays   = 7
	defaultStatsDays = 30
	recentOnList     = 5
)

// handleCheck runs a manual check-in. Admins cover every user, or one user
// with "/check TGID[,账号]"; users cover their own accounts, optionally one.
func (b *Bot) handleCheck(ctx context.Context, c *command) error {
	req := worker.Request{Source: model.SourceManual, Actor: model.ActorUser}
	if c.admin {
		req.Actor = model.ActorAdmin
		target, account, _ := strings.Cut(c.args, ",")
		target, account = strings.TrimSpace(target), strings.TrimSpace(account)
		switch {
		case isDigits(target):
			req.UserIDs = []string{target}
			req.Account = account
		case c.args != "":
			req.Account = strings.TrimSpace(c.args)
		}
	} else {
		data, err := b.store.Load()
		if err != nil {
			return err
		}
		if u, ok := data.User(c.uid); !ok || !u.HasAccounts() {
			b.reply(ctx, c, msgCheckNoAccount, ttlShort)
			return nil
		}
		req.UserIDs = []string{c.uid}
		req.Account = c.args
	}

	waiting, _ := b.msg.Send(ctx, c.chatID, msgCheckWaiting)
	rep, err := b.runner.Run(c.base, req)
	ctx, cancel := b.followUp(c)
	defer cancel()
	if waiting != nil {
		b.msg.Delete(ctx, c.chatID, waiting.MessageID)
	}
	if errors.Is(err, worker.ErrNoTargets) {
		b.reply(ctx, c, msgCheckNoTargets, ttlShort)
		return nil
	}
	if err != nil {
		return err
	}

	var text string
	if c.admin {
		text = report.AdminCheckinText(rep.UserIDs(), rep.Results, rep.Users)
	} else {
		text = report.UserCheckinText(rep.Results[c.uid], userMode(rep, c.uid), false)
	}
	b.reply(ctx, c, text, ttlCheck)
	return nil
}

func userMode(rep *worker.Report, uid string) bool {
	if u := rep.Users[uid]; u != nil {
		return u.Mode
	}
	return false
}

// DailyCheck is the scheduled run for one user. The result goes to the
// user's private chat.
func (b *Bot) DailyCheck(ctx context.Context, uid string) {
	rep, err := b.runner.Run(ctx, worker.Request{
		UserIDs: []string{uid},
		Source:  model.SourceScheduled,
		Actor:   model.ActorSystem,
	})
	if errors.Is(err, worker.ErrNoTargets) {
		return
	}
	log := b.log.With(&model.Session{UserID: uid})
	if err != nil {
		log.Error(fmt.Sprintf("Scheduled check-in failed: %v", err))
		return
	}
	chatID, err := strconv.ParseInt(uid, 10, 64)
	if err != nil {
		return
	}
	text := report.UserCheckinText(rep.Results[uid], userMode(rep, uid), true)
	if _, err := b.msg.Send(ctx, chatID, text); err != nil {
		log.Warn(fmt.Sprintf("Scheduled result not delivered: %v", err))
	}
}

// parseLogArgs accepts "[days] [account]" in either order.
func parseLogArgs(fields []string) (days int, account string) {
	days = defaultLogDays
	if len(fields) == 0 {
		return days, ""
	}
	if isDigits(fields[0]) {
		days, _ = strconv.Atoi(fields[0])
		if len(fields) > 1 {
			account = fields[1]
		}
	} else {
		account = fields[0]
		if len(fields) > 1 && isDigits(fields[1]) {
			days, _ = strconv.Atoi(fields[1])
		}
	}
	if days <= 0 {
		days = defaultLogDays
	}
	return days, account
}

func (b *Bot) handleLog(ctx context.Context, c *command) error {
	days, account := parseLogArgs(c.fields())
	results, ok := b.queryStats(ctx, c, account, days)
	if !ok {
		return nil
	}
	ctx, cancel := b.followUp(c)
	defer cancel()
	b.reply(ctx, c, report.LogText(days, results), ttlList)
	return nil
}

func (b *Bot) handleStats(ctx context.Context, c *command) error {
	days := defaultStatsDays
	if fields := c.fields(); len(fields) > 0 {
		if n, err := strconv.Atoi(fields[0]); err == nil && n > 0 {
			days = n
		}
	}
	results, ok := b.queryStats(ctx, c, "", days)
	if !ok {
		return nil
	}
	ctx, cancel := b.followUp(c)
	defer cancel()
	b.reply(ctx, c, report.StatsText(days, results), ttlList)
	return nil
}

// queryStats fetches credit statistics behind a progress message. ok is
// false when the user has already been told why nothing came back.
func (b *Bot) queryStats(ctx context.Context, c *command, account string, days int) ([]model.CheckinResult, bool) {
	waiting, _ := b.msg.Send(ctx, c.chatID, msgQueryWaiting)
	results, err := b.runner.Stats(c.base, c.uid, account, days)
	ctx, cancel := b.followUp(c)
	defer cancel()
	if waiting != nil {
		b.msg.Delete(ctx, c.chatID, waiting.MessageID)
	}
	switch {
	case err == nil:
		return results, true
	case errors.Is(err, worker.ErrNoCookies) && account != "":
		b.reply(ctx, c, fmt.Sprintf(msgQueryAccountEmpty, account), ttlNotice)
	case errors.Is(err, worker.ErrNoCookies), errors.Is(err, worker.ErrNoTargets):
		b.reply(ctx, c, msgQueryNoCookie, ttlNotice)
	default:
		b.log.With(&model.Session{UserID: c.uid}).Warn(fmt.Sprintf("Stats query failed: %v", err))
		b.reply(ctx, c, msgQueryFailed, ttlShort)
	}
	return nil, false
}

// handleSummary posts today's summary into the chat it was asked from.
// Admins only, and not before 10:10 when scheduled runs are done.
func (b *Bot) handleSummary(ctx context.Context, c *command) error {
	if !c.admin {
		return nil
	}
	now := b.now().In(b.loc)
	minutes := now.Hour()*60 + now.Minute()
	if minutes < 10*60+10 {
		b.reply(ctx, c, msgSummaryTooEarly, ttlNotice)
		return nil
	}
	text, err := b.Summary()
	if err != nil {
		return err
	}
	_, err = b.msg.Send(ctx, c.chatID, text)
	return err
}

// Summary renders today's rewarded check-ins for all users.
func (b *Bot) Summary() (string, error) {
	data, err := b.store.Load()
	if err != nil {
		return "", err
	}
	entries, err := b.activity.ForDay(b.now().In(b.loc))
	if err != nil {
		return "", fmt.Errorf("load activity: %w", err)
	}
	return report.SummaryText(data, entries), nil
}

// DailySummary sends the summary to every admin.
func (b *Bot) DailySummary(ctx context.Context) {
	text, err := b.Summary()
	if err != nil {
		b.log.Error(fmt.Sprintf("Daily summary failed: %v", err))
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	b.msg.NotifyAdmins(sendCtx, text)
}
