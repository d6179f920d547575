package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/report"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/storage/credstore"
)

// handleAdd logs in with the given credentials and stores the account with
// its fresh cookie.
func (b *Bot) handleAdd(ctx context.Context, c *command) error {
	if !c.private {
		b.reply(ctx, c, msgAddPrivateOnly, ttlNotice)
		return nil
	}
	fields := c.fields()
	if len(fields) == 0 || !strings.Contains(fields[0], "@") {
		b.reply(ctx, c, msgAddUsage, ttlNotice)
		return nil
	}
	name, password, _ := strings.Cut(fields[0], "@")
	name, password = strings.TrimSpace(name), strings.TrimSpace(password)
	if name == "" || password == "" {
		b.reply(ctx, c, msgAddFormat, ttlShort)
		return nil
	}

	session := &model.Session{UserID: c.uid, Account: name}
	log := b.log.With(session)

	waiting, err := b.msg.Send(ctx, c.chatID, fmt.Sprintf(msgAddLoggingIn, name))
	if err != nil {
		log.Warn(fmt.Sprintf("Progress message not sent: %v", err))
	}
	cookie, loginErr := b.acquirer.Login(c.base, session, name, password)
	ctx, cancel := b.followUp(c)
	defer cancel()
	if waiting != nil {
		b.msg.Delete(ctx, c.chatID, waiting.MessageID)
	}
	if loginErr != nil {
		log.Warn(fmt.Sprintf("Login failed: %v", loginErr))
		b.reply(ctx, c, msgAddLoginFailed, ttlShort)
		return nil
	}

	first, err := b.store.AddAccount(c.uid, c.username, model.Account{Username: name, Password: password, Cookie: cookie})
	if err != nil {
		return fmt.Errorf("store account: %w", err)
	}
	log.Success("Account added")

	if first {
		b.refreshMenu(ctx, c.uid, true)
		if data, err := b.store.Load(); err == nil {
			if u, ok := data.User(c.uid); ok {
				b.scheduler.Register(c.uid, u.SignHour, u.SignMinute)
			}
		}
	}

	b.reply(ctx, c, fmt.Sprintf(msgAddDone, name), ttlAdded)
	who := c.username
	if who == "" {
		who = c.uid
	}
	b.msg.NotifyAdmins(ctx, fmt.Sprintf(msgAddNotify, who, name))
	return nil
}

func (b *Bot) handleDelete(ctx context.Context, c *command) error {
	if c.args == "" {
		b.reply(ctx, c, msgDelFormat, ttlNotice)
		return nil
	}
	data, err := b.store.Load()
	if err != nil {
		return err
	}
	who := c.uid
	if u, ok := data.User(c.uid); ok && u.TgUsername != "" {
		who = u.TgUsername
	}
	if c.admin {
		return b.adminDelete(ctx, c, who)
	}

	if u, ok := data.User(c.uid); !ok || !u.HasAccounts() {
		b.reply(ctx, c, msgNeedAccount, ttlNotice)
		return nil
	}

	if c.args == "-all" {
		names, err := b.store.DeleteUser(c.uid)
		if err != nil {
			return err
		}
		b.forgetUser(ctx, c.uid)
		list := strings.Join(names, ", ")
		b.msg.NotifyAdmins(ctx, fmt.Sprintf(msgDelAllNotify, who, list))
		b.reply(ctx, c, fmt.Sprintf(msgDelAllDone, list), ttlDelete)
		return nil
	}

	removed, err := b.store.DeleteAccount(c.uid, c.args)
	if errors.Is(err, credstore.ErrAccountNotFound) {
		b.reply(ctx, c, msgDelAccountNotFound, ttlShort)
		return nil
	}
	if err != nil {
		return err
	}
	if removed {
		b.forgetUser(ctx, c.uid)
	}
	b.msg.NotifyAdmins(ctx, fmt.Sprintf(msgDelNotify, who, c.args))
	b.reply(ctx, c, fmt.Sprintf(msgDelDone, c.args), ttlDelete)
	return nil
}

// adminDelete removes a whole user when given a numeric id, otherwise the
// named account wherever it is bound.
func (b *Bot) adminDelete(ctx context.Context, c *command, who string) error {
	if isDigits(c.args) {
		if _, err := b.store.DeleteUser(c.args); err != nil {
			if errors.Is(err, credstore.ErrUserNotFound) {
				b.reply(ctx, c, msgDelUserNotFound, ttlShort)
				return nil
			}
			return err
		}
		b.forgetUser(ctx, c.args)
		b.reply(ctx, c, fmt.Sprintf(msgDelUserDone, c.args), ttlDelete)
		return nil
	}

	uid, removed, err := b.store.DeleteAccountAnywhere(c.args)
	if errors.Is(err, credstore.ErrAccountNotFound) {
		b.msg.SendTemp(ctx, c.chatID, msgDelAccountNotFound, ttlShort, 0)
		return nil
	}
	if err != nil {
		return err
	}
	if removed {
		b.forgetUser(ctx, uid)
	}
	b.msg.NotifyAdmins(ctx, fmt.Sprintf(msgDelAdminNotify, who, c.args))
	b.reply(ctx, c, fmt.Sprintf(msgDelAdminDone, c.args), ttlDelete)
	return nil
}

// forgetUser drops everything kept for a user whose last account is gone.
func (b *Bot) forgetUser(ctx context.Context, uid string) {
	b.scheduler.Remove(uid)
	if err := b.activity.DeleteUser(uid); err != nil {
		b.log.Warn(fmt.Sprintf("Activity for %s not removed: %v", uid, err))
	}
	b.refreshMenu(ctx, uid, false)
}

func (b *Bot) handleMode(ctx context.Context, c *command) error {
	arg := strings.ToLower(strings.TrimSpace(c.args))
	if arg != "true" && arg != "false" {
		b.reply(ctx, c, msgModeUsage, ttlNotice)
		return nil
	}
	mode := arg == "true"
	if err := b.store.SetMode(c.uid, mode); err != nil {
		return err
	}
	b.reply(ctx, c, fmt.Sprintf(msgModeDone, report.ModeText(mode)), ttlNotice)
	return nil
}

func (b *Bot) handleList(ctx context.Context, c *command) error {
	data, err := b.store.Load()
	if err != nil {
		return err
	}
	if c.admin {
		b.reply(ctx, c, report.AdminListText(data), ttlList)
		return nil
	}
	u, ok := data.User(c.uid)
	if !ok || !u.HasAccounts() {
		b.reply(ctx, c, msgNeedAccount, ttlNotice)
		return nil
	}
	recent, err := b.activity.Recent(c.uid, recentOnList)
	if err != nil {
		b.log.With(&model.Session{UserID: c.uid}).Warn(fmt.Sprintf("Recent activity unavailable: %v", err))
	}
	b.reply(ctx, c, report.UserListText(u)+report.RecentText(recent, b.loc), ttlList)
	return nil
}

// handleSetTime stores the user's daily check-in time and re-arms the timer.
// Hours are limited to 0-9 so runs finish before the admin summary.
func (b *Bot) handleSetTime(ctx context.Context, c *command) error {
	fields := c.fields()
	if len(fields) == 0 {
		b.reply(ctx, c, msgSetTimeUsage, ttlNotice)
		return nil
	}
	hourPart, minutePart, hasMinute := strings.Cut(fields[0], ":")
	hour, err := strconv.Atoi(hourPart)
	minute := 0
	if err == nil && hasMinute {
		minute, err = strconv.Atoi(minutePart)
	}
	if err != nil {
		b.reply(ctx, c, msgSetTimeFormat, ttlNotice)
		return nil
	}
	if hour < 0 || hour > 9 {
		b.reply(ctx, c, msgSetTimeHour, ttlNotice)
		return nil
	}
	if minute < 0 || minute > 59 {
		b.reply(ctx, c, msgSetTimeMinute, ttlShort)
		return nil
	}

	if err := b.store.SetSchedule(c.uid, hour, minute); err != nil {
		return err
	}
	b.scheduler.Register(c.uid, hour, minute)
	b.reply(ctx, c, fmt.Sprintf(msgSetTimeDone, hour, minute), ttlConfirm)
	return nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
