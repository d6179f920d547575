package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const ackPrefix = "ack_"

func (b *Bot) broadcastKeyboard(adminID int64) *telego.InlineKeyboardMarkup {
	row := []telego.InlineKeyboardButton{}
	if b.replyURL != "" {
		row = append(row, tu.InlineKeyboardButton(btnTxtReply).WithURL(b.replyURL))
	}
	row = append(row, tu.InlineKeyboardButton(btnTxtAck).WithCallbackData(ackPrefix+strconv.FormatInt(adminID, 10)))
	return tu.InlineKeyboard(row)
}

// handleBroadcast sends an admin notice to one user ("/txt TGID,内容") or to
// every known user. Private chats only.
func (b *Bot) handleBroadcast(ctx context.Context, c *command) error {
	if !c.private {
		if c.admin {
			b.reply(ctx, c, msgTxtGroup, ttlNotice)
		}
		return nil
	}
	if !c.admin {
		return nil
	}
	if c.args == "" {
		b.reply(ctx, c, msgTxtFormat, ttlNotice)
		return nil
	}
	data, err := b.store.Load()
	if err != nil {
		return err
	}
	keyboard := b.broadcastKeyboard(c.userID)

	if target, content, ok := strings.Cut(c.args, ","); ok && isDigits(target) {
		if _, found := data.User(target); !found {
			b.reply(ctx, c, msgTxtUserNotFound, ttlShort)
			return nil
		}
		chatID, _ := strconv.ParseInt(target, 10, 64)
		params := tu.Message(tu.ID(chatID), fmt.Sprintf(msgTxtBody, c.displayName(), content)).WithReplyMarkup(keyboard)
		if _, err := b.msg.SendParams(ctx, params); err != nil {
			return fmt.Errorf("notice to %s: %w", target, err)
		}
		b.reply(ctx, c, fmt.Sprintf(msgTxtSentOne, target), ttlConfirm)
		return nil
	}

	sent := 0
	for _, uid := range data.UserIDs() {
		if uid == c.uid {
			continue
		}
		chatID, err := strconv.ParseInt(uid, 10, 64)
		if err != nil {
			continue
		}
		params := tu.Message(tu.ID(chatID), fmt.Sprintf(msgTxtBody, c.displayName(), c.args)).WithReplyMarkup(keyboard)
		if err := b.notice(c, params); err != nil {
			b.log.Warn(fmt.Sprintf("Notice to %s failed: %v", uid, err))
			continue
		}
		sent++
	}
	ctx, cancel := b.followUp(c)
	defer cancel()
	b.reply(ctx, c, fmt.Sprintf(msgTxtSentAll, sent), ttlConfirm)
	return nil
}

// notice sends one broadcast message. Each recipient gets its own deadline.
func (b *Bot) notice(c *command, params *telego.SendMessageParams) error {
	ctx, cancel := b.followUp(c)
	defer cancel()
	_, err := b.msg.SendParams(ctx, params)
	return err
}

// handleCallback answers "acknowledged" presses on admin notices. Each user
// is counted once per notice and the sending admin is told.
func (b *Bot) handleCallback(ctx context.Context, query telego.CallbackQuery) {
	if !strings.HasPrefix(query.Data, ackPrefix) {
		return
	}
	adminID, err := strconv.ParseInt(strings.TrimPrefix(query.Data, ackPrefix), 10, 64)
	if err != nil {
		return
	}

	var chatID int64
	var messageID int
	if query.Message != nil {
		chatID = query.Message.GetChat().ID
		messageID = query.Message.GetMessageID()
	}
	if !b.acks.Mark(chatID, messageID, query.From.ID) {
		if err := b.msg.Answer(ctx, query.ID, msgAckRepeat, true); err != nil {
			b.log.Warn(fmt.Sprintf("Callback answer failed: %v", err))
		}
		return
	}

	name := query.From.Username
	if name == "" {
		name = "id:" + strconv.FormatInt(query.From.ID, 10)
	}
	if _, err := b.msg.Send(ctx, adminID, fmt.Sprintf(msgAckNotify, name)); err != nil {
		b.log.Warn(fmt.Sprintf("Admin %d not told about acknowledgement: %v", adminID, err))
	}
	if err := b.msg.Answer(ctx, query.ID, msgAckDone, false); err != nil {
		b.log.Warn(fmt.Sprintf("Callback answer failed: %v", err))
	}
}
