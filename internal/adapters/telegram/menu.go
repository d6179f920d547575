package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

var descriptions = map[string]string{
	"start":   "显示帮助",
	"check":   "手动签到",
	"add":     "添加账号",
	"del":     "删除账号",
	"mode":    "签到模式",
	"list":    "账号列表",
	"log":     "签到记录",
	"stats":   "签到统计",
	"settime": "设置每日签到时间 (0–10点)",
	"hz":      "每日汇总",
	"txt":     "管理员喊话",
}

type Menu []string

var (
	MenuUserNoAccount   = Menu{"start", "add"}
	MenuUserWithAccount = Menu{"start", "check", "add", "del", "mode", "list", "log", "stats", "settime"}
	MenuAdminNoAccount  = Menu{"start", "check", "add", "del", "list", "hz", "txt"}
	MenuAdmin           = Menu{"start", "check", "add", "del", "mode", "list", "log", "settime", "stats", "hz", "txt"}
	MenuGroup           = MenuUserWithAccount
)

// MenuFor picks the private-chat menu for a user.
func MenuFor(admin, hasAccounts bool) Menu {
	switch {
	case admin && hasAccounts:
		return MenuAdmin
	case admin:
		return MenuAdminNoAccount
	case hasAccounts:
		return MenuUserWithAccount
	default:
		return MenuUserNoAccount
	}
}

func (m Menu) Commands() []telego.BotCommand {
	out := make([]telego.BotCommand, 0, len(m))
	for _, name := range m {
		out = append(out, telego.BotCommand{Command: name, Description: descriptions[name]})
	}
	return out
}

// SetChatMenu installs the menu for one private chat.
func (m *Messenger) SetChatMenu(ctx context.Context, chatID int64, menu Menu) error {
	err := m.api.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: menu.Commands(),
		Scope:    tu.ScopeChat(tu.ID(chatID)),
	})
	if err != nil {
		return fmt.Errorf("set menu for %d: %w", chatID, err)
	}
	return nil
}

// SetBaseMenus installs the group-chat menu and the default menu shown to
// users the bot does not know yet.
func (m *Messenger) SetBaseMenus(ctx context.Context) error {
	if err := m.api.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: MenuGroup.Commands(),
		Scope:    tu.ScopeAllGroupChats(),
	}); err != nil {
		return fmt.Errorf("set group menu: %w", err)
	}
	if err := m.api.SetMyCommands(ctx, &telego.SetMyCommandsParams{
		Commands: MenuUserNoAccount.Commands(),
	}); err != nil {
		return fmt.Errorf("set default menu: %w", err)
	}
	return nil
}
