package report

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
)

const (
	refreshedSuffix = " [♻️ Cookie]"
	summaryHeader   = "📋 今日签到成功汇总:\n"
	summaryEmpty    = "\n（今天暂无签到收益记录）"
)

// MaskUsername hides the middle of an account name: "alice" -> "a***e",
// "ab" -> "a***b", "a" -> "a***".
func MaskUsername(name string) string {
	r := []rune(name)
	switch len(r) {
	case 0:
		return "***"
	case 1:
		return string(r[0]) + "***"
	case 2:
		return string(r[0]) + "***" + string(r[1])
	default:
		return string(r[0]) + "***" + string(r[len(r)-1])
	}
}

func ModeText(random bool) string {
	if random {
		return "随机模式"
	}
	return "固定模式"
}

func CheckinLine(r model.CheckinResult) string {
	line := MaskUsername(r.Name) + " - " + r.Result
	if r.CookieRefreshed {
		line += refreshedSuffix
	}
	return line
}

// UserCheckinText renders one user's results. scheduled selects the header
// used for timer-driven runs.
func UserCheckinText(results []model.CheckinResult, random, scheduled bool) string {
	var b strings.Builder
	if scheduled {
		fmt.Fprintf(&b, "📋 自动签到结果（%s）：\n", ModeText(random))
	} else {
		fmt.Fprintf(&b, "📋 签到结果（%s）：\n", ModeText(random))
	}
	for _, r := range results {
		b.WriteString(CheckinLine(r) + "\n")
	}
	return b.String()
}

// AdminCheckinText renders every user's results, grouped per user.
func AdminCheckinText(ids []string, results model.Results, users map[string]*model.User) string {
	var b strings.Builder
	b.WriteString("📋 所有用户签到结果:\n")
	for _, uid := range ids {
		u := users[uid]
		b.WriteString(userHeader(uid, u))
		for _, r := range results[uid] {
			b.WriteString(CheckinLine(r) + "\n")
		}
	}
	return b.String()
}

func userHeader(uid string, u *model.User) string {
	mode := false
	if u != nil {
		mode = u.Mode
	}
	return fmt.Sprintf("\n👤 %s【%s】\n🆔 %s\n", u.DisplayName(uid), ModeText(mode), uid)
}

// SummaryText renders today's earned entries for users still present in
// data. Entries without a reward are skipped.
func SummaryText(data *model.Data, entries []model.LogEntry) string {
	byUser := map[string][]model.LogEntry{}
	for _, e := range entries {
		if e.Earned() {
			byUser[e.UserID] = append(byUser[e.UserID], e)
		}
	}

	var b strings.Builder
	b.WriteString(summaryHeader)
	shown := false
	for _, uid := range data.UserIDs() {
		todays := byUser[uid]
		if len(todays) == 0 {
			continue
		}
		shown = true
		b.WriteString(userHeader(uid, data.Users[uid]))
		for _, e := range todays {
			tag := "[自动]"
			if e.Source == model.SourceManual {
				tag = "[手动]"
			}
			line := fmt.Sprintf("%s %s - %s", tag, e.Result, MaskUsername(e.Name))
			if e.CookieRefreshed {
				line += "  ♻️"
			}
			b.WriteString(line + "\n")
		}
	}
	if !shown {
		b.WriteString(summaryEmpty)
	}
	return b.String()
}

func StatsText(days int, results []model.CheckinResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📊 签到收益统计（%d 天）：\n", days)
	for _, r := range results {
		name := MaskUsername(r.Name)
		if r.Stats != nil && r.Stats.DaysCount > 0 {
			fmt.Fprintf(&b, "\n🔸 %s\n", name)
			fmt.Fprintf(&b, "   🗓️ 签到天数 : %d 天\n", r.Stats.DaysCount)
			fmt.Fprintf(&b, "   🍗 总收益   : %s 个\n", formatAmount(r.Stats.TotalAmount))
			b.WriteString("-----------------------\n")
			fmt.Fprintf(&b, "   📈 日均收益 : %s 个\n", r.Stats.Average.String())
			continue
		}
		fmt.Fprintf(&b, "\n🔸 %s\n   ⚠️ %s\n", name, r.Result)
	}
	return b.String()
}

// LogText lists per-day rewards, newest first, for each account.
func LogText(days int, results []model.CheckinResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📜 签到明细（%d 天）：\n", days)
	for i, r := range results {
		fmt.Fprintf(&b, "\n🔸 %s (签到收益)\n", MaskUsername(r.Name))
		switch {
		case r.Stats != nil && r.Stats.DaysCount > 0 && len(r.Stats.Records) == 0:
			b.WriteString("   ⚠️ 没有签到明细记录\n")
		case r.Stats != nil && r.Stats.DaysCount > 0:
			records := append([]model.StatsRecord(nil), r.Stats.Records...)
			sort.SliceStable(records, func(a, c int) bool { return records[a].Date > records[c].Date })
			for _, rec := range records {
				fmt.Fprintf(&b, "   %s  🍗 +%s\n", rec.Date, formatAmount(rec.Amount))
			}
		default:
			fmt.Fprintf(&b, "   %s\n", r.Result)
		}
		if i < len(results)-1 {
			b.WriteString("-----------------------\n")
		}
	}
	return b.String()
}

// AdminListText lists every user that has accounts.
func AdminListText(data *model.Data) string {
	var b strings.Builder
	b.WriteString("📋 所有用户账号:\n")
	shown := false
	for _, uid := range data.UserIDs() {
		u := data.Users[uid]
		if !u.HasAccounts() {
			continue
		}
		shown = true
		fmt.Fprintf(&b, "\n👤 %s【%s】\n🆔 %s\n账号: %s\n", u.DisplayName(uid), ModeText(u.Mode), uid, strings.Join(u.AccountNames(), ", "))
	}
	if !shown {
		return "📭 暂无用户账号"
	}
	return b.String()
}

func UserListText(u *model.User) string {
	return fmt.Sprintf("📋 你的账号:\n模式: %s\n%s", ModeText(u.Mode), strings.Join(u.AccountNames(), "\n"))
}

// RecentText lists the newest activity entries under an account list, oldest
// first. Empty input renders nothing.
func RecentText(entries []model.LogEntry, loc *time.Location) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n\n🕘 最近记录:")
	for _, e := range entries {
		tag := "[自动]"
		if e.Source == model.SourceManual {
			tag = "[手动]"
		}
		fmt.Fprintf(&b, "\n%s %s %s - %s", e.Time.In(loc).Format("01-02 15:04"), tag, MaskUsername(e.Name), e.Result)
	}
	return b.String()
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%g", v)
}
