package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Outcome texts shared with the external sign script. The check-in outcome is
// free text; callers classify it with the helpers below.
const (
	OutcomeRewardFormat       = "✅ 签到收益 %s 个 🍗"
	OutcomeAlreadyDone        = "☑️ 已签到"
	OutcomeBlocked            = "🚫 风控拦截"
	OutcomeFailedPrefix       = "🚫 签到失败："
	OutcomeParseFailure       = "🚫 响应解析失败，非 JSON 格式或登录失效"
	OutcomeRequestErrorPrefix = "🚫 请求异常："
	OutcomeUnknown            = "🚫 未知错误"

	OutcomeRefreshFailed = "🚫 Cookie 刷新失败"
	OutcomeRetryFailed   = "🚫 Cookie 刷新后签到失败"
	OutcomeRetryError    = "🚫 Cookie 刷新后签到异常"

	StatsQueryOK      = "✅ 查询成功"
	StatsEmptyFormat  = "⚠️ 近 %d 天没有签到记录"
	StatsErrorPrefix  = "🚫 查询异常: "
	StatsRewardMarker = "签到收益"
	StatsRewardItem   = "鸡腿"

	rewardMarker = "收益"
)

var invalidSessionSignatures = []string{
	"🚫 响应解析失败",
	"🚫 response parse failure",
}

type Source string

const (
	SourceManual    Source = "manual"
	SourceScheduled Source = "auto"
)

type Actor string

const (
	ActorAdmin  Actor = "admin"
	ActorUser   Actor = "user"
	ActorSystem Actor = "system"
)

type CheckinResult struct {
	Name            string `json:"name"`
	Result          string `json:"result"`
	Time            string `json:"time,omitempty"`
	Stats           *Stats `json:"stats,omitempty"`
	CookieRefreshed bool   `json:"cookie_refreshed,omitempty"`
	NoLog           bool   `json:"no_log,omitempty"`
}

// IsInvalidSession reports whether the outcome carries the signature of an
// expired or rejected session cookie.
func (r CheckinResult) IsInvalidSession() bool {
	return IsInvalidSessionText(r.Result)
}

func IsInvalidSessionText(text string) bool {
	lower := strings.ToLower(text)
	for _, sig := range invalidSessionSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}

// Earned reports whether the outcome records a check-in reward.
func (r CheckinResult) Earned() bool {
	return strings.Contains(r.Result, rewardMarker)
}

func (r CheckinResult) Loggable() bool {
	return !r.NoLog && r.Earned()
}

// Marker derives a terminal failure result that is kept out of activity logs.
func (r CheckinResult) Marker(outcome string) CheckinResult {
	r.Result = outcome
	r.NoLog = true
	r.CookieRefreshed = false
	return r
}

type Stats struct {
	TotalAmount float64       `json:"total_amount"`
	Average     json.Number   `json:"average"`
	DaysCount   int           `json:"days_count"`
	Records     []StatsRecord `json:"records"`
}

type StatsRecord struct {
	Amount      float64 `json:"amount"`
	Date        string  `json:"date"`
	Description string  `json:"description"`
}

// Results maps a user id to that user's ordered per-account results.
type Results map[string][]CheckinResult

// Targets maps a user id to account name to cookie string.
type Targets map[string]map[string]string

type LogEntry struct {
	ID              int64
	UserID          string
	Name            string
	Result          string
	Source          Source
	Actor           Actor
	CookieRefreshed bool
	RunID           string
	Time            time.Time
}

func (e LogEntry) Earned() bool {
	return strings.Contains(e.Result, rewardMarker)
}
