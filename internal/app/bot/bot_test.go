package bot

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/telegram"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/worker"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/storage/credstore"
)

const (
	adminID int64 = 1
	userID  int64 = 100
)

var shanghai = time.FixedZone("CST", 8*3600)

// --- Mocks ---

type MockBot struct {
	mock.Mock
}

func (m *MockBot) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	args := m.Called(ctx, params)
	if msg, ok := args.Get(0).(*telego.Message); ok {
		return msg, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockBot) DeleteMessage(ctx context.Context, params *telego.DeleteMessageParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) SetMyCommands(ctx context.Context, params *telego.SetMyCommandsParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockBot) AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

type fakeRunner struct {
	mu       sync.Mutex
	requests []worker.Request
	report   *worker.Report
	err      error
	stats    []model.CheckinResult
	statsErr error
	statsArg []interface{}
	delay    time.Duration
}

func (f *fakeRunner) Run(_ context.Context, req worker.Request) (*worker.Report, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.report, f.err
}

func (f *fakeRunner) Stats(_ context.Context, uid, account string, days int) ([]model.CheckinResult, error) {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statsArg = []interface{}{uid, account, days}
	return f.stats, f.statsErr
}

type fakeAcquirer struct {
	cookie string
	err    error
	calls  int
	delay  time.Duration
}

func (f *fakeAcquirer) Login(_ context.Context, _ *model.Session, _, _ string) (string, error) {
	time.Sleep(f.delay)
	f.calls++
	return f.cookie, f.err
}

type fakeScheduler struct {
	mu         sync.Mutex
	registered map[string][2]int
	removed    []string
}

func (f *fakeScheduler) Register(uid string, hour, minute int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registered[uid] = [2]int{hour, minute}
}

func (f *fakeScheduler) Remove(uid string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, uid)
}

type fakeActivity struct {
	entries []model.LogEntry
	recent  []model.LogEntry
	day     time.Time
	deleted []string
	limit   int
}

func (f *fakeActivity) Recent(_ string, limit int) ([]model.LogEntry, error) {
	f.limit = limit
	return f.recent, nil
}

func (f *fakeActivity) ForDay(day time.Time) ([]model.LogEntry, error) {
	f.day = day
	return f.entries, nil
}

func (f *fakeActivity) DeleteUser(uid string) error {
	f.deleted = append(f.deleted, uid)
	return nil
}

// --- Harness ---

type sentMessage struct {
	chatID int64
	text   string
	markup telego.ReplyMarkup
	ctxErr error
}

type harness struct {
	api      *MockBot
	store    *credstore.Store
	runner   *fakeRunner
	acquirer *fakeAcquirer
	sched    *fakeScheduler
	activity *fakeActivity
	bot      *Bot

	mu   sync.Mutex
	sent []sentMessage
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		api:      new(MockBot),
		store:    credstore.New(filepath.Join(t.TempDir(), "data.json")),
		runner:   &fakeRunner{},
		acquirer: &fakeAcquirer{cookie: "session=abc"},
		sched:    &fakeScheduler{registered: map[string][2]int{}},
		activity: &fakeActivity{},
	}
	h.api.On("SendMessage", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		p := args.Get(1).(*telego.SendMessageParams)
		h.mu.Lock()
		h.sent = append(h.sent, sentMessage{chatID: p.ChatID.ID, text: p.Text, markup: p.ReplyMarkup, ctxErr: ctx.Err()})
		h.mu.Unlock()
	}).Return(&telego.Message{MessageID: 500}, nil).Maybe()
	h.api.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil).Maybe()
	h.api.On("SetMyCommands", mock.Anything, mock.Anything).Return(nil).Maybe()
	h.api.On("AnswerCallbackQuery", mock.Anything, mock.Anything).Return(nil).Maybe()

	b, err := New(Options{
		Messenger: telegram.NewMessenger(h.api, []int64{adminID}),
		Store:     h.store,
		Runner:    h.runner,
		Acquirer:  h.acquirer,
		Scheduler: h.sched,
		Activity:  h.activity,
		Admins:    []int64{adminID},
		ReplyURL:  "https://t.me/example",
		Location:  shanghai,
	})
	require.NoError(t, err)
	h.bot = b
	return h
}

func (h *harness) seed(t *testing.T, uid, name string) {
	t.Helper()
	_, err := h.store.AddAccount(uid, "tom", model.Account{Username: name, Password: "pw", Cookie: "c-" + name})
	require.NoError(t, err)
}

func (h *harness) send(from int64, chatType, text string) {
	h.bot.processUpdate(context.Background(), telego.Update{Message: &telego.Message{
		MessageID: 9,
		From:      &telego.User{ID: from, Username: "tom"},
		Chat:      telego.Chat{ID: from, Type: chatType},
		Text:      text,
	}})
}

func (h *harness) private(from int64, text string) {
	h.send(from, telego.ChatTypePrivate, text)
}

func (h *harness) texts() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.sent))
	for _, s := range h.sent {
		out = append(out, s.text)
	}
	return out
}

// delivered lists texts whose send context was still live.
func (h *harness) delivered() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, s := range h.sent {
		if s.ctxErr == nil {
			out = append(out, s.text)
		}
	}
	return out
}

func (h *harness) lastText() string {
	texts := h.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// --- Tests ---

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
}

func TestParseCommand(t *testing.T) {
	name, args := parseCommand("/Check@NodeSeekBot  100,alice ")
	assert.Equal(t, "check", name)
	assert.Equal(t, "100,alice", args)

	name, args = parseCommand("/txt\nline one")
	assert.Equal(t, "txt", name)
	assert.Equal(t, "line one", args)

	name, args = parseCommand("/start")
	assert.Equal(t, "start", name)
	assert.Empty(t, args)
}

func TestStartShowsRoleHelp(t *testing.T) {
	h := newHarness(t)
	h.private(adminID, "/start")
	assert.Contains(t, h.lastText(), "/txt")
	h.private(userID, "/start")
	assert.NotContains(t, h.lastText(), "/txt")
}

func TestAddRejectsGroupChats(t *testing.T) {
	h := newHarness(t)
	h.send(userID, telego.ChatTypeGroup, "/add alice@pw")
	assert.Equal(t, msgAddPrivateOnly, h.lastText())
	assert.Zero(t, h.acquirer.calls)
}

func TestAddUsage(t *testing.T) {
	h := newHarness(t)
	h.private(userID, "/add alice")
	assert.Equal(t, msgAddUsage, h.lastText())
	h.private(userID, "/add @pw")
	assert.Equal(t, msgAddFormat, h.lastText())
}

func TestAddStoresAccountAndSchedules(t *testing.T) {
	h := newHarness(t)
	h.private(userID, "/add alice@p@ss")

	data, err := h.store.Load()
	require.NoError(t, err)
	u, ok := data.User("100")
	require.True(t, ok)
	assert.Equal(t, model.Account{Username: "alice", Password: "p@ss", Cookie: "session=abc"}, u.Accounts["alice"])
	assert.Equal(t, "tom", u.TgUsername)

	assert.Equal(t, [2]int{0, 0}, h.sched.registered["100"])
	assert.Contains(t, h.texts(), "✅ 账号 alice 成功获取 Cookie")
	assert.Contains(t, h.texts(), "✅ 用户 tom 添加账号 alice")
	h.api.AssertCalled(t, "SetMyCommands", mock.Anything, mock.Anything)
}

func TestSlowLoginStillConfirms(t *testing.T) {
	h := newHarness(t)
	h.bot.replyWindow = 20 * time.Millisecond
	h.acquirer.delay = 100 * time.Millisecond

	h.private(userID, "/add alice@pw")

	delivered := h.delivered()
	assert.Contains(t, delivered, "✅ 账号 alice 成功获取 Cookie")
	assert.Contains(t, delivered, "✅ 用户 tom 添加账号 alice")
}

func TestAddLoginFailure(t *testing.T) {
	h := newHarness(t)
	h.acquirer.err = errors.New("login rejected")
	h.private(userID, "/add alice@bad")

	assert.Equal(t, msgAddLoginFailed, h.lastText())
	data, err := h.store.Load()
	require.NoError(t, err)
	assert.Empty(t, data.Users)
	assert.Empty(t, h.sched.registered)
}

func TestRequireAccount(t *testing.T) {
	h := newHarness(t)
	for _, cmd := range []string{"/mode true", "/log", "/stats", "/settime 8:00"} {
		h.private(userID, cmd)
		assert.Equal(t, msgNeedAccount, h.lastText(), cmd)
	}
	assert.Nil(t, h.runner.statsArg)
}

func TestMode(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")

	h.private(userID, "/mode TRUE")
	assert.Equal(t, "✅ 签到模式: 随机模式", h.lastText())
	u, _, err := h.store.User("100")
	require.NoError(t, err)
	assert.True(t, u.Mode)

	h.private(userID, "/mode maybe")
	assert.Equal(t, msgModeUsage, h.lastText())
}

func TestSetTime(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")

	cases := []struct {
		args string
		want string
	}{
		{"", msgSetTimeUsage},
		{"x:10", msgSetTimeFormat},
		{"10:00", msgSetTimeHour},
		{"8:75", msgSetTimeMinute},
		{"8:30", "✅ 已设置每日签到时间为 08:30 (北京时间)"},
	}
	for _, tc := range cases {
		h.private(userID, "/settime "+tc.args)
		assert.Equal(t, tc.want, h.lastText(), tc.args)
	}

	u, _, err := h.store.User("100")
	require.NoError(t, err)
	assert.Equal(t, 8, u.SignHour)
	assert.Equal(t, 30, u.SignMinute)
	assert.Equal(t, [2]int{8, 30}, h.sched.registered["100"])
}

func TestUserDeleteAll(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")
	h.seed(t, "100", "bob")

	h.private(userID, "/del -all")

	assert.Contains(t, h.texts(), "🗑 已删除所有账号: alice, bob")
	assert.Contains(t, h.texts(), "用户 tom 删除了所有账号: alice, bob")
	assert.Equal(t, []string{"100"}, h.sched.removed)
	assert.Equal(t, []string{"100"}, h.activity.deleted)
	data, err := h.store.Load()
	require.NoError(t, err)
	assert.Empty(t, data.Users)
}

func TestUserDeleteOne(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")
	h.seed(t, "100", "bob")

	h.private(userID, "/del carol")
	assert.Equal(t, msgDelAccountNotFound, h.lastText())

	h.private(userID, "/del alice")
	assert.Equal(t, "🗑 已删除账号: alice", h.lastText())
	assert.Empty(t, h.sched.removed, "user still has an account")
}

func TestUserDeleteWithoutAccounts(t *testing.T) {
	h := newHarness(t)
	h.private(userID, "/del alice")
	assert.Equal(t, msgNeedAccount, h.lastText())
	h.private(userID, "/del")
	assert.Equal(t, msgDelFormat, h.lastText())
}

func TestAdminDelete(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")
	h.seed(t, "200", "bob")

	h.private(adminID, "/del 999")
	assert.Equal(t, msgDelUserNotFound, h.lastText())

	h.private(adminID, "/del 100")
	assert.Equal(t, "✅ 已删除用户 100 的所有账号", h.lastText())

	h.private(adminID, "/del bob")
	assert.Equal(t, "✅ 已删除账号: bob", h.lastText())
	assert.Contains(t, h.texts(), "管理员 1 删除了账号: bob")
	assert.Equal(t, []string{"100", "200"}, h.sched.removed)

	h.private(adminID, "/del nobody")
	assert.Equal(t, msgDelAccountNotFound, h.lastText())
}

func TestListViews(t *testing.T) {
	h := newHarness(t)
	h.private(userID, "/list")
	assert.Equal(t, msgNeedAccount, h.lastText())

	h.seed(t, "100", "alice")
	h.private(userID, "/list")
	assert.Equal(t, "📋 你的账号:\n模式: 固定模式\nalice", h.lastText())

	h.activity.recent = []model.LogEntry{{
		UserID: "100", Name: "alice", Result: "✅ 签到收益 5 个 🍗",
		Source: model.SourceScheduled, Time: time.Date(2024, 5, 1, 0, 3, 0, 0, time.UTC),
	}}
	h.private(userID, "/list")
	assert.Equal(t, recentOnList, h.activity.limit)
	assert.Equal(t, "📋 你的账号:\n模式: 固定模式\nalice\n\n🕘 最近记录:\n05-01 08:03 [自动] a***e - ✅ 签到收益 5 个 🍗", h.lastText())

	h.private(adminID, "/list")
	assert.Contains(t, h.lastText(), "📋 所有用户账号:")
	assert.Contains(t, h.lastText(), "账号: alice")
}

func TestUserCheck(t *testing.T) {
	h := newHarness(t)
	h.private(userID, "/check")
	assert.Equal(t, msgCheckNoAccount, h.lastText())

	h.seed(t, "100", "alice")
	h.runner.report = &worker.Report{
		Results: model.Results{"100": {{Name: "alice", Result: "☑️ 已签到", CookieRefreshed: true}}},
		Users:   map[string]*model.User{"100": {Mode: true}},
	}
	h.private(userID, "/check")

	require.Len(t, h.runner.requests, 1)
	assert.Equal(t, worker.Request{UserIDs: []string{"100"}, Source: model.SourceManual, Actor: model.ActorUser}, h.runner.requests[0])
	assert.Contains(t, h.texts(), msgCheckWaiting)
	assert.Equal(t, "📋 签到结果（随机模式）：\na***e - ☑️ 已签到 [♻️ Cookie]\n", h.lastText())
}

func TestAdminCheckTargets(t *testing.T) {
	h := newHarness(t)
	h.runner.report = &worker.Report{Results: model.Results{}, Users: map[string]*model.User{}}

	h.private(adminID, "/check")
	h.private(adminID, "/check 100,alice")
	h.private(adminID, "/check bob")

	require.Len(t, h.runner.requests, 3)
	assert.Empty(t, h.runner.requests[0].UserIDs)
	assert.Equal(t, model.ActorAdmin, h.runner.requests[0].Actor)
	assert.Equal(t, []string{"100"}, h.runner.requests[1].UserIDs)
	assert.Equal(t, "alice", h.runner.requests[1].Account)
	assert.Empty(t, h.runner.requests[2].UserIDs)
	assert.Equal(t, "bob", h.runner.requests[2].Account)
	assert.Equal(t, "📋 所有用户签到结果:\n", h.lastText())
}

func TestCheckNoTargets(t *testing.T) {
	h := newHarness(t)
	h.runner.err = worker.ErrNoTargets
	h.private(adminID, "/check")
	assert.Equal(t, msgCheckNoTargets, h.lastText())
}

func TestCheckInvokerFailureReportsInternalError(t *testing.T) {
	h := newHarness(t)
	h.runner.err = errors.New("check-in failed: node exited")
	h.private(adminID, "/check")
	assert.Equal(t, msgInternalError, h.lastText())
}

func TestSlowCheckStillReplies(t *testing.T) {
	h := newHarness(t)
	h.bot.replyWindow = 20 * time.Millisecond
	h.seed(t, "100", "alice")
	h.runner.delay = 100 * time.Millisecond
	h.runner.report = &worker.Report{
		Results: model.Results{"100": {{Name: "alice", Result: "✅ 签到收益 5 个 🍗"}}},
		Users:   map[string]*model.User{"100": {}},
	}

	h.private(userID, "/check")

	want := "📋 签到结果（固定模式）：\na***e - ✅ 签到收益 5 个 🍗\n"
	assert.Equal(t, want, h.lastText())
	assert.Contains(t, h.delivered(), want)
}

func TestSlowStatsStillReplies(t *testing.T) {
	h := newHarness(t)
	h.bot.replyWindow = 20 * time.Millisecond
	h.seed(t, "100", "alice")
	h.runner.delay = 100 * time.Millisecond
	h.runner.stats = []model.CheckinResult{{
		Name:   "alice",
		Result: model.StatsQueryOK,
		Stats:  &model.Stats{TotalAmount: 5, Average: "5.00", DaysCount: 1},
	}}

	h.private(userID, "/stats")

	last := h.delivered()
	require.NotEmpty(t, last)
	assert.Contains(t, last[len(last)-1], "📊 签到收益统计（30 天）")
}

func TestParseLogArgs(t *testing.T) {
	cases := []struct {
		fields  []string
		days    int
		account string
	}{
		{nil, 7, ""},
		{[]string{"3"}, 3, ""},
		{[]string{"3", "alice"}, 3, "alice"},
		{[]string{"alice"}, 7, "alice"},
		{[]string{"alice", "14"}, 14, "alice"},
		{[]string{"0"}, 7, ""},
	}
	for _, tc := range cases {
		days, account := parseLogArgs(tc.fields)
		assert.Equal(t, tc.days, days, tc.fields)
		assert.Equal(t, tc.account, account, tc.fields)
	}
}

func TestLogAndStats(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")
	h.runner.stats = []model.CheckinResult{{
		Name:   "alice",
		Result: model.StatsQueryOK,
		Stats:  &model.Stats{TotalAmount: 8, Average: "4.00", DaysCount: 2, Records: []model.StatsRecord{{Date: "2024-05-01", Amount: 8}}},
	}}

	h.private(userID, "/log alice 3")
	assert.Equal(t, []interface{}{"100", "alice", 3}, h.runner.statsArg)
	assert.Contains(t, h.texts(), msgQueryWaiting)
	assert.Contains(t, h.lastText(), "📜 签到明细（3 天）")

	h.private(userID, "/stats abc")
	assert.Equal(t, []interface{}{"100", "", 30}, h.runner.statsArg)
	assert.Contains(t, h.lastText(), "📊 签到收益统计（30 天）")
}

func TestStatsWithoutCookies(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")
	h.runner.statsErr = worker.ErrNoCookies

	h.private(userID, "/log 7 bob")
	assert.Equal(t, "⚠️ 账号 bob 没有找到或未绑定 Cookie", h.lastText())
	h.private(userID, "/stats")
	assert.Equal(t, msgQueryNoCookie, h.lastText())

	h.runner.statsErr = errors.New("stats script: exit status 1: /opt/bot/stats.js: TypeError")
	h.private(userID, "/stats")
	assert.Equal(t, msgQueryFailed, h.lastText())
	assert.NotContains(t, h.lastText(), "stats.js")
}

func TestSummaryCommand(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")
	h.activity.entries = []model.LogEntry{{UserID: "100", Name: "alice", Result: "✅ 签到收益 5 个 🍗", Source: model.SourceScheduled}}

	h.bot.now = func() time.Time { return time.Date(2024, 5, 1, 10, 9, 0, 0, shanghai) }
	h.private(adminID, "/hz")
	assert.Equal(t, msgSummaryTooEarly, h.lastText())

	h.private(userID, "/hz")
	assert.Equal(t, msgSummaryTooEarly, h.lastText(), "non-admins are ignored")

	h.bot.now = func() time.Time { return time.Date(2024, 5, 1, 10, 10, 0, 0, shanghai) }
	h.private(adminID, "/hz")
	assert.Equal(t, "📋 今日签到成功汇总:\n\n👤 tom【固定模式】\n🆔 100\n[自动] ✅ 签到收益 5 个 🍗 - a***e\n", h.lastText())
	assert.Equal(t, 1, h.activity.day.Day())
}

func TestDailyCheckMessagesUser(t *testing.T) {
	h := newHarness(t)
	h.runner.report = &worker.Report{
		Results: model.Results{"100": {{Name: "alice", Result: "✅ 签到收益 5 个 🍗"}}},
		Users:   map[string]*model.User{"100": {}},
	}
	h.bot.DailyCheck(context.Background(), "100")

	require.Len(t, h.runner.requests, 1)
	assert.Equal(t, model.SourceScheduled, h.runner.requests[0].Source)
	assert.Equal(t, model.ActorSystem, h.runner.requests[0].Actor)
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.sent, 1)
	assert.Equal(t, int64(100), h.sent[0].chatID)
	assert.Equal(t, "📋 自动签到结果（固定模式）：\na***e - ✅ 签到收益 5 个 🍗\n", h.sent[0].text)
}

func TestDailyCheckWithoutAccountsIsSilent(t *testing.T) {
	h := newHarness(t)
	h.runner.err = worker.ErrNoTargets
	h.bot.DailyCheck(context.Background(), "100")
	assert.Empty(t, h.texts())
}

func TestDailySummaryGoesToAdmins(t *testing.T) {
	h := newHarness(t)
	h.bot.DailySummary(context.Background())
	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.sent, 1)
	assert.Equal(t, adminID, h.sent[0].chatID)
	assert.Equal(t, "📋 今日签到成功汇总:\n\n（今天暂无签到收益记录）", h.sent[0].text)
}

func TestBroadcast(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")
	h.seed(t, "200", "bob")
	h.seed(t, "1", "own")

	h.send(adminID, telego.ChatTypeGroup, "/txt hello")
	assert.Equal(t, msgTxtGroup, h.lastText())

	h.private(userID, "/txt hello")
	assert.Equal(t, msgTxtGroup, h.lastText(), "non-admins get no answer")

	h.private(adminID, "/txt 999,hi")
	assert.Equal(t, msgTxtUserNotFound, h.lastText())

	h.private(adminID, "/txt 100,hi there")
	assert.Equal(t, "✅ 已向 100 发送喊话", h.lastText())

	h.private(adminID, "/txt all hands")
	assert.Equal(t, "✅ 已发送 2 个用户", h.lastText())

	h.mu.Lock()
	defer h.mu.Unlock()
	var notices []sentMessage
	for _, s := range h.sent {
		if s.markup != nil {
			notices = append(notices, s)
		}
	}
	require.Len(t, notices, 3)
	assert.Equal(t, "📢 管理员 tom 喊话:\nhi there", notices[0].text)
	kb, ok := notices[0].markup.(*telego.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard[0], 2)
	assert.Equal(t, "ack_1", kb.InlineKeyboard[0][1].CallbackData)
}

func TestAcknowledgeCallback(t *testing.T) {
	h := newHarness(t)
	press := func() {
		h.bot.processUpdate(context.Background(), telego.Update{CallbackQuery: &telego.CallbackQuery{
			ID:   "q1",
			From: telego.User{ID: userID, Username: "jerry"},
			Data: "ack_1",
			Message: &telego.Message{
				MessageID: 77,
				Chat:      telego.Chat{ID: userID, Type: telego.ChatTypePrivate},
			},
		}})
	}
	press()
	press()

	assert.Equal(t, []string{"📣 用户 jerry 已知晓喊话内容"}, h.texts())
	h.api.AssertCalled(t, "AnswerCallbackQuery", mock.Anything, &telego.AnswerCallbackQueryParams{CallbackQueryID: "q1", Text: msgAckDone})
	h.api.AssertCalled(t, "AnswerCallbackQuery", mock.Anything, &telego.AnswerCallbackQueryParams{CallbackQueryID: "q1", Text: msgAckRepeat, ShowAlert: true})
}

func TestAckStoreExpires(t *testing.T) {
	s := NewAckStore(time.Hour)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	assert.True(t, s.Mark(1, 2, 3))
	assert.False(t, s.Mark(1, 2, 3))
	assert.True(t, s.Mark(1, 2, 4))
	assert.True(t, s.Mark(1, 5, 3), "keyed per message")

	now = now.Add(time.Hour)
	assert.True(t, s.Mark(1, 2, 3), "expired entries are forgotten")
	assert.Equal(t, 1, s.Len())
}

func TestSetupMenus(t *testing.T) {
	h := newHarness(t)
	h.seed(t, "100", "alice")
	require.NoError(t, h.bot.SetupMenus(context.Background()))
	// group + default + user 100 + admin 1 without accounts
	h.api.AssertNumberOfCalls(t, "SetMyCommands", 4)
}
