package worker

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/captcha"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/storage/credstore"
)

// --- Mocks ---

type MockInvoker struct {
	mock.Mock
}

func (m *MockInvoker) Checkin(ctx context.Context, targets model.Targets, modes map[string]bool) (model.Results, error) {
	args := m.Called(ctx, targets, modes)
	if res, ok := args.Get(0).(model.Results); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockInvoker) Stats(ctx context.Context, targets model.Targets, days int) (model.Results, error) {
	args := m.Called(ctx, targets, days)
	if res, ok := args.Get(0).(model.Results); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockAcquirer struct {
	mock.Mock
}

func (m *MockAcquirer) Login(ctx context.Context, session *model.Session, username, password string) (string, error) {
	args := m.Called(ctx, session, username, password)
	return args.String(0), args.Error(1)
}

// memStore records cookie writes in order so tests can check that the
// refreshed cookie is persisted before the retry.
type memStore struct {
	mu     sync.Mutex
	data   *model.Data
	events *[]string
	err    error
}

func (s *memStore) Load() (*model.Data, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, nil
}

func (s *memStore) SetCookie(uid, name, cookie string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.events != nil {
		*s.events = append(*s.events, "persist:"+cookie)
	}
	if s.err != nil {
		return s.err
	}
	acc := s.data.Users[uid].Accounts[name]
	acc.Cookie = cookie
	s.data.Users[uid].Accounts[name] = acc
	return nil
}

type memLog struct {
	mu      sync.Mutex
	entries []model.LogEntry
}

func (l *memLog) Append(e model.LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
	return nil
}

func testData() *model.Data {
	d := model.NewData()
	d.Users["1"] = &model.User{
		Mode: true,
		Accounts: map[string]model.Account{
			"alice": {Username: "alice", Password: "pw-a", Cookie: "old-a"},
			"bob":   {Username: "bob", Password: "pw-b", Cookie: "old-b"},
		},
	}
	d.Users["2"] = &model.User{Accounts: map[string]model.Account{
		"carol": {Username: "carol", Password: "pw-c", Cookie: "old-c"},
	}}
	d.Users["3"] = &model.User{Accounts: map[string]model.Account{}}
	return d
}

const reward = "✅ 签到收益 5 个 🍗"

func TestReconcilePassesThroughHealthyResults(t *testing.T) {
	inv, acq := new(MockInvoker), new(MockAcquirer)
	r := NewRefresher(inv, acq, &memStore{data: testData()}, time.Second)

	for _, text := range []string{reward, model.OutcomeAlreadyDone, model.OutcomeFailedPrefix + "x", model.OutcomeBlocked} {
		res := model.CheckinResult{Name: "alice", Result: text}
		out := r.Reconcile(context.Background(), &model.Session{UserID: "1", Account: "alice"}, model.Account{}, res, false)
		assert.Equal(t, res, out)
	}
	acq.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	inv.AssertNotCalled(t, "Checkin", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileRefreshesPersistsThenRetries(t *testing.T) {
	var events []string
	store := &memStore{data: testData(), events: &events}
	inv, acq := new(MockInvoker), new(MockAcquirer)

	acq.On("Login", mock.Anything, mock.Anything, "alice", "pw-a").Return("session=new", nil).Once()
	inv.On("Checkin", mock.Anything, model.Targets{"1": {"alice": "session=new"}}, map[string]bool{"1": true}).
		Run(func(mock.Arguments) { events = append(events, "retry") }).
		Return(model.Results{"1": {{Name: "alice", Result: reward}}}, nil).Once()

	r := NewRefresher(inv, acq, store, time.Second)
	session := &model.Session{UserID: "1", Account: "alice"}
	out := r.Reconcile(context.Background(), session, store.data.Users["1"].Accounts["alice"],
		model.CheckinResult{Name: "alice", Result: model.OutcomeParseFailure}, true)

	assert.Equal(t, reward, out.Result)
	assert.True(t, out.CookieRefreshed)
	assert.False(t, out.NoLog)
	assert.Equal(t, []string{"persist:session=new", "retry"}, events)
	assert.Equal(t, "session=new", store.data.Users["1"].Accounts["alice"].Cookie)
	acq.AssertExpectations(t)
	inv.AssertExpectations(t)
}

func TestReconcileMatchesSignatureCaseInsensitively(t *testing.T) {
	inv, acq := new(MockInvoker), new(MockAcquirer)
	acq.On("Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("nope")).Once()
	r := NewRefresher(inv, acq, &memStore{data: testData()}, time.Second)

	out := r.Reconcile(context.Background(), &model.Session{UserID: "1"}, model.Account{Username: "alice"},
		model.CheckinResult{Name: "alice", Result: "🚫 Response Parse Failure, not JSON"}, false)
	assert.Equal(t, model.OutcomeRefreshFailed, out.Result)
	acq.AssertExpectations(t)
}

func TestReconcileMarkers(t *testing.T) {
	invalid := model.CheckinResult{Name: "alice", Result: model.OutcomeParseFailure, Time: "t"}
	account := model.Account{Username: "alice", Password: "pw"}
	session := &model.Session{UserID: "1", Account: "alice"}

	t.Run("login fails", func(t *testing.T) {
		inv, acq := new(MockInvoker), new(MockAcquirer)
		acq.On("Login", mock.Anything, mock.Anything, "alice", "pw").Return("", captcha.ErrNoCredit)
		var events []string
		store := &memStore{data: testData(), events: &events}
		out := NewRefresher(inv, acq, store, time.Second).
			Reconcile(context.Background(), session, account, invalid, false)
		assert.Equal(t, model.OutcomeRefreshFailed, out.Result)
		assert.True(t, out.NoLog)
		assert.False(t, out.CookieRefreshed)
		assert.Equal(t, "alice", out.Name)
		inv.AssertNotCalled(t, "Checkin", mock.Anything, mock.Anything, mock.Anything)
		assert.Empty(t, events, "no cookie write after a failed login")
		assert.Equal(t, "old-a", store.data.Users["1"].Accounts["alice"].Cookie)
	})

	t.Run("retry invocation fails", func(t *testing.T) {
		inv, acq := new(MockInvoker), new(MockAcquirer)
		acq.On("Login", mock.Anything, mock.Anything, "alice", "pw").Return("c", nil)
		inv.On("Checkin", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("exit 1"))
		out := NewRefresher(inv, acq, &memStore{data: testData()}, time.Second).
			Reconcile(context.Background(), session, account, invalid, false)
		assert.Equal(t, model.OutcomeRetryFailed, out.Result)
		assert.True(t, out.NoLog)
	})

	t.Run("retry returns nothing", func(t *testing.T) {
		inv, acq := new(MockInvoker), new(MockAcquirer)
		acq.On("Login", mock.Anything, mock.Anything, "alice", "pw").Return("c", nil)
		inv.On("Checkin", mock.Anything, mock.Anything, mock.Anything).Return(model.Results{}, nil)
		out := NewRefresher(inv, acq, &memStore{data: testData()}, time.Second).
			Reconcile(context.Background(), session, account, invalid, false)
		assert.Equal(t, model.OutcomeRetryError, out.Result)
		assert.True(t, out.NoLog)
	})

	t.Run("persist failure still retries", func(t *testing.T) {
		inv, acq := new(MockInvoker), new(MockAcquirer)
		acq.On("Login", mock.Anything, mock.Anything, "alice", "pw").Return("c", nil)
		inv.On("Checkin", mock.Anything, mock.Anything, mock.Anything).Return(model.Results{"1": {{Name: "alice", Result: reward}}}, nil)
		out := NewRefresher(inv, acq, &memStore{data: testData(), err: errors.New("disk full")}, time.Second).
			Reconcile(context.Background(), session, account, invalid, false)
		assert.Equal(t, reward, out.Result)
		assert.True(t, out.CookieRefreshed)
	})
}

func TestReconcileRetriesOnlyOnce(t *testing.T) {
	inv, acq := new(MockInvoker), new(MockAcquirer)
	acq.On("Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("c", nil).Once()
	inv.On("Checkin", mock.Anything, mock.Anything, mock.Anything).
		Return(model.Results{"1": {{Name: "alice", Result: model.OutcomeParseFailure}}}, nil).Once()

	out := NewRefresher(inv, acq, &memStore{data: testData()}, time.Second).
		Reconcile(context.Background(), &model.Session{UserID: "1"}, model.Account{Username: "alice", Password: "pw"},
			model.CheckinResult{Name: "alice", Result: model.OutcomeParseFailure}, false)

	assert.Equal(t, model.OutcomeParseFailure, out.Result)
	assert.True(t, out.CookieRefreshed)
	assert.False(t, out.Loggable())
	acq.AssertNumberOfCalls(t, "Login", 1)
	inv.AssertNumberOfCalls(t, "Checkin", 1)
}

func newTestRunner(store *memStore, inv *MockInvoker, acq *MockAcquirer, activity *memLog) *Runner {
	r := NewRunner(RunnerOptions{
		Store:          store,
		Invoker:        inv,
		Refresher:      NewRefresher(inv, acq, store, time.Second),
		Activity:       activity,
		CheckinTimeout: time.Second,
		StatsTimeout:   time.Second,
	})
	r.now = func() time.Time { return time.Date(2024, 5, 1, 0, 3, 0, 0, time.UTC) }
	return r
}

func TestRunLogsOnlyRewards(t *testing.T) {
	store := &memStore{data: testData()}
	inv, acq := new(MockInvoker), new(MockAcquirer)
	activity := &memLog{}

	first := model.Targets{"1": {"alice": "old-a", "bob": "old-b"}, "2": {"carol": "old-c"}}
	inv.On("Checkin", mock.Anything, first, map[string]bool{"1": true, "2": false}).Return(model.Results{
		"1": {{Name: "alice", Result: reward}, {Name: "bob", Result: model.OutcomeParseFailure}},
		"2": {{Name: "carol", Result: model.OutcomeAlreadyDone}},
	}, nil).Once()
	acq.On("Login", mock.Anything, mock.Anything, "bob", "pw-b").Return("", errors.New("captcha down")).Once()

	report, err := newTestRunner(store, inv, acq, activity).Run(context.Background(), Request{Source: model.SourceScheduled, Actor: model.ActorSystem})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, []string{"1", "2"}, report.UserIDs())
	require.Len(t, report.Results["1"], 2)
	assert.Equal(t, model.OutcomeRefreshFailed, report.Results["1"][1].Result)
	assert.True(t, report.Results["1"][1].NoLog)

	require.Len(t, activity.entries, 1)
	e := activity.entries[0]
	assert.Equal(t, "1", e.UserID)
	assert.Equal(t, "alice", e.Name)
	assert.Equal(t, model.SourceScheduled, e.Source)
	assert.Equal(t, model.ActorSystem, e.Actor)
	assert.Equal(t, report.RunID, e.RunID)
	inv.AssertExpectations(t)
	acq.AssertExpectations(t)
}

func TestRunRefreshedResultIsLogged(t *testing.T) {
	store := &memStore{data: testData()}
	inv, acq := new(MockInvoker), new(MockAcquirer)
	activity := &memLog{}

	inv.On("Checkin", mock.Anything, model.Targets{"2": {"carol": "old-c"}}, mock.Anything).
		Return(model.Results{"2": {{Name: "carol", Result: model.OutcomeParseFailure}}}, nil).Once()
	acq.On("Login", mock.Anything, mock.Anything, "carol", "pw-c").Return("fresh", nil).Once()
	inv.On("Checkin", mock.Anything, model.Targets{"2": {"carol": "fresh"}}, mock.Anything).
		Return(model.Results{"2": {{Name: "carol", Result: reward}}}, nil).Once()

	report, err := newTestRunner(store, inv, acq, activity).Run(context.Background(),
		Request{UserIDs: []string{"2"}, Source: model.SourceManual, Actor: model.ActorUser})
	require.NoError(t, err)
	assert.True(t, report.Results["2"][0].CookieRefreshed)
	require.Len(t, activity.entries, 1)
	assert.True(t, activity.entries[0].CookieRefreshed)
	assert.Equal(t, model.SourceManual, activity.entries[0].Source)
}

func TestRunFiltersAccount(t *testing.T) {
	store := &memStore{data: testData()}
	inv, acq := new(MockInvoker), new(MockAcquirer)
	inv.On("Checkin", mock.Anything, model.Targets{"1": {"bob": "old-b"}}, map[string]bool{"1": true}).
		Return(model.Results{"1": {{Name: "bob", Result: model.OutcomeAlreadyDone}}}, nil).Once()

	report, err := newTestRunner(store, inv, acq, &memLog{}).Run(context.Background(),
		Request{UserIDs: []string{"1"}, Account: "bob", Source: model.SourceManual, Actor: model.ActorAdmin})
	require.NoError(t, err)
	assert.Len(t, report.Results["1"], 1)
	inv.AssertExpectations(t)
}

func TestRunNoTargets(t *testing.T) {
	store := &memStore{data: testData()}
	inv, acq := new(MockInvoker), new(MockAcquirer)
	r := newTestRunner(store, inv, acq, &memLog{})

	_, err := r.Run(context.Background(), Request{UserIDs: []string{"3"}})
	assert.ErrorIs(t, err, ErrNoTargets)
	_, err = r.Run(context.Background(), Request{UserIDs: []string{"1"}, Account: "ghost"})
	assert.ErrorIs(t, err, ErrNoTargets)
}

func TestRunInvokerFailureIsTotal(t *testing.T) {
	store := &memStore{data: testData()}
	inv, acq := new(MockInvoker), new(MockAcquirer)
	activity := &memLog{}
	inv.On("Checkin", mock.Anything, mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded).Once()

	report, err := newTestRunner(store, inv, acq, activity).Run(context.Background(), Request{Source: model.SourceScheduled})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, activity.entries)
	acq.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestStats(t *testing.T) {
	data := testData()
	acc := data.Users["1"].Accounts["bob"]
	acc.Cookie = ""
	data.Users["1"].Accounts["bob"] = acc
	store := &memStore{data: data}
	inv, acq := new(MockInvoker), new(MockAcquirer)
	inv.On("Stats", mock.Anything, model.Targets{"1": {"alice": "old-a"}}, 7).
		Return(model.Results{"1": {{Name: "alice", Result: model.StatsQueryOK}}}, nil).Once()

	r := newTestRunner(store, inv, acq, &memLog{})
	results, err := r.Stats(context.Background(), "1", "", 7)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.StatsQueryOK, results[0].Result)

	_, err = r.Stats(context.Background(), "1", "bob", 7)
	assert.ErrorIs(t, err, ErrNoCookies)
	_, err = r.Stats(context.Background(), "9", "", 7)
	assert.ErrorIs(t, err, ErrNoTargets)
	inv.AssertExpectations(t)
}

func TestClassify(t *testing.T) {
	assert.Equal(t, outcomeReward, classify(model.CheckinResult{Result: reward}))
	assert.Equal(t, outcomeAlready, classify(model.CheckinResult{Result: model.OutcomeAlreadyDone}))
	assert.Equal(t, outcomeBlocked, classify(model.CheckinResult{Result: model.OutcomeBlocked}))
	assert.Equal(t, outcomeInvalidSession, classify(model.CheckinResult{Result: model.OutcomeParseFailure}))
	assert.Equal(t, outcomeRefreshFailed, classify(model.CheckinResult{}.Marker(model.OutcomeRefreshFailed)))
	assert.Equal(t, outcomeFailed, classify(model.CheckinResult{Result: model.OutcomeFailedPrefix + "x"}))
}

func TestRunSkipsUserAfterAdminDeletesLastAccount(t *testing.T) {
	store := credstore.New(filepath.Join(t.TempDir(), "data.json"))
	_, err := store.AddAccount("1", "u1", model.Account{Username: "alice", Password: "pw-a", Cookie: "c-a"})
	require.NoError(t, err)
	_, err = store.AddAccount("2", "u2", model.Account{Username: "carol", Password: "pw-c", Cookie: "c-c"})
	require.NoError(t, err)

	uid, userRemoved, err := store.DeleteAccountAnywhere("carol")
	require.NoError(t, err)
	assert.Equal(t, "2", uid)
	assert.True(t, userRemoved)

	inv, acq := new(MockInvoker), new(MockAcquirer)
	inv.On("Checkin", mock.Anything, model.Targets{"1": {"alice": "c-a"}}, mock.Anything).
		Return(model.Results{"1": {{Name: "alice", Result: reward}}}, nil).Once()

	r := NewRunner(RunnerOptions{
		Store:          store,
		Invoker:        inv,
		Refresher:      NewRefresher(inv, acq, store, time.Second),
		Activity:       &memLog{},
		CheckinTimeout: time.Second,
		StatsTimeout:   time.Second,
	})
	rep, err := r.Run(context.Background(), Request{Source: model.SourceScheduled, Actor: model.ActorSystem})
	require.NoError(t, err)

	assert.Equal(t, []string{"1"}, rep.UserIDs())
	assert.NotContains(t, rep.Results, "2")
	inv.AssertExpectations(t)
	acq.AssertNotCalled(t, "Login", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
