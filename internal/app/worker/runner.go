package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/metrics"
)

// Request selects what a run covers. Empty UserIDs means every user with
// accounts; Account narrows each selected user to one account.
type Request struct {
	UserIDs []string
	Account string
	Source  model.Source
	Actor   model.Actor
}

// Report is the outcome of one run, with the user records it was based on.
type Report struct {
	RunID   string
	Results model.Results
	Users   map[string]*model.User
}

// UserIDs lists users that produced results, in id order.
func (r *Report) UserIDs() []string {
	d := model.Data{Users: map[string]*model.User{}}
	for uid := range r.Results {
		d.Users[uid] = r.Users[uid]
	}
	return d.UserIDs()
}

type RunnerOptions struct {
	Store          CredentialStore
	Invoker        Invoker
	Refresher      *Refresher
	Activity       ActivityLog
	CheckinTimeout time.Duration
	StatsTimeout   time.Duration
}

// Runner drives the check-in pipeline: credential lookup, batch check-in,
// per-account session repair and activity logging.
type Runner struct {
	store          CredentialStore
	invoker        Invoker
	refresher      *Refresher
	activity       ActivityLog
	checkinTimeout time.Duration
	statsTimeout   time.Duration
	now            func() time.Time
	log            *logger.ClassLogger
}

func NewRunner(opts RunnerOptions) *Runner {
	r := &Runner{
		store:          opts.Store,
		invoker:        opts.Invoker,
		refresher:      opts.Refresher,
		activity:       opts.Activity,
		checkinTimeout: opts.CheckinTimeout,
		statsTimeout:   opts.StatsTimeout,
		now:            time.Now,
	}
	r.log = logger.NewLogger(r, nil)
	return r
}

func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	data, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	targets, modes, users := selectTargets(data, req)
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	report := &Report{RunID: uuid.NewString(), Users: users}
	log := r.log.With(&model.Session{UserID: "*", RunID: report.RunID})
	log.Log(fmt.Sprintf("Running %s check-in for %d users", req.Source, len(targets)))

	checkCtx, cancel := withTimeout(ctx, r.checkinTimeout)
	results, err := r.invoker.Checkin(checkCtx, targets, modes)
	cancel()
	if err != nil {
		metrics.CheckinResults.WithLabelValues(string(req.Source), "invoker_error").Inc()
		log.Error(fmt.Sprintf("Check-in invocation failed: %v", err))
		return nil, fmt.Errorf("check-in failed: %w", err)
	}

	report.Results = r.reconcile(ctx, report.RunID, results, users, modes)
	r.record(report, req)
	return report, nil
}

// reconcile repairs invalid sessions. Users run in parallel, a user's
// accounts one after another.
func (r *Runner) reconcile(ctx context.Context, runID string, results model.Results, users map[string]*model.User, modes map[string]bool) model.Results {
	fixed := make(model.Results, len(results))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for uid, list := range results {
		user, ok := users[uid]
		if !ok {
			r.log.Warn(fmt.Sprintf("Ignoring results for unknown user %s", uid))
			continue
		}
		wg.Add(1)
		go func(uid string, list []model.CheckinResult, user *model.User) {
			defer wg.Done()
			session := &model.Session{UserID: uid, RunID: runID}
			out := make([]model.CheckinResult, 0, len(list))
			for _, res := range list {
				account, known := user.Accounts[res.Name]
				if known && r.refresher != nil {
					res = r.refresher.Reconcile(ctx, session.ForAccount(res.Name), account, res, modes[uid])
				}
				out = append(out, res)
			}
			mu.Lock()
			fixed[uid] = out
			mu.Unlock()
		}(uid, list, user)
	}
	wg.Wait()
	return fixed
}

func (r *Runner) record(report *Report, req Request) {
	now := r.now()
	for _, uid := range report.UserIDs() {
		for _, res := range report.Results[uid] {
			metrics.CheckinResults.WithLabelValues(string(req.Source), classify(res)).Inc()
			if !res.Loggable() || r.activity == nil {
				continue
			}
			entry := model.LogEntry{
				UserID:          uid,
				Name:            res.Name,
				Result:          res.Result,
				Source:          req.Source,
				Actor:           req.Actor,
				CookieRefreshed: res.CookieRefreshed,
				RunID:           report.RunID,
				Time:            now,
			}
			if err := r.activity.Append(entry); err != nil {
				r.log.Warn(fmt.Sprintf("Could not record activity for %s/%s: %v", uid, res.Name, err))
			}
		}
	}
}

// Stats fetches reward statistics for one user's accounts that have a
// cookie, optionally narrowed to one account.
func (r *Runner) Stats(ctx context.Context, uid, account string, days int) ([]model.CheckinResult, error) {
	data, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}
	user, ok := data.User(uid)
	if !ok || !user.HasAccounts() {
		return nil, ErrNoTargets
	}
	cookies := map[string]string{}
	for _, name := range user.AccountNames() {
		if account != "" && name != account {
			continue
		}
		if c := user.Accounts[name].Cookie; c != "" {
			cookies[name] = c
		}
	}
	if len(cookies) == 0 {
		return nil, ErrNoCookies
	}

	statsCtx, cancel := withTimeout(ctx, r.statsTimeout)
	defer cancel()
	results, err := r.invoker.Stats(statsCtx, model.Targets{uid: cookies}, days)
	if err != nil {
		return nil, fmt.Errorf("stats failed: %w", err)
	}
	return results[uid], nil
}

func selectTargets(data *model.Data, req Request) (model.Targets, map[string]bool, map[string]*model.User) {
	ids := req.UserIDs
	if len(ids) == 0 {
		ids = data.UserIDs()
	}
	targets := model.Targets{}
	modes := map[string]bool{}
	users := map[string]*model.User{}
	for _, uid := range ids {
		user, ok := data.User(uid)
		if !ok || !user.HasAccounts() {
			continue
		}
		accounts := map[string]string{}
		for name, acc := range user.Accounts {
			if req.Account != "" && name != req.Account {
				continue
			}
			accounts[name] = acc.Cookie
		}
		if len(accounts) == 0 {
			continue
		}
		targets[uid] = accounts
		modes[uid] = user.Mode
		users[uid] = user
	}
	return targets, modes, users
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
