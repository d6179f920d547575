package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/metrics"
	"github.com/ohmynofan/nodeseek-checkin-bot/pkg/utils"
)

// Refresher repairs check-ins that failed because the session cookie
// expired: log in again once, persist the new cookie, retry once.
type Refresher struct {
	invoker      Invoker
	acquirer     Acquirer
	store        CredentialStore
	retryTimeout time.Duration
	log          *logger.ClassLogger
}

func NewRefresher(invoker Invoker, acquirer Acquirer, store CredentialStore, retryTimeout time.Duration) *Refresher {
	r := &Refresher{invoker: invoker, acquirer: acquirer, store: store, retryTimeout: retryTimeout}
	r.log = logger.NewLogger(r, nil)
	return r
}

// Reconcile returns res unchanged unless it carries the invalid-session
// signature. Otherwise the result is either the retry outcome flagged
// CookieRefreshed, or a NoLog marker describing where the repair stopped.
func (r *Refresher) Reconcile(ctx context.Context, session *model.Session, account model.Account, res model.CheckinResult, mode bool) model.CheckinResult {
	if !res.IsInvalidSession() {
		return res
	}
	log := r.log.With(session)
	uid, name := session.UserID, res.Name
	log.Warn(fmt.Sprintf("Cookie for %s looks invalid, refreshing...", name))

	cookie, err := r.acquirer.Login(ctx, session, account.Username, account.Password)
	if err != nil {
		handleRefreshError(log, err)
		metrics.SessionRefresh.WithLabelValues("login_failed").Inc()
		return res.Marker(model.OutcomeRefreshFailed)
	}

	if err := r.store.SetCookie(uid, name, cookie); err != nil {
		log.Error(fmt.Sprintf("Could not persist refreshed cookie: %v", err))
	} else {
		log.JustLog(fmt.Sprintf("Stored refreshed cookie %s", utils.MaskSecret(cookie)))
	}

	retryCtx, cancel := withTimeout(ctx, r.retryTimeout)
	defer cancel()
	results, err := r.invoker.Checkin(retryCtx,
		model.Targets{uid: {name: cookie}},
		map[string]bool{uid: mode})
	if err != nil {
		log.Error(fmt.Sprintf("Retry after refresh failed: %v", err))
		metrics.SessionRefresh.WithLabelValues("retry_failed").Inc()
		return res.Marker(model.OutcomeRetryFailed)
	}
	retried := results[uid]
	if len(retried) == 0 {
		log.Error("Retry after refresh returned no result")
		metrics.SessionRefresh.WithLabelValues("retry_failed").Inc()
		return res.Marker(model.OutcomeRetryError)
	}

	out := retried[0]
	if out.Name == "" {
		out.Name = name
	}
	out.CookieRefreshed = true
	out.NoLog = false
	metrics.SessionRefresh.WithLabelValues("ok").Inc()
	log.Success(fmt.Sprintf("%s after refresh: %s", name, out.Result))
	return out
}
