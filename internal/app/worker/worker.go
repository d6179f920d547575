package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/captcha"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/nodeseek"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
)

// Invoker performs check-ins and statistics for a batch of cookies, either in
// process or through an external script.
type Invoker interface {
	Checkin(ctx context.Context, targets model.Targets, modes map[string]bool) (model.Results, error)
	Stats(ctx context.Context, targets model.Targets, days int) (model.Results, error)
}

// Acquirer obtains a fresh session cookie from a username and password.
type Acquirer interface {
	Login(ctx context.Context, session *model.Session, username, password string) (string, error)
}

type CredentialStore interface {
	Load() (*model.Data, error)
	SetCookie(uid, name, cookie string) error
}

type ActivityLog interface {
	Append(e model.LogEntry) error
}

var (
	ErrNoTargets = errors.New("no accounts to process")
	ErrNoCookies = errors.New("no account has a cookie")
)

const (
	outcomeReward         = "reward"
	outcomeAlready        = "already"
	outcomeBlocked        = "blocked"
	outcomeInvalidSession = "invalid_session"
	outcomeRefreshFailed  = "refresh_failed"
	outcomeFailed         = "failed"
)

// classify maps an outcome text to a low-cardinality metrics label.
func classify(r model.CheckinResult) string {
	switch {
	case r.Earned():
		return outcomeReward
	case r.Result == model.OutcomeAlreadyDone:
		return outcomeAlready
	case r.Result == model.OutcomeBlocked:
		return outcomeBlocked
	case r.IsInvalidSession():
		return outcomeInvalidSession
	case r.NoLog:
		return outcomeRefreshFailed
	default:
		return outcomeFailed
	}
}

// handleRefreshError logs a failed login. Running out of captcha credit is
// reported as fatal because no later refresh can succeed either.
func handleRefreshError(log *logger.ClassLogger, err error) {
	errMsg := err.Error()
	fatal := []error{captcha.ErrNoCredit, captcha.ErrZeroBalance}
	for _, target := range fatal {
		if errors.Is(err, target) {
			log.Error("FATAL: " + errMsg + ". Cookie refresh is unavailable until solver credit is topped up.")
			return
		}
	}
	if errors.Is(err, nodeseek.ErrLoginRejected) && strings.Contains(strings.ToLower(errMsg), "password") {
		log.Error("Login rejected, the stored password looks wrong: " + errMsg)
		return
	}
	log.Error("Cookie refresh failed: " + errMsg)
}
