package captcha

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/metrics"
)

type chainEntry struct {
	solver   Solver
	disabled atomic.Bool
}

// Chain tries solvers in order. A solver that reports zero balance is
// disabled for the rest of the process lifetime. With an attempt timeout set,
// a solver that runs out of time hands over to the next one.
type Chain struct {
	entries []*chainEntry
	attempt time.Duration
	log     *logger.ClassLogger
}

func NewChain(solvers ...Solver) *Chain {
	c := &Chain{}
	for _, s := range solvers {
		if s != nil {
			c.entries = append(c.entries, &chainEntry{solver: s})
		}
	}
	c.log = logger.NewLogger(c, nil)
	return c
}

func (c *Chain) Name() string { return "chain" }

// WithAttemptTimeout bounds each solver attempt.
func (c *Chain) WithAttemptTimeout(d time.Duration) *Chain {
	c.attempt = d
	return c
}

func (c *Chain) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.attempt <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.attempt)
}

func (c *Chain) Len() int { return len(c.entries) }

func (c *Chain) SolveTurnstile(ctx context.Context, siteKey, pageURL string) (string, error) {
	if len(c.entries) == 0 {
		return "", errNotConfigured
	}

	var lastErr error
	available := 0
	for _, entry := range c.entries {
		if entry.disabled.Load() {
			continue
		}
		available++

		name := entry.solver.Name()
		started := time.Now()
		attemptCtx, cancel := c.attemptContext(ctx)
		token, err := entry.solver.SolveTurnstile(attemptCtx, siteKey, pageURL)
		cancel()
		metrics.ObserveCaptcha(name, started, err)
		if err == nil {
			c.log.JustLog(fmt.Sprintf("Received Turnstile token from %s in %s", name, time.Since(started).Round(time.Second)))
			return token, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if errors.Is(err, ErrZeroBalance) {
			c.log.Warn(fmt.Sprintf("%s reports zero balance, disabling it", name))
			entry.disabled.Store(true)
			available--
			continue
		}
		c.log.Warn(fmt.Sprintf("%s failed: %v, falling back to next solver", name, err))
		lastErr = err
	}

	if available == 0 {
		return "", ErrNoCredit
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", errors.New("unable to fetch captcha token")
}
