package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Solver turns a Turnstile site key and page into a response token.
type Solver interface {
	Name() string
	SolveTurnstile(ctx context.Context, siteKey, pageURL string) (string, error)
}

// PollConfig bounds the getTaskResult loop: a fixed wait between polls and a
// maximum number of polls. There is no backoff growth.
type PollConfig struct {
	Interval time.Duration
	MaxPolls int
}

var DefaultPoll = PollConfig{Interval: 6 * time.Second, MaxPolls: 20}

func (p PollConfig) normalized() PollConfig {
	if p.Interval <= 0 {
		p.Interval = DefaultPoll.Interval
	}
	if p.MaxPolls <= 0 {
		p.MaxPolls = DefaultPoll.MaxPolls
	}
	return p
}

// pollFunc performs one getTaskResult call. done=false means not ready yet;
// a non-nil error is terminal.
type pollFunc func(ctx context.Context) (token string, done bool, err error)

func pollForToken(ctx context.Context, cfg PollConfig, provider string, poll pollFunc) (string, error) {
	cfg = cfg.normalized()
	timer := time.NewTimer(cfg.Interval)
	defer timer.Stop()

	for attempt := 1; attempt <= cfg.MaxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}

		token, done, err := poll(ctx)
		if err != nil {
			return "", err
		}
		if done {
			token = strings.TrimSpace(token)
			if token == "" {
				return "", fmt.Errorf("%s: %w", provider, ErrEmptyToken)
			}
			return token, nil
		}
		timer.Reset(cfg.Interval)
	}
	return "", fmt.Errorf("%s after %d polls: %w", provider, cfg.MaxPolls, ErrPollExhausted)
}

func isTerminalStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ready", "completed":
		return true
	}
	return false
}

// taskID accepts both numeric and string task ids and echoes them back in
// the same JSON form.
type taskID json.RawMessage

func (t *taskID) UnmarshalJSON(b []byte) error {
	*t = append((*t)[:0], b...)
	return nil
}

func (t taskID) MarshalJSON() ([]byte, error) {
	if len(t) == 0 {
		return []byte("null"), nil
	}
	return []byte(t), nil
}

func (t taskID) Empty() bool {
	s := strings.TrimSpace(string(t))
	return s == "" || s == "null" || s == `""` || s == "0"
}

func validateInput(provider, apiKey, siteKey, pageURL string) error {
	if strings.TrimSpace(apiKey) == "" {
		return fmt.Errorf("%s api key not provided", provider)
	}
	if strings.TrimSpace(siteKey) == "" {
		return fmt.Errorf("%s site key required", provider)
	}
	if strings.TrimSpace(pageURL) == "" {
		return fmt.Errorf("%s page url required", provider)
	}
	return nil
}

var errNotConfigured = errors.New("captcha solver not configured")
