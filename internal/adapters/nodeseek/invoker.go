package nodeseek

import (
	"context"
	"sort"
	"sync"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
)

// Native runs check-in and statistics in process. Users run concurrently,
// each user's accounts in name order.
type Native struct {
	Attendance *Attendance
	Credit     *Credit
}

func (n *Native) Checkin(ctx context.Context, targets model.Targets, modes map[string]bool) (model.Results, error) {
	return n.each(ctx, targets, func(s *model.Session, name, cookie string) model.CheckinResult {
		return n.Attendance.Sign(ctx, s, name, cookie, modes[s.UserID])
	})
}

func (n *Native) Stats(ctx context.Context, targets model.Targets, days int) (model.Results, error) {
	return n.each(ctx, targets, func(s *model.Session, name, cookie string) model.CheckinResult {
		return n.Credit.Stats(ctx, s, name, cookie, days)
	})
}

func (n *Native) each(ctx context.Context, targets model.Targets, fn func(*model.Session, string, string) model.CheckinResult) (model.Results, error) {
	results := make(model.Results, len(targets))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for uid, accounts := range targets {
		wg.Add(1)
		go func(uid string, accounts map[string]string) {
			defer wg.Done()
			session := &model.Session{UserID: uid}
			names := make([]string, 0, len(accounts))
			for name := range accounts {
				names = append(names, name)
			}
			sort.Strings(names)

			out := make([]model.CheckinResult, 0, len(names))
			for _, name := range names {
				out = append(out, fn(session.ForAccount(name), name, accounts[name]))
			}
			mu.Lock()
			results[uid] = out
			mu.Unlock()
		}(uid, accounts)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
