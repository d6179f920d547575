package nodeseek

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	adhttp "github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/http"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/config"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/pkg/utils"
)

const (
	defaultAttempts = 3
	defaultPause    = 500 * time.Millisecond
	timeLayout      = "2006-01-02 15:04:05"
)

var amountPattern = regexp.MustCompile(`\d+`)

type attendanceQuery struct {
	Random bool `url:"random"`
}

// Attendance performs the daily check-in call for one cookie.
type Attendance struct {
	site       config.Site
	newBrowser BrowserFactory
	loc        *time.Location
	attempts   int
	pause      time.Duration
	now        func() time.Time
	log        *logger.ClassLogger
}

func NewAttendance(site config.Site, newBrowser BrowserFactory, loc *time.Location) *Attendance {
	if loc == nil {
		loc = time.UTC
	}
	a := &Attendance{
		site:       site,
		newBrowser: newBrowser,
		loc:        loc,
		attempts:   defaultAttempts,
		pause:      defaultPause,
		now:        time.Now,
	}
	a.log = logger.NewLogger(a, nil)
	return a
}

// Sign checks in once, retrying failed attempts. A 403 or a definite answer
// ends the loop; otherwise the last failure is returned.
func (a *Attendance) Sign(ctx context.Context, session *model.Session, name, cookie string, random bool) model.CheckinResult {
	log := a.log.With(session)
	query, err := utils.EncodeURLParams(attendanceQuery{Random: random})
	if err != nil {
		return a.result(name, model.OutcomeRequestErrorPrefix+err.Error())
	}
	endpoint := a.site.AttendanceAPI + "?" + query
	log.JustLog(fmt.Sprintf("Check-in %s with cookie %s, random=%v", name, utils.MaskSecret(cookie), random))

	browser, err := a.newBrowser(session)
	if err != nil {
		return a.result(name, model.OutcomeRequestErrorPrefix+err.Error())
	}

	last := a.result(name, model.OutcomeUnknown)
	for attempt := 1; attempt <= a.attempts; attempt++ {
		outcome, final := a.attempt(ctx, browser, endpoint, cookie)
		last = a.result(name, outcome)
		if final {
			log.Log(fmt.Sprintf("%s: %s", name, outcome))
			return last
		}
		log.Warn(fmt.Sprintf("%s attempt %d/%d: %s", name, attempt, a.attempts, outcome))

		if attempt < a.attempts {
			select {
			case <-ctx.Done():
				return a.result(name, model.OutcomeRequestErrorPrefix+ctx.Err().Error())
			case <-time.After(a.pause):
			}
		}
	}
	return last
}

func (a *Attendance) attempt(ctx context.Context, browser Browser, endpoint, cookie string) (string, bool) {
	resp, err := browser.Fetch(ctx, endpoint, &adhttp.FetchOptions{
		Method:  "POST",
		RawBody: []byte{},
		Cookie:  cookie,
		Origin:  a.site.BaseURL,
		Referer: a.site.BoardPage,
	})
	if resp == nil {
		return model.OutcomeRequestErrorPrefix + err.Error(), false
	}

	var body apiResponse
	if err := resp.JSON(&body); err != nil {
		return model.OutcomeParseFailure, false
	}
	if resp.StatusCode == 403 {
		return model.OutcomeBlocked, true
	}
	if body.Success {
		amount := amountPattern.FindString(body.Message)
		if amount == "" {
			amount = "未知"
		}
		return fmt.Sprintf(model.OutcomeRewardFormat, amount), true
	}
	lower := strings.ToLower(body.Message)
	if strings.Contains(lower, "重复") || strings.Contains(lower, "already") {
		return model.OutcomeAlreadyDone, true
	}
	msg := body.Message
	if msg == "" {
		msg = "未知错误"
	}
	return model.OutcomeFailedPrefix + msg, false
}

func (a *Attendance) result(name, outcome string) model.CheckinResult {
	return model.CheckinResult{Name: name, Result: outcome, Time: a.now().In(a.loc).Format(timeLayout)}
}
