package nodeseek

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	adhttp "github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/http"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/config"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/pkg/utils"
)

const maxCreditPages = 20

type creditPage struct {
	Success bool                `json:"success"`
	Data    [][]json.RawMessage `json:"data"`
}

type creditRecord struct {
	Amount      float64
	Description string
	Time        time.Time
}

// Credit pages through the account's credit history and summarizes the
// check-in rewards inside a window of days.
type Credit struct {
	site       config.Site
	newBrowser BrowserFactory
	loc        *time.Location
	now        func() time.Time
	log        *logger.ClassLogger
}

func NewCredit(site config.Site, newBrowser BrowserFactory, loc *time.Location) *Credit {
	if loc == nil {
		loc = time.UTC
	}
	c := &Credit{site: site, newBrowser: newBrowser, loc: loc, now: time.Now}
	c.log = logger.NewLogger(c, nil)
	return c
}

func (c *Credit) Stats(ctx context.Context, session *model.Session, name, cookie string, days int) model.CheckinResult {
	log := c.log.With(session)
	if days <= 0 {
		days = 30
	}
	log.JustLog(fmt.Sprintf("Credit stats for %s over %d days, cookie %s", name, days, utils.MaskSecret(cookie)))

	browser, err := c.newBrowser(session)
	if err != nil {
		return model.CheckinResult{Name: name, Result: model.StatsErrorPrefix + err.Error()}
	}
	opts := &adhttp.FetchOptions{Cookie: cookie, Origin: c.site.BaseURL, Referer: c.site.BoardPage}
	if _, err := browser.Fetch(ctx, c.site.BoardPage, opts); err != nil {
		log.Warn(fmt.Sprintf("Visiting board for %s failed: %v", name, err))
	}

	cutoff := c.now().In(c.loc).AddDate(0, 0, -days)
	var kept []creditRecord
	for page := 1; page <= maxCreditPages; page++ {
		records, ok := c.fetchPage(ctx, browser, page, opts)
		if !ok || len(records) == 0 {
			break
		}
		for _, r := range records {
			if !r.Time.Before(cutoff) {
				kept = append(kept, r)
			}
		}
		if records[len(records)-1].Time.Before(cutoff) {
			break
		}
	}

	return summarize(name, days, kept, c.loc)
}

func (c *Credit) fetchPage(ctx context.Context, browser Browser, page int, opts *adhttp.FetchOptions) ([]creditRecord, bool) {
	endpoint := fmt.Sprintf("%s/page-%d", c.site.CreditAPI, page)
	resp, err := browser.Fetch(ctx, endpoint, opts)
	if resp == nil {
		c.log.Warn(fmt.Sprintf("Credit page %d request failed: %v", page, err))
		return nil, false
	}
	var body creditPage
	if err := resp.JSON(&body); err != nil {
		c.log.Warn(fmt.Sprintf("Credit page %d unreadable: %v", page, err))
		return nil, false
	}
	if !body.Success || body.Data == nil {
		return nil, false
	}

	records := make([]creditRecord, 0, len(body.Data))
	for _, raw := range body.Data {
		rec, err := parseCreditRecord(raw)
		if err != nil {
			c.log.JustLog(fmt.Sprintf("Skipping credit record: %v", err))
			continue
		}
		records = append(records, rec)
	}
	return records, true
}

// parseCreditRecord reads [amount, balance, description, timestamp].
func parseCreditRecord(raw []json.RawMessage) (creditRecord, error) {
	var rec creditRecord
	if len(raw) < 4 {
		return rec, fmt.Errorf("short record: %d fields", len(raw))
	}
	if err := json.Unmarshal(raw[0], &rec.Amount); err != nil {
		return rec, fmt.Errorf("amount: %w", err)
	}
	if err := json.Unmarshal(raw[2], &rec.Description); err != nil {
		return rec, fmt.Errorf("description: %w", err)
	}
	t, err := parseTimestamp(raw[3])
	if err != nil {
		return rec, err
	}
	rec.Time = t
	return rec, nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms), nil
		}
		return time.Time{}, fmt.Errorf("timestamp %q not understood", s)
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	return time.UnixMilli(int64(ms)), nil
}

func summarize(name string, days int, records []creditRecord, loc *time.Location) model.CheckinResult {
	stats := &model.Stats{Average: "0", Records: []model.StatsRecord{}}
	for _, r := range records {
		if !strings.Contains(r.Description, model.StatsRewardMarker) || !strings.Contains(r.Description, model.StatsRewardItem) {
			continue
		}
		stats.TotalAmount += r.Amount
		stats.Records = append(stats.Records, model.StatsRecord{
			Amount:      r.Amount,
			Date:        r.Time.In(loc).Format("2006-01-02"),
			Description: r.Description,
		})
	}
	stats.DaysCount = len(stats.Records)
	if stats.DaysCount == 0 {
		stats.TotalAmount = 0
		return model.CheckinResult{Name: name, Result: fmt.Sprintf(model.StatsEmptyFormat, days), Stats: stats}
	}
	stats.Average = json.Number(strconv.FormatFloat(stats.TotalAmount/float64(stats.DaysCount), 'f', 2, 64))
	return model.CheckinResult{Name: name, Result: model.StatsQueryOK, Stats: stats}
}
