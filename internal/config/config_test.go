package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TG_BOT_TOKEN", "123:abc")
	t.Setenv("ADMIN_IDS", "42, 7,bogus")
	t.Setenv("API_BASE_URL", "https://solver.example/")
	t.Setenv("CLIENT_KEY", "key")

	cfg := Load()

	assert.Equal(t, "123:abc", cfg.BotToken)
	assert.Equal(t, []int64{42, 7}, cfg.AdminIDs)
	assert.Equal(t, "https://solver.example", cfg.CaptchaBaseURL)
	assert.Equal(t, 6*time.Second, cfg.CaptchaPoll)
	assert.Equal(t, 20, cfg.CaptchaMaxPolls)
	assert.Equal(t, 5*time.Minute, cfg.JitterMax)
	assert.Equal(t, 30, cfg.LogRetention)
	assert.Equal(t, 10, cfg.SummaryHour)
	assert.Equal(t, 5, cfg.SummaryMin)
	assert.Equal(t, "Asia/Shanghai", cfg.Timezone)
	assert.Equal(t, 120*time.Second, cfg.CheckinTimeout)
	assert.Equal(t, 60*time.Second, cfg.RetryTimeout)
	assert.Equal(t, 135*time.Second, cfg.CaptchaTimeout)
	assert.Equal(t, 90*time.Second, cfg.LoginTimeout)
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsAdmin(7))
	assert.False(t, cfg.IsAdmin(8))
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("TG_BOT_TOKEN", "t")
	t.Setenv("CAPSOLVER_API_KEY", "cap")
	t.Setenv("CHECKIN_TIMEOUT", "90")
	t.Setenv("JITTER_MAX", "30s")
	t.Setenv("SUMMARY_TIME", "11:30")
	t.Setenv("DEBUG", "true")
	t.Setenv("CAPTCHA_POLL_INTERVAL", "5s")
	t.Setenv("CAPTCHA_MAX_POLLS", "10")

	cfg := Load()

	assert.Equal(t, 65*time.Second, cfg.CaptchaTimeout)

	assert.Equal(t, 90*time.Second, cfg.CheckinTimeout)
	assert.Equal(t, 30*time.Second, cfg.JitterMax)
	assert.Equal(t, 11, cfg.SummaryHour)
	assert.Equal(t, 30, cfg.SummaryMin)
	assert.True(t, cfg.Debug)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := Config{Timezone: "Asia/Shanghai", CaptchaMaxPolls: 20}
	assert.Error(t, cfg.Validate(), "missing token")

	cfg.BotToken = "t"
	assert.Error(t, cfg.Validate(), "missing solver")

	cfg.CaptchaBaseURL = "https://solver.example"
	assert.Error(t, cfg.Validate(), "base url without client key")

	cfg.CaptchaClientKey = "k"
	assert.NoError(t, cfg.Validate())

	cfg.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("7:05")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 5, m)

	h, m, err = ParseClock("8")
	require.NoError(t, err)
	assert.Equal(t, 8, h)
	assert.Equal(t, 0, m)

	for _, bad := range []string{"", "x:10", "7:y", "24:00", "7:60"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestSiteRebase(t *testing.T) {
	cfg := Config{SiteBaseURL: "http://127.0.0.1:9000"}
	site := cfg.Site()
	assert.Equal(t, "http://127.0.0.1:9000/api/attendance", site.AttendanceAPI)
	assert.Equal(t, "http://127.0.0.1:9000/signIn.html", site.LoginPage)
	assert.Equal(t, NodeSeek.TurnstileSiteKey, site.TurnstileSiteKey)

	assert.Equal(t, NodeSeek, Config{}.Site())
}
