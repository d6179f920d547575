package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	BotToken string `log:"secret"`
	AdminIDs []int64

	DataFile     string
	ActivityDB   string
	LogRetention int
	LogFile      string

	Timezone    string
	SummaryHour int
	SummaryMin  int
	JitterMax   time.Duration

	CaptchaBaseURL   string
	CaptchaClientKey string `log:"secret"`
	CapSolverAPIKey  string `log:"secret"`
	TwoCaptchaAPIKey string `log:"secret"`
	CaptchaPoll      time.Duration
	CaptchaMaxPolls  int
	CaptchaTimeout   time.Duration

	FlareSolverrURL string
	BrowserProfile  string
	FallbackProfile string
	ProxyURL        string `log:"secret"`
	SiteBaseURL     string

	NodeBin     string
	SignScript  string
	StatsScript string

	CheckinTimeout time.Duration
	RetryTimeout   time.Duration
	StatsTimeout   time.Duration
	LoginTimeout   time.Duration
	LoginPerMinute int

	MetricsAddr string
	SentryDSN   string `log:"secret"`
	AppEnv      string
	Debug       bool
	ReplyURL    string
}

func Load() Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found, using default values")
	}

	summaryHour, summaryMin, err := ParseClock(envOr("SUMMARY_TIME", "10:05"))
	if err != nil {
		log.Printf("Invalid SUMMARY_TIME (%v), using 10:05", err)
		summaryHour, summaryMin = 10, 5
	}

	cfg := Config{
		BotToken: strings.TrimSpace(os.Getenv("TG_BOT_TOKEN")),
		AdminIDs: parseIDList(os.Getenv("ADMIN_IDS")),

		DataFile:     envOr("DATA_FILE", "data.json"),
		ActivityDB:   envOr("ACTIVITY_DB", "data/activity.db"),
		LogRetention: parseIntWithDefault(os.Getenv("LOG_RETENTION"), 30),
		LogFile:      envOr("LOG_FILE", "logs/app.log"),

		Timezone:    envOr("TIMEZONE", "Asia/Shanghai"),
		SummaryHour: summaryHour,
		SummaryMin:  summaryMin,
		JitterMax:   parseDurationWithDefault(os.Getenv("JITTER_MAX"), 5*time.Minute),

		CaptchaBaseURL:   strings.TrimRight(strings.TrimSpace(os.Getenv("API_BASE_URL")), "/"),
		CaptchaClientKey: strings.TrimSpace(os.Getenv("CLIENT_KEY")),
		CapSolverAPIKey:  strings.TrimSpace(os.Getenv("CAPSOLVER_API_KEY")),
		TwoCaptchaAPIKey: strings.TrimSpace(os.Getenv("TWO_CAPTCHA_API_KEY")),
		CaptchaPoll:      parseDurationWithDefault(os.Getenv("CAPTCHA_POLL_INTERVAL"), 6*time.Second),
		CaptchaMaxPolls:  parseIntWithDefault(os.Getenv("CAPTCHA_MAX_POLLS"), 20),

		FlareSolverrURL: strings.TrimSpace(os.Getenv("FLARESOLVERR_URL")),
		BrowserProfile:  envOr("BROWSER_PROFILE", "chrome_124"),
		FallbackProfile: envOr("BROWSER_FALLBACK_PROFILE", "chrome_120"),
		ProxyURL:        strings.TrimSpace(os.Getenv("PROXY_URL")),
		SiteBaseURL:     strings.TrimRight(strings.TrimSpace(os.Getenv("SITE_BASE_URL")), "/"),

		NodeBin:     envOr("NODE_BIN", "node"),
		SignScript:  strings.TrimSpace(os.Getenv("SIGN_SCRIPT")),
		StatsScript: strings.TrimSpace(os.Getenv("STATS_SCRIPT")),

		CheckinTimeout: parseDurationWithDefault(os.Getenv("CHECKIN_TIMEOUT"), 120*time.Second),
		RetryTimeout:   parseDurationWithDefault(os.Getenv("RETRY_TIMEOUT"), 60*time.Second),
		StatsTimeout:   parseDurationWithDefault(os.Getenv("STATS_TIMEOUT"), 60*time.Second),
		LoginTimeout:   parseDurationWithDefault(os.Getenv("LOGIN_TIMEOUT"), 90*time.Second),
		LoginPerMinute: parseIntWithDefault(os.Getenv("LOGIN_RATE"), 6),

		MetricsAddr: strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		SentryDSN:   strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		AppEnv:      envOr("APP_ENV", "production"),
		Debug:       parseBool(os.Getenv("DEBUG")),
		ReplyURL:    strings.TrimSpace(os.Getenv("REPLY_URL")),
	}
	// one provider attempt covers its full poll budget plus the createTask call
	cfg.CaptchaTimeout = parseDurationWithDefault(os.Getenv("CAPTCHA_TIMEOUT"),
		cfg.CaptchaPoll*time.Duration(cfg.CaptchaMaxPolls)+15*time.Second)
	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseIntWithDefault(value string, defaultVal int) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultVal
	}
	if v, err := strconv.Atoi(value); err == nil && v >= 0 {
		return v
	}
	return defaultVal
}

func parseDurationWithDefault(value string, defaultVal time.Duration) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(value); err == nil && d >= 0 {
		return d
	}
	// bare numbers are seconds
	if v, err := strconv.Atoi(value); err == nil && v >= 0 {
		return time.Duration(v) * time.Second
	}
	return defaultVal
}

func parseBool(value string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	return err == nil && b
}

func parseIDList(value string) []int64 {
	var ids []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			log.Printf("Ignoring invalid admin id %q", part)
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// ParseClock parses "H:MM" (or a bare hour) into hour and minute.
func ParseClock(value string) (int, int, error) {
	value = strings.TrimSpace(value)
	hourPart, minutePart, hasMinute := strings.Cut(value, ":")
	hour, err := strconv.Atoi(strings.TrimSpace(hourPart))
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour %q", hourPart)
	}
	minute := 0
	if hasMinute {
		minute, err = strconv.Atoi(strings.TrimSpace(minutePart))
		if err != nil {
			return 0, 0, fmt.Errorf("invalid minute %q", minutePart)
		}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time out of range: %s", value)
	}
	return hour, minute, nil
}

func (c Config) Validate() error {
	if c.BotToken == "" {
		return errors.New("telegram bot token required (provide TG_BOT_TOKEN)")
	}
	if !c.HasCaptchaSolver() {
		return errors.New("captcha solver required (provide API_BASE_URL and CLIENT_KEY, CAPSOLVER_API_KEY or TWO_CAPTCHA_API_KEY)")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if c.CaptchaMaxPolls <= 0 {
		return errors.New("CAPTCHA_MAX_POLLS must be positive")
	}
	return nil
}

func (c Config) HasCaptchaSolver() bool {
	generic := c.CaptchaBaseURL != "" && c.CaptchaClientKey != ""
	return generic || c.CapSolverAPIKey != "" || c.TwoCaptchaAPIKey != ""
}

func (c Config) IsAdmin(id int64) bool {
	for _, admin := range c.AdminIDs {
		if admin == id {
			return true
		}
	}
	return false
}

// Site returns the forum endpoints, rebased when SITE_BASE_URL is set.
func (c Config) Site() Site {
	return NodeSeek.WithBaseURL(c.SiteBaseURL)
}

func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}
