package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CheckinResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeseek_checkin_results_total",
		Help: "Check-in outcomes by class",
	}, []string{"source", "outcome"})
	SessionRefresh = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeseek_session_refresh_total",
		Help: "Cookie refresh attempts after an invalid session",
	}, []string{"result"})
	CaptchaSolve = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nodeseek_captcha_solve_seconds",
		Help:    "Turnstile solve latency per provider",
		Buckets: []float64{5, 10, 20, 30, 60, 90, 120, 180},
	}, []string{"provider", "result"})
	ScheduledUsers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "nodeseek_scheduled_users",
		Help: "Users with an armed daily check-in timer",
	})
	BotUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nodeseek_bot_updates_total",
		Help: "Telegram updates processed by kind",
	}, []string{"kind"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(CheckinResults, SessionRefresh, CaptchaSolve, ScheduledUsers, BotUpdates, HttpRequestsTotal)
}

func ObserveCaptcha(provider string, started time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	CaptchaSolve.WithLabelValues(provider, result).Observe(time.Since(started).Seconds())
}

// GinMiddleware counts requests served by the status server.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		HttpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
	}
}
