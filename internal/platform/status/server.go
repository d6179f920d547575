package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/metrics"
)

const shutdownTimeout = 5 * time.Second

// Server exposes liveness, prometheus metrics and the armed timers.
type Server struct {
	srv     *http.Server
	started time.Time
	jobs    func() interface{}
	log     *logger.ClassLogger
}

// New builds the server. jobs may be nil.
func New(addr string, jobs func() interface{}) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{started: time.Now(), jobs: jobs}
	s.log = logger.NewLogger(s, nil)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), metrics.GinMiddleware())
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).Round(time.Second).String(),
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/jobs", func(c *gin.Context) {
		if s.jobs == nil {
			c.JSON(http.StatusOK, []interface{}{})
			return
		}
		c.JSON(http.StatusOK, s.jobs())
	})
	return r
}

// Run serves until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Log(fmt.Sprintf("Status server listening on %s", s.srv.Addr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(shutdownCtx)
}
