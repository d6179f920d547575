package main

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/getsentry/sentry-go"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/config"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/ui"
)

func main() {
	cfg := config.Load()

	if err := logger.Init(cfg.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "log file disabled: %v\n", err)
	}
	defer logger.Close()

	ui.StartUISystem("NodeSeek Check-in Bot")
	defer ui.StopUISystem()
	ui.SetDebug(cfg.Debug)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:           cfg.SentryDSN,
			Environment:   cfg.AppEnv,
			EnableTracing: false,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "sentry.Init: %v\n", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	if err := app.New(cfg).Run(); err != nil {
		sentry.CaptureException(err)
		fmt.Fprintln(os.Stderr, err.Error())
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}
