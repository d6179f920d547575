package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mymmrac/telego"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/captcha"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/flaresolverr"
	adhttp "github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/http"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/nodeseek"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/telegram"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/bot"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/scheduler"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/worker"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/config"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/logger"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/platform/status"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/storage/credstore"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/storage/signlog"
)

type App struct {
	cfg config.Config
	log *logger.ClassLogger
}

func New(cfg config.Config) *App {
	return &App{cfg: cfg, log: logger.NewNamed("App", nil)}
}

// newSolver chains every configured Turnstile provider, the generic service
// first.
func newSolver(cfg config.Config) *captcha.Chain {
	poll := captcha.PollConfig{Interval: cfg.CaptchaPoll, MaxPolls: cfg.CaptchaMaxPolls}
	var solvers []captcha.Solver
	if cfg.CaptchaBaseURL != "" && cfg.CaptchaClientKey != "" {
		solvers = append(solvers, captcha.NewTurnstile(cfg.CaptchaBaseURL, cfg.CaptchaClientKey, poll))
	}
	if cfg.CapSolverAPIKey != "" {
		solvers = append(solvers, captcha.NewCapSolver(cfg.CapSolverAPIKey, poll))
	}
	if cfg.TwoCaptchaAPIKey != "" {
		solvers = append(solvers, captcha.NewTwoCaptcha(cfg.TwoCaptchaAPIKey, poll))
	}
	return captcha.NewChain(solvers...).WithAttemptTimeout(cfg.CaptchaTimeout)
}

func (app *App) Run() error {
	cfg := app.cfg
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app.log.LogObject("Configuration", cfg)
	loc := cfg.Location()
	site := cfg.Site()

	credentials := credstore.New(cfg.DataFile)
	if _, err := credentials.Load(); err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	activity, err := signlog.NewStore(cfg.ActivityDB, cfg.LogRetention, loc)
	if err != nil {
		return fmt.Errorf("open activity log: %w", err)
	}
	defer activity.Close()

	browsers := nodeseek.NewBrowserFactory(adhttp.Options{
		Profile:         cfg.BrowserProfile,
		FallbackProfile: cfg.FallbackProfile,
		Proxy:           cfg.ProxyURL,
	})
	solver := newSolver(cfg)
	acquirer := nodeseek.NewAcquirer(nodeseek.AcquirerOptions{
		Site:       site,
		Solver:     solver,
		Flare:      flaresolverr.New(cfg.FlareSolverrURL),
		NewBrowser: browsers,
		PerMinute:  cfg.LoginPerMinute,
		Timeout:    cfg.LoginTimeout,
	})
	native := &nodeseek.Native{
		Attendance: nodeseek.NewAttendance(site, browsers, loc),
		Credit:     nodeseek.NewCredit(site, browsers, loc),
	}
	invoker, mode := selectInvoker(cfg, native)
	app.log.Log(fmt.Sprintf("Invoker: %s, captcha providers: %d", mode, solver.Len()))

	runner := worker.NewRunner(worker.RunnerOptions{
		Store:          credentials,
		Invoker:        invoker,
		Refresher:      worker.NewRefresher(invoker, acquirer, credentials, cfg.RetryTimeout),
		Activity:       activity,
		CheckinTimeout: cfg.CheckinTimeout,
		StatsTimeout:   cfg.StatsTimeout,
	})

	var tg *telego.Bot
	if cfg.Debug {
		tg, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		tg, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		return fmt.Errorf("create telegram bot: %w", err)
	}
	me, err := tg.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	app.log.Success(fmt.Sprintf("Authorized as @%s", me.Username))

	// the scheduler fires into the bot, which in turn re-arms timers
	var chatBot *bot.Bot
	sched := scheduler.New(ctx, scheduler.Options{
		Location:  loc,
		JitterMax: cfg.JitterMax,
		UserJob: func(ctx context.Context, uid string) {
			chatBot.DailyCheck(ctx, uid)
		},
		SummaryJob: func(ctx context.Context) {
			chatBot.DailySummary(ctx)
		},
	})
	defer sched.Stop()

	updates, err := tg.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		AllowedUpdates: []string{"message", "callback_query"},
	})
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	chatBot, err = bot.New(bot.Options{
		Messenger: telegram.NewMessenger(tg, cfg.AdminIDs),
		Updates:   updates,
		Store:     credentials,
		Runner:    runner,
		Acquirer:  acquirer,
		Scheduler: sched,
		Activity:  activity,
		Admins:    cfg.AdminIDs,
		ReplyURL:  cfg.ReplyURL,
		Location:  loc,
		Debug:     cfg.Debug,
	})
	if err != nil {
		return err
	}
	if err := chatBot.SetupMenus(ctx); err != nil {
		app.log.Warn(fmt.Sprintf("Command menus not installed: %v", err))
	}

	if err := sched.RegisterAll(credentials.Load); err != nil {
		app.log.Warn("Starting without user timers")
	}
	sched.RegisterSummary(cfg.SummaryHour, cfg.SummaryMin)
	sched.PrintSchedule()

	if cfg.MetricsAddr != "" {
		srv := status.New(cfg.MetricsAddr, func() interface{} { return sched.Jobs() })
		go func() {
			if err := srv.Run(ctx); err != nil {
				app.log.Error(fmt.Sprintf("Status server stopped: %v", err))
			}
		}()
	}

	chatBot.Start(ctx)
	app.log.Log("Shutting down")
	return nil
}
