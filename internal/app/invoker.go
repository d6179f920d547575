package app

import (
	"context"

	"github.com/ohmynofan/nodeseek-checkin-bot/internal/adapters/scraper"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/app/worker"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/config"
	"github.com/ohmynofan/nodeseek-checkin-bot/internal/domain/model"
)

// splitInvoker sends check-ins and statistics to separate backends.
type splitInvoker struct {
	checkin worker.Invoker
	stats   worker.Invoker
}

func (s splitInvoker) Checkin(ctx context.Context, targets model.Targets, modes map[string]bool) (model.Results, error) {
	return s.checkin.Checkin(ctx, targets, modes)
}

func (s splitInvoker) Stats(ctx context.Context, targets model.Targets, days int) (model.Results, error) {
	return s.stats.Stats(ctx, targets, days)
}

// selectInvoker uses the external scripts for whichever operation has one
// configured and the in-process implementation for the rest.
func selectInvoker(cfg config.Config, native worker.Invoker) (worker.Invoker, string) {
	if cfg.SignScript == "" && cfg.StatsScript == "" {
		return native, "native"
	}
	proc := scraper.New(cfg.NodeBin, cfg.SignScript, cfg.StatsScript, cfg.CheckinTimeout)
	inv := splitInvoker{checkin: native, stats: native}
	label := "native check-in"
	if cfg.SignScript != "" {
		inv.checkin = proc
		label = "script check-in"
	}
	if cfg.StatsScript != "" {
		inv.stats = proc
		label += ", script stats"
	} else {
		label += ", native stats"
	}
	return inv, label
}
