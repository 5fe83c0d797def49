package panel

import (
	"context"

	"github.com/loykin/loungeclock/internal/cron"
)

const (
	DefaultTick    = "@every 1s"
	DefaultRefresh = "@every 30s"
)

// LoopConfig holds the schedules of the two periodic triggers.
type LoopConfig struct {
	Tick    string
	Refresh string
}

// Loop runs a Panel's tick, refresh and operator actions on one goroutine.
type Loop struct {
	panel *Panel
	sched *cron.Scheduler
}

func NewLoop(p *Panel, cfg LoopConfig) (*Loop, error) {
	if cfg.Tick == "" {
		cfg.Tick = DefaultTick
	}
	if cfg.Refresh == "" {
		cfg.Refresh = DefaultRefresh
	}
	sched := cron.NewScheduler(p.clock, p.logger.With("component", "scheduler"))
	if err := sched.Add(cron.Job{Name: "tick", Schedule: cfg.Tick, Run: p.Tick}); err != nil {
		return nil, err
	}
	if err := sched.Add(cron.Job{Name: "refresh", Schedule: cfg.Refresh, Run: p.Refresh}); err != nil {
		return nil, err
	}
	return &Loop{panel: p, sched: sched}, nil
}

// Run loads the registry once and then serves triggers and actions until ctx ends.
func (l *Loop) Run(ctx context.Context) error {
	l.panel.Refresh(ctx)
	return l.sched.Run(ctx)
}

// Do runs fn against the panel on the loop goroutine and waits for it.
func (l *Loop) Do(ctx context.Context, fn func(ctx context.Context, p *Panel)) error {
	return l.sched.Do(ctx, func(ctx context.Context) { fn(ctx, l.panel) })
}
