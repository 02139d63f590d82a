package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Sweeper force-finalizes overdue auctions on an interval.
type Sweeper interface {
	Run(ctx context.Context, interval time.Duration) error
}

// Runner is any long-lived background loop.
type Runner interface {
	Run(ctx context.Context) error
}

// Components are the background loops the Orchestrator supervises. Nil
// fields are skipped.
type Components struct {
	// Listener owns the marker listener. It must stop the listener when ctx
	// is cancelled.
	Listener      Runner
	Sweeper       Sweeper
	SweepInterval time.Duration
	Archive       *ArchiveWorker
	BatchCron     string
	Notifications Runner
}

// Orchestrator runs the marker listener, the overdue sweeper, the archive
// worker and the notification queue as one errgroup.
type Orchestrator struct {
	c      Components
	logger *slog.Logger
}

// NewOrchestrator creates an Orchestrator over c.
func NewOrchestrator(c Components, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{c: c, logger: logger.With(slog.String("component", "orchestrator"))}
}

// Run starts every configured loop and blocks until ctx is cancelled or one
// of them fails. A failing loop cancels the others and its error is returned.
func (o *Orchestrator) Run(ctx context.Context) error {
	var sched *Schedule
	if o.c.Archive != nil && o.c.BatchCron != "" {
		s, err := ParseSchedule(o.c.BatchCron)
		if err != nil {
			return fmt.Errorf("pipeline: %w", err)
		}
		sched = &s
	}

	o.logger.Info("pipeline orchestrator starting",
		slog.Bool("listener", o.c.Listener != nil),
		slog.Duration("sweep_interval", o.c.SweepInterval),
		slog.Bool("archive", o.c.Archive != nil),
		slog.String("batch_cron", o.c.BatchCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.c.Listener != nil {
		g.Go(func() error {
			return supervised(ctx, "listener", o.c.Listener.Run(ctx))
		})
	}
	if o.c.Sweeper != nil && o.c.SweepInterval > 0 {
		g.Go(func() error {
			return supervised(ctx, "sweeper", o.c.Sweeper.Run(ctx, o.c.SweepInterval))
		})
	}
	if o.c.Archive != nil {
		g.Go(func() error {
			return supervised(ctx, "archive worker", o.c.Archive.Run(ctx))
		})
		if sched != nil {
			g.Go(func() error {
				return supervised(ctx, "archive batches", o.c.Archive.RunBatches(ctx, *sched))
			})
		}
	}
	if o.c.Notifications != nil {
		g.Go(func() error {
			return supervised(ctx, "notifications", o.c.Notifications.Run(ctx))
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

// supervised maps a loop's return value to the errgroup result: shutdown is
// clean, anything else is attributed to the loop by name.
func supervised(ctx context.Context, name string, err error) error {
	if ctx.Err() != nil || err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return fmt.Errorf("%s: %w", name, err)
}
