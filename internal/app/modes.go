package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/marker"
	"github.com/alanyoungcy/scteauction/internal/pipeline"
	"github.com/alanyoungcy/scteauction/internal/server"
	"github.com/alanyoungcy/scteauction/internal/server/handler"
	"github.com/alanyoungcy/scteauction/internal/server/ws"
)

const (
	statusInterval  = 5 * time.Second
	shutdownTimeout = 10 * time.Second
)

// FullMode runs the marker listener, the auction pipeline loops and the
// HTTP API in one process. With the listener disabled in config it starts
// stopped and can be started over the API.
func (a *App) FullMode(ctx context.Context, deps *Dependencies, c *core) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	control, err := a.startPipeline(ctx, g, c, true, a.cfg.Listener.Enabled)
	if err != nil {
		return err
	}
	status := a.statusHandler(c, true)
	a.startStatusPublisher(ctx, g, deps.Bus, status)
	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps, c, status, control)
	}

	return g.Wait()
}

// IngestMode runs the listener and the auction pipeline without the HTTP
// API. Events still reach the bus so API nodes sharing Redis can relay them.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies, c *core) error {
	a.logger.InfoContext(ctx, "starting ingest mode",
		slog.String("listen", a.cfg.Listener.Addr()),
	)

	g, ctx := errgroup.WithContext(ctx)

	if _, err := a.startPipeline(ctx, g, c, true, true); err != nil {
		return err
	}
	a.startStatusPublisher(ctx, g, deps.Bus, a.statusHandler(c, true))

	return g.Wait()
}

// APIMode serves the HTTP API over the restored state. Markers arrive only
// through the test-injection endpoint; manual execution, the sweeper and
// settlement fan-out still run here.
func (a *App) APIMode(ctx context.Context, deps *Dependencies, c *core) error {
	a.logger.InfoContext(ctx, "starting api mode",
		slog.Int("port", a.cfg.Server.Port),
	)

	g, ctx := errgroup.WithContext(ctx)

	if _, err := a.startPipeline(ctx, g, c, false, false); err != nil {
		return err
	}
	a.startHTTPServer(ctx, g, deps, c, a.statusHandler(c, false), nil)

	return g.Wait()
}

// startPipeline runs the pipeline orchestrator in g. With withListener set
// the marker listener is put under a Controller, and autoStart binds the UDP
// socket here so a busy port fails startup instead of the errgroup.
func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, c *core, withListener, autoStart bool) (*marker.Controller, error) {
	comps := pipeline.Components{
		Sweeper:       c.engine.Sweeper(),
		SweepInterval: a.cfg.Auctions.SweepInterval.Duration,
		Archive:       c.archive,
		BatchCron:     a.cfg.S3.BatchCron,
		Notifications: c.notifications,
	}
	var control *marker.Controller
	if withListener {
		control = marker.NewController(ctx, c.listener, a.logger)
		if autoStart {
			if err := control.Start(); err != nil {
				return nil, fmt.Errorf("app: bind marker listener: %w", err)
			}
		}
		comps.Listener = control
	}

	orch := pipeline.NewOrchestrator(comps, a.logger)
	g.Go(func() error {
		return orch.Run(ctx)
	})
	return control, nil
}

func (a *App) statusHandler(c *core, withListener bool) *handler.StatusHandler {
	var stats handler.ListenerStats
	if withListener {
		stats = c.listener
	}
	return handler.NewStatusHandler(a.cfg.Mode, c.startedAt, stats, c.state)
}

// startStatusPublisher publishes the status snapshot on the status channel
// every statusInterval.
func (a *App) startStatusPublisher(ctx context.Context, g *errgroup.Group, bus domain.SignalBus, status *handler.StatusHandler) {
	g.Go(func() error {
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				body, err := json.Marshal(domain.Event{
					Type:    domain.EventStatus,
					Payload: status.Snapshot(),
					Time:    time.Now().UTC(),
				})
				if err != nil {
					continue
				}
				if err := bus.Publish(ctx, domain.ChannelStatus, body); err != nil && ctx.Err() == nil {
					a.logger.WarnContext(ctx, "status publish failed", slog.String("error", err.Error()))
				}
			}
		}
	})
}

// startHTTPServer registers every handler, starts the WebSocket hub and runs
// the server until ctx is cancelled. control is nil when the process has no
// marker listener.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, c *core, status *handler.StatusHandler, control *marker.Controller) {
	sc := a.cfg.Server

	handlers := server.Handlers{
		Health:     handler.NewHealthHandler(deps.Checks, a.logger),
		Status:     status,
		Auctions:   handler.NewAuctionHandler(c.state, c.engine, a.logger),
		Results:    handler.NewResultHandler(c.state, c.engine.Settlement(), deps.Bus, a.logger),
		Strategies: handler.NewStrategyHandler(c.registry, c.ledger, a.logger),
		Users:      handler.NewUserHandler(c.ledger, c.registry, a.logger),
		Markers:    handler.NewMarkerHandler(c.listener, a.logger),
		Audit:      handler.NewAuditHandler(deps.Audit, a.logger),
	}
	if control != nil {
		handlers.Listener = handler.NewListenerHandler(control, a.logger)
	}
	if deps.BlobReader != nil {
		handlers.Archive = handler.NewArchiveHandler(deps.BlobReader, a.cfg.S3.Prefix, a.logger)
	}

	hub := ws.NewHub(deps.Bus, func() any { return status.Snapshot() }, sc.CORSOrigins, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(server.Config{
		Port:            sc.Port,
		CORSOrigins:     sc.CORSOrigins,
		APIKey:          sc.APIKey,
		APIKeyHash:      sc.APIKeyHash,
		RateLimitPerMin: sc.RateLimitPerMin,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "http server starting", slog.Int("port", sc.Port))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}
