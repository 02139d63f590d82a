package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/auction"
	"github.com/alanyoungcy/scteauction/internal/config"
	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/ledger"
	"github.com/alanyoungcy/scteauction/internal/marker"
	"github.com/alanyoungcy/scteauction/internal/notify"
	"github.com/alanyoungcy/scteauction/internal/pipeline"
	"github.com/alanyoungcy/scteauction/internal/strategy"
	"github.com/alanyoungcy/scteauction/internal/trigger"
)

const notifyQueueSize = 64

// core is the in-process auction pipeline shared by every mode.
type core struct {
	state         *auction.State
	ledger        *ledger.Ledger
	registry      *strategy.Registry
	engine        *auction.Engine
	listener      *marker.Listener
	archive       *pipeline.ArchiveWorker // nil without S3
	notifications *notify.Queue
	startedAt     time.Time
}

// buildCore restores users, strategies and auctions from the snapshot store
// and assembles the engine and the (unbound) marker listener around them.
func buildCore(ctx context.Context, cfg *config.Config, deps *Dependencies, logger *slog.Logger) (*core, error) {
	state := auction.NewState(deps.Snapshots, logger)
	if err := state.Load(ctx); err != nil {
		return nil, fmt.Errorf("load auctions: %w", err)
	}
	accounts := ledger.New(deps.Snapshots, logger)
	if err := accounts.Load(ctx); err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	registry := strategy.NewRegistry(deps.Snapshots, logger)
	if err := registry.Load(ctx); err != nil {
		return nil, fmt.Errorf("load strategies: %w", err)
	}

	c := &core{
		state:         state,
		ledger:        accounts,
		registry:      registry,
		notifications: notify.NewQueue(deps.Notifier, notifyQueueSize, logger),
		startedAt:     time.Now().UTC(),
	}

	sinks := auction.Sinks{
		Bus:      deps.Bus,
		Audit:    deps.Audit,
		Notifier: c.notifications,
	}
	if deps.Archiver != nil {
		c.archive = pipeline.NewArchiveWorker(deps.Archiver, cfg.S3.QueueSize, logger)
		sinks.Archive = c.archive
	}

	valuator := trigger.NewValuator(triggerTypes(cfg.Triggers), cfg.ContextModifiers, logger)
	c.engine = auction.NewEngine(state, valuator, accounts, registry, deps.Locks, sinks, engineOptions(cfg), logger)
	c.listener = marker.NewListener(listenerConfig(cfg), c.engine, deps.RateLimiter, logger)

	logger.InfoContext(ctx, "auction pipeline ready",
		slog.Int("users", len(accounts.List())),
		slog.Int("strategies", len(registry.List())),
		slog.Int("live_auctions", state.LiveCount()),
		slog.Bool("auto_execute", cfg.Auctions.AutoExecute),
	)
	return c, nil
}

// triggerTypes converts the configured valuation table.
func triggerTypes(in map[string]config.TriggerConfig) map[domain.TriggerType]trigger.TypeConfig {
	out := make(map[domain.TriggerType]trigger.TypeConfig, len(in))
	for name, tc := range in {
		out[domain.TriggerType(strings.ToLower(name))] = trigger.TypeConfig{
			BaseValue:  decimal.NewFromFloat(tc.BaseValue),
			Importance: domain.Importance(strings.ToLower(tc.Importance)),
			Multiplier: tc.Multiplier,
		}
	}
	return out
}

func engineOptions(cfg *config.Config) auction.Options {
	ac := cfg.Auctions
	sc := cfg.Settlement
	return auction.Options{
		Admission: auction.AdmissionConfig{
			MaxConcurrent:     ac.MaxConcurrent,
			LoadShedRatio:     ac.LoadShedRatio,
			MinValue:          decimal.NewFromFloat(ac.MinValue),
			DefaultDurationMs: ac.DefaultDurationMs,
			MinDurationMs:     ac.MinDurationMs,
			MaxDurationMs:     ac.MaxDurationMs,
			ReserveRatio:      decimal.NewFromFloat(ac.ReserveRatio),
			IncrementRatio:    decimal.NewFromFloat(ac.IncrementRatio),
			MinIncrement:      decimal.NewFromFloat(ac.MinIncrement),
		},
		Settlement: auction.SettlementConfig{
			CommissionRate:       decimal.NewFromFloat(sc.CommissionRate),
			BroadcasterRate:      decimal.NewFromFloat(sc.BroadcasterRate),
			PlatformRate:         decimal.NewFromFloat(sc.PlatformRate),
			InitialPaymentStatus: domain.PaymentStatus(strings.ToLower(sc.InitialPaymentStatus)),
		},
		Resolver: auction.ResolverConfig{
			MaxRounds: ac.MaxRounds,
			LockTTL:   ac.LockTTL.Duration,
		},
		AutoExecute:     ac.AutoExecute,
		ActivationDelay: ac.ActivationDelay.Duration,
	}
}

func listenerConfig(cfg *config.Config) marker.ListenerConfig {
	lc := cfg.Listener
	return marker.ListenerConfig{
		Addr:            lc.Addr(),
		BufferSize:      lc.BufferSize,
		ReceiveTimeout:  lc.ReceiveTimeout.Duration,
		Workers:         lc.Workers,
		QueueSize:       lc.QueueSize,
		RateLimitPerSec: lc.RateLimitPerSec,
		DedupWindow:     lc.DedupWindow.Duration,
		RecentSize:      lc.RecentMarkers,
	}
}
