package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// Valuator turns markers into valued triggers.
type Valuator interface {
	Evaluate(m domain.Marker) (domain.Trigger, bool)
}

// Options configures an Engine.
type Options struct {
	Admission       AdmissionConfig
	Settlement      SettlementConfig
	Resolver        ResolverConfig
	AutoExecute     bool
	ActivationDelay time.Duration
	SweepGrace      time.Duration
}

// Engine wires the pipeline stages together and is the marker handler for
// the listener.
type Engine struct {
	state      *State
	valuator   Valuator
	admission  *Admission
	lifecycle  *Lifecycle
	resolver   *Resolver
	settlement *Settlement
	sweeper    *Sweeper
	locks      domain.LockManager
	opts       Options

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewEngine builds every pipeline stage over one shared State.
func NewEngine(
	state *State,
	valuator Valuator,
	accounts Accounts,
	strategies StrategySource,
	locks domain.LockManager,
	sinks Sinks,
	opts Options,
	logger *slog.Logger,
) *Engine {
	settlement := NewSettlement(state, accounts, opts.Settlement, sinks, logger)
	lifecycle := NewLifecycle(state, sinks, logger)
	resolver := NewResolver(state, NewMatcher(accounts), strategies, locks, settlement, opts.Resolver, sinks, logger)
	grace := opts.SweepGrace
	if grace <= 0 {
		grace = opts.ActivationDelay + time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		state:      state,
		valuator:   valuator,
		admission:  NewAdmission(state, opts.Admission, sinks, logger),
		lifecycle:  lifecycle,
		resolver:   resolver,
		settlement: settlement,
		sweeper:    NewSweeper(lifecycle, settlement, locks, resolver.cfg.LockTTL, grace, logger),
		locks:      locks,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		timers:     make(map[string]*time.Timer),
		logger:     logger.With(slog.String("component", "engine")),
	}
}

// State returns the auction, bid and result store the engine writes to.
func (e *Engine) State() *State { return e.state }

// Lifecycle returns the state machine used for create, activate and cancel.
func (e *Engine) Lifecycle() *Lifecycle { return e.lifecycle }

// Settlement returns the finalizer, also used for payment updates.
func (e *Engine) Settlement() *Settlement { return e.settlement }

// Sweeper returns the overdue-auction sweeper. The caller runs it.
func (e *Engine) Sweeper() *Sweeper { return e.sweeper }

// Admission returns the admission controller.
func (e *Engine) Admission() *Admission { return e.admission }

// Resolver returns the bid resolver.
func (e *Engine) Resolver() *Resolver { return e.resolver }

// HandleMarker values a marker, admits it and, with auto-execute on,
// schedules activation and resolution after the grace delay. It reports
// whether an auction was created.
func (e *Engine) HandleMarker(ctx context.Context, m domain.Marker) (bool, error) {
	trig, ok := e.valuator.Evaluate(m)
	if !ok {
		return false, nil
	}
	a, d := e.admission.Admit(ctx, trig)
	if !d.Admitted {
		return false, nil
	}
	if e.opts.AutoExecute {
		e.schedule(a.ID)
	}
	return true, nil
}

// schedule runs activation and resolution after the activation delay, or
// inline when the delay is zero.
func (e *Engine) schedule(id string) {
	e.wg.Add(1)
	if e.opts.ActivationDelay <= 0 {
		defer e.wg.Done()
		e.run(e.ctx, id)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.timers[id] = time.AfterFunc(e.opts.ActivationDelay, func() {
		defer e.wg.Done()
		e.mu.Lock()
		delete(e.timers, id)
		e.mu.Unlock()
		e.run(e.ctx, id)
	})
}

// unschedule stops a pending activation timer for id.
func (e *Engine) unschedule(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, ok := e.timers[id]
	if !ok {
		return
	}
	delete(e.timers, id)
	if t.Stop() {
		e.wg.Done()
	}
}

func (e *Engine) run(ctx context.Context, id string) {
	if _, err := e.lifecycle.Activate(ctx, id); err != nil {
		e.logger.WarnContext(ctx, "activation skipped", slog.String("auction_id", id), slog.String("error", err.Error()))
		return
	}
	if _, err := e.resolver.Resolve(ctx, id); err != nil {
		e.logger.ErrorContext(ctx, "resolution failed", slog.String("auction_id", id), slog.String("error", err.Error()))
	}
}

// Execute activates a pending auction if needed and resolves it. It is the
// manual path used when auto-execute is off.
func (e *Engine) Execute(ctx context.Context, id string) (Outcome, error) {
	e.unschedule(id)
	a, err := e.lifecycle.Get(id)
	if err != nil {
		return Outcome{AuctionID: id}, err
	}
	if a.Status == domain.AuctionStatusPending {
		if _, err := e.lifecycle.Activate(ctx, id); err != nil && !errors.Is(err, domain.ErrInvalidTransition) {
			return Outcome{AuctionID: id}, err
		}
	}
	return e.resolver.Resolve(ctx, id)
}

// Cancel cancels a pending or active auction. An auction being resolved
// cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, id, reason string) (domain.Auction, error) {
	e.unschedule(id)
	unlock, err := e.locks.Acquire(ctx, lockKey(id), e.resolver.cfg.LockTTL)
	if err != nil {
		return domain.Auction{}, fmt.Errorf("cancel %s: %w", id, err)
	}
	defer unlock()
	return e.lifecycle.Cancel(ctx, id, reason)
}

// Wait blocks until scheduled and in-flight resolutions finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops pending activation timers and waits for in-flight work.
func (e *Engine) Close() {
	e.mu.Lock()
	for id, t := range e.timers {
		if t.Stop() {
			e.wg.Done()
		}
		delete(e.timers, id)
	}
	e.mu.Unlock()
	e.cancel()
	e.wg.Wait()
}
