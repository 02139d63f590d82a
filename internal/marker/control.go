package marker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	// ErrListenerRunning is returned by Start when the listener is serving.
	ErrListenerRunning = errors.New("marker: listener already running")
	// ErrListenerStopped is returned by Stop when the listener is not serving.
	ErrListenerStopped = errors.New("marker: listener not running")
)

// Controller starts and stops a Listener at runtime. Each Start binds a
// fresh socket and serves it under a child of the base context; Stop
// cancels that child and waits for Serve to drain.
type Controller struct {
	base     context.Context
	listener *Listener
	logger   *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates a stopped Controller. Cancelling base stops the
// listener for good.
func NewController(base context.Context, l *Listener, logger *slog.Logger) *Controller {
	return &Controller{
		base:     base,
		listener: l,
		logger:   logger.With(slog.String("component", "listener_control")),
	}
}

// Start binds the socket and serves it in the background.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runningLocked() {
		return ErrListenerRunning
	}
	if err := c.base.Err(); err != nil {
		return err
	}
	if c.cancel != nil {
		// Serve exited on its own; release its context.
		c.cancel()
	}
	if err := c.listener.Listen(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.base)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.listener.Serve(ctx); err != nil {
			c.logger.Error("marker listener failed", slog.String("error", err.Error()))
		}
	}()
	c.cancel, c.done = cancel, done
	c.logger.Info("marker listener start requested")
	return nil
}

// Stop cancels the running listener and waits for it to drain.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.runningLocked() {
		return ErrListenerStopped
	}
	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil
	c.logger.Info("marker listener stopped on request")
	return nil
}

// Running reports whether Serve is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runningLocked()
}

func (c *Controller) runningLocked() bool {
	if c.done == nil {
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// Stats returns the listener counters.
func (c *Controller) Stats() StatsSnapshot {
	return c.listener.Stats()
}

// Run blocks until ctx is cancelled, then stops the listener if it is still
// running. It always returns nil.
func (c *Controller) Run(ctx context.Context) error {
	<-ctx.Done()
	if err := c.Stop(); err != nil && !errors.Is(err, ErrListenerStopped) {
		return err
	}
	return nil
}
