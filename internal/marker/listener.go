package marker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Handler consumes decoded markers. It reports whether the marker led to an
// auction being created.
type Handler interface {
	HandleMarker(ctx context.Context, m domain.Marker) (bool, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, m domain.Marker) (bool, error)

// HandleMarker calls f.
func (f HandlerFunc) HandleMarker(ctx context.Context, m domain.Marker) (bool, error) {
	return f(ctx, m)
}

// ListenerConfig holds the socket and worker-pool settings.
type ListenerConfig struct {
	Addr            string
	BufferSize      int
	ReceiveTimeout  time.Duration
	Workers         int
	QueueSize       int
	RateLimitPerSec int
	DedupWindow     time.Duration
	RecentSize      int
}

type packet struct {
	data   []byte
	source string
	at     time.Time
}

// Listener receives marker datagrams on a UDP socket and hands decoded
// markers to a Handler on a bounded worker pool. The receive loop never
// waits on downstream work: a full queue drops the datagram.
type Listener struct {
	cfg     ListenerConfig
	handler Handler
	limiter domain.RateLimiter
	dedup   *Dedup
	stats   *Stats
	recent  *Recent
	logger  *slog.Logger

	mu   sync.Mutex
	conn net.PacketConn
}

// NewListener creates a Listener. limiter may be nil, in which case
// per-source rate limiting is disabled.
func NewListener(cfg ListenerConfig, handler Handler, limiter domain.RateLimiter, logger *slog.Logger) *Listener {
	if cfg.BufferSize < minPacketLen {
		cfg.BufferSize = 4096
	}
	if cfg.ReceiveTimeout <= 0 {
		cfg.ReceiveTimeout = time.Second
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}
	l := &Listener{
		cfg:     cfg,
		handler: handler,
		limiter: limiter,
		stats:   &Stats{},
		recent:  NewRecent(cfg.RecentSize),
		logger:  logger.With(slog.String("component", "marker_listener")),
	}
	if cfg.DedupWindow > 0 {
		l.dedup = NewDedup(cfg.DedupWindow)
	}
	return l
}

// Listen binds the UDP socket. It is separate from Serve so callers can learn
// the bound address before traffic starts.
func (l *Listener) Listen() error {
	conn, err := net.ListenPacket("udp", l.cfg.Addr)
	if err != nil {
		return fmt.Errorf("marker: listen %s: %w", l.cfg.Addr, err)
	}
	l.mu.Lock()
	l.conn = conn
	l.mu.Unlock()
	return nil
}

// LocalAddr returns the bound address, or nil before Listen.
func (l *Listener) LocalAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

// Run binds the socket and serves until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	if err := l.Listen(); err != nil {
		return err
	}
	return l.Serve(ctx)
}

// Serve runs the receive loop and worker pool on a socket opened by Listen.
// It returns nil after ctx is cancelled and in-flight markers are drained.
func (l *Listener) Serve(ctx context.Context) error {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	if conn == nil {
		return errors.New("marker: serve called before listen")
	}
	defer conn.Close()

	l.stats.markStarted(time.Now())
	defer l.stats.markStopped()

	l.logger.Info("marker listener started",
		slog.String("addr", conn.LocalAddr().String()),
		slog.Int("workers", l.cfg.Workers),
		slog.Int("queue_size", l.cfg.QueueSize),
	)

	queue := make(chan packet, l.cfg.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < l.cfg.Workers; i++ {
		g.Go(func() error {
			for p := range queue {
				l.process(gctx, p)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(queue)
		return l.receive(gctx, conn, queue)
	})

	if l.dedup != nil {
		g.Go(func() error {
			ticker := time.NewTicker(l.cfg.DedupWindow)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					l.dedup.Cleanup()
				}
			}
		})
	}

	err := g.Wait()
	l.logger.Info("marker listener stopped")
	return err
}

func (l *Listener) receive(ctx context.Context, conn net.PacketConn, queue chan<- packet) error {
	buf := make([]byte, l.cfg.BufferSize)
	for {
		if ctx.Err() != nil {
			return nil
		}
		if err := conn.SetReadDeadline(time.Now().Add(l.cfg.ReceiveTimeout)); err != nil {
			return fmt.Errorf("marker: set deadline: %w", err)
		}
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("marker receive failed", slog.String("error", err.Error()))
			continue
		}

		now := time.Now()
		l.stats.received.Add(1)
		l.stats.lastPacket.Store(now.UnixNano())

		p := packet{data: append([]byte(nil), buf[:n]...), source: addr.String(), at: now}
		if !l.admit(ctx, p) {
			continue
		}

		select {
		case queue <- p:
		default:
			l.stats.dropped.Add(1)
			l.logger.Debug("marker.dropped",
				slog.String("reason", "queue_full"),
				slog.String("source", p.source),
			)
		}
	}
}

// admit applies the optional per-source rate limit and duplicate filter.
func (l *Listener) admit(ctx context.Context, p packet) bool {
	if l.limiter != nil && l.cfg.RateLimitPerSec > 0 {
		host := p.source
		if h, _, err := net.SplitHostPort(p.source); err == nil {
			host = h
		}
		ok, err := l.limiter.Allow(ctx, "marker:"+host, l.cfg.RateLimitPerSec, time.Second)
		if err != nil {
			l.logger.Warn("rate limiter error, allowing datagram", slog.String("error", err.Error()))
		} else if !ok {
			l.stats.rateLimited.Add(1)
			l.logger.Debug("marker.dropped", slog.String("reason", "rate_limited"), slog.String("source", p.source))
			return false
		}
	}
	if l.dedup != nil && l.dedup.IsDuplicate(p.source, p.data) {
		l.stats.duplicates.Add(1)
		l.logger.Debug("marker.dropped", slog.String("reason", "duplicate"), slog.String("source", p.source))
		return false
	}
	return true
}

func (l *Listener) process(ctx context.Context, p packet) {
	if _, _, err := l.Process(ctx, p.data, p.source, p.at); err != nil {
		l.logger.Error("marker handling failed",
			slog.String("source", p.source),
			slog.String("error", err.Error()),
		)
	}
}

// Process decodes one datagram and passes it to the handler. It is the path
// shared by the socket workers and synthetic markers injected over HTTP.
// Malformed input returns ok=false and no error.
func (l *Listener) Process(ctx context.Context, data []byte, source string, at time.Time) (domain.Marker, bool, error) {
	m, ok := Decode(data, source, at)
	if !ok {
		l.stats.processed.Add(1)
		l.logger.Debug("marker.dropped",
			slog.String("reason", "malformed"),
			slog.String("source", source),
			slog.Int("len", len(data)),
		)
		return domain.Marker{}, false, nil
	}
	l.stats.markersCreated.Add(1)
	l.logger.Info("marker.received",
		slog.String("source", source),
		slog.String("command", m.CommandType.String()),
		slog.Any("event_type", m.Metadata["event_type"]),
	)

	triggered, err := l.handler.HandleMarker(ctx, m)
	l.recent.Add(m, triggered && err == nil)
	if err != nil {
		l.stats.failed.Add(1)
		return m, false, err
	}
	l.stats.processed.Add(1)
	if triggered {
		l.stats.auctionsTriggered.Add(1)
	}
	return m, triggered, nil
}

// Recent returns up to limit of the last decoded markers, newest first.
func (l *Listener) Recent(limit int) []RecentMarker {
	return l.recent.List(limit)
}

// Stats returns a snapshot of the listener counters.
func (l *Listener) Stats() StatsSnapshot {
	return l.stats.Snapshot(time.Now())
}
