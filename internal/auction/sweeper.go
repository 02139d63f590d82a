package auction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// Sweeper force-finalizes active auctions that outlived their duration, for
// example when a resolution crashed before settling.
type Sweeper struct {
	lifecycle  *Lifecycle
	settlement *Settlement
	locks      domain.LockManager
	lockTTL    time.Duration
	grace      time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// NewSweeper creates a Sweeper. grace is added to each auction's duration
// before it counts as overdue.
func NewSweeper(lifecycle *Lifecycle, settlement *Settlement, locks domain.LockManager, lockTTL, grace time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		lifecycle:  lifecycle,
		settlement: settlement,
		locks:      locks,
		lockTTL:    lockTTL,
		grace:      grace,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "sweeper")),
	}
}

// Sweep finalizes overdue auctions with no winner and returns how many it
// finalized. Auctions whose lock is held are skipped.
func (s *Sweeper) Sweep(ctx context.Context) int {
	n := 0
	for _, a := range s.lifecycle.Overdue(s.now(), s.grace) {
		unlock, err := s.locks.Acquire(ctx, lockKey(a.ID), s.lockTTL)
		if err != nil {
			if !errors.Is(err, domain.ErrLockHeld) {
				s.logger.WarnContext(ctx, "sweeper lock failed", slog.String("auction_id", a.ID), slog.String("error", err.Error()))
			}
			continue
		}
		_, _, err = s.settlement.finalize(ctx, a.ID, nil, NoSaleExpired)
		unlock()
		if err != nil {
			if !errors.Is(err, domain.ErrAuctionNotActive) {
				s.logger.WarnContext(ctx, "sweeper finalize failed", slog.String("auction_id", a.ID), slog.String("error", err.Error()))
			}
			continue
		}
		s.logger.WarnContext(ctx, "overdue auction finalized",
			slog.String("auction_id", a.ID),
			slog.Time("deadline", a.Deadline()),
		)
		n++
	}
	return n
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}
