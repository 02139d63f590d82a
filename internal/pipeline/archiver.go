package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

const dayLayout = "2006-01-02"

// drainTimeout bounds the uploads still attempted after shutdown starts.
const drainTimeout = 10 * time.Second

// ArchiveWorker moves finished auctions to cold storage off the settlement
// path. Each record is uploaded on its own as soon as it is dequeued and kept
// in a per-day bucket until the daily JSONL batch for that day is written.
type ArchiveWorker struct {
	archiver domain.Archiver
	queue    chan domain.AuctionRecord

	mu      sync.Mutex
	pending map[string][]domain.AuctionRecord

	now    func() time.Time
	logger *slog.Logger
}

// NewArchiveWorker creates a worker with room for size queued records.
func NewArchiveWorker(archiver domain.Archiver, size int, logger *slog.Logger) *ArchiveWorker {
	if size <= 0 {
		size = 256
	}
	return &ArchiveWorker{
		archiver: archiver,
		queue:    make(chan domain.AuctionRecord, size),
		pending:  make(map[string][]domain.AuctionRecord),
		now:      time.Now,
		logger:   logger.With(slog.String("component", "archiver")),
	}
}

// Enqueue hands rec to the worker without blocking. It returns false when
// the queue is full.
func (w *ArchiveWorker) Enqueue(rec domain.AuctionRecord) bool {
	select {
	case w.queue <- rec:
		return true
	default:
		return false
	}
}

// Run uploads queued records until ctx is cancelled. Records still buffered
// at shutdown are uploaded with a short deadline before Run returns.
func (w *ArchiveWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(ctx)
			return ctx.Err()
		case rec := <-w.queue:
			w.archive(ctx, rec)
		}
	}
}

func (w *ArchiveWorker) drain(parent context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), drainTimeout)
	defer cancel()
	for {
		select {
		case rec := <-w.queue:
			w.archive(ctx, rec)
		default:
			return
		}
	}
}

func (w *ArchiveWorker) archive(ctx context.Context, rec domain.AuctionRecord) {
	key, err := w.archiver.ArchiveAuction(ctx, rec)
	if err != nil {
		w.logger.ErrorContext(ctx, "archive auction failed",
			slog.String("auction_id", rec.Auction.ID),
			slog.String("error", err.Error()),
		)
	} else {
		w.logger.DebugContext(ctx, "auction archived",
			slog.String("auction_id", rec.Auction.ID),
			slog.String("path", key),
		)
	}

	day := recordDay(rec).Format(dayLayout)
	w.mu.Lock()
	w.pending[day] = append(w.pending[day], rec)
	w.mu.Unlock()
}

// Pending returns the number of records waiting for a daily batch.
func (w *ArchiveWorker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := 0
	for _, recs := range w.pending {
		n += len(recs)
	}
	return n
}

// FlushBatches writes one JSONL batch per buffered day strictly before the
// UTC day of `before`. Days whose upload fails stay buffered for the next
// flush. It returns the number of batches written.
func (w *ArchiveWorker) FlushBatches(ctx context.Context, before time.Time) (int, error) {
	cutoff := before.UTC().Format(dayLayout)

	w.mu.Lock()
	days := make([]string, 0, len(w.pending))
	for day := range w.pending {
		if day < cutoff {
			days = append(days, day)
		}
	}
	batches := make(map[string][]domain.AuctionRecord, len(days))
	for _, day := range days {
		batches[day] = w.pending[day]
		delete(w.pending, day)
	}
	w.mu.Unlock()
	sort.Strings(days)

	written := 0
	var firstErr error
	for _, day := range days {
		recs := batches[day]
		t, _ := time.Parse(dayLayout, day)
		key, err := w.archiver.ArchiveBatch(ctx, t, recs)
		if err != nil {
			w.mu.Lock()
			w.pending[day] = append(recs, w.pending[day]...)
			w.mu.Unlock()
			if firstErr == nil {
				firstErr = fmt.Errorf("pipeline: flush batch %s: %w", day, err)
			}
			continue
		}
		written++
		w.logger.InfoContext(ctx, "daily batch archived",
			slog.String("day", day),
			slog.String("path", key),
			slog.Int("count", len(recs)),
		)
	}
	return written, firstErr
}

// RunBatches flushes completed days every time sched fires until ctx is
// cancelled.
func (w *ArchiveWorker) RunBatches(ctx context.Context, sched Schedule) error {
	for {
		next, err := sched.Next(w.now())
		if err != nil {
			return err
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			if _, err := w.FlushBatches(ctx, w.now()); err != nil {
				w.logger.ErrorContext(ctx, "daily batch flush failed", slog.String("error", err.Error()))
			}
		}
	}
}

func recordDay(rec domain.AuctionRecord) time.Time {
	t := rec.Auction.CreatedAt
	if rec.Auction.CompletedAt != nil {
		t = *rec.Auction.CompletedAt
	}
	return t.UTC()
}
