package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeArchiver struct {
	mu        sync.Mutex
	auctions  []string
	batches   map[string]int
	failBatch bool
}

func (f *fakeArchiver) ArchiveAuction(_ context.Context, rec domain.AuctionRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auctions = append(f.auctions, rec.Auction.ID)
	return "auctions/" + rec.Auction.ID + ".json", nil
}

func (f *fakeArchiver) ArchiveBatch(_ context.Context, day time.Time, recs []domain.AuctionRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failBatch {
		return "", errors.New("upload failed")
	}
	if f.batches == nil {
		f.batches = make(map[string]int)
	}
	f.batches[day.Format(dayLayout)] += len(recs)
	return "auctions/daily/" + day.Format(dayLayout) + ".jsonl", nil
}

func (f *fakeArchiver) archived() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.auctions...)
}

func record(id string, completed time.Time) domain.AuctionRecord {
	return domain.AuctionRecord{Auction: domain.Auction{ID: id, CreatedAt: completed.Add(-time.Second), CompletedAt: &completed}}
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr  string
		after string
		want  string
	}{
		{"5 0 * * *", "2024-06-01T10:00:00Z", "2024-06-02T00:05:00Z"},
		{"*/15 * * * *", "2024-06-01T10:01:00Z", "2024-06-01T10:15:00Z"},
		{"0 9-17/4 * * *", "2024-06-01T10:00:00Z", "2024-06-01T13:00:00Z"},
		{"30 2 1 * *", "2024-06-01T03:00:00Z", "2024-07-01T02:30:00Z"},
		{"0 0 * * 1,3", "2024-06-01T00:00:00Z", "2024-06-03T00:00:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := ParseSchedule(tt.expr)
			require.NoError(t, err)
			after, _ := time.Parse(time.RFC3339, tt.after)
			next, err := s.Next(after)
			require.NoError(t, err)
			assert.Equal(t, tt.want, next.Format(time.RFC3339))
		})
	}
}

func TestParseScheduleRejectsBadInput(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "61 * * * *", "* * * * 7", "a * * * *", "*/0 * * * *", "5-2 * * * *"} {
		_, err := ParseSchedule(expr)
		assert.Error(t, err, expr)
	}
}

func TestArchiveWorkerEnqueueFull(t *testing.T) {
	w := NewArchiveWorker(&fakeArchiver{}, 1, testLogger())
	now := time.Now()
	assert.True(t, w.Enqueue(record("a", now)))
	assert.False(t, w.Enqueue(record("b", now)))
}

func TestArchiveWorkerUploadsAndBatches(t *testing.T) {
	fa := &fakeArchiver{}
	w := NewArchiveWorker(fa, 8, testLogger())

	day1 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)
	require.True(t, w.Enqueue(record("a", day1)))
	require.True(t, w.Enqueue(record("b", day1.Add(time.Hour))))
	require.True(t, w.Enqueue(record("c", day2)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return len(fa.archived()) == 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 3, w.Pending())

	n, err := w.FlushBatches(context.Background(), day2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, map[string]int{"2024-06-01": 2}, fa.batches)
	assert.Equal(t, 1, w.Pending())

	n, err = w.FlushBatches(context.Background(), day2.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, w.Pending())
}

func TestArchiveWorkerKeepsFailedBatches(t *testing.T) {
	fa := &fakeArchiver{failBatch: true}
	w := NewArchiveWorker(fa, 8, testLogger())
	day := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	w.archive(context.Background(), record("a", day))

	n, err := w.FlushBatches(context.Background(), day.Add(48*time.Hour))
	assert.Error(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 1, w.Pending())

	fa.failBatch = false
	n, err = w.FlushBatches(context.Background(), day.Add(48*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestArchiveWorkerDrainsOnShutdown(t *testing.T) {
	fa := &fakeArchiver{}
	w := NewArchiveWorker(fa, 8, testLogger())
	require.True(t, w.Enqueue(record("a", time.Now())))
	require.True(t, w.Enqueue(record("b", time.Now())))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = w.Run(ctx)
	assert.ElementsMatch(t, []string{"a", "b"}, fa.archived())
}

type loopFunc func(ctx context.Context) error

func (f loopFunc) Run(ctx context.Context) error { return f(ctx) }

type sweeperFunc func(ctx context.Context, interval time.Duration) error

func (f sweeperFunc) Run(ctx context.Context, interval time.Duration) error { return f(ctx, interval) }

func TestOrchestratorCleanShutdown(t *testing.T) {
	var swept, notified bool
	o := NewOrchestrator(Components{
		Sweeper: sweeperFunc(func(ctx context.Context, interval time.Duration) error {
			swept = interval == time.Second
			<-ctx.Done()
			return ctx.Err()
		}),
		SweepInterval: time.Second,
		Archive:       NewArchiveWorker(&fakeArchiver{}, 4, testLogger()),
		BatchCron:     "5 0 * * *",
		Notifications: loopFunc(func(ctx context.Context) error {
			notified = true
			<-ctx.Done()
			return nil
		}),
	}, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, o.Run(ctx))
	assert.True(t, swept)
	assert.True(t, notified)
}

func TestOrchestratorPropagatesFailure(t *testing.T) {
	o := NewOrchestrator(Components{
		Notifications: loopFunc(func(ctx context.Context) error { return errors.New("boom") }),
		Sweeper: sweeperFunc(func(ctx context.Context, _ time.Duration) error {
			<-ctx.Done()
			return ctx.Err()
		}),
		SweepInterval: time.Second,
	}, testLogger())

	err := o.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "notifications: boom")
}

func TestOrchestratorRejectsBadCron(t *testing.T) {
	o := NewOrchestrator(Components{
		Archive:   NewArchiveWorker(&fakeArchiver{}, 4, testLogger()),
		BatchCron: "every day",
	}, testLogger())
	assert.Error(t, o.Run(context.Background()))
}
