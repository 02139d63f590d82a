package notify

import (
	"context"
	"log/slog"
)

type notification struct {
	event, title, message string
}

// Queue delivers notifications from a background goroutine so that slow
// senders never stall auction settlement. Notifications that arrive while
// the buffer is full are dropped and logged.
type Queue struct {
	notifier *Notifier
	ch       chan notification
	logger   *slog.Logger
}

// NewQueue creates a Queue with room for size pending notifications.
func NewQueue(n *Notifier, size int, logger *slog.Logger) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		notifier: n,
		ch:       make(chan notification, size),
		logger:   logger.With(slog.String("component", "notify_queue")),
	}
}

// Notify enqueues a notification without blocking.
func (q *Queue) Notify(ctx context.Context, event, title, message string) error {
	select {
	case q.ch <- notification{event: event, title: title, message: message}:
	default:
		q.logger.WarnContext(ctx, "notification dropped, queue full", slog.String("event", event))
	}
	return nil
}

// Run delivers queued notifications until ctx is cancelled, then flushes
// whatever is still buffered.
func (q *Queue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			q.drain()
			return nil
		case n := <-q.ch:
			_ = q.notifier.Notify(ctx, n.event, n.title, n.message)
		}
	}
}

func (q *Queue) drain() {
	for {
		select {
		case n := <-q.ch:
			_ = q.notifier.Notify(context.Background(), n.event, n.title, n.message)
		default:
			return
		}
	}
}
