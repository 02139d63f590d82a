// Package notify sends operator alerts about auction outcomes and pipeline
// errors to Telegram, Discord and signed webhooks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Events raised by the auction pipeline.
const (
	EventAuctionWon    = "auction_won"
	EventAuctionNoSale = "auction_no_sale"
	EventError         = "error"
)

// Alert is one operator notification.
type Alert struct {
	Event   string // empty for NotifyAll broadcasts
	Title   string
	Message string
	At      time.Time
}

// Sender is the interface that each notification channel must implement.
type Sender interface {
	// Send delivers one alert, formatted for the channel.
	Send(ctx context.Context, a Alert) error
	// Name returns a human-readable identifier for the sender (e.g. "telegram").
	Name() string
}

// badge returns the marker prefixed to an alert title and the Discord embed
// colour for its event.
func badge(event string) (string, int) {
	switch event {
	case EventAuctionWon:
		return "\U0001F3C6", 0x2ECC71
	case EventAuctionNoSale:
		return "\u26AA", 0x95A5A6
	case EventError:
		return "\U0001F6A8", 0xE74C3C
	default:
		return "\U0001F4E2", 0x3498DB
	}
}

// Notifier fans a notification out to every Sender. Notify only forwards
// events in the allowed set; NotifyAll skips the filter.
type Notifier struct {
	senders []Sender
	events  map[string]bool // allowed event types
	logger  *slog.Logger
	now     func() time.Time
}

// NewNotifier creates a Notifier. An empty events list allows every event.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
		now:     time.Now,
	}
}

// Notify sends to all senders when event is allowed.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.events) > 0 && !n.events[event] {
		n.logger.DebugContext(ctx, "event filtered out",
			slog.String("event", event),
		)
		return nil
	}

	return n.dispatch(ctx, Alert{Event: event, Title: title, Message: message, At: n.now().UTC()})
}

// NotifyAll sends a notification to all senders regardless of event type.
func (n *Notifier) NotifyAll(ctx context.Context, title, message string) error {
	return n.dispatch(ctx, Alert{Title: title, Message: message, At: n.now().UTC()})
}

// Enabled reports whether any sender is configured.
func (n *Notifier) Enabled() bool {
	return len(n.senders) > 0
}

// dispatch tries every sender and joins their failures.
func (n *Notifier) dispatch(ctx context.Context, a Alert) error {
	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, a); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", a.Event),
			slog.String("title", a.Title),
		)
	}
	return errors.Join(errs...)
}
