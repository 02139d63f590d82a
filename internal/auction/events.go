package auction

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// Notifier delivers operator notifications for selected events.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// ArchiveQueue accepts finished auctions for cold storage. Enqueue must not
// block; it reports false when the record was dropped.
type ArchiveQueue interface {
	Enqueue(rec domain.AuctionRecord) bool
}

// Sinks are the optional outputs of the pipeline. Any field may be nil.
type Sinks struct {
	Bus      domain.SignalBus
	Audit    domain.AuditStore
	Archive  ArchiveQueue
	Notifier Notifier
}

// emitter logs pipeline events and mirrors them on the signal bus.
type emitter struct {
	sinks  Sinks
	now    func() time.Time
	logger *slog.Logger
}

func channelFor(t domain.EventType) string {
	switch t {
	case domain.EventBidPlaced, domain.EventBidOutbid, domain.EventBidWon:
		return domain.ChannelBid
	case domain.EventMarkerReceived, domain.EventMarkerDropped, domain.EventTriggerCreated, domain.EventTriggerRejected:
		return domain.ChannelMarker
	default:
		return domain.ChannelAuction
	}
}

func (e *emitter) emit(ctx context.Context, t domain.EventType, auctionID string, payload any, attrs ...slog.Attr) {
	level := slog.LevelInfo
	if t == domain.EventBidPlaced || t == domain.EventBidOutbid {
		level = slog.LevelDebug
	}
	if auctionID != "" {
		attrs = append([]slog.Attr{slog.String("auction_id", auctionID)}, attrs...)
	}
	e.logger.LogAttrs(ctx, level, string(t), attrs...)

	if e.sinks.Bus == nil {
		return
	}
	body, err := json.Marshal(domain.Event{Type: t, AuctionID: auctionID, Payload: payload, Time: e.now().UTC()})
	if err != nil {
		e.logger.Warn("event marshal failed", slog.String("type", string(t)), slog.String("error", err.Error()))
		return
	}
	if err := e.sinks.Bus.Publish(ctx, channelFor(t), body); err != nil {
		e.logger.Warn("event publish failed", slog.String("type", string(t)), slog.String("error", err.Error()))
	}
}

func (e *emitter) audit(ctx context.Context, event string, detail map[string]any) {
	if e.sinks.Audit == nil {
		return
	}
	if err := e.sinks.Audit.Log(ctx, event, detail); err != nil {
		e.logger.Warn("audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

func (e *emitter) notify(ctx context.Context, event, title, message string) {
	if e.sinks.Notifier == nil {
		return
	}
	if err := e.sinks.Notifier.Notify(ctx, event, title, message); err != nil {
		e.logger.Warn("notify failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}
