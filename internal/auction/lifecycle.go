package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// checkTransition reports whether from may move to to. Terminal states reject
// everything with ErrAuctionNotActive.
func checkTransition(from, to domain.AuctionStatus) error {
	if from.Terminal() {
		return domain.ErrAuctionNotActive
	}
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, from, to)
	}
	return nil
}

// Lifecycle owns auction state transitions.
type Lifecycle struct {
	state  *State
	events *emitter
	now    func() time.Time
	logger *slog.Logger
}

// NewLifecycle creates a Lifecycle over state.
func NewLifecycle(state *State, sinks Sinks, logger *slog.Logger) *Lifecycle {
	logger = logger.With(slog.String("component", "lifecycle"))
	return &Lifecycle{
		state:  state,
		events: &emitter{sinks: sinks, now: time.Now, logger: logger},
		now:    time.Now,
		logger: logger,
	}
}

// Create stores a new pending auction.
func (l *Lifecycle) Create(ctx context.Context, a domain.Auction) (domain.Auction, error) {
	a.Status = domain.AuctionStatusPending
	if a.CreatedAt.IsZero() {
		a.CreatedAt = l.now()
	}
	if a.TeamID == "" {
		a.TeamID = domain.TeamBoth
	}
	if err := l.state.insert(a); err != nil {
		return domain.Auction{}, err
	}
	l.state.Persist(ctx)
	return a, nil
}

// Activate moves a pending auction to active and stamps ActivatedAt.
func (l *Lifecycle) Activate(ctx context.Context, id string) (domain.Auction, error) {
	now := l.now()
	a, err := l.state.update(id, func(a *domain.Auction) error {
		if err := checkTransition(a.Status, domain.AuctionStatusActive); err != nil {
			return fmt.Errorf("activate %s: %w", a.ID, err)
		}
		a.Status = domain.AuctionStatusActive
		a.ActivatedAt = &now
		return nil
	})
	if err != nil {
		return domain.Auction{}, err
	}
	l.state.Persist(ctx)
	l.events.emit(ctx, domain.EventAuctionActivated, a.ID, a,
		slog.String("trigger_type", string(a.TriggerType)),
		slog.Int64("duration_ms", a.DurationMs),
	)
	return a, nil
}

// Cancel moves a pending or active auction to cancelled.
func (l *Lifecycle) Cancel(ctx context.Context, id, reason string) (domain.Auction, error) {
	now := l.now()
	a, err := l.state.update(id, func(a *domain.Auction) error {
		if err := checkTransition(a.Status, domain.AuctionStatusCancelled); err != nil {
			return fmt.Errorf("cancel %s: %w", a.ID, err)
		}
		a.Status = domain.AuctionStatusCancelled
		a.CompletedAt = &now
		return nil
	})
	if err != nil {
		return domain.Auction{}, err
	}
	// Bids of a cancelled auction can no longer win.
	l.state.setBidStatus(l.state.activeBidIDs(id, ""), domain.BidStatusOutbid)
	l.state.Persist(ctx)
	l.events.emit(ctx, domain.EventAuctionCancelled, a.ID, a, slog.String("reason", reason))
	l.events.audit(ctx, "auction.cancelled", map[string]any{"auction_id": a.ID, "reason": reason})
	return a, nil
}

// Get returns an auction by id.
func (l *Lifecycle) Get(id string) (domain.Auction, error) {
	return l.state.Auction(id)
}

// List returns auctions matching f, newest first.
func (l *Lifecycle) List(f Filter) []domain.Auction {
	return l.state.Auctions(f)
}

// LiveCount returns the number of pending and active auctions.
func (l *Lifecycle) LiveCount() int {
	return l.state.LiveCount()
}

// Overdue returns active auctions whose deadline plus grace has passed.
func (l *Lifecycle) Overdue(now time.Time, grace time.Duration) []domain.Auction {
	var out []domain.Auction
	for _, a := range l.state.Auctions(Filter{Status: domain.AuctionStatusActive}) {
		if now.After(a.Deadline().Add(grace)) {
			out = append(out, a)
		}
	}
	return out
}
