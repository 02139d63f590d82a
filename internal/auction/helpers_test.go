package auction

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	cachemem "github.com/alanyoungcy/scteauction/internal/cache/memory"
	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/ledger"
	storemem "github.com/alanyoungcy/scteauction/internal/store/memory"
	"github.com/alanyoungcy/scteauction/internal/strategy"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingQueue struct {
	recs []domain.AuctionRecord
}

func (q *recordingQueue) Enqueue(rec domain.AuctionRecord) bool {
	q.recs = append(q.recs, rec)
	return true
}

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, event, _, _ string) error {
	n.events = append(n.events, event)
	return nil
}

type harness struct {
	state      *State
	snapshots  *storemem.SnapshotStore
	ledger     *ledger.Ledger
	strategies *strategy.Registry
	locks      *cachemem.LockManager
	bus        *cachemem.SignalBus
	audit      *storemem.AuditStore
	archive    *recordingQueue
	notifier   *recordingNotifier
	sinks      Sinks
	lifecycle  *Lifecycle
	settlement *Settlement
	resolver   *Resolver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		snapshots: storemem.NewSnapshotStore(),
		locks:     cachemem.NewLockManager(),
		bus:       cachemem.NewSignalBus(100),
		audit:     storemem.NewAuditStore(),
		archive:   &recordingQueue{},
		notifier:  &recordingNotifier{},
	}
	logger := testLogger()
	h.state = NewState(h.snapshots, logger)
	h.ledger = ledger.New(h.snapshots, logger)
	h.strategies = strategy.NewRegistry(h.snapshots, logger)
	h.sinks = Sinks{Bus: h.bus, Audit: h.audit, Archive: h.archive, Notifier: h.notifier}
	h.lifecycle = NewLifecycle(h.state, h.sinks, logger)
	h.settlement = NewSettlement(h.state, h.ledger, DefaultSettlementConfig(), h.sinks, logger)
	h.resolver = NewResolver(h.state, NewMatcher(h.ledger), h.strategies, h.locks, h.settlement,
		ResolverConfig{MaxRounds: 100, LockTTL: time.Second}, h.sinks, logger)
	return h
}

func (h *harness) user(t *testing.T, id, budget string) {
	t.Helper()
	_, err := h.ledger.Register(context.Background(), id, id, dec(budget))
	require.NoError(t, err)
}

var strategyEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// strategy registers an active catch-all strategy; order fixes creation time.
func (h *harness) strategy(t *testing.T, id, userID string, order int, base, inc, max string) {
	t.Helper()
	_, err := h.strategies.Put(context.Background(), domain.Strategy{
		ID:           id,
		UserID:       userID,
		Name:         id,
		BaseBid:      dec(base),
		BidIncrement: dec(inc),
		MaxBid:       dec(max),
		CreatedAt:    strategyEpoch.Add(time.Duration(order) * time.Second),
	})
	require.NoError(t, err)
}

// active creates and activates an auction.
func (h *harness) active(t *testing.T, id, base, reserve, increment string) domain.Auction {
	t.Helper()
	ctx := context.Background()
	_, err := h.lifecycle.Create(ctx, domain.Auction{
		ID:              id,
		TriggerType:     domain.TriggerGoalScored,
		GameID:          "G1",
		Importance:      domain.ImportanceHigh,
		BasePrice:       dec(base),
		ReservePrice:    dec(reserve),
		IncrementAmount: dec(increment),
		Period:          "1",
		DurationMs:      500,
	})
	require.NoError(t, err)
	a, err := h.lifecycle.Activate(ctx, id)
	require.NoError(t, err)
	return a
}

func bidStatuses(bids []domain.Bid) map[string]domain.BidStatus {
	out := make(map[string]domain.BidStatus, len(bids))
	for _, b := range bids {
		out[b.StrategyID+"@"+b.Amount.String()] = b.Status
	}
	return out
}
