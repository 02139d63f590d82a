package auction

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

type valuatorFunc func(m domain.Marker) (domain.Trigger, bool)

func (f valuatorFunc) Evaluate(m domain.Marker) (domain.Trigger, bool) { return f(m) }

// goalValuator values every marker carrying an event_type at 1000.
var goalValuator = valuatorFunc(func(m domain.Marker) (domain.Trigger, bool) {
	if _, ok := m.Metadata["event_type"]; !ok {
		return domain.Trigger{}, false
	}
	return domain.Trigger{
		ID:             "t-" + m.SourceAddr,
		Marker:         m,
		Type:           domain.TriggerGoalScored,
		GameID:         "G1",
		Period:         "1",
		Importance:     domain.ImportanceHigh,
		EstimatedValue: dec("1000"),
	}, true
})

func newTestEngine(t *testing.T, h *harness, opts Options) *Engine {
	t.Helper()
	if opts.Admission.MaxConcurrent == 0 {
		opts.Admission = DefaultAdmissionConfig()
		opts.Admission.ReserveRatio = dec("0")
	}
	opts.Settlement = DefaultSettlementConfig()
	opts.Resolver = ResolverConfig{MaxRounds: 100, LockTTL: time.Second}
	e := NewEngine(h.state, goalValuator, h.ledger, h.strategies, h.locks, h.sinks, opts, testLogger())
	t.Cleanup(e.Close)
	return e
}

func goalMarker(id string) domain.Marker {
	return domain.Marker{
		SourceAddr:  id,
		CommandType: domain.CommandSpliceInsert,
		Metadata:    map[string]any{"event_type": "goal"},
		ReceivedAt:  time.Now(),
	}
}

func TestEngineAutoExecute(t *testing.T) {
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.user(t, "ub", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "200", "1400")
	h.strategy(t, "B", "ub", 2, "1000", "500", "3000")
	e := newTestEngine(t, h, Options{AutoExecute: true})

	created, err := e.HandleMarker(context.Background(), goalMarker("m1"))
	require.NoError(t, err)
	assert.True(t, created)

	results := h.state.Results(0, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "ub", results[0].WinningUserID)
	assert.Equal(t, "1500", results[0].WinningAmount.String())
	assert.Zero(t, e.Lifecycle().LiveCount())
}

func TestEngineIgnoresUnvaluedMarkers(t *testing.T) {
	h := newHarness(t)
	e := newTestEngine(t, h, Options{AutoExecute: true})

	created, err := e.HandleMarker(context.Background(), domain.Marker{SourceAddr: "m", Metadata: map[string]any{}})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, e.Lifecycle().List(Filter{}))
}

func TestEngineDelayedActivation(t *testing.T) {
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "100", "2000")
	e := newTestEngine(t, h, Options{AutoExecute: true, ActivationDelay: 20 * time.Millisecond})

	created, err := e.HandleMarker(context.Background(), goalMarker("m1"))
	require.NoError(t, err)
	require.True(t, created)

	list := e.Lifecycle().List(Filter{})
	require.Len(t, list, 1)
	assert.Equal(t, domain.AuctionStatusPending, list[0].Status)

	e.Wait()
	a, err := e.Lifecycle().Get(list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusCompleted, a.Status)
}

func TestEngineManualExecuteAndCancel(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "100", "2000")
	e := newTestEngine(t, h, Options{})

	_, err := e.HandleMarker(ctx, goalMarker("m1"))
	require.NoError(t, err)
	_, err = e.HandleMarker(ctx, goalMarker("m2"))
	require.NoError(t, err)
	list := e.Lifecycle().List(Filter{Status: domain.AuctionStatusPending})
	require.Len(t, list, 2)

	out, err := e.Execute(ctx, list[0].ID)
	require.NoError(t, err)
	require.NotNil(t, out.Winner)
	assert.Equal(t, "A", out.Winner.StrategyID)

	_, err = e.Execute(ctx, list[0].ID)
	assert.True(t, errors.Is(err, domain.ErrAuctionNotActive))

	a, err := e.Cancel(ctx, list[1].ID, "operator")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusCancelled, a.Status)

	_, err = e.Cancel(ctx, list[1].ID, "again")
	assert.True(t, errors.Is(err, domain.ErrAuctionNotActive))
	_, err = e.Execute(ctx, "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestEngineCloseStopsPendingTimers(t *testing.T) {
	h := newHarness(t)
	e := newTestEngine(t, h, Options{AutoExecute: true, ActivationDelay: time.Hour})

	_, err := e.HandleMarker(context.Background(), goalMarker("m1"))
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		e.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	assert.Equal(t, 1, e.Lifecycle().LiveCount())
}
