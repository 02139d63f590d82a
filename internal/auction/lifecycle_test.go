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

func TestLifecycleTransitions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	a, err := h.lifecycle.Create(ctx, domain.Auction{ID: "a1", BasePrice: dec("100")})
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusPending, a.Status)
	assert.Equal(t, domain.TeamBoth, a.TeamID)

	_, err = h.lifecycle.Create(ctx, domain.Auction{ID: "a1"})
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	a, err = h.lifecycle.Activate(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusActive, a.Status)
	require.NotNil(t, a.ActivatedAt)

	_, err = h.lifecycle.Activate(ctx, "a1")
	assert.True(t, errors.Is(err, domain.ErrInvalidTransition))

	_, err = h.settlement.Finalize(ctx, "a1", nil)
	require.NoError(t, err)

	_, err = h.lifecycle.Activate(ctx, "a1")
	assert.True(t, errors.Is(err, domain.ErrAuctionNotActive))
	_, err = h.lifecycle.Cancel(ctx, "a1", "late")
	assert.True(t, errors.Is(err, domain.ErrAuctionNotActive))

	_, err = h.lifecycle.Activate(ctx, "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLifecycleCancelOutbidsActiveBids(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.active(t, "a1", "1000", "0", "100")

	_, err := h.state.recordBid(domain.Bid{ID: "b1", AuctionID: "a1", UserID: "u", Amount: dec("1000"), Status: domain.BidStatusActive})
	require.NoError(t, err)

	a, err := h.lifecycle.Cancel(ctx, "a1", "operator")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusCancelled, a.Status)
	assert.NotNil(t, a.CompletedAt)

	b, err := h.state.Bid("b1")
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusOutbid, b.Status)

	entries, err := h.audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "auction.cancelled", entries[0].Event)

	_, err = h.state.recordBid(domain.Bid{ID: "b2", AuctionID: "a1", Amount: dec("2000")})
	assert.True(t, errors.Is(err, domain.ErrAuctionNotActive))
}

func TestHighBidNeverDecreases(t *testing.T) {
	h := newHarness(t)
	h.active(t, "a1", "1000", "0", "100")

	for i, amt := range []string{"1000", "1500", "1200"} {
		_, err := h.state.recordBid(domain.Bid{
			ID: "b" + amt, AuctionID: "a1", UserID: "u" + amt, Amount: dec(amt), Status: domain.BidStatusActive,
		})
		require.NoError(t, err, i)
	}
	a, _ := h.state.Auction("a1")
	assert.Equal(t, "1500", a.CurrentHighBid.String())
	assert.Equal(t, "u1500", a.CurrentHighBidderID)
	assert.Equal(t, []string{"b1000", "b1500", "b1200"}, a.BidIDs)
}

func TestLifecycleOverdue(t *testing.T) {
	h := newHarness(t)
	a := h.active(t, "a1", "1000", "0", "100")
	h.active(t, "a2", "1000", "0", "100")
	_, err := h.lifecycle.Create(context.Background(), domain.Auction{ID: "p"})
	require.NoError(t, err)

	deadline := a.ActivatedAt.Add(500 * time.Millisecond)
	assert.Empty(t, h.lifecycle.Overdue(deadline, time.Second))
	assert.Len(t, h.lifecycle.Overdue(deadline.Add(2*time.Second), time.Second), 2)
}

func TestStateListing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"x", "y", "z"} {
		_, err := h.lifecycle.Create(ctx, domain.Auction{ID: id, GameID: "G" + id, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		require.NoError(t, err)
	}
	_, err := h.lifecycle.Activate(ctx, "y")
	require.NoError(t, err)

	all := h.lifecycle.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "z", all[0].ID)

	active := h.lifecycle.List(Filter{Status: domain.AuctionStatusActive})
	require.Len(t, active, 1)
	assert.Equal(t, "y", active[0].ID)

	page := h.lifecycle.List(Filter{Limit: 1, Offset: 1})
	require.Len(t, page, 1)
	assert.Equal(t, "y", page[0].ID)

	assert.Empty(t, h.lifecycle.List(Filter{Offset: 10}))
	assert.Len(t, h.lifecycle.List(Filter{GameID: "Gx"}), 1)
	assert.Equal(t, 3, h.lifecycle.LiveCount())
}

func TestStateSurvivesReload(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "100", "2000")
	h.active(t, "a1", "1000", "0", "100")
	_, err := h.resolver.Resolve(ctx, "a1")
	require.NoError(t, err)

	reloaded := NewState(h.snapshots, testLogger())
	require.NoError(t, reloaded.Load(ctx))

	a, err := reloaded.Auction("a1")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusCompleted, a.Status)
	assert.Len(t, reloaded.Bids("a1"), 1)
	r, ok := reloaded.ResultForAuction("a1")
	require.True(t, ok)
	assert.Equal(t, "1000", r.WinningAmount.String())
}
