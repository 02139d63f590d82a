package auction

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

func TestSweepFinalizesOverdueAuctions(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.active(t, "old", "1000", "0", "100")
	h.active(t, "held", "1000", "0", "100")

	sw := NewSweeper(h.lifecycle, h.settlement, h.locks, time.Second, time.Second, testLogger())
	assert.Zero(t, sw.Sweep(ctx))

	sw.now = func() time.Time { return time.Now().Add(time.Minute) }
	unlock, err := h.locks.Acquire(ctx, lockKey("held"), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, sw.Sweep(ctx))
	a, _ := h.state.Auction("old")
	assert.Equal(t, domain.AuctionStatusCompleted, a.Status)
	res, ok := h.state.ResultForAuction("old")
	require.True(t, ok)
	assert.Equal(t, NoSaleExpired, res.NoSaleReason)
	a, _ = h.state.Auction("held")
	assert.Equal(t, domain.AuctionStatusActive, a.Status)

	unlock()
	assert.Equal(t, 1, sw.Sweep(ctx))
	assert.Zero(t, sw.Sweep(ctx))
	assert.Equal(t, []string{"auction_no_sale", "auction_no_sale"}, h.notifier.events)
}
