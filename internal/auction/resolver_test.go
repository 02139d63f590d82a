package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

func TestResolveAscendingRounds(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.user(t, "ub", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "200", "1400")
	h.strategy(t, "B", "ub", 2, "1000", "500", "3000")
	h.active(t, "au1", "1000", "0", "100")

	out, err := h.resolver.Resolve(ctx, "au1")
	require.NoError(t, err)

	require.NotNil(t, out.Winner)
	assert.Equal(t, "ub", out.Winner.UserID)
	assert.Equal(t, "B", out.Winner.StrategyID)
	assert.Equal(t, "1500", out.Winner.Amount.String())
	assert.Equal(t, 2, out.Candidates)
	assert.Equal(t, 3, out.Bids)
	assert.Equal(t, 2, out.Rounds)

	require.NotNil(t, out.Result)
	assert.Equal(t, "75", out.Result.CommissionAmount.String())
	assert.Equal(t, "1275", out.Result.BroadcasterShare.String())
	assert.Equal(t, "150", out.Result.PlatformShare.String())
	assert.Equal(t, domain.PaymentStatusPending, out.Result.PaymentStatus)

	a, err := h.state.Auction("au1")
	require.NoError(t, err)
	assert.Equal(t, domain.AuctionStatusCompleted, a.Status)
	assert.Equal(t, "1500", a.CurrentHighBid.String())
	assert.Equal(t, "ub", a.CurrentHighBidderID)
	assert.NotNil(t, a.CompletedAt)
	assert.Len(t, a.BidIDs, 3)

	assert.Equal(t, map[string]domain.BidStatus{
		"A@1000": domain.BidStatusOutbid,
		"B@1000": domain.BidStatusOutbid,
		"B@1500": domain.BidStatusWinning,
	}, bidStatuses(h.state.Bids("au1")))

	avail, _ := h.ledger.AvailableBudget("ub")
	assert.Equal(t, "8500", avail.String())
	avail, _ = h.ledger.AvailableBudget("ua")
	assert.Equal(t, "10000", avail.String())

	require.Len(t, h.archive.recs, 1)
	assert.Equal(t, "au1", h.archive.recs[0].Auction.ID)
	assert.Equal(t, []string{"auction_won"}, h.notifier.events)

	msgs, err := h.bus.StreamRead(ctx, domain.StreamAuctionResults, "0", 10)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestResolveBidSequenceIsOrdered(t *testing.T) {
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.user(t, "ub", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "200", "1400")
	h.strategy(t, "B", "ub", 2, "1000", "500", "3000")
	h.active(t, "au1", "1000", "0", "100")

	_, err := h.resolver.Resolve(context.Background(), "au1")
	require.NoError(t, err)

	bids := h.state.Bids("au1")
	require.Len(t, bids, 3)
	for i, b := range bids {
		assert.Equal(t, i+1, b.Sequence)
		assert.True(t, b.IsAutomated)
	}
	assert.Equal(t, "A", bids[0].StrategyID)
	assert.Equal(t, 0, bids[0].Round)
	assert.Equal(t, 1, bids[2].Round)
}

func TestResolveReserveNotMet(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.user(t, "ub", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "200", "1400")
	h.strategy(t, "B", "ub", 2, "1000", "500", "3000")
	h.active(t, "au1", "1000", "2000", "100")

	out, err := h.resolver.Resolve(ctx, "au1")
	require.NoError(t, err)
	assert.Nil(t, out.Winner)
	assert.Equal(t, NoSaleReserveNotMet, out.NoSaleReason)
	assert.Equal(t, 3, out.Bids)
	require.NotNil(t, out.Result)
	assert.False(t, out.Result.Sold())
	assert.Equal(t, NoSaleReserveNotMet, out.Result.NoSaleReason)

	a, _ := h.state.Auction("au1")
	assert.Equal(t, domain.AuctionStatusCompleted, a.Status)
	res, ok := h.state.ResultForAuction("au1")
	require.True(t, ok)
	assert.Equal(t, out.Result.ID, res.ID)
	assert.Equal(t, domain.PaymentStatusNoSale, res.PaymentStatus)
	for _, b := range h.state.Bids("au1") {
		assert.Equal(t, domain.BidStatusOutbid, b.Status)
	}
	avail, _ := h.ledger.AvailableBudget("ub")
	assert.Equal(t, "10000", avail.String())
	assert.Equal(t, []string{"auction_no_sale"}, h.notifier.events)
}

func TestResolveWithoutCandidates(t *testing.T) {
	h := newHarness(t)
	h.active(t, "au1", "1000", "700", "100")

	out, err := h.resolver.Resolve(context.Background(), "au1")
	require.NoError(t, err)
	assert.Equal(t, NoSaleNoCandidates, out.NoSaleReason)
	assert.Zero(t, out.Candidates)
	assert.Empty(t, h.state.Bids("au1"))

	a, _ := h.state.Auction("au1")
	assert.Equal(t, domain.AuctionStatusCompleted, a.Status)
	assert.Empty(t, a.BidIDs)

	results := h.state.Results(0, 0)
	require.Len(t, results, 1)
	assert.Equal(t, "au1", results[0].AuctionID)
	assert.Empty(t, results[0].WinningUserID)
	assert.Equal(t, NoSaleNoCandidates, results[0].NoSaleReason)
}

func TestResolveSkipsBaseAboveBudget(t *testing.T) {
	h := newHarness(t)
	h.user(t, "poor", "500")
	h.strategy(t, "P", "poor", 1, "1000", "100", "2000")
	h.active(t, "au1", "1000", "0", "100")

	out, err := h.resolver.Resolve(context.Background(), "au1")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Candidates)
	assert.Equal(t, NoSaleNoEligibleBids, out.NoSaleReason)
	assert.Empty(t, h.state.Bids("au1"))
}

func TestResolveTieGoesToEarlierStrategy(t *testing.T) {
	h := newHarness(t)
	h.user(t, "first", "5000")
	h.user(t, "second", "5000")
	// "second" registers later but its strategy is older.
	h.strategy(t, "S2", "second", 1, "1000", "100", "1000")
	h.strategy(t, "S1", "first", 2, "1000", "100", "1000")
	h.active(t, "au1", "1000", "0", "100")

	out, err := h.resolver.Resolve(context.Background(), "au1")
	require.NoError(t, err)
	require.NotNil(t, out.Winner)
	assert.Equal(t, "S2", out.Winner.StrategyID)
	assert.Equal(t, "1000", out.Winner.Amount.String())
}

func TestResolveStepsByStrategyIncrement(t *testing.T) {
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.user(t, "ub", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "50", "1080")
	h.strategy(t, "B", "ub", 2, "1000", "50", "3000")
	// The auction's own increment is larger than either strategy's step.
	h.active(t, "au1", "1000", "0", "100")

	out, err := h.resolver.Resolve(context.Background(), "au1")
	require.NoError(t, err)
	require.NotNil(t, out.Winner)
	assert.Equal(t, "B", out.Winner.StrategyID)
	assert.Equal(t, "1050", out.Winner.Amount.String())
	assert.Equal(t, 2, out.Rounds)
	assert.Equal(t, 3, out.Bids)
	assert.Equal(t, map[string]domain.BidStatus{
		"A@1000": domain.BidStatusOutbid,
		"B@1000": domain.BidStatusOutbid,
		"B@1050": domain.BidStatusWinning,
	}, bidStatuses(h.state.Bids("au1")))
}

// shrinkingAccounts reports a smaller budget for user after its first
// lookup, as if another auction had settled in between.
type shrinkingAccounts struct {
	Accounts
	user   string
	budget decimal.Decimal
	seen   int
}

func (s *shrinkingAccounts) Get(id string) (domain.User, error) {
	u, err := s.Accounts.Get(id)
	if err != nil || id != s.user {
		return u, err
	}
	s.seen++
	if s.seen > 1 {
		u.TotalBudget = u.SpentBudget.Add(s.budget)
	}
	return u, nil
}

func TestResolveRereadsBudgetBeforeRaising(t *testing.T) {
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.user(t, "ub", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "200", "5000")
	h.strategy(t, "B", "ub", 2, "1000", "500", "3000")
	h.active(t, "au1", "1000", "0", "100")

	accounts := &shrinkingAccounts{Accounts: h.ledger, user: "ua", budget: dec("1100")}
	r := NewResolver(h.state, NewMatcher(accounts), h.strategies, h.locks, h.settlement,
		ResolverConfig{MaxRounds: 100, LockTTL: time.Second}, h.sinks, testLogger())

	out, err := r.Resolve(context.Background(), "au1")
	require.NoError(t, err)
	require.NotNil(t, out.Winner)
	assert.Equal(t, "B", out.Winner.StrategyID)
	assert.Equal(t, "1500", out.Winner.Amount.String())
	for _, b := range h.state.Bids("au1") {
		if b.StrategyID == "A" {
			assert.True(t, b.Amount.LessThanOrEqual(dec("1100")))
		}
	}
}

func TestResolveRoundLimit(t *testing.T) {
	h := newHarness(t)
	h.resolver.cfg.MaxRounds = 2
	h.user(t, "ua", "100000")
	h.user(t, "ub", "100000")
	h.strategy(t, "A", "ua", 1, "100", "1", "90000")
	h.strategy(t, "B", "ub", 2, "100", "1", "90000")
	h.active(t, "au1", "100", "0", "1")

	out, err := h.resolver.Resolve(context.Background(), "au1")
	require.NoError(t, err)
	assert.Equal(t, NoSaleRoundLimit, out.NoSaleReason)
	assert.Equal(t, 2, out.Rounds)
	assert.Equal(t, []string{"error", "auction_no_sale"}, h.notifier.events)
}

func TestResolveRequiresActiveAuction(t *testing.T) {
	h := newHarness(t)
	_, err := h.lifecycle.Create(context.Background(), domain.Auction{ID: "p1", BasePrice: dec("100")})
	require.NoError(t, err)

	_, err = h.resolver.Resolve(context.Background(), "p1")
	assert.True(t, errors.Is(err, domain.ErrAuctionNotActive))

	_, err = h.resolver.Resolve(context.Background(), "missing")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestResolveConcurrentlyProducesOneResult(t *testing.T) {
	h := newHarness(t)
	h.user(t, "ua", "10000")
	h.user(t, "ub", "10000")
	h.strategy(t, "A", "ua", 1, "1000", "200", "1400")
	h.strategy(t, "B", "ub", 2, "1000", "500", "3000")
	h.active(t, "au1", "1000", "0", "100")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.resolver.Resolve(context.Background(), "au1")
		}()
	}
	wg.Wait()

	assert.Len(t, h.state.Results(0, 0), 1)
	avail, _ := h.ledger.AvailableBudget("ub")
	assert.Equal(t, "8500", avail.String())
}
