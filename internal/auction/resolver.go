package auction

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// StrategySource lists the registered strategies.
type StrategySource interface {
	List() []domain.Strategy
}

// Winner identifies the bid that won an auction.
type Winner struct {
	UserID     string          `json:"user_id"`
	StrategyID string          `json:"strategy_id"`
	BidID      string          `json:"bid_id"`
	Amount     decimal.Decimal `json:"amount"`
}

// Outcome summarises one resolution.
type Outcome struct {
	AuctionID    string                `json:"auction_id"`
	Winner       *Winner               `json:"winner,omitempty"`
	Result       *domain.AuctionResult `json:"result,omitempty"`
	Candidates   int                   `json:"candidates"`
	Bids         int                   `json:"bids"`
	Rounds       int                   `json:"rounds"`
	NoSaleReason string                `json:"no_sale_reason,omitempty"`
}

// No-sale reasons.
const (
	NoSaleNoCandidates       = "no_candidates"
	NoSaleNoEligibleBids     = "no_eligible_bids"
	NoSaleReserveNotMet      = "reserve_not_met"
	NoSaleRoundLimit         = "round_limit"
	NoSaleInsufficientBudget = "insufficient_budget"
	NoSaleExpired            = "expired"
	NoSaleSpendFailed        = "spend_failed"
	NoSaleNoWinner           = "no_winner"
)

// ResolverConfig bounds a resolution.
type ResolverConfig struct {
	MaxRounds int
	LockTTL   time.Duration
}

// Resolver runs the synchronous ascending-bid rounds for an auction.
type Resolver struct {
	state      *State
	matcher    *Matcher
	strategies StrategySource
	locks      domain.LockManager
	settlement *Settlement
	cfg        ResolverConfig
	events     *emitter
	now        func() time.Time
	logger     *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(state *State, matcher *Matcher, strategies StrategySource, locks domain.LockManager, settlement *Settlement, cfg ResolverConfig, sinks Sinks, logger *slog.Logger) *Resolver {
	if cfg.MaxRounds < 1 {
		cfg.MaxRounds = 1000
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 5 * time.Second
	}
	logger = logger.With(slog.String("component", "resolver"))
	return &Resolver{
		state:      state,
		matcher:    matcher,
		strategies: strategies,
		locks:      locks,
		settlement: settlement,
		cfg:        cfg,
		events:     &emitter{sinks: sinks, now: time.Now, logger: logger},
		now:        time.Now,
		logger:     logger,
	}
}

func lockKey(auctionID string) string {
	return "auction:" + auctionID
}

// bidder is a candidate taking part in the rounds.
type bidder struct {
	cand    Candidate
	max     decimal.Decimal
	step    decimal.Decimal
	amount  decimal.Decimal
	lastBid string
	bidIDs  []string
	order   int
	active  bool
}

// Resolve takes the auction lock, runs the bidding rounds and hands the
// outcome to settlement. The auction must be active.
func (r *Resolver) Resolve(ctx context.Context, auctionID string) (Outcome, error) {
	unlock, err := r.locks.Acquire(ctx, lockKey(auctionID), r.cfg.LockTTL)
	if err != nil {
		return Outcome{AuctionID: auctionID}, fmt.Errorf("resolve %s: %w", auctionID, err)
	}
	defer unlock()
	return r.resolveLocked(ctx, auctionID)
}

func (r *Resolver) resolveLocked(ctx context.Context, auctionID string) (Outcome, error) {
	out := Outcome{AuctionID: auctionID}
	a, err := r.state.Auction(auctionID)
	if err != nil {
		return out, err
	}
	if a.Status != domain.AuctionStatusActive {
		return out, fmt.Errorf("resolve %s: %w", auctionID, domain.ErrAuctionNotActive)
	}

	cands := r.matcher.Match(a, r.strategies.List())
	out.Candidates = len(cands)
	if len(cands) == 0 {
		return r.finish(ctx, out, nil, NoSaleNoCandidates)
	}

	bidders := make([]*bidder, 0, len(cands))
	for i, c := range cands {
		limit := decimal.Min(c.Strategy.MaxBid, c.Available)
		base := c.Strategy.BaseBid
		if !base.IsPositive() || base.GreaterThan(limit) {
			r.logger.DebugContext(ctx, "candidate skipped",
				slog.String("auction_id", a.ID),
				slog.String("strategy_id", c.Strategy.ID),
				slog.String("base_bid", base.StringFixed(2)),
				slog.String("effective_max", limit.StringFixed(2)),
			)
			continue
		}
		b := &bidder{
			cand:   c,
			max:    limit,
			step:   c.Strategy.BidIncrement,
			order:  i,
			active: true,
		}
		if err := r.place(ctx, a.ID, b, base, 0); err != nil {
			return out, err
		}
		out.Bids++
		bidders = append(bidders, b)
	}
	if len(bidders) == 0 {
		return r.finish(ctx, out, nil, NoSaleNoEligibleBids)
	}

	for activeCount(bidders) > 1 {
		if out.Rounds >= r.cfg.MaxRounds {
			r.logger.ErrorContext(ctx, "bidding round limit reached",
				slog.String("auction_id", a.ID),
				slog.Int("rounds", out.Rounds),
				slog.Int("active_bidders", activeCount(bidders)),
			)
			r.events.notify(ctx, "error", "Bidding round limit reached",
				fmt.Sprintf("auction %s stopped after %d rounds with %d bidders left", a.ID, out.Rounds, activeCount(bidders)))
			return r.finish(ctx, out, nil, NoSaleRoundLimit)
		}
		out.Rounds++

		high := roundHigh(bidders)
		target := high.amount
		for _, b := range bidders {
			if !b.active || b == high {
				continue
			}
			next := target.Add(b.step)
			// Budget is re-read per raise: settlements of other auctions
			// may have spent it since matching.
			if next.LessThanOrEqual(decimal.Min(b.max, r.matcher.Available(b.cand.Strategy.UserID))) {
				if err := r.place(ctx, a.ID, b, next, out.Rounds); err != nil {
					return out, err
				}
				out.Bids++
				continue
			}
			b.active = false
			for _, ob := range r.state.setBidStatus(b.bidIDs, domain.BidStatusOutbid) {
				r.events.emit(ctx, domain.EventBidOutbid, a.ID, ob,
					slog.String("bid_id", ob.ID),
					slog.String("user_id", ob.UserID),
					slog.String("amount", ob.Amount.StringFixed(2)),
				)
			}
		}
	}

	w := pickWinner(bidders)
	if w.amount.LessThan(a.ReservePrice) {
		r.logger.InfoContext(ctx, "reserve not met",
			slog.String("auction_id", a.ID),
			slog.String("high_bid", w.amount.StringFixed(2)),
			slog.String("reserve", a.ReservePrice.StringFixed(2)),
		)
		return r.finish(ctx, out, nil, NoSaleReserveNotMet)
	}
	return r.finish(ctx, out, &Winner{
		UserID:     w.cand.Strategy.UserID,
		StrategyID: w.cand.Strategy.ID,
		BidID:      w.lastBid,
		Amount:     w.amount,
	}, "")
}

func (r *Resolver) place(ctx context.Context, auctionID string, b *bidder, amount decimal.Decimal, round int) error {
	bid, err := r.state.recordBid(domain.Bid{
		ID:          uuid.NewString(),
		AuctionID:   auctionID,
		UserID:      b.cand.Strategy.UserID,
		StrategyID:  b.cand.Strategy.ID,
		Amount:      amount,
		Status:      domain.BidStatusActive,
		IsAutomated: true,
		MaxBid:      b.cand.Strategy.MaxBid,
		Round:       round,
		Timestamp:   r.now(),
	})
	if err != nil {
		return fmt.Errorf("place bid: %w", err)
	}
	b.amount = amount
	b.lastBid = bid.ID
	b.bidIDs = append(b.bidIDs, bid.ID)
	r.events.emit(ctx, domain.EventBidPlaced, auctionID, bid,
		slog.String("bid_id", bid.ID),
		slog.String("user_id", bid.UserID),
		slog.String("amount", amount.StringFixed(2)),
		slog.Int("round", round),
	)
	return nil
}

func (r *Resolver) finish(ctx context.Context, out Outcome, w *Winner, reason string) (Outcome, error) {
	res, reason, err := r.settlement.finalize(ctx, out.AuctionID, w, reason)
	if err != nil {
		return out, err
	}
	out.Result = res
	if res.Sold() {
		out.Winner = w
	} else {
		out.NoSaleReason = reason
	}
	return out, nil
}

func activeCount(bidders []*bidder) int {
	n := 0
	for _, b := range bidders {
		if b.active {
			n++
		}
	}
	return n
}

// roundHigh scans active bidders in insertion order with a strict greater
// comparison, so the earliest bidder holds ties.
func roundHigh(bidders []*bidder) *bidder {
	var high *bidder
	for _, b := range bidders {
		if !b.active {
			continue
		}
		if high == nil || b.amount.GreaterThan(high.amount) {
			high = b
		}
	}
	return high
}

// pickWinner returns the highest active bidder. Ties go to the lowest
// registration sequence, then insertion order.
func pickWinner(bidders []*bidder) *bidder {
	var best *bidder
	for _, b := range bidders {
		if !b.active {
			continue
		}
		switch {
		case best == nil:
			best = b
		case b.amount.GreaterThan(best.amount):
			best = b
		case b.amount.Equal(best.amount) && b.cand.RegistrationSeq < best.cand.RegistrationSeq:
			best = b
		}
	}
	return best
}
