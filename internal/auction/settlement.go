package auction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// SettlementConfig holds the revenue split. The three rates sum to one.
type SettlementConfig struct {
	CommissionRate       decimal.Decimal
	BroadcasterRate      decimal.Decimal
	PlatformRate         decimal.Decimal
	InitialPaymentStatus domain.PaymentStatus
}

// DefaultSettlementConfig returns the stock 5/85/10 split.
func DefaultSettlementConfig() SettlementConfig {
	return SettlementConfig{
		CommissionRate:       decimal.RequireFromString("0.05"),
		BroadcasterRate:      decimal.RequireFromString("0.85"),
		PlatformRate:         decimal.RequireFromString("0.10"),
		InitialPaymentStatus: domain.PaymentStatusPending,
	}
}

// Settlement finalizes auctions: it consumes the winner's budget, records the
// result and fans the outcome out to persistence, the bus, the archive, the
// notifier and the audit log.
type Settlement struct {
	state    *State
	accounts Accounts
	cfg      SettlementConfig
	events   *emitter

	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

// NewSettlement creates a Settlement.
func NewSettlement(state *State, accounts Accounts, cfg SettlementConfig, sinks Sinks, logger *slog.Logger) *Settlement {
	if cfg.InitialPaymentStatus == "" {
		cfg.InitialPaymentStatus = domain.PaymentStatusPending
	}
	logger = logger.With(slog.String("component", "settlement"))
	return &Settlement{
		state:    state,
		accounts: accounts,
		cfg:      cfg,
		events:   &emitter{sinks: sinks, now: time.Now, logger: logger},
		now:      time.Now,
		logger:   logger,
	}
}

// Finalize completes an active auction and returns its result. It is
// idempotent: an existing result is returned as is. A nil winner completes
// the auction with a no-sale result.
func (s *Settlement) Finalize(ctx context.Context, auctionID string, w *Winner) (*domain.AuctionResult, error) {
	res, _, err := s.finalize(ctx, auctionID, w, "")
	return res, err
}

// Splits computes commission, broadcaster and platform shares of amount.
func (s *Settlement) Splits(amount decimal.Decimal) (commission, broadcaster, platform decimal.Decimal) {
	return amount.Mul(s.cfg.CommissionRate).Round(2),
		amount.Mul(s.cfg.BroadcasterRate).Round(2),
		amount.Mul(s.cfg.PlatformRate).Round(2)
}

func (s *Settlement) finalize(ctx context.Context, auctionID string, w *Winner, reason string) (*domain.AuctionResult, string, error) {
	s.mu.Lock()
	if r, ok := s.state.ResultForAuction(auctionID); ok {
		s.mu.Unlock()
		return &r, r.NoSaleReason, nil
	}
	a, err := s.state.Auction(auctionID)
	if err != nil {
		s.mu.Unlock()
		return nil, "", err
	}
	if a.Status != domain.AuctionStatusActive {
		s.mu.Unlock()
		return nil, "", fmt.Errorf("finalize %s: %w", auctionID, domain.ErrAuctionNotActive)
	}

	now := s.now()
	if w != nil {
		if err := s.accounts.RecordSpend(ctx, w.UserID, w.Amount); err != nil {
			s.logger.WarnContext(ctx, "winner spend rejected",
				slog.String("auction_id", auctionID),
				slog.String("user_id", w.UserID),
				slog.String("amount", w.Amount.StringFixed(2)),
				slog.String("error", err.Error()),
			)
			reason = NoSaleInsufficientBudget
			if !errors.Is(err, domain.ErrInsufficientBudget) {
				reason = NoSaleSpendFailed
				s.events.notify(ctx, "error", "Winner spend failed",
					fmt.Sprintf("auction %s: recording %s for %s failed: %v", auctionID, w.Amount.StringFixed(2), w.UserID, err))
			}
			s.state.transitionBids([]string{w.BidID}, domain.BidStatusWinning, domain.BidStatusOutbid)
			w = nil
		}
	}

	res := &domain.AuctionResult{
		ID:        uuid.NewString(),
		AuctionID: auctionID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if w != nil {
		commission, broadcaster, platform := s.Splits(w.Amount)
		res.WinningBidID = w.BidID
		res.WinningUserID = w.UserID
		res.WinningStrategyID = w.StrategyID
		res.WinningAmount = w.Amount
		res.CommissionAmount = commission
		res.BroadcasterShare = broadcaster
		res.PlatformShare = platform
		res.PaymentStatus = s.cfg.InitialPaymentStatus
		reason = ""
	} else {
		if reason == "" {
			reason = NoSaleNoWinner
		}
		res.PaymentStatus = domain.PaymentStatusNoSale
		res.NoSaleReason = reason
	}

	a, err = s.state.completeAuction(auctionID, now, res, w)
	s.mu.Unlock()
	if err != nil {
		if w != nil {
			s.logger.ErrorContext(ctx, "spend recorded for auction that could not complete",
				slog.String("auction_id", auctionID),
				slog.String("user_id", res.WinningUserID),
				slog.String("amount", res.WinningAmount.StringFixed(2)),
			)
		}
		return nil, reason, err
	}

	var won []domain.Bid
	if res.Sold() {
		won = s.state.setBidStatus([]string{res.WinningBidID}, domain.BidStatusWinning)
	}
	outbid := s.state.setBidStatus(s.state.activeBidIDs(auctionID, ""), domain.BidStatusOutbid)

	s.state.Persist(ctx)
	s.publish(ctx, a, res, won, outbid)
	return res, reason, nil
}

func (s *Settlement) publish(ctx context.Context, a domain.Auction, res *domain.AuctionResult, won, outbid []domain.Bid) {
	for _, b := range outbid {
		s.events.emit(ctx, domain.EventBidOutbid, a.ID, b,
			slog.String("bid_id", b.ID),
			slog.String("user_id", b.UserID),
			slog.String("amount", b.Amount.StringFixed(2)),
		)
	}
	for _, b := range won {
		s.events.emit(ctx, domain.EventBidWon, a.ID, b,
			slog.String("bid_id", b.ID),
			slog.String("user_id", b.UserID),
			slog.String("amount", b.Amount.StringFixed(2)),
		)
	}

	attrs := []slog.Attr{
		slog.String("trigger_type", string(a.TriggerType)),
		slog.String("game_id", a.GameID),
		slog.Int("bids", len(a.BidIDs)),
	}
	if res.Sold() {
		attrs = append(attrs,
			slog.String("winner", res.WinningUserID),
			slog.String("amount", res.WinningAmount.StringFixed(2)),
		)
	} else {
		attrs = append(attrs, slog.String("no_sale_reason", res.NoSaleReason))
	}
	s.events.emit(ctx, domain.EventAuctionCompleted, a.ID, map[string]any{"auction": a, "result": res}, attrs...)

	rec, err := s.state.Record(a.ID)
	if err != nil {
		s.logger.WarnContext(ctx, "build auction record failed", slog.String("error", err.Error()))
		return
	}
	if bus := s.events.sinks.Bus; bus != nil {
		if body, err := json.Marshal(rec); err == nil {
			if err := bus.StreamAppend(ctx, domain.StreamAuctionResults, body); err != nil {
				s.logger.WarnContext(ctx, "result stream append failed", slog.String("error", err.Error()))
			}
		}
	}
	if q := s.events.sinks.Archive; q != nil && !q.Enqueue(rec) {
		s.logger.WarnContext(ctx, "archive queue full, record dropped", slog.String("auction_id", a.ID))
	}

	if res.Sold() {
		s.events.audit(ctx, "settlement.completed", map[string]any{
			"auction_id":  a.ID,
			"result_id":   res.ID,
			"user_id":     res.WinningUserID,
			"amount":      res.WinningAmount.StringFixed(2),
			"commission":  res.CommissionAmount.StringFixed(2),
			"broadcaster": res.BroadcasterShare.StringFixed(2),
			"platform":    res.PlatformShare.StringFixed(2),
		})
		s.events.notify(ctx, "auction_won", "Auction won",
			fmt.Sprintf("%s (%s) won by %s for %s", a.TriggerType, a.GameID, res.WinningUserID, res.WinningAmount.StringFixed(2)))
		return
	}
	s.events.audit(ctx, "settlement.no_sale", map[string]any{
		"auction_id": a.ID,
		"result_id":  res.ID,
		"reason":     res.NoSaleReason,
		"bids":       len(a.BidIDs),
	})
	s.events.notify(ctx, "auction_no_sale", "Auction closed without sale",
		fmt.Sprintf("%s (%s): %s", a.TriggerType, a.GameID, res.NoSaleReason))
}

// UpdatePayment records the collection outcome for a result. Completed
// payments are final.
func (s *Settlement) UpdatePayment(ctx context.Context, resultID string, status domain.PaymentStatus, txID string) (domain.AuctionResult, error) {
	if status != domain.PaymentStatusCompleted && status != domain.PaymentStatusFailed {
		return domain.AuctionResult{}, fmt.Errorf("%w: payment status %q", domain.ErrInvalidTransition, status)
	}
	r, err := s.state.UpdateResult(resultID, func(r *domain.AuctionResult) error {
		switch r.PaymentStatus {
		case domain.PaymentStatusCompleted:
			return fmt.Errorf("%w: payment already completed", domain.ErrInvalidTransition)
		case domain.PaymentStatusNoSale:
			return fmt.Errorf("%w: auction closed without sale", domain.ErrInvalidTransition)
		}
		r.PaymentStatus = status
		if txID != "" {
			r.PaymentTransactionID = txID
		}
		r.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return domain.AuctionResult{}, err
	}
	s.state.Persist(ctx)
	s.events.audit(ctx, "payment."+string(status), map[string]any{
		"result_id":      r.ID,
		"auction_id":     r.AuctionID,
		"transaction_id": r.PaymentTransactionID,
	})
	return r, nil
}
