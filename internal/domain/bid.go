package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BidStatus tracks a bid after it is placed. Bids are append-only; only the
// status moves, and only away from active.
type BidStatus string

const (
	BidStatusActive  BidStatus = "active"
	BidStatusOutbid  BidStatus = "outbid"
	BidStatusWinning BidStatus = "winning"
)

// Bid is one entry in an auction's bidding audit trail.
type Bid struct {
	ID          string          `json:"id"`
	AuctionID   string          `json:"auction_id"`
	UserID      string          `json:"user_id"`
	StrategyID  string          `json:"strategy_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Status      BidStatus       `json:"status"`
	IsAutomated bool            `json:"is_automated"`
	MaxBid      decimal.Decimal `json:"max_bid"`
	Round       int             `json:"round"`
	Sequence    int             `json:"sequence"`
	Timestamp   time.Time       `json:"timestamp"`
}
