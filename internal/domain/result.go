package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks collection of a winning amount. Budget consumption does
// not wait for it.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"

	// PaymentStatusNoSale marks the result of an auction that closed without
	// a winner. Nothing is collected and the status never changes.
	PaymentStatusNoSale PaymentStatus = "no_sale"
)

// AuctionResult is the outcome of a completed auction. Every completed
// auction has exactly one. A no-sale result has empty winner fields, zero
// amounts and NoSaleReason set.
type AuctionResult struct {
	ID                   string          `json:"id"`
	AuctionID            string          `json:"auction_id"`
	WinningBidID         string          `json:"winning_bid_id,omitempty"`
	WinningUserID        string          `json:"winning_user_id,omitempty"`
	WinningStrategyID    string          `json:"winning_strategy_id,omitempty"`
	WinningAmount        decimal.Decimal `json:"winning_amount"`
	CommissionAmount     decimal.Decimal `json:"commission_amount"`
	BroadcasterShare     decimal.Decimal `json:"broadcaster_share"`
	PlatformShare        decimal.Decimal `json:"platform_share"`
	PaymentStatus        PaymentStatus   `json:"payment_status"`
	PaymentTransactionID string          `json:"payment_transaction_id,omitempty"`
	NoSaleReason         string          `json:"no_sale_reason,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Sold reports whether the auction had a winner.
func (r AuctionResult) Sold() bool {
	return r.WinningBidID != ""
}

// AuctionRecord bundles everything known about a finished auction for
// archival.
type AuctionRecord struct {
	Auction Auction        `json:"auction"`
	Bids    []Bid          `json:"bids"`
	Result  *AuctionResult `json:"result,omitempty"`
}
