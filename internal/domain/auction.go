package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus tracks the auction lifecycle.
type AuctionStatus string

const (
	AuctionStatusPending   AuctionStatus = "pending"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusCompleted AuctionStatus = "completed"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed from s.
func (s AuctionStatus) Terminal() bool {
	return s == AuctionStatusCompleted || s == AuctionStatusCancelled
}

// Live reports whether the auction still counts against capacity.
func (s AuctionStatus) Live() bool {
	return s == AuctionStatusPending || s == AuctionStatusActive
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s AuctionStatus) CanTransition(next AuctionStatus) bool {
	switch s {
	case AuctionStatusPending:
		return next == AuctionStatusActive || next == AuctionStatusCancelled
	case AuctionStatusActive:
		return next == AuctionStatusCompleted || next == AuctionStatusCancelled
	}
	return false
}

// TeamBoth is the team id used when a moment is not attributed to one side.
const TeamBoth = "both"

// Auction is a short-lived sale of a single in-game moment.
type Auction struct {
	ID                  string          `json:"id"`
	TriggerID           string          `json:"trigger_id,omitempty"`
	TriggerType         TriggerType     `json:"trigger_type"`
	GameID              string          `json:"game_id"`
	Status              AuctionStatus   `json:"status"`
	Importance          Importance      `json:"importance"`
	BasePrice           decimal.Decimal `json:"base_price"`
	ReservePrice        decimal.Decimal `json:"reserve_price"`
	IncrementAmount     decimal.Decimal `json:"increment_amount"`
	ContextScore        float64         `json:"context_score"`
	Period              string          `json:"period"`
	TeamID              string          `json:"team_id"`
	PlayerIDs           []string        `json:"player_ids"`
	DurationMs          int64           `json:"duration_ms"`
	CurrentHighBid      decimal.Decimal `json:"current_high_bid"`
	CurrentHighBidderID string          `json:"current_high_bidder_id,omitempty"`
	BidIDs              []string        `json:"bids"`
	CreatedAt           time.Time       `json:"created_at"`
	ActivatedAt         *time.Time      `json:"activated_at,omitempty"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
}

// Deadline is the instant after which a live auction is considered overdue.
func (a Auction) Deadline() time.Time {
	start := a.CreatedAt
	if a.ActivatedAt != nil {
		start = *a.ActivatedAt
	}
	return start.Add(time.Duration(a.DurationMs) * time.Millisecond)
}
