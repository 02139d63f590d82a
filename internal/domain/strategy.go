package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyStatus toggles whether a strategy takes part in matching.
type StrategyStatus string

const (
	StrategyStatusActive   StrategyStatus = "active"
	StrategyStatusInactive StrategyStatus = "inactive"
)

// FilterAll matches every value in a strategy filter list.
const FilterAll = "all"

// Strategy is a user's standing automated-bidding configuration.
type Strategy struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	Name         string          `json:"name"`
	Moments      []string        `json:"moments"`
	TeamFocus    []string        `json:"team_focus"`
	PeriodFilter []string        `json:"period_filter"`
	PlayerFocus  []string        `json:"player_focus"`
	BaseBid      decimal.Decimal `json:"base_bid"`
	BidIncrement decimal.Decimal `json:"bid_increment"`
	MaxBid       decimal.Decimal `json:"max_bid"`
	Status       StrategyStatus  `json:"status"`
	CreatedAt    time.Time       `json:"created_at"`
}
