package auction

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/strategy"
)

// Accounts is the budget view the pipeline needs from the ledger.
type Accounts interface {
	Get(userID string) (domain.User, error)
	RecordSpend(ctx context.Context, userID string, amount decimal.Decimal) error
}

// Candidate is a strategy eligible to bid in an auction.
type Candidate struct {
	Strategy        domain.Strategy
	Available       decimal.Decimal
	RegistrationSeq int64
}

// Matcher selects the strategies eligible for an auction.
type Matcher struct {
	accounts Accounts
}

// NewMatcher creates a Matcher reading budgets from accounts.
func NewMatcher(accounts Accounts) *Matcher {
	return &Matcher{accounts: accounts}
}

// Match returns eligible candidates ordered by strategy creation time, then
// id. That order is the bidder insertion order used by the resolver.
func (m *Matcher) Match(a domain.Auction, strategies []domain.Strategy) []Candidate {
	ordered := append([]domain.Strategy(nil), strategies...)
	strategy.SortByCreation(ordered)

	var out []Candidate
	for _, s := range ordered {
		if !Eligible(a, s) {
			continue
		}
		u, err := m.accounts.Get(s.UserID)
		if err != nil {
			continue
		}
		avail := u.AvailableBudget()
		if !avail.IsPositive() {
			continue
		}
		out = append(out, Candidate{Strategy: s, Available: avail, RegistrationSeq: u.RegistrationSeq})
	}
	return out
}

// Available returns the user's current available budget. Unknown users have
// none.
func (m *Matcher) Available(userID string) decimal.Decimal {
	u, err := m.accounts.Get(userID)
	if err != nil {
		return decimal.Zero
	}
	return u.AvailableBudget()
}

// Eligible applies the status, filter and max-bid rules of s to a. Budget is
// checked separately.
func Eligible(a domain.Auction, s domain.Strategy) bool {
	if s.Status != domain.StrategyStatusActive || !s.MaxBid.IsPositive() {
		return false
	}
	if !matchesAny(s.Moments, string(a.TriggerType)) {
		return false
	}
	if !matchesTeam(s.TeamFocus, a.TeamID) {
		return false
	}
	if !matchesAny(s.PeriodFilter, a.Period) {
		return false
	}
	return matchesPlayers(s.PlayerFocus, a.PlayerIDs)
}

func matchesAny(filter []string, v string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == domain.FilterAll || f == v {
			return true
		}
	}
	return false
}

func matchesTeam(filter []string, team string) bool {
	if len(filter) == 0 || team == domain.TeamBoth {
		return true
	}
	for _, f := range filter {
		if f == domain.FilterAll || f == domain.TeamBoth || f == team {
			return true
		}
	}
	return false
}

func matchesPlayers(filter, players []string) bool {
	if len(filter) == 0 {
		return true
	}
	in := make(map[string]bool, len(players))
	for _, p := range players {
		in[p] = true
	}
	for _, f := range filter {
		if f == domain.FilterAll || in[f] {
			return true
		}
	}
	return false
}
