package auction

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

func TestEligible(t *testing.T) {
	a := domain.Auction{
		TriggerType: domain.TriggerGoalScored,
		TeamID:      "NYR",
		Period:      "3",
		PlayerIDs:   []string{"p1", "p2"},
	}
	base := domain.Strategy{Status: domain.StrategyStatusActive, MaxBid: dec("100"), BaseBid: dec("10")}

	cases := []struct {
		name string
		edit func(s *domain.Strategy)
		want bool
	}{
		{"empty filters match", func(s *domain.Strategy) {}, true},
		{"inactive", func(s *domain.Strategy) { s.Status = domain.StrategyStatusInactive }, false},
		{"zero max bid", func(s *domain.Strategy) { s.MaxBid = dec("0") }, false},
		{"moment listed", func(s *domain.Strategy) { s.Moments = []string{"save", "goal_scored"} }, true},
		{"moment all", func(s *domain.Strategy) { s.Moments = []string{"all"} }, true},
		{"moment missing", func(s *domain.Strategy) { s.Moments = []string{"save"} }, false},
		{"team listed", func(s *domain.Strategy) { s.TeamFocus = []string{"NYR"} }, true},
		{"team both", func(s *domain.Strategy) { s.TeamFocus = []string{"both"} }, true},
		{"team other", func(s *domain.Strategy) { s.TeamFocus = []string{"BOS"} }, false},
		{"period listed", func(s *domain.Strategy) { s.PeriodFilter = []string{"3", "OT"} }, true},
		{"period other", func(s *domain.Strategy) { s.PeriodFilter = []string{"1"} }, false},
		{"player listed", func(s *domain.Strategy) { s.PlayerFocus = []string{"p2"} }, true},
		{"player other", func(s *domain.Strategy) { s.PlayerFocus = []string{"p7"} }, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := base
			tc.edit(&s)
			assert.Equal(t, tc.want, Eligible(a, s))
		})
	}
}

func TestEligibleUnattributedAuctionMatchesAnyTeam(t *testing.T) {
	a := domain.Auction{TriggerType: domain.TriggerFight, TeamID: domain.TeamBoth}
	s := domain.Strategy{Status: domain.StrategyStatusActive, MaxBid: dec("1"), TeamFocus: []string{"BOS"}}
	assert.True(t, Eligible(a, s))
}

func TestMatchOrdersByCreationAndSkipsEmptyBudgets(t *testing.T) {
	h := newHarness(t)
	h.user(t, "rich", "1000")
	h.user(t, "broke", "0")
	h.strategy(t, "late", "rich", 3, "10", "1", "100")
	h.strategy(t, "early", "rich", 1, "10", "1", "100")
	h.strategy(t, "nobudget", "broke", 2, "10", "1", "100")
	_, err := h.strategies.Put(context.Background(), domain.Strategy{ID: "orphan", UserID: "ghost", BaseBid: dec("1"), MaxBid: dec("5")})
	require.NoError(t, err)

	cands := NewMatcher(h.ledger).Match(domain.Auction{TriggerType: domain.TriggerSave, TeamID: domain.TeamBoth}, h.strategies.List())
	require.Len(t, cands, 2)
	assert.Equal(t, "early", cands[0].Strategy.ID)
	assert.Equal(t, "late", cands[1].Strategy.ID)
	assert.Equal(t, "1000", cands[0].Available.String())
	assert.Equal(t, int64(1), cands[0].RegistrationSeq)
}
