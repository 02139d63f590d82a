package auction

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

func trig(id string, value string, imp domain.Importance) domain.Trigger {
	return domain.Trigger{
		ID:             id,
		Type:           domain.TriggerGoalScored,
		GameID:         "G1",
		Period:         "2",
		TeamID:         "NYR",
		PlayerIDs:      []string{"p9"},
		Importance:     imp,
		EstimatedValue: dec(value),
		ContextScore:   1.5,
	}
}

func TestAdmitBuildsPendingAuction(t *testing.T) {
	h := newHarness(t)
	ad := NewAdmission(h.state, DefaultAdmissionConfig(), h.sinks, testLogger())

	a, d := ad.Admit(context.Background(), trig("t1", "5000", domain.ImportanceHigh))
	require.True(t, d.Admitted)
	assert.Equal(t, 1, d.Live)
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, domain.AuctionStatusPending, a.Status)
	assert.Equal(t, "t1", a.TriggerID)
	assert.Equal(t, "5000", a.BasePrice.String())
	assert.Equal(t, "3500", a.ReservePrice.String())
	assert.Equal(t, "500", a.IncrementAmount.String())
	assert.Equal(t, "NYR", a.TeamID)
	assert.Equal(t, []string{"p9"}, a.PlayerIDs)
	assert.Equal(t, int64(500), a.DurationMs)
	assert.True(t, a.CurrentHighBid.IsZero())

	stored, err := h.state.Auction(a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, stored.ID)
	assert.Greater(t, h.snapshots.Saves(), 0)
}

func TestAdmitMinimumIncrementAndTeam(t *testing.T) {
	h := newHarness(t)
	ad := NewAdmission(h.state, DefaultAdmissionConfig(), h.sinks, testLogger())

	tr := trig("t1", "300", domain.ImportanceNormal)
	tr.TeamID = ""
	a, d := ad.Admit(context.Background(), tr)
	require.True(t, d.Admitted)
	assert.Equal(t, "50", a.IncrementAmount.String())
	assert.Equal(t, domain.TeamBoth, a.TeamID)
}

func TestAdmitDurationByImportance(t *testing.T) {
	cases := []struct {
		imp     domain.Importance
		def     int64
		wantDur int64
	}{
		{domain.ImportanceCritical, 500, 750},
		{domain.ImportanceHigh, 500, 500},
		{domain.ImportanceNormal, 500, 500},
		{domain.ImportanceLow, 500, 250},
		{domain.ImportanceCritical, 4000, 5000},
		{domain.ImportanceLow, 150, 100},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s_%d", tc.imp, tc.def), func(t *testing.T) {
			h := newHarness(t)
			cfg := DefaultAdmissionConfig()
			cfg.DefaultDurationMs = tc.def
			cfg.LoadShedRatio = 1
			ad := NewAdmission(h.state, cfg, h.sinks, testLogger())
			a, d := ad.Admit(context.Background(), trig("t", "1000", tc.imp))
			require.True(t, d.Admitted)
			assert.Equal(t, tc.wantDur, a.DurationMs)
		})
	}
}

func TestAdmitRejectsBelowMinValue(t *testing.T) {
	h := newHarness(t)
	ad := NewAdmission(h.state, DefaultAdmissionConfig(), h.sinks, testLogger())

	_, d := ad.Admit(context.Background(), trig("t1", "99.99", domain.ImportanceCritical))
	assert.False(t, d.Admitted)
	assert.Equal(t, ReasonBelowMinValue, d.Reason)
	assert.Zero(t, h.state.LiveCount())
}

func TestAdmitAtCapacityRejectsEveryImportance(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cfg := DefaultAdmissionConfig()
	cfg.MaxConcurrent = 2
	cfg.LoadShedRatio = 1
	ad := NewAdmission(h.state, cfg, h.sinks, testLogger())

	first, d := ad.Admit(ctx, trig("t1", "1000", domain.ImportanceHigh))
	require.True(t, d.Admitted)
	_, d = ad.Admit(ctx, trig("t2", "1000", domain.ImportanceHigh))
	require.True(t, d.Admitted)

	_, d = ad.Admit(ctx, trig("t3", "9000", domain.ImportanceCritical))
	assert.False(t, d.Admitted)
	assert.Equal(t, ReasonAtCapacity, d.Reason)
	assert.Equal(t, 2, d.Live)

	_, err := h.lifecycle.Activate(ctx, first.ID)
	require.NoError(t, err)
	_, err = h.settlement.Finalize(ctx, first.ID, nil)
	require.NoError(t, err)

	_, d = ad.Admit(ctx, trig("t4", "1000", domain.ImportanceLow))
	assert.True(t, d.Admitted)
}

func TestAdmitShedsLowAndNormalUnderLoad(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	cfg := DefaultAdmissionConfig()
	cfg.MaxConcurrent = 10
	cfg.LoadShedRatio = 0.2
	ad := NewAdmission(h.state, cfg, h.sinks, testLogger())

	for i := 0; i < 2; i++ {
		_, d := ad.Admit(ctx, trig(fmt.Sprint(i), "1000", domain.ImportanceNormal))
		require.True(t, d.Admitted)
	}

	_, d := ad.Admit(ctx, trig("n", "1000", domain.ImportanceNormal))
	assert.Equal(t, ReasonLoadShed, d.Reason)
	_, d = ad.Admit(ctx, trig("l", "1000", domain.ImportanceLow))
	assert.Equal(t, ReasonLoadShed, d.Reason)
	_, d = ad.Admit(ctx, trig("h", "1000", domain.ImportanceHigh))
	assert.True(t, d.Admitted)
}

func TestAdmitConcurrentNeverExceedsCapacity(t *testing.T) {
	h := newHarness(t)
	cfg := DefaultAdmissionConfig()
	cfg.MaxConcurrent = 5
	cfg.LoadShedRatio = 1
	ad := NewAdmission(h.state, cfg, Sinks{}, testLogger())

	done := make(chan bool, 50)
	for i := 0; i < 50; i++ {
		go func(i int) {
			_, d := ad.Admit(context.Background(), trig(fmt.Sprint(i), "1000", domain.ImportanceHigh))
			done <- d.Admitted
		}(i)
	}
	admitted := 0
	for i := 0; i < 50; i++ {
		if <-done {
			admitted++
		}
	}
	assert.Equal(t, 5, admitted)
	assert.Equal(t, 5, h.state.LiveCount())
}
