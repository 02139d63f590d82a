package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/store/memory"
)

func testRegistry(snaps domain.SnapshotStore) *Registry {
	r := NewRegistry(snaps, slog.New(slog.NewTextHandler(io.Discard, nil)))
	clock := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return r
}

func strat(user string, base, max string) domain.Strategy {
	return domain.Strategy{
		UserID:       user,
		Name:         user + " goals",
		Moments:      []string{"goal_scored"},
		BaseBid:      decimal.RequireFromString(base),
		BidIncrement: decimal.NewFromInt(100),
		MaxBid:       decimal.RequireFromString(max),
	}
}

func TestPutAssignsDefaults(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(nil)

	s, err := r.Put(ctx, strat("u1", "1000", "3000"))
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, domain.StrategyStatusActive, s.Status)
	assert.False(t, s.CreatedAt.IsZero())

	// Updates keep the original creation time.
	s.MaxBid = decimal.NewFromInt(4000)
	s.CreatedAt = time.Time{}
	updated, err := r.Put(ctx, s)
	require.NoError(t, err)
	got, err := r.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.CreatedAt, got.CreatedAt)
	assert.Equal(t, "4000", got.MaxBid.String())
}

func TestPutValidates(t *testing.T) {
	r := testRegistry(nil)

	_, err := r.Put(context.Background(), strat("", "1", "2"))
	assert.True(t, errors.Is(err, domain.ErrInvalidStrategy))

	_, err = r.Put(context.Background(), strat("u1", "500", "100"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_bid must be >= base_bid")
}

func TestListOrderAndAllocated(t *testing.T) {
	ctx := context.Background()
	r := testRegistry(nil)

	first, err := r.Put(ctx, strat("u1", "100", "1000"))
	require.NoError(t, err)
	second, err := r.Put(ctx, strat("u2", "100", "2000"))
	require.NoError(t, err)
	third, err := r.Put(ctx, strat("u1", "100", "500"))
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{first.ID, second.ID, third.ID}, []string{list[0].ID, list[1].ID, list[2].ID})

	assert.Equal(t, "1500", r.Allocated("u1").String())
	_, err = r.SetStatus(ctx, third.ID, domain.StrategyStatusInactive)
	require.NoError(t, err)
	assert.Equal(t, "1000", r.Allocated("u1").String())

	require.NoError(t, r.Delete(ctx, first.ID))
	assert.Len(t, r.ListByUser("u1"), 1)
	assert.True(t, errors.Is(r.Delete(ctx, first.ID), domain.ErrNotFound))
}

func TestSortByCreationTiesOnID(t *testing.T) {
	at := time.Unix(100, 0)
	list := []domain.Strategy{{ID: "b", CreatedAt: at}, {ID: "a", CreatedAt: at}, {ID: "c", CreatedAt: at.Add(-time.Second)}}
	SortByCreation(list)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "a", list[1].ID)
	assert.Equal(t, "b", list[2].ID)
}

func TestRegistryPersists(t *testing.T) {
	ctx := context.Background()
	snaps := memory.NewSnapshotStore()
	r := testRegistry(snaps)

	s, err := r.Put(ctx, strat("u1", "100", "1000"))
	require.NoError(t, err)

	restored := testRegistry(snaps)
	require.NoError(t, restored.Load(ctx))
	got, err := restored.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.UserID, got.UserID)
	assert.True(t, s.MaxBid.Equal(got.MaxBid))
}
