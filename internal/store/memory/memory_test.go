package memory

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

func TestSnapshotStoreReplacesCollection(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore()

	docs, err := s.Load(ctx, "auctions")
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, s.Save(ctx, "auctions", map[string]json.RawMessage{
		"a": json.RawMessage(`{"id":"a"}`),
		"b": json.RawMessage(`{"id":"b"}`),
	}))
	require.NoError(t, s.Save(ctx, "auctions", map[string]json.RawMessage{
		"b": json.RawMessage(`{"id":"b","v":2}`),
	}))

	docs, err = s.Load(ctx, "auctions")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `{"id":"b","v":2}`, string(docs["b"]))
	assert.Equal(t, 2, s.Saves())

	// Loaded documents are copies.
	docs["b"][0] = '['
	again, _ := s.Load(ctx, "auctions")
	assert.JSONEq(t, `{"id":"b","v":2}`, string(again["b"]))
}

func TestAuditStoreListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for _, ev := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Log(ctx, ev, map[string]any{"n": ev}))
	}

	all, err := s.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "d", all[0].Event)
	assert.Equal(t, int64(4), all[0].ID)

	page, err := s.List(ctx, domain.ListOpts{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].Event)
	assert.Equal(t, "b", page[1].Event)

	since := base.Add(3 * time.Minute)
	recent, err := s.List(ctx, domain.ListOpts{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 2)
}
