package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "nested", "scte.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSnapshotStoreReplacesCollection(t *testing.T) {
	ctx := context.Background()
	s := NewSnapshotStore(openTemp(t))

	docs, err := s.Load(ctx, domain.CollectionUsers)
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, s.Save(ctx, domain.CollectionUsers, map[string]json.RawMessage{
		"u1": json.RawMessage(`{"id":"u1"}`),
		"u2": json.RawMessage(`{"id":"u2"}`),
	}))
	require.NoError(t, s.Save(ctx, domain.CollectionBids, map[string]json.RawMessage{
		"b1": json.RawMessage(`{"id":"b1"}`),
	}))
	require.NoError(t, s.Save(ctx, domain.CollectionUsers, map[string]json.RawMessage{
		"u2": json.RawMessage(`{"id":"u2","name":"two"}`),
	}))

	docs, err = s.Load(ctx, domain.CollectionUsers)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `{"id":"u2","name":"two"}`, string(docs["u2"]))

	bids, err := s.Load(ctx, domain.CollectionBids)
	require.NoError(t, err)
	assert.Len(t, bids, 1)
}

func TestSnapshotStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scte.db")

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewSnapshotStore(db).Save(ctx, "c", map[string]json.RawMessage{"k": json.RawMessage(`1`)}))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()
	docs, err := NewSnapshotStore(db).Load(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, "1", string(docs["k"]))
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	a := NewAuditStore(openTemp(t))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i, ev := range []string{"one", "two", "three"} {
		at := base.Add(time.Duration(i) * time.Minute)
		a.now = func() time.Time { return at }
		require.NoError(t, a.Log(ctx, ev, map[string]any{"i": i}))
	}

	all, err := a.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "three", all[0].Event)
	assert.Equal(t, float64(2), all[0].Detail["i"])
	assert.True(t, all[0].CreatedAt.Equal(base.Add(2*time.Minute)))

	page, err := a.List(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "two", page[0].Event)

	since := base.Add(time.Minute)
	recent, err := a.List(ctx, domain.ListOpts{Since: &since})
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}
