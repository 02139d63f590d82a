package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRegisterAssignsSequence(t *testing.T) {
	ctx := context.Background()
	l := New(nil, testLogger())

	a, err := l.Register(ctx, "alice", "Alice", dec("5000"))
	require.NoError(t, err)
	b, err := l.Register(ctx, "", "Bob", dec("1000"))
	require.NoError(t, err)

	assert.Equal(t, int64(1), a.RegistrationSeq)
	assert.Equal(t, int64(2), b.RegistrationSeq)
	assert.NotEmpty(t, b.ID)

	_, err = l.Register(ctx, "alice", "Again", dec("1"))
	assert.True(t, errors.Is(err, domain.ErrAlreadyExists))

	users := l.List()
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].ID)
}

func TestRecordSpendNeverGoesNegative(t *testing.T) {
	ctx := context.Background()
	l := New(nil, testLogger())
	_, err := l.Register(ctx, "u1", "U1", dec("1000"))
	require.NoError(t, err)

	require.NoError(t, l.RecordSpend(ctx, "u1", dec("600")))
	avail, ok := l.AvailableBudget("u1")
	require.True(t, ok)
	assert.Equal(t, "400", avail.String())

	err = l.RecordSpend(ctx, "u1", dec("400.01"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientBudget))
	avail, _ = l.AvailableBudget("u1")
	assert.Equal(t, "400", avail.String(), "failed spend leaves budget untouched")

	require.NoError(t, l.RecordSpend(ctx, "u1", dec("400")))
	avail, _ = l.AvailableBudget("u1")
	assert.True(t, avail.IsZero())

	err = l.RecordSpend(ctx, "ghost", dec("1"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, ok = l.AvailableBudget("ghost")
	assert.False(t, ok)
}

func TestConcurrentSpendsRespectBudget(t *testing.T) {
	ctx := context.Background()
	l := New(nil, testLogger())
	_, err := l.Register(ctx, "u1", "U1", dec("1000"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	var mu sync.Mutex
	okCount := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.RecordSpend(ctx, "u1", dec("100")) == nil {
				mu.Lock()
				okCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, okCount)
	u, err := l.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, "1000", u.SpentBudget.String())
}

func TestAddFunds(t *testing.T) {
	ctx := context.Background()
	l := New(nil, testLogger())
	_, err := l.Register(ctx, "u1", "U1", dec("100"))
	require.NoError(t, err)

	u, err := l.AddFunds(ctx, "u1", dec("50.25"))
	require.NoError(t, err)
	assert.Equal(t, "150.25", u.TotalBudget.String())

	_, err = l.AddFunds(ctx, "u1", dec("0"))
	assert.Error(t, err)
	_, err = l.AddFunds(ctx, "nobody", dec("1"))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPersistAndLoad(t *testing.T) {
	ctx := context.Background()
	snaps := memory.NewSnapshotStore()

	l := New(snaps, testLogger())
	_, err := l.Register(ctx, "u1", "U1", dec("1000"))
	require.NoError(t, err)
	_, err = l.Register(ctx, "u2", "U2", dec("500"))
	require.NoError(t, err)
	require.NoError(t, l.RecordSpend(ctx, "u1", dec("250")))

	restored := New(snaps, testLogger())
	require.NoError(t, restored.Load(ctx))

	u1, err := restored.Get("u1")
	require.NoError(t, err)
	assert.Equal(t, "250", u1.SpentBudget.String())

	u3, err := restored.Register(ctx, "u3", "U3", dec("1"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), u3.RegistrationSeq)
}
