// Package ledger tracks bidder budgets. Spends are checked and applied under
// one lock so available budget never goes negative.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/store"
)

// Ledger holds user budgets and assigns registration order.
type Ledger struct {
	mu      sync.RWMutex
	users   map[string]domain.User
	nextSeq int64

	saveMu sync.Mutex
	store  domain.SnapshotStore
	now    func() time.Time
	logger *slog.Logger
}

// New creates an empty Ledger. snapshots may be nil.
func New(snapshots domain.SnapshotStore, logger *slog.Logger) *Ledger {
	return &Ledger{
		users:  make(map[string]domain.User),
		store:  snapshots,
		now:    time.Now,
		logger: logger.With(slog.String("component", "ledger")),
	}
}

// Load restores users from the snapshot store. Failures leave the ledger
// empty and are returned for logging.
func (l *Ledger) Load(ctx context.Context) error {
	users, err := store.LoadCollection[domain.User](ctx, l.store, domain.CollectionUsers, func(key string, err error) {
		l.logger.Warn("skipping undecodable user", slog.String("id", key), slog.String("error", err.Error()))
	})
	if err != nil {
		return fmt.Errorf("ledger: load: %w", err)
	}
	l.Restore(users)
	return nil
}

// Restore replaces all users. The next registration sequence continues after
// the highest restored one.
func (l *Ledger) Restore(users []domain.User) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users = make(map[string]domain.User, len(users))
	l.nextSeq = 0
	for _, u := range users {
		l.users[u.ID] = u
		if u.RegistrationSeq > l.nextSeq {
			l.nextSeq = u.RegistrationSeq
		}
	}
}

// Register creates a user with a starting budget. An empty id is generated.
func (l *Ledger) Register(ctx context.Context, id, name string, budget decimal.Decimal) (domain.User, error) {
	if budget.IsNegative() {
		return domain.User{}, fmt.Errorf("ledger: register: negative budget")
	}
	if id == "" {
		id = uuid.NewString()
	}

	l.mu.Lock()
	if _, ok := l.users[id]; ok {
		l.mu.Unlock()
		return domain.User{}, fmt.Errorf("ledger: register %s: %w", id, domain.ErrAlreadyExists)
	}
	l.nextSeq++
	u := domain.User{
		ID:              id,
		Name:            name,
		RegistrationSeq: l.nextSeq,
		TotalBudget:     budget.Round(2),
		SpentBudget:     decimal.Zero,
		CreatedAt:       l.now(),
	}
	l.users[id] = u
	l.mu.Unlock()

	l.persist(ctx)
	return u, nil
}

// Get returns a user by id.
func (l *Ledger) Get(id string) (domain.User, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

// List returns all users in registration order.
func (l *Ledger) List() []domain.User {
	l.mu.RLock()
	out := make([]domain.User, 0, len(l.users))
	for _, u := range l.users {
		out = append(out, u)
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationSeq < out[j].RegistrationSeq })
	return out
}

// AvailableBudget returns max(0, total-spent). The bool is false for unknown
// users.
func (l *Ledger) AvailableBudget(userID string) (decimal.Decimal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.users[userID]
	if !ok {
		return decimal.Zero, false
	}
	return u.AvailableBudget(), true
}

// AddFunds increases a user's total budget.
func (l *Ledger) AddFunds(ctx context.Context, userID string, amount decimal.Decimal) (domain.User, error) {
	if !amount.IsPositive() {
		return domain.User{}, fmt.Errorf("ledger: add funds: amount must be positive")
	}
	l.mu.Lock()
	u, ok := l.users[userID]
	if !ok {
		l.mu.Unlock()
		return domain.User{}, fmt.Errorf("ledger: add funds %s: %w", userID, domain.ErrNotFound)
	}
	u.TotalBudget = u.TotalBudget.Add(amount).Round(2)
	l.users[userID] = u
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "funds added",
		slog.String("user_id", userID),
		slog.String("amount", amount.StringFixed(2)),
	)
	l.persist(ctx)
	return u, nil
}

// RecordSpend consumes budget for a won auction. It fails with
// domain.ErrInsufficientBudget, leaving the user untouched, when the spend
// would exceed the available budget.
func (l *Ledger) RecordSpend(ctx context.Context, userID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("ledger: spend: negative amount")
	}
	l.mu.Lock()
	u, ok := l.users[userID]
	if !ok {
		l.mu.Unlock()
		return fmt.Errorf("ledger: spend %s: %w", userID, domain.ErrNotFound)
	}
	if amount.GreaterThan(u.AvailableBudget()) {
		l.mu.Unlock()
		return fmt.Errorf("ledger: spend %s of %s: %w", amount.StringFixed(2), userID, domain.ErrInsufficientBudget)
	}
	u.SpentBudget = u.SpentBudget.Add(amount).Round(2)
	l.users[userID] = u
	l.mu.Unlock()

	l.persist(ctx)
	return nil
}

// persist writes the users collection. Saves are serialized so the last write
// always reflects the newest state.
func (l *Ledger) persist(ctx context.Context) {
	if l.store == nil {
		return
	}
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	users := l.List()
	err := store.SaveCollection(ctx, l.store, domain.CollectionUsers, users, func(u domain.User) string { return u.ID })
	if err != nil && !errors.Is(err, context.Canceled) {
		l.logger.Error("persist users failed", slog.String("error", err.Error()))
	}
}
