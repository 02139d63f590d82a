// Package strategy holds the registry of standing automated-bidding
// strategies.
package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/store"
)

// Registry manages bidding strategies keyed by id. It is safe for concurrent
// use and persists the strategies collection after every change.
type Registry struct {
	strategies map[string]domain.Strategy
	mu         sync.RWMutex

	saveMu sync.Mutex
	store  domain.SnapshotStore
	now    func() time.Time
	logger *slog.Logger
}

// NewRegistry returns an empty Registry. snapshots may be nil.
func NewRegistry(snapshots domain.SnapshotStore, logger *slog.Logger) *Registry {
	return &Registry{
		strategies: make(map[string]domain.Strategy),
		store:      snapshots,
		now:        time.Now,
		logger:     logger.With(slog.String("component", "strategy_registry")),
	}
}

// Load restores strategies from the snapshot store.
func (r *Registry) Load(ctx context.Context) error {
	list, err := store.LoadCollection[domain.Strategy](ctx, r.store, domain.CollectionStrategies, func(key string, err error) {
		r.logger.Warn("skipping undecodable strategy", slog.String("id", key), slog.String("error", err.Error()))
	})
	if err != nil {
		return fmt.Errorf("strategy: load: %w", err)
	}
	r.mu.Lock()
	r.strategies = make(map[string]domain.Strategy, len(list))
	for _, s := range list {
		r.strategies[s.ID] = s
	}
	r.mu.Unlock()
	return nil
}

// Validate checks the bidding fields of s.
func Validate(s domain.Strategy) error {
	var errs []string
	if strings.TrimSpace(s.UserID) == "" {
		errs = append(errs, "user_id is required")
	}
	if s.BaseBid.IsNegative() {
		errs = append(errs, "base_bid must be >= 0")
	}
	if s.BidIncrement.IsNegative() {
		errs = append(errs, "bid_increment must be >= 0")
	}
	if s.MaxBid.IsNegative() {
		errs = append(errs, "max_bid must be >= 0")
	}
	if s.MaxBid.LessThan(s.BaseBid) {
		errs = append(errs, "max_bid must be >= base_bid")
	}
	switch s.Status {
	case "", domain.StrategyStatusActive, domain.StrategyStatusInactive:
	default:
		errs = append(errs, fmt.Sprintf("unknown status %q", s.Status))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidStrategy, strings.Join(errs, "; "))
	}
	return nil
}

// Put creates or replaces a strategy. New strategies get an id, a creation
// time and active status when those are unset. Replacing keeps the original
// creation time so matching order is stable.
func (r *Registry) Put(ctx context.Context, s domain.Strategy) (domain.Strategy, error) {
	if err := Validate(s); err != nil {
		return domain.Strategy{}, err
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = domain.StrategyStatusActive
	}
	s.BaseBid = s.BaseBid.Round(2)
	s.BidIncrement = s.BidIncrement.Round(2)
	s.MaxBid = s.MaxBid.Round(2)

	r.mu.Lock()
	if prev, ok := r.strategies[s.ID]; ok {
		s.CreatedAt = prev.CreatedAt
	} else if s.CreatedAt.IsZero() {
		s.CreatedAt = r.now()
	}
	r.strategies[s.ID] = s
	r.mu.Unlock()

	r.logger.InfoContext(ctx, "strategy saved",
		slog.String("strategy_id", s.ID),
		slog.String("user_id", s.UserID),
		slog.String("max_bid", s.MaxBid.StringFixed(2)),
	)
	r.persist(ctx)
	return s, nil
}

// Get retrieves a strategy by id.
func (r *Registry) Get(id string) (domain.Strategy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.strategies[id]
	if !ok {
		return domain.Strategy{}, fmt.Errorf("strategy %q: %w", id, domain.ErrNotFound)
	}
	return s, nil
}

// List returns all strategies ordered by creation time, then id.
func (r *Registry) List() []domain.Strategy {
	r.mu.RLock()
	out := make([]domain.Strategy, 0, len(r.strategies))
	for _, s := range r.strategies {
		out = append(out, s)
	}
	r.mu.RUnlock()
	SortByCreation(out)
	return out
}

// ListByUser returns a user's strategies in creation order.
func (r *Registry) ListByUser(userID string) []domain.Strategy {
	all := r.List()
	out := all[:0]
	for _, s := range all {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	return out
}

// Allocated sums MaxBid over a user's active strategies.
func (r *Registry) Allocated(userID string) decimal.Decimal {
	total := decimal.Zero
	for _, s := range r.ListByUser(userID) {
		if s.Status == domain.StrategyStatusActive {
			total = total.Add(s.MaxBid)
		}
	}
	return total
}

// SetStatus toggles a strategy between active and inactive.
func (r *Registry) SetStatus(ctx context.Context, id string, status domain.StrategyStatus) (domain.Strategy, error) {
	if status != domain.StrategyStatusActive && status != domain.StrategyStatusInactive {
		return domain.Strategy{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidStrategy, status)
	}
	r.mu.Lock()
	s, ok := r.strategies[id]
	if !ok {
		r.mu.Unlock()
		return domain.Strategy{}, fmt.Errorf("strategy %q: %w", id, domain.ErrNotFound)
	}
	s.Status = status
	r.strategies[id] = s
	r.mu.Unlock()

	r.persist(ctx)
	return s, nil
}

// Delete removes a strategy.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.strategies[id]; !ok {
		r.mu.Unlock()
		return fmt.Errorf("strategy %q: %w", id, domain.ErrNotFound)
	}
	delete(r.strategies, id)
	r.mu.Unlock()

	r.persist(ctx)
	return nil
}

// SortByCreation orders strategies by CreatedAt, then ID.
func SortByCreation(list []domain.Strategy) {
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}

func (r *Registry) persist(ctx context.Context) {
	if r.store == nil {
		return
	}
	r.saveMu.Lock()
	defer r.saveMu.Unlock()

	err := store.SaveCollection(ctx, r.store, domain.CollectionStrategies, r.List(), func(s domain.Strategy) string { return s.ID })
	if err != nil {
		r.logger.Error("persist strategies failed", slog.String("error", err.Error()))
	}
}
