// Package auction runs the marker-driven auction pipeline: admission,
// lifecycle, strategy matching, ascending-bid resolution and settlement.
package auction

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
	"github.com/alanyoungcy/scteauction/internal/store"
)

// State is the single in-process store of auctions, bids and results. It is
// built once at start-up and shared by every pipeline component.
type State struct {
	mu              sync.RWMutex
	auctions        map[string]domain.Auction
	bids            map[string]domain.Bid
	bidsByAuction   map[string][]string
	results         map[string]domain.AuctionResult
	resultByAuction map[string]string

	saveMu sync.Mutex
	store  domain.SnapshotStore
	logger *slog.Logger
}

// NewState creates an empty State. snapshots may be nil.
func NewState(snapshots domain.SnapshotStore, logger *slog.Logger) *State {
	return &State{
		auctions:        make(map[string]domain.Auction),
		bids:            make(map[string]domain.Bid),
		bidsByAuction:   make(map[string][]string),
		results:         make(map[string]domain.AuctionResult),
		resultByAuction: make(map[string]string),
		store:           snapshots,
		logger:          logger.With(slog.String("component", "auction_state")),
	}
}

// Load restores auctions, bids and results from the snapshot store. Each
// collection that fails to load starts empty.
func (s *State) Load(ctx context.Context) error {
	bad := func(key string, err error) {
		s.logger.Warn("skipping undecodable document", slog.String("id", key), slog.String("error", err.Error()))
	}
	auctions, aerr := store.LoadCollection[domain.Auction](ctx, s.store, domain.CollectionAuctions, bad)
	bids, berr := store.LoadCollection[domain.Bid](ctx, s.store, domain.CollectionBids, bad)
	results, rerr := store.LoadCollection[domain.AuctionResult](ctx, s.store, domain.CollectionResults, bad)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range auctions {
		s.auctions[a.ID] = a
	}
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].AuctionID != bids[j].AuctionID {
			return bids[i].AuctionID < bids[j].AuctionID
		}
		return bids[i].Sequence < bids[j].Sequence
	})
	for _, b := range bids {
		s.bids[b.ID] = b
		s.bidsByAuction[b.AuctionID] = append(s.bidsByAuction[b.AuctionID], b.ID)
	}
	for _, r := range results {
		s.results[r.ID] = r
		s.resultByAuction[r.AuctionID] = r.ID
	}

	for _, err := range []error{aerr, berr, rerr} {
		if err != nil {
			return fmt.Errorf("auction: load state: %w", err)
		}
	}
	return nil
}

// Persist writes all three collections. Failures are logged and processing
// continues from memory.
func (s *State) Persist(ctx context.Context) {
	if s.store == nil {
		return
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	auctions := make([]domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		auctions = append(auctions, a)
	}
	bids := make([]domain.Bid, 0, len(s.bids))
	for _, b := range s.bids {
		bids = append(bids, b)
	}
	results := make([]domain.AuctionResult, 0, len(s.results))
	for _, r := range s.results {
		results = append(results, r)
	}
	s.mu.RUnlock()

	if err := store.SaveCollection(ctx, s.store, domain.CollectionAuctions, auctions, func(a domain.Auction) string { return a.ID }); err != nil {
		s.logger.Error("persist auctions failed", slog.String("error", err.Error()))
	}
	if err := store.SaveCollection(ctx, s.store, domain.CollectionBids, bids, func(b domain.Bid) string { return b.ID }); err != nil {
		s.logger.Error("persist bids failed", slog.String("error", err.Error()))
	}
	if err := store.SaveCollection(ctx, s.store, domain.CollectionResults, results, func(r domain.AuctionResult) string { return r.ID }); err != nil {
		s.logger.Error("persist results failed", slog.String("error", err.Error()))
	}
}

// admit counts live auctions and lets decide create one, all under the write
// lock so concurrent admissions see each other.
func (s *State) admit(decide func(live int) (*domain.Auction, Decision)) (domain.Auction, Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, d := decide(s.liveLocked())
	if a == nil || !d.Admitted {
		return domain.Auction{}, d
	}
	s.auctions[a.ID] = *a
	return *a, d
}

func (s *State) liveLocked() int {
	n := 0
	for _, a := range s.auctions {
		if a.Status.Live() {
			n++
		}
	}
	return n
}

func (s *State) insert(a domain.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.auctions[a.ID]; ok {
		return fmt.Errorf("auction %s: %w", a.ID, domain.ErrAlreadyExists)
	}
	s.auctions[a.ID] = a
	return nil
}

// update applies fn to a stored auction under the write lock.
func (s *State) update(id string, fn func(a *domain.Auction) error) (domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok {
		return domain.Auction{}, fmt.Errorf("auction %s: %w", id, domain.ErrNotFound)
	}
	if err := fn(&a); err != nil {
		return domain.Auction{}, err
	}
	s.auctions[id] = a
	return a, nil
}

// Auction returns a copy of an auction.
func (s *State) Auction(id string) (domain.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.auctions[id]
	if !ok {
		return domain.Auction{}, fmt.Errorf("auction %s: %w", id, domain.ErrNotFound)
	}
	return a, nil
}

// Filter narrows an auction listing.
type Filter struct {
	Status domain.AuctionStatus
	GameID string
	Limit  int
	Offset int
}

// Auctions lists auctions newest first.
func (s *State) Auctions(f Filter) []domain.Auction {
	s.mu.RLock()
	out := make([]domain.Auction, 0, len(s.auctions))
	for _, a := range s.auctions {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if f.GameID != "" && a.GameID != f.GameID {
			continue
		}
		out = append(out, a)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Limit, f.Offset)
}

// LiveCount returns the number of pending and active auctions.
func (s *State) LiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveLocked()
}

// recordBid appends a bid and raises the auction's high bid when the amount
// exceeds it. The high bid never decreases.
func (s *State) recordBid(b domain.Bid) (domain.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[b.AuctionID]
	if !ok {
		return domain.Bid{}, fmt.Errorf("auction %s: %w", b.AuctionID, domain.ErrNotFound)
	}
	if a.Status != domain.AuctionStatusActive {
		return domain.Bid{}, fmt.Errorf("auction %s: %w", a.ID, domain.ErrAuctionNotActive)
	}
	b.Sequence = len(s.bidsByAuction[a.ID]) + 1
	s.bids[b.ID] = b
	s.bidsByAuction[a.ID] = append(s.bidsByAuction[a.ID], b.ID)

	a.BidIDs = append(append([]string(nil), a.BidIDs...), b.ID)
	if b.Amount.GreaterThan(a.CurrentHighBid) {
		a.CurrentHighBid = b.Amount
		a.CurrentHighBidderID = b.UserID
	}
	s.auctions[a.ID] = a
	return b, nil
}

// setBidStatus moves active bids to status. Bids in any other status are
// left alone. It returns the bids that changed.
func (s *State) setBidStatus(ids []string, status domain.BidStatus) []domain.Bid {
	return s.transitionBids(ids, domain.BidStatusActive, status)
}

func (s *State) transitionBids(ids []string, from, to domain.BidStatus) []domain.Bid {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed []domain.Bid
	for _, id := range ids {
		b, ok := s.bids[id]
		if !ok || b.Status != from {
			continue
		}
		b.Status = to
		s.bids[id] = b
		changed = append(changed, b)
	}
	return changed
}

// activeBidIDs returns the ids of an auction's active bids, optionally only
// those of one user.
func (s *State) activeBidIDs(auctionID, userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, id := range s.bidsByAuction[auctionID] {
		b := s.bids[id]
		if b.Status == domain.BidStatusActive && (userID == "" || b.UserID == userID) {
			out = append(out, id)
		}
	}
	return out
}

// Bids returns an auction's bids in placement order.
func (s *State) Bids(auctionID string) []domain.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.bidsByAuction[auctionID]
	out := make([]domain.Bid, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.bids[id])
	}
	return out
}

// Bid returns a single bid.
func (s *State) Bid(id string) (domain.Bid, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bids[id]
	if !ok {
		return domain.Bid{}, fmt.Errorf("bid %s: %w", id, domain.ErrNotFound)
	}
	return b, nil
}

// Result returns a result by id.
func (s *State) Result(id string) (domain.AuctionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return domain.AuctionResult{}, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	return r, nil
}

// ResultForAuction returns the result of a completed auction.
func (s *State) ResultForAuction(auctionID string) (domain.AuctionResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.resultByAuction[auctionID]
	if !ok {
		return domain.AuctionResult{}, false
	}
	return s.results[id], true
}

// Results lists results newest first.
func (s *State) Results(limit, offset int) []domain.AuctionResult {
	s.mu.RLock()
	out := make([]domain.AuctionResult, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, limit, offset)
}

// completeAuction moves an active auction to completed and stores res. Both
// changes happen under one lock.
func (s *State) completeAuction(id string, at time.Time, res *domain.AuctionResult, winner *Winner) (domain.Auction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.auctions[id]
	if !ok {
		return domain.Auction{}, fmt.Errorf("auction %s: %w", id, domain.ErrNotFound)
	}
	if err := checkTransition(a.Status, domain.AuctionStatusCompleted); err != nil {
		return domain.Auction{}, fmt.Errorf("auction %s: %w", id, err)
	}
	if _, exists := s.resultByAuction[id]; exists {
		return domain.Auction{}, fmt.Errorf("auction %s result: %w", id, domain.ErrAlreadyExists)
	}
	a.Status = domain.AuctionStatusCompleted
	a.CompletedAt = &at
	s.results[res.ID] = *res
	s.resultByAuction[id] = res.ID
	if winner != nil {
		a.CurrentHighBid = decimal.Max(a.CurrentHighBid, winner.Amount)
		a.CurrentHighBidderID = winner.UserID
	}
	s.auctions[id] = a
	return a, nil
}

// UpdateResult applies fn to a stored result.
func (s *State) UpdateResult(id string, fn func(r *domain.AuctionResult) error) (domain.AuctionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[id]
	if !ok {
		return domain.AuctionResult{}, fmt.Errorf("result %s: %w", id, domain.ErrNotFound)
	}
	if err := fn(&r); err != nil {
		return domain.AuctionResult{}, err
	}
	s.results[id] = r
	return r, nil
}

// Record bundles an auction with its bids and result.
func (s *State) Record(auctionID string) (domain.AuctionRecord, error) {
	a, err := s.Auction(auctionID)
	if err != nil {
		return domain.AuctionRecord{}, err
	}
	rec := domain.AuctionRecord{Auction: a, Bids: s.Bids(auctionID)}
	if r, ok := s.ResultForAuction(auctionID); ok {
		rec.Result = &r
	}
	return rec, nil
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
