package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// StrategyRegistry defines what the strategy handler requires from the
// registry.
type StrategyRegistry interface {
	List() []domain.Strategy
	ListByUser(userID string) []domain.Strategy
	Get(id string) (domain.Strategy, error)
	Put(ctx context.Context, s domain.Strategy) (domain.Strategy, error)
	SetStatus(ctx context.Context, id string, status domain.StrategyStatus) (domain.Strategy, error)
	Delete(ctx context.Context, id string) error
}

// UserLookup resolves bidder accounts.
type UserLookup interface {
	Get(id string) (domain.User, error)
}

// StrategyHandler serves the strategy registry.
type StrategyHandler struct {
	registry StrategyRegistry
	users    UserLookup
	logger   *slog.Logger
}

// NewStrategyHandler creates a StrategyHandler.
func NewStrategyHandler(registry StrategyRegistry, users UserLookup, logger *slog.Logger) *StrategyHandler {
	return &StrategyHandler{registry: registry, users: users, logger: logger}
}

// ListStrategies returns strategies in matching order, optionally for one
// user.
// GET /api/strategies?user_id=...
func (h *StrategyHandler) ListStrategies(w http.ResponseWriter, r *http.Request) {
	var list []domain.Strategy
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		list = h.registry.ListByUser(userID)
	} else {
		list = h.registry.List()
	}
	if list == nil {
		list = []domain.Strategy{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"strategies": list})
}

// GetStrategy returns one strategy.
// GET /api/strategies/{id}
func (h *StrategyHandler) GetStrategy(w http.ResponseWriter, r *http.Request) {
	s, err := h.registry.Get(pathParam(r, "id"))
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get strategy")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type strategyRequest struct {
	ID           string                `json:"id"`
	UserID       string                `json:"user_id"`
	Name         string                `json:"name"`
	Moments      []string              `json:"moments"`
	TeamFocus    []string              `json:"team_focus"`
	PeriodFilter []string              `json:"period_filter"`
	PlayerFocus  []string              `json:"player_focus"`
	BaseBid      amount                `json:"base_bid"`
	BidIncrement amount                `json:"bid_increment"`
	MaxBid       amount                `json:"max_bid"`
	Status       domain.StrategyStatus `json:"status"`
}

// PutStrategy creates a strategy, or replaces it when the body carries the
// id of an existing one.
// POST /api/strategies
func (h *StrategyHandler) PutStrategy(w http.ResponseWriter, r *http.Request) {
	var req strategyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.BaseBid.set || !req.MaxBid.set {
		writeError(w, http.StatusBadRequest, "base_bid and max_bid are required")
		return
	}
	if _, err := h.users.Get(req.UserID); err != nil {
		writeDomainError(w, r, h.logger, fmt.Errorf("user %q: %w", req.UserID, err), "failed to save strategy")
		return
	}

	status := http.StatusCreated
	if req.ID != "" {
		if _, err := h.registry.Get(req.ID); err == nil {
			status = http.StatusOK
		}
	}

	s, err := h.registry.Put(r.Context(), domain.Strategy{
		ID:           req.ID,
		UserID:       req.UserID,
		Name:         req.Name,
		Moments:      orAll(req.Moments),
		TeamFocus:    orAll(req.TeamFocus),
		PeriodFilter: orAll(req.PeriodFilter),
		PlayerFocus:  orAll(req.PlayerFocus),
		BaseBid:      req.BaseBid.Decimal,
		BidIncrement: req.BidIncrement.Decimal,
		MaxBid:       req.MaxBid.Decimal,
		Status:       req.Status,
	})
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to save strategy")
		return
	}
	writeJSON(w, status, s)
}

type strategyStatusRequest struct {
	Status domain.StrategyStatus `json:"status"`
}

// SetStatus activates or deactivates a strategy.
// PUT /api/strategies/{id}/status
func (h *StrategyHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req strategyStatusRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s, err := h.registry.SetStatus(r.Context(), pathParam(r, "id"), req.Status)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to update strategy status")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// DeleteStrategy removes a strategy.
// DELETE /api/strategies/{id}
func (h *StrategyHandler) DeleteStrategy(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(r.Context(), pathParam(r, "id")); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to delete strategy")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// orAll defaults an empty filter list to match everything.
func orAll(list []string) []string {
	if len(list) == 0 {
		return []string{domain.FilterAll}
	}
	return list
}
