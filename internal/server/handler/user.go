package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/scteauction/internal/domain"
)

// Ledger is the budget ledger as seen by the user endpoints.
type Ledger interface {
	Register(ctx context.Context, id, name string, budget decimal.Decimal) (domain.User, error)
	Get(id string) (domain.User, error)
	List() []domain.User
	AddFunds(ctx context.Context, userID string, amount decimal.Decimal) (domain.User, error)
}

// Allocator sums the maximum exposure of a user's active strategies.
type Allocator interface {
	Allocated(userID string) decimal.Decimal
}

// UserHandler serves bidder registration and budget endpoints.
type UserHandler struct {
	ledger    Ledger
	allocator Allocator
	logger    *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(ledger Ledger, allocator Allocator, logger *slog.Logger) *UserHandler {
	return &UserHandler{ledger: ledger, allocator: allocator, logger: logger}
}

// ListUsers returns users in registration order.
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"users": h.ledger.List()})
}

type registerRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Budget amount `json:"budget"`
}

// RegisterUser creates a bidder account with a starting budget.
// POST /api/users
func (h *UserHandler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Budget.IsNegative() {
		writeError(w, http.StatusBadRequest, "budget must be >= 0")
		return
	}
	u, err := h.ledger.Register(r.Context(), req.ID, req.Name, req.Budget.Decimal)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to register user")
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

type fundsRequest struct {
	Amount amount `json:"amount"`
}

// AddFunds raises a user's total budget.
// POST /api/users/{id}/funds
func (h *UserHandler) AddFunds(w http.ResponseWriter, r *http.Request) {
	var req fundsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if !req.Amount.IsPositive() {
		writeError(w, http.StatusBadRequest, "amount must be > 0")
		return
	}
	u, err := h.ledger.AddFunds(r.Context(), pathParam(r, "id"), req.Amount.Decimal)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to add funds")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// GetBudget returns total, spent, available and allocated budget.
// GET /api/users/{id}/budget
func (h *UserHandler) GetBudget(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	u, err := h.ledger.Get(id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get budget")
		return
	}
	writeJSON(w, http.StatusOK, domain.BudgetInfo{
		UserID:    u.ID,
		Total:     u.TotalBudget,
		Spent:     u.SpentBudget,
		Available: u.AvailableBudget(),
		Allocated: h.allocator.Allocated(u.ID),
	})
}
