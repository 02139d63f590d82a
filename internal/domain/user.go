package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the core's narrow view of a bidder account: identity, registration
// order and budget figures.
type User struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	RegistrationSeq int64           `json:"registration_seq"`
	TotalBudget     decimal.Decimal `json:"total_budget"`
	SpentBudget     decimal.Decimal `json:"spent_budget"`
	CreatedAt       time.Time       `json:"created_at"`
}

// AvailableBudget is total minus spent, floored at zero.
func (u User) AvailableBudget() decimal.Decimal {
	avail := u.TotalBudget.Sub(u.SpentBudget)
	if avail.IsNegative() {
		return decimal.Zero
	}
	return avail
}

// BudgetInfo is the budget summary served to clients.
type BudgetInfo struct {
	UserID    string          `json:"user_id"`
	Total     decimal.Decimal `json:"total_budget"`
	Spent     decimal.Decimal `json:"spent_budget"`
	Available decimal.Decimal `json:"available_budget"`
	Allocated decimal.Decimal `json:"allocated_budget"`
}
