package budget

import (
	"context"
	"time"
)

// Repository defines the interface for budget data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create creates a new budget
	Create(ctx context.Context, params CreateParams) (*Budget, error)

	// GetByID retrieves a budget by its ID; returns nil when not found
	GetByID(ctx context.Context, id string) (*Budget, error)

	// ListByOwner retrieves all budgets owned by the user or shared through
	// the user's family, across all period windows
	ListByOwner(ctx context.Context, userID int64, familyID *int64) ([]*Budget, error)

	// UpdateSpent persists the recomputed spent counter
	UpdateSpent(ctx context.Context, id string, spent int64) error

	// Update applies partial field updates to a budget
	Update(ctx context.Context, id string, params UpdateParams) (*Budget, error)

	// SetParent sets or clears the informational parent-budget link
	SetParent(ctx context.Context, id string, parentID *string) error

	// Delete removes a budget document
	Delete(ctx context.Context, id string) error
}

// ExpenseScope narrows a spent-amount recomputation to an owner, an optional
// family, an optional category, and a period window.
type ExpenseScope struct {
	UserID     int64
	FamilyID   *int64
	CategoryID *string // nil means all categories
	From       time.Time
	To         time.Time
}

// ExpenseSummer recomputes spending from the transaction source of truth:
// the sum of non-deleted expense transactions matching the scope.
// Implemented by the transaction repository.
type ExpenseSummer interface {
	SumExpenses(ctx context.Context, scope ExpenseScope) (int64, error)
}
