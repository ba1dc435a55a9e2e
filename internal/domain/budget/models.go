package budget

import (
	"errors"
	"time"

	"centime/internal/domain/period"
)

// Domain errors
var (
	ErrBudgetNotFound   = errors.New("budget not found")
	ErrForbidden        = errors.New("access forbidden")
	ErrPeriodNotElapsed = errors.New("budget period has not elapsed yet")
	ErrInvalidInput     = errors.New("invalid input")
)

// Warning levels, ordered by severity.
const (
	LevelWarning  = "warning"
	LevelCritical = "critical"
	LevelError    = "error"
)

// Threshold ratios for budget warnings, in percent of the budget amount.
const (
	warningThresholdPct  = 80
	criticalThresholdPct = 90
	largeExpensePct      = 60
)

// Budget is a spending cap for one period window and an optional category.
// A budget is a one-period snapshot: renewal creates a new document for the
// next window instead of mutating this one, preserving historical accounting.
type Budget struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	FamilyID    *int64    `json:"familyId,omitempty"`
	Name        string    `json:"name"`
	PeriodType  string    `json:"periodType"` // daily / weekly / monthly
	Amount      int64     `json:"amount"`
	Spent       int64     `json:"spent"` // cached counter, refreshed from transactions
	PeriodStart time.Time `json:"periodStart"`
	PeriodEnd   time.Time `json:"periodEnd"`
	CategoryID  *string   `json:"categoryId,omitempty"` // nil means all categories
	ParentID    *string   `json:"parentId,omitempty"`   // containing budget, informational
	IsActive    bool      `json:"isActive"`
	Goal        *Goal     `json:"goal,omitempty"` // legacy single-goal-per-budget flow
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Goal is the legacy goal sub-object embedded in a budget.
type Goal struct {
	Name         string     `json:"name"`
	TargetAmount int64      `json:"targetAmount"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Progress     int64      `json:"progress"`
}

// Warning is an advisory budget-threshold signal returned alongside a
// successful transaction. Exceeding the cap maps to the error level but
// still never blocks the transaction.
type Warning struct {
	Level    string `json:"level"`
	BudgetID string `json:"budgetId"`
	Message  string `json:"message"`
}

// CreateParams contains parameters for creating a new budget
type CreateParams struct {
	UserID     int64
	FamilyID   *int64
	Name       string
	PeriodType string
	Amount     int64
	CategoryID *string
	// ReferenceDate selects the period window; a zero value means now.
	ReferenceDate time.Time
	Goal          *Goal

	// Window bounds, filled by the service from PeriodType and ReferenceDate.
	PeriodStart time.Time
	PeriodEnd   time.Time
	ParentID    *string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Name == "" {
		return errors.New("budget name is required")
	}
	if !period.IsValid(p.PeriodType) {
		return period.ErrInvalidPeriodType
	}
	if p.Amount <= 0 {
		return errors.New("budget amount must be positive")
	}
	if p.Goal != nil && p.Goal.TargetAmount <= 0 {
		return errors.New("budget goal target must be positive")
	}
	return nil
}

// UpdateParams contains parameters for updating a budget. Nil fields are left untouched.
type UpdateParams struct {
	Name   *string
	Amount *int64
	Goal   *Goal
}

// InWindow reports whether t falls inside the budget's period window.
func (b *Budget) InWindow(t time.Time) bool {
	return period.Contains(b.PeriodStart, b.PeriodEnd, t)
}

// MatchesCategory reports whether a transaction with the given category is in
// the budget's scope. A budget without a category covers all categories; a
// category-scoped budget only covers transactions carrying that category.
func (b *Budget) MatchesCategory(categoryID *string) bool {
	if b.CategoryID == nil {
		return true
	}
	return categoryID != nil && *categoryID == *b.CategoryID
}
