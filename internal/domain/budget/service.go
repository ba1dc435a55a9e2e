package budget

import (
	"context"
	"fmt"
	"time"

	"centime/internal/domain/period"
)

// Service contains the business logic for budget accounting
type Service struct {
	repo   Repository
	summer ExpenseSummer
	now    func() time.Time
}

// NewService creates a new budget service
func NewService(repo Repository, summer ExpenseSummer) *Service {
	return &Service{repo: repo, summer: summer, now: time.Now}
}

// CreateBudget creates a budget with a window computed from its period type,
// links it to a containing parent budget when one exists, and syncs the
// parent link of any existing child budgets its window contains.
func (s *Service) CreateBudget(ctx context.Context, params CreateParams) (*Budget, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	ref := params.ReferenceDate
	if ref.IsZero() {
		ref = s.now()
	}
	start, end, err := period.Window(params.PeriodType, ref)
	if err != nil {
		return nil, err
	}
	params.PeriodStart = start
	params.PeriodEnd = end

	if parentType := period.Parent(params.PeriodType); parentType != "" {
		parent, err := s.FindParent(ctx, params.UserID, params.PeriodType, start, end)
		if err != nil {
			return nil, err
		}
		if parent != nil {
			params.ParentID = &parent.ID
		}
	}

	b, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, err
	}

	// A freshly created budget may already have matching spend in its window.
	if err := s.Recompute(ctx, b); err != nil {
		return nil, err
	}

	if err := s.syncChildLinks(ctx, b); err != nil {
		return nil, err
	}

	return b, nil
}

// syncChildLinks points active child-period budgets contained in b's window
// at b. Runs when a weekly or monthly budget appears so existing daily and
// weekly budgets pick up the new parent.
func (s *Service) syncChildLinks(ctx context.Context, b *Budget) error {
	var childType string
	switch b.PeriodType {
	case period.Monthly:
		childType = period.Weekly
	case period.Weekly:
		childType = period.Daily
	default:
		return nil
	}

	budgets, err := s.repo.ListByOwner(ctx, b.UserID, b.FamilyID)
	if err != nil {
		return fmt.Errorf("failed to list budgets for parent sync: %w", err)
	}
	for _, child := range budgets {
		if !child.IsActive || child.PeriodType != childType {
			continue
		}
		if child.PeriodStart.Before(b.PeriodStart) || child.PeriodEnd.After(b.PeriodEnd) {
			continue
		}
		if child.ParentID != nil && *child.ParentID == b.ID {
			continue
		}
		if err := s.repo.SetParent(ctx, child.ID, &b.ID); err != nil {
			return fmt.Errorf("failed to link budget %s to parent %s: %w", child.ID, b.ID, err)
		}
	}
	return nil
}

// MatchingBudgets returns all budgets visible to the user (own, or shared via
// family) regardless of period. Callers filter by window.
func (s *Service) MatchingBudgets(ctx context.Context, userID int64, familyID *int64) ([]*Budget, error) {
	return s.repo.ListByOwner(ctx, userID, familyID)
}

// GetBudget retrieves a budget and verifies visibility
func (s *Service) GetBudget(ctx context.Context, id string, userID int64, familyID *int64) (*Budget, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBudgetNotFound
	}
	if !visible(b, userID, familyID) {
		return nil, ErrForbidden
	}
	return b, nil
}

func visible(b *Budget, userID int64, familyID *int64) bool {
	if b.UserID == userID {
		return true
	}
	return b.FamilyID != nil && familyID != nil && *b.FamilyID == *familyID
}

// Recompute replaces the budget's stored spent counter with the sum of
// non-deleted expense transactions inside its window and category scope.
// The stored counter is never trusted without this recomputation after a
// mutation touching the window.
func (s *Service) Recompute(ctx context.Context, b *Budget) error {
	spent, err := s.summer.SumExpenses(ctx, ExpenseScope{
		UserID:     b.UserID,
		FamilyID:   b.FamilyID,
		CategoryID: b.CategoryID,
		From:       b.PeriodStart,
		To:         b.PeriodEnd,
	})
	if err != nil {
		return fmt.Errorf("failed to recompute budget %s: %w", b.ID, err)
	}

	if spent != b.Spent {
		if err := s.repo.UpdateSpent(ctx, b.ID, spent); err != nil {
			return fmt.Errorf("failed to persist spent for budget %s: %w", b.ID, err)
		}
		b.Spent = spent
	}
	return nil
}

// RefreshForTransaction recomputes every active budget whose window contains
// the transaction date and whose category scope matches. Direction-agnostic:
// creates, reversals and restores all converge on the recomputed truth.
func (s *Service) RefreshForTransaction(ctx context.Context, userID int64, familyID *int64, categoryID *string, date time.Time) error {
	budgets, err := s.repo.ListByOwner(ctx, userID, familyID)
	if err != nil {
		return fmt.Errorf("failed to list budgets: %w", err)
	}
	for _, b := range budgets {
		if !b.IsActive || !b.InWindow(date) || !b.MatchesCategory(categoryID) {
			continue
		}
		if err := s.Recompute(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// Warnings evaluates every matching budget against a candidate expense and
// returns the advisory signals: at most one severity warning per budget plus
// an independent large-single-expense notice. Multiple budgets may each fire
// for the same transaction (e.g. a daily and a monthly one).
func (s *Service) Warnings(ctx context.Context, userID int64, familyID *int64, categoryID *string, date time.Time, amount int64) ([]Warning, error) {
	budgets, err := s.repo.ListByOwner(ctx, userID, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	var warnings []Warning
	for _, b := range budgets {
		if !b.IsActive || !b.InWindow(date) || !b.MatchesCategory(categoryID) {
			continue
		}
		warnings = append(warnings, EvaluateThresholds(b, amount)...)
	}
	return warnings, nil
}

// EvaluateThresholds computes the warnings a single budget emits for a
// candidate expense amount, using the budget's current spent counter.
func EvaluateThresholds(b *Budget, amount int64) []Warning {
	var warnings []Warning
	projected := b.Spent + amount

	switch {
	case projected > b.Amount:
		warnings = append(warnings, Warning{
			Level:    LevelError,
			BudgetID: b.ID,
			Message:  fmt.Sprintf("budget %q exceeded: projected spend %d over cap %d", b.Name, projected, b.Amount),
		})
	case projected*100 >= b.Amount*criticalThresholdPct:
		warnings = append(warnings, Warning{
			Level:    LevelCritical,
			BudgetID: b.ID,
			Message:  fmt.Sprintf("budget %q at %d%% of cap %d", b.Name, projected*100/b.Amount, b.Amount),
		})
	case projected*100 >= b.Amount*warningThresholdPct:
		warnings = append(warnings, Warning{
			Level:    LevelWarning,
			BudgetID: b.ID,
			Message:  fmt.Sprintf("budget %q at %d%% of cap %d", b.Name, projected*100/b.Amount, b.Amount),
		})
	}

	if amount*100 >= b.Amount*largeExpensePct {
		warnings = append(warnings, Warning{
			Level:    LevelWarning,
			BudgetID: b.ID,
			Message:  fmt.Sprintf("single expense of %d is %d%% of budget %q", amount, amount*100/b.Amount, b.Name),
		})
	}

	return warnings
}

// FindParent returns the active budget of the containing period type whose
// window fully contains the child window, or nil. The link is informational
// and causes no cross-budget deduction.
func (s *Service) FindParent(ctx context.Context, userID int64, childPeriodType string, childStart, childEnd time.Time) (*Budget, error) {
	parentType := period.Parent(childPeriodType)
	if parentType == "" {
		return nil, nil
	}

	budgets, err := s.repo.ListByOwner(ctx, userID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	for _, b := range budgets {
		if !b.IsActive || b.PeriodType != parentType {
			continue
		}
		if !b.PeriodStart.After(childStart) && !b.PeriodEnd.Before(childEnd) {
			return b, nil
		}
	}
	return nil, nil
}

// Renew replaces a fully elapsed budget with a fresh document for the period
// containing now, spent reset by recomputation, then removes the old one.
// The old window is never mutated in place.
func (s *Service) Renew(ctx context.Context, id string, userID int64, familyID *int64) (*Budget, error) {
	old, err := s.GetBudget(ctx, id, userID, familyID)
	if err != nil {
		return nil, err
	}
	if old.UserID != userID {
		return nil, ErrForbidden
	}
	if !period.Elapsed(old.PeriodEnd, s.now()) {
		return nil, ErrPeriodNotElapsed
	}

	renewed, err := s.CreateBudget(ctx, CreateParams{
		UserID:     old.UserID,
		FamilyID:   old.FamilyID,
		Name:       old.Name,
		PeriodType: old.PeriodType,
		Amount:     old.Amount,
		CategoryID: old.CategoryID,
		Goal:       old.Goal,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Delete(ctx, old.ID); err != nil {
		return nil, fmt.Errorf("failed to remove renewed budget %s: %w", old.ID, err)
	}
	return renewed, nil
}

// RenewElapsed renews every active budget owned by the user whose window has
// fully elapsed and returns the fresh documents. Budgets that fail to renew
// are skipped so one bad document does not stall the rest.
func (s *Service) RenewElapsed(ctx context.Context, userID int64, familyID *int64) ([]*Budget, error) {
	budgets, err := s.repo.ListByOwner(ctx, userID, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	var renewed []*Budget
	var firstErr error
	for _, b := range budgets {
		if !b.IsActive || b.UserID != userID || !period.Elapsed(b.PeriodEnd, s.now()) {
			continue
		}
		fresh, err := s.Renew(ctx, b.ID, userID, familyID)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to renew budget %s: %w", b.ID, err)
			}
			continue
		}
		renewed = append(renewed, fresh)
	}
	return renewed, firstErr
}

// UpdateBudget applies partial updates after verifying ownership
func (s *Service) UpdateBudget(ctx context.Context, id string, userID int64, params UpdateParams) (*Budget, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, ErrBudgetNotFound
	}
	if b.UserID != userID {
		return nil, ErrForbidden
	}
	if params.Amount != nil && *params.Amount <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.Update(ctx, id, params)
}

// DeleteBudget removes a budget after verifying ownership
func (s *Service) DeleteBudget(ctx context.Context, id string, userID int64) error {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if b == nil {
		return ErrBudgetNotFound
	}
	if b.UserID != userID {
		return ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
