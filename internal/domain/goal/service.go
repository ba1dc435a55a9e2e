package goal

import (
	"context"
	"fmt"
	"time"
)

// Service contains the business logic for goal progress tracking
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new goal service
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// CreateGoal creates a new goal with business validation
func (s *Service) CreateGoal(ctx context.Context, params CreateParams) (*Goal, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, params)
}

// GetGoal retrieves a goal, verifies ownership, and re-evaluates a stale
// deadline on read.
func (s *Service) GetGoal(ctx context.Context, id string, userID int64) (*Goal, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGoalNotFound
	}
	if g.UserID != userID {
		return nil, ErrForbidden
	}
	if err := s.refreshStatus(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}

// ListGoals retrieves all goals for the user, refreshing stale deadlines.
func (s *Service) ListGoals(ctx context.Context, userID int64) ([]*Goal, error) {
	goals, err := s.repo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, g := range goals {
		if err := s.refreshStatus(ctx, g); err != nil {
			return nil, err
		}
	}
	return goals, nil
}

// ApplyIncome advances every active goal of the user associated with the
// wallet by the income amount, clamped to the target, and re-evaluates the
// status. Each transaction must trigger this exactly once per lifecycle
// transition; the transaction manager guarantees that. Re-applying the same
// amount double-counts, and a later soft delete does not claw it back.
func (s *Service) ApplyIncome(ctx context.Context, userID int64, walletID string, amount int64) ([]*Goal, error) {
	goals, err := s.repo.ListActiveByWallet(ctx, userID, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals for wallet %s: %w", walletID, err)
	}

	var advanced []*Goal
	for _, g := range goals {
		if err := s.advance(ctx, g, amount); err != nil {
			return nil, err
		}
		advanced = append(advanced, g)
	}
	return advanced, nil
}

// AddProgress is the explicit manual progress operation. It uses the same
// clamp-and-reevaluate routine as automatic income syncing.
func (s *Service) AddProgress(ctx context.Context, id string, userID int64, amount int64) (*Goal, error) {
	if amount <= 0 {
		return nil, ErrInvalidInput
	}

	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGoalNotFound
	}
	if g.UserID != userID {
		return nil, ErrForbidden
	}
	if g.Status != StatusActive {
		return nil, ErrGoalNotActive
	}

	if err := s.advance(ctx, g, amount); err != nil {
		return nil, err
	}
	return g, nil
}

// advance clamps the new progress, re-evaluates the status, and persists both.
func (s *Service) advance(ctx context.Context, g *Goal, amount int64) error {
	g.CurrentProgress = ClampProgress(g.CurrentProgress+amount, g.TargetAmount)
	g.Status = s.evaluate(g)

	if err := s.repo.UpdateProgress(ctx, g.ID, g.CurrentProgress, g.Status); err != nil {
		return fmt.Errorf("failed to persist goal %s progress: %w", g.ID, err)
	}
	return nil
}

// evaluate returns the status a goal should hold given its progress and
// deadline. Completion wins over expiry.
func (s *Service) evaluate(g *Goal) string {
	if g.Status != StatusActive {
		return g.Status
	}
	if g.CurrentProgress >= g.TargetAmount {
		return StatusCompleted
	}
	if g.Deadline != nil && s.now().After(*g.Deadline) {
		return StatusExpired
	}
	return StatusActive
}

// refreshStatus persists a status change detected on read (stale deadline).
func (s *Service) refreshStatus(ctx context.Context, g *Goal) error {
	next := s.evaluate(g)
	if next == g.Status {
		return nil
	}
	if err := s.repo.SetStatus(ctx, g.ID, next); err != nil {
		return fmt.Errorf("failed to refresh goal %s status: %w", g.ID, err)
	}
	g.Status = next
	return nil
}

// UpdateGoal applies partial updates after verifying ownership
func (s *Service) UpdateGoal(ctx context.Context, id string, userID int64, params UpdateParams) (*Goal, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGoalNotFound
	}
	if g.UserID != userID {
		return nil, ErrForbidden
	}
	if params.TargetAmount != nil && *params.TargetAmount <= 0 {
		return nil, ErrInvalidInput
	}
	return s.repo.Update(ctx, id, params)
}

// CancelGoal cancels an active goal
func (s *Service) CancelGoal(ctx context.Context, id string, userID int64) error {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if g == nil {
		return ErrGoalNotFound
	}
	if g.UserID != userID {
		return ErrForbidden
	}
	return s.repo.SetStatus(ctx, id, StatusCancelled)
}

// ReactivateGoal is the explicit path back to active for a completed,
// expired, or cancelled goal.
func (s *Service) ReactivateGoal(ctx context.Context, id string, userID int64) (*Goal, error) {
	g, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrGoalNotFound
	}
	if g.UserID != userID {
		return nil, ErrForbidden
	}
	if err := s.repo.SetStatus(ctx, id, StatusActive); err != nil {
		return nil, err
	}
	g.Status = StatusActive
	return g, nil
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}
