package scheduler

import (
	"context"
	"fmt"
	"log"
	"strconv"

	"centime/internal/domain/budget"
	"centime/internal/domain/family"
	"centime/internal/domain/goal"
)

// BudgetRenewalJob renews a user's elapsed budgets: each fully elapsed window
// is replaced with a fresh document for the period containing now.
type BudgetRenewalJob struct {
	userID   int64
	budgets  *budget.Service
	families family.Repository
}

// NewBudgetRenewalJob creates a new budget renewal job for a user
func NewBudgetRenewalJob(userID int64, budgets *budget.Service, families family.Repository) *BudgetRenewalJob {
	return &BudgetRenewalJob{
		userID:   userID,
		budgets:  budgets,
		families: families,
	}
}

// Execute runs the budget renewal job
func (j *BudgetRenewalJob) Execute(ctx context.Context) error {
	familyID, err := j.families.FamilyIDForUser(ctx, j.userID)
	if err != nil {
		return fmt.Errorf("failed to resolve family: %w", err)
	}

	renewed, err := j.budgets.RenewElapsed(ctx, j.userID, familyID)
	if err != nil {
		log.Printf("Budget renewal for user %d completed with errors: renewed=%d, err=%v",
			j.userID, len(renewed), err)
		return fmt.Errorf("renewal completed with errors: %w", err)
	}

	if len(renewed) > 0 {
		log.Printf("Budget renewal for user %d completed: renewed=%d", j.userID, len(renewed))
	}
	return nil
}

// UserID returns the user ID associated with this job
func (j *BudgetRenewalJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

// Description returns a human-readable description of the job
func (j *BudgetRenewalJob) Description() string {
	return fmt.Sprintf("Budget renewal for user %d", j.userID)
}

// GoalSweepJob re-evaluates a user's goal statuses so goals with a passed
// deadline move to expired even when no income arrives to trigger the check.
type GoalSweepJob struct {
	userID int64
	goals  *goal.Service
}

// NewGoalSweepJob creates a new goal status sweep job for a user
func NewGoalSweepJob(userID int64, goals *goal.Service) *GoalSweepJob {
	return &GoalSweepJob{
		userID: userID,
		goals:  goals,
	}
}

// Execute runs the goal sweep job. Listing goals refreshes stale statuses as
// a side effect of the read path.
func (j *GoalSweepJob) Execute(ctx context.Context) error {
	goals, err := j.goals.ListGoals(ctx, j.userID)
	if err != nil {
		return fmt.Errorf("failed to sweep goals: %w", err)
	}

	expired := 0
	for _, g := range goals {
		if g.Status == goal.StatusExpired {
			expired++
		}
	}
	if expired > 0 {
		log.Printf("Goal sweep for user %d: %d goal(s) expired", j.userID, expired)
	}
	return nil
}

// UserID returns the user ID associated with this job
func (j *GoalSweepJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

// Description returns a human-readable description of the job
func (j *GoalSweepJob) Description() string {
	return fmt.Sprintf("Goal status sweep for user %d", j.userID)
}

// MaintenanceJob runs budget renewal first, then the goal sweep, so budget
// windows are fresh before any goal accounting reads them.
type MaintenanceJob struct {
	userID   int64
	budgets  *budget.Service
	goals    *goal.Service
	families family.Repository
}

// NewMaintenanceJob creates the composite nightly maintenance job for a user
func NewMaintenanceJob(userID int64, budgets *budget.Service, goals *goal.Service, families family.Repository) *MaintenanceJob {
	return &MaintenanceJob{
		userID:   userID,
		budgets:  budgets,
		goals:    goals,
		families: families,
	}
}

// Execute runs budget renewal, then the goal sweep
func (j *MaintenanceJob) Execute(ctx context.Context) error {
	renewal := NewBudgetRenewalJob(j.userID, j.budgets, j.families)
	if err := renewal.Execute(ctx); err != nil {
		return fmt.Errorf("budget renewal failed, skipping goal sweep: %w", err)
	}

	sweep := NewGoalSweepJob(j.userID, j.goals)
	if err := sweep.Execute(ctx); err != nil {
		return fmt.Errorf("goal sweep failed: %w", err)
	}

	return nil
}

// UserID returns the user ID associated with this job
func (j *MaintenanceJob) UserID() string {
	return strconv.FormatInt(j.userID, 10)
}

// Description returns a human-readable description of the job
func (j *MaintenanceJob) Description() string {
	return fmt.Sprintf("Ledger maintenance (budgets + goals) for user %d", j.userID)
}
