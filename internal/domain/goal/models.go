package goal

import (
	"errors"
	"time"
)

// Goal statuses. Transitions are one-directional (active -> completed or
// expired) and only explicit reactivation moves a goal back to active.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
)

// Domain errors
var (
	ErrGoalNotFound  = errors.New("goal not found")
	ErrForbidden     = errors.New("access forbidden")
	ErrGoalNotActive = errors.New("goal is not active")
	ErrInvalidInput  = errors.New("invalid input")
)

// Goal is a savings target tracked via linked-wallet income.
// CurrentProgress is always inside [0, TargetAmount]; every write goes
// through ClampProgress so the invariant holds by construction.
type Goal struct {
	ID                string     `json:"id"`
	UserID            int64      `json:"userId"`
	Name              string     `json:"name"`
	TargetAmount      int64      `json:"targetAmount"`
	CurrentProgress   int64      `json:"currentProgress"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	Status            string     `json:"status"`
	AssociatedWallets []string   `json:"associatedWallets"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}

// ClampProgress clamps a candidate progress value to [0, target].
func ClampProgress(progress, target int64) int64 {
	if progress < 0 {
		return 0
	}
	if progress > target {
		return target
	}
	return progress
}

// LinkedTo reports whether the goal tracks income landing in the wallet.
func (g *Goal) LinkedTo(walletID string) bool {
	for _, id := range g.AssociatedWallets {
		if id == walletID {
			return true
		}
	}
	return false
}

// CreateParams contains parameters for creating a new goal
type CreateParams struct {
	UserID            int64
	Name              string
	TargetAmount      int64
	Deadline          *time.Time
	AssociatedWallets []string
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Name == "" {
		return errors.New("goal name is required")
	}
	if p.TargetAmount <= 0 {
		return errors.New("goal target must be positive")
	}
	return nil
}

// UpdateParams contains parameters for updating a goal. Nil fields are left untouched.
type UpdateParams struct {
	Name              *string
	TargetAmount      *int64
	Deadline          *time.Time
	AssociatedWallets []string
}
