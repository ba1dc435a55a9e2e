package goal

import "context"

// Repository defines the interface for goal data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create creates a new goal
	Create(ctx context.Context, params CreateParams) (*Goal, error)

	// GetByID retrieves a goal by its ID; returns nil when not found
	GetByID(ctx context.Context, id string) (*Goal, error)

	// ListByUserID retrieves all goals for a specific user
	ListByUserID(ctx context.Context, userID int64) ([]*Goal, error)

	// ListActiveByWallet retrieves the user's active goals whose associated
	// wallets include the given wallet
	ListActiveByWallet(ctx context.Context, userID int64, walletID string) ([]*Goal, error)

	// UpdateProgress persists a new progress value and status
	UpdateProgress(ctx context.Context, id string, progress int64, status string) error

	// Update applies partial field updates to a goal
	Update(ctx context.Context, id string, params UpdateParams) (*Goal, error)

	// SetStatus sets the goal status
	SetStatus(ctx context.Context, id string, status string) error

	// Delete removes a goal
	Delete(ctx context.Context, id string) error
}
