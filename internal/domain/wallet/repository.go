package wallet

import "context"

// Repository defines the interface for wallet data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create creates a new wallet
	Create(ctx context.Context, params CreateParams) (*Wallet, error)

	// GetByID retrieves a wallet by its ID; returns nil when not found
	GetByID(ctx context.Context, id string) (*Wallet, error)

	// ListByUserID retrieves all wallets owned by a specific user
	ListByUserID(ctx context.Context, userID int64) ([]*Wallet, error)

	// GetDefault retrieves the user's default wallet; returns nil when none exists
	GetDefault(ctx context.Context, userID int64) (*Wallet, error)

	// UpdateBalance persists a new balance for a wallet
	UpdateBalance(ctx context.Context, id string, balance int64) error

	// Update applies partial field updates to a wallet
	Update(ctx context.Context, id string, params UpdateParams) (*Wallet, error)

	// SetActive toggles the active flag
	SetActive(ctx context.Context, id string, active bool) error

	// SetAccess replaces the sharing flag and access-control lists
	SetAccess(ctx context.Context, id string, shared bool, canView, canTransact []int64) error
}
