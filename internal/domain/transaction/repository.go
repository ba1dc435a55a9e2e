package transaction

import (
	"context"
	"time"
)

// Repository defines the interface for transaction data access
// This interface is defined in the domain layer, but implemented in the infrastructure layer
type Repository interface {
	// Create creates a new transaction
	Create(ctx context.Context, params CreateTransactionParams) (*Transaction, error)

	// GetByID retrieves a transaction by its ID; returns nil when not found
	GetByID(ctx context.Context, id string) (*Transaction, error)

	// ListByUserID retrieves the user's non-deleted transactions, newest first
	ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Transaction, error)

	// ListByWalletID retrieves a wallet's non-deleted transactions, newest first
	ListByWalletID(ctx context.Context, walletID string, limit, offset int) ([]*Transaction, error)

	// Update applies partial field updates to a transaction
	Update(ctx context.Context, id string, params UpdateTransactionParams) (*Transaction, error)

	// SetDeleted flips the soft-delete flag and timestamp
	SetDeleted(ctx context.Context, id string, deleted bool, deletedAt *time.Time) error

	// Delete hard-deletes a transaction; reserved for the owning correction path
	Delete(ctx context.Context, id string) error
}
