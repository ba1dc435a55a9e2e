package category

import "context"

// Repository defines the category lookup the ledger engine consumes.
type Repository interface {
	// GetByID retrieves a category by its ID; returns nil when not found
	GetByID(ctx context.Context, id string) (*Category, error)

	// Exists checks if a category with the given ID exists
	Exists(ctx context.Context, id string) (bool, error)

	// List retrieves all categories
	List(ctx context.Context) ([]*Category, error)
}
