package family

import "context"

// Repository defines the family-membership lookup the ledger engine consumes
// for shared-wallet and shared-budget visibility.
type Repository interface {
	// FamilyIDForUser returns the family the user belongs to, or nil when
	// the user is not part of one
	FamilyIDForUser(ctx context.Context, userID int64) (*int64, error)

	// IsMember checks whether the user belongs to the given family
	IsMember(ctx context.Context, familyID, userID int64) (bool, error)
}
