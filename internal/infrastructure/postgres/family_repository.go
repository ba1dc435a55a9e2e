package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

type FamilyRepository struct {
	db *DB
}

func NewFamilyRepository(db *DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

func (r *FamilyRepository) FamilyIDForUser(ctx context.Context, userID int64) (*int64, error) {
	query := `SELECT family_id FROM family_members WHERE user_id = $1`

	var familyID int64
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&familyID)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up family membership: %w", err)
	}

	return &familyID, nil
}

func (r *FamilyRepository) IsMember(ctx context.Context, familyID, userID int64) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM family_members WHERE family_id = $1 AND user_id = $2)`

	var isMember bool
	if err := r.db.QueryRowContext(ctx, query, familyID, userID).Scan(&isMember); err != nil {
		return false, fmt.Errorf("failed to check family membership: %w", err)
	}

	return isMember, nil
}
