package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"centime/internal/domain/goal"
)

type GoalRepository struct {
	db *DB
}

func NewGoalRepository(db *DB) *GoalRepository {
	return &GoalRepository{db: db}
}

const goalColumns = `id, user_id, name, target_amount, current_progress, deadline,
       status, associated_wallets, created_at, updated_at`

func (r *GoalRepository) Create(ctx context.Context, params goal.CreateParams) (*goal.Goal, error) {
	query := `
		INSERT INTO goals (user_id, name, target_amount, deadline, status, associated_wallets)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + goalColumns

	var g goal.Goal
	err := r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.Name, params.TargetAmount, params.Deadline,
		goal.StatusActive, pq.StringArray(params.AssociatedWallets),
	).Scan(goalScanTargets(&g)...)

	if err != nil {
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	return &g, nil
}

func (r *GoalRepository) GetByID(ctx context.Context, id string) (*goal.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE id = $1
	`

	var g goal.Goal
	err := r.db.QueryRowContext(ctx, query, id).Scan(goalScanTargets(&g)...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	return &g, nil
}

func (r *GoalRepository) ListByUserID(ctx context.Context, userID int64) ([]*goal.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	return r.list(ctx, query, userID)
}

func (r *GoalRepository) ListActiveByWallet(ctx context.Context, userID int64, walletID string) ([]*goal.Goal, error) {
	query := `
		SELECT ` + goalColumns + `
		FROM goals
		WHERE user_id = $1 AND status = 'active' AND $2 = ANY(associated_wallets)
		ORDER BY created_at ASC
	`
	return r.list(ctx, query, userID, walletID)
}

func (r *GoalRepository) list(ctx context.Context, query string, args ...any) ([]*goal.Goal, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	var goals []*goal.Goal
	for rows.Next() {
		var g goal.Goal
		if err := rows.Scan(goalScanTargets(&g)...); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		goals = append(goals, &g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goals: %w", err)
	}

	return goals, nil
}

func (r *GoalRepository) UpdateProgress(ctx context.Context, id string, progress int64, status string) error {
	query := `
		UPDATE goals
		SET current_progress = $1, status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, progress, status, id)
	if err != nil {
		return fmt.Errorf("failed to update goal progress: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return goal.ErrGoalNotFound
	}

	return nil
}

func (r *GoalRepository) Update(ctx context.Context, id string, params goal.UpdateParams) (*goal.Goal, error) {
	var wallets any
	if params.AssociatedWallets != nil {
		wallets = pq.StringArray(params.AssociatedWallets)
	}

	query := `
		UPDATE goals
		SET name = COALESCE($1, name),
		    target_amount = COALESCE($2, target_amount),
		    deadline = COALESCE($3, deadline),
		    associated_wallets = COALESCE($4, associated_wallets),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $5
		RETURNING ` + goalColumns

	var g goal.Goal
	err := r.db.QueryRowContext(
		ctx, query,
		params.Name, params.TargetAmount, params.Deadline, wallets, id,
	).Scan(goalScanTargets(&g)...)

	if err == sql.ErrNoRows {
		return nil, goal.ErrGoalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update goal: %w", err)
	}

	return &g, nil
}

func (r *GoalRepository) SetStatus(ctx context.Context, id string, status string) error {
	query := `
		UPDATE goals
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to set goal status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return goal.ErrGoalNotFound
	}

	return nil
}

func (r *GoalRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM goals WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete goal: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return goal.ErrGoalNotFound
	}

	return nil
}

// ListOwnerIDs returns the distinct users owning at least one active goal.
// Used by the maintenance scheduler to fan out status sweeps.
func (r *GoalRepository) ListOwnerIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM goals WHERE status = 'active'`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list goal owners: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan goal owner: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating goal owners: %w", err)
	}

	return ids, nil
}

func goalScanTargets(g *goal.Goal) []any {
	return []any{
		&g.ID, &g.UserID, &g.Name, &g.TargetAmount, &g.CurrentProgress, &g.Deadline,
		&g.Status, (*pq.StringArray)(&g.AssociatedWallets), &g.CreatedAt, &g.UpdatedAt,
	}
}
