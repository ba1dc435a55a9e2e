package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"centime/internal/domain/budget"
)

type BudgetRepository struct {
	db *DB
}

func NewBudgetRepository(db *DB) *BudgetRepository {
	return &BudgetRepository{db: db}
}

const budgetColumns = `id, user_id, family_id, name, period_type, amount, spent,
       period_start, period_end, category_id, parent_id, is_active, goal, created_at, updated_at`

func (r *BudgetRepository) Create(ctx context.Context, params budget.CreateParams) (*budget.Budget, error) {
	goalJSON, err := marshalBudgetGoal(params.Goal)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO budgets (user_id, family_id, name, period_type, amount,
		                     period_start, period_end, category_id, parent_id, goal)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + budgetColumns

	var b budget.Budget
	var rawGoal []byte
	err = r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.FamilyID, params.Name, params.PeriodType, params.Amount,
		params.PeriodStart, params.PeriodEnd, params.CategoryID, params.ParentID, goalJSON,
	).Scan(budgetScanTargets(&b, &rawGoal)...)

	if err != nil {
		return nil, fmt.Errorf("failed to create budget: %w", err)
	}
	if err := unmarshalBudgetGoal(rawGoal, &b); err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *BudgetRepository) GetByID(ctx context.Context, id string) (*budget.Budget, error) {
	query := `
		SELECT ` + budgetColumns + `
		FROM budgets
		WHERE id = $1
	`

	var b budget.Budget
	var rawGoal []byte
	err := r.db.QueryRowContext(ctx, query, id).Scan(budgetScanTargets(&b, &rawGoal)...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get budget: %w", err)
	}
	if err := unmarshalBudgetGoal(rawGoal, &b); err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *BudgetRepository) ListByOwner(ctx context.Context, userID int64, familyID *int64) ([]*budget.Budget, error) {
	query := `
		SELECT ` + budgetColumns + `
		FROM budgets
		WHERE user_id = $1 OR ($2::bigint IS NOT NULL AND family_id = $2)
		ORDER BY period_start DESC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID, familyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}
	defer rows.Close()

	var budgets []*budget.Budget
	for rows.Next() {
		var b budget.Budget
		var rawGoal []byte
		if err := rows.Scan(budgetScanTargets(&b, &rawGoal)...); err != nil {
			return nil, fmt.Errorf("failed to scan budget: %w", err)
		}
		if err := unmarshalBudgetGoal(rawGoal, &b); err != nil {
			return nil, err
		}
		budgets = append(budgets, &b)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}

	return budgets, nil
}

func (r *BudgetRepository) UpdateSpent(ctx context.Context, id string, spent int64) error {
	query := `
		UPDATE budgets
		SET spent = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, spent, id)
	if err != nil {
		return fmt.Errorf("failed to update budget spent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return budget.ErrBudgetNotFound
	}

	return nil
}

func (r *BudgetRepository) Update(ctx context.Context, id string, params budget.UpdateParams) (*budget.Budget, error) {
	goalJSON, err := marshalBudgetGoal(params.Goal)
	if err != nil {
		return nil, err
	}

	query := `
		UPDATE budgets
		SET name = COALESCE($1, name),
		    amount = COALESCE($2, amount),
		    goal = COALESCE($3, goal),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
		RETURNING ` + budgetColumns

	var b budget.Budget
	var rawGoal []byte
	err = r.db.QueryRowContext(
		ctx, query,
		params.Name, params.Amount, goalJSON, id,
	).Scan(budgetScanTargets(&b, &rawGoal)...)

	if err == sql.ErrNoRows {
		return nil, budget.ErrBudgetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update budget: %w", err)
	}
	if err := unmarshalBudgetGoal(rawGoal, &b); err != nil {
		return nil, err
	}

	return &b, nil
}

func (r *BudgetRepository) SetParent(ctx context.Context, id string, parentID *string) error {
	query := `
		UPDATE budgets
		SET parent_id = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, parentID, id)
	if err != nil {
		return fmt.Errorf("failed to set budget parent: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return budget.ErrBudgetNotFound
	}

	return nil
}

func (r *BudgetRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM budgets WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete budget: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return budget.ErrBudgetNotFound
	}

	return nil
}

// ListOwnerIDs returns the distinct users owning at least one active budget.
// Used by the maintenance scheduler to fan out renewal jobs.
func (r *BudgetRepository) ListOwnerIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT DISTINCT user_id FROM budgets WHERE is_active = TRUE`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list budget owners: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan budget owner: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget owners: %w", err)
	}

	return ids, nil
}

func budgetScanTargets(b *budget.Budget, rawGoal *[]byte) []any {
	return []any{
		&b.ID, &b.UserID, &b.FamilyID, &b.Name, &b.PeriodType, &b.Amount, &b.Spent,
		&b.PeriodStart, &b.PeriodEnd, &b.CategoryID, &b.ParentID, &b.IsActive,
		rawGoal, &b.CreatedAt, &b.UpdatedAt,
	}
}

// The legacy goal sub-object rides in a jsonb column; NULL means no goal.

func marshalBudgetGoal(g *budget.Goal) ([]byte, error) {
	if g == nil {
		return nil, nil
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal budget goal: %w", err)
	}
	return data, nil
}

func unmarshalBudgetGoal(raw []byte, b *budget.Budget) error {
	if len(raw) == 0 {
		return nil
	}
	var g budget.Goal
	if err := json.Unmarshal(raw, &g); err != nil {
		return fmt.Errorf("failed to unmarshal budget goal: %w", err)
	}
	b.Goal = &g
	return nil
}
