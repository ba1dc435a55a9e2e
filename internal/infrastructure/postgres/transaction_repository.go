package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"centime/internal/domain/budget"
	"centime/internal/domain/transaction"

	"github.com/google/uuid"
)

type TransactionRepository struct {
	db *DB
}

func NewTransactionRepository(db *DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, user_id, wallet_id, amount, type, category_id, date,
       description, is_shared, is_deleted, deleted_at, source, raw_text, confidence,
       created_at, updated_at`

func (r *TransactionRepository) Create(ctx context.Context, params transaction.CreateTransactionParams) (*transaction.Transaction, error) {
	query := `
		INSERT INTO transactions (id, user_id, wallet_id, amount, type, category_id, date,
		                          description, is_shared, source, raw_text, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING ` + transactionColumns

	var t transaction.Transaction
	err := r.db.QueryRowContext(
		ctx, query,
		uuid.New().String(), params.UserID, params.WalletID, params.Amount, params.Type,
		params.CategoryID, params.Date, params.Description, params.IsShared, params.Source,
		params.RawText, params.Confidence,
	).Scan(scanTargets(&t)...)

	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	return &t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE id = $1
	`

	var t transaction.Transaction
	err := r.db.QueryRowContext(ctx, query, id).Scan(scanTargets(&t)...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return &t, nil
}

func (r *TransactionRepository) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1 AND is_deleted = FALSE
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, userID, normalizeLimit(limit), offset)
}

func (r *TransactionRepository) ListByWalletID(ctx context.Context, walletID string, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE wallet_id = $1 AND is_deleted = FALSE
		ORDER BY date DESC, created_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.list(ctx, query, walletID, normalizeLimit(limit), offset)
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]*transaction.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*transaction.Transaction
	for rows.Next() {
		var t transaction.Transaction
		if err := rows.Scan(scanTargets(&t)...); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

func (r *TransactionRepository) Update(ctx context.Context, id string, params transaction.UpdateTransactionParams) (*transaction.Transaction, error) {
	query := `
		UPDATE transactions
		SET amount = COALESCE($1, amount),
		    type = COALESCE($2, type),
		    wallet_id = COALESCE($3, wallet_id),
		    category_id = CASE WHEN $5 THEN NULL ELSE COALESCE($4, category_id) END,
		    date = COALESCE($6, date),
		    description = COALESCE($7, description),
		    is_shared = COALESCE($8, is_shared),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $9
		RETURNING ` + transactionColumns

	var t transaction.Transaction
	err := r.db.QueryRowContext(
		ctx, query,
		params.Amount, params.Type, params.WalletID, params.CategoryID, params.ClearCategory,
		params.Date, params.Description, params.IsShared, id,
	).Scan(scanTargets(&t)...)

	if err == sql.ErrNoRows {
		return nil, transaction.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	return &t, nil
}

func (r *TransactionRepository) SetDeleted(ctx context.Context, id string, deleted bool, deletedAt *time.Time) error {
	query := `
		UPDATE transactions
		SET is_deleted = $1, deleted_at = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $3
	`

	result, err := r.db.ExecContext(ctx, query, deleted, deletedAt, id)
	if err != nil {
		return fmt.Errorf("failed to set deleted flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return transaction.ErrTransactionNotFound
	}

	return nil
}

func (r *TransactionRepository) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM transactions WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return transaction.ErrTransactionNotFound
	}

	return nil
}

// SumExpenses implements budget.ExpenseSummer: the sum of non-deleted expense
// transactions matching the scope, straight from the source of truth.
func (r *TransactionRepository) SumExpenses(ctx context.Context, scope budget.ExpenseScope) (int64, error) {
	query := `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM transactions t
		WHERE t.type = 'expense'
		  AND t.is_deleted = FALSE
		  AND t.date BETWEEN $1 AND $2
		  AND ($3::text IS NULL OR t.category_id = $3)
		  AND (t.user_id = $4 OR ($5::bigint IS NOT NULL AND t.is_shared = TRUE AND t.user_id IN (
		      SELECT user_id FROM family_members WHERE family_id = $5)))
	`

	var total int64
	err := r.db.QueryRowContext(
		ctx, query,
		scope.From, scope.To, scope.CategoryID, scope.UserID, scope.FamilyID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum expenses: %w", err)
	}

	return total, nil
}

func scanTargets(t *transaction.Transaction) []any {
	return []any{
		&t.ID, &t.UserID, &t.WalletID, &t.Amount, &t.Type, &t.CategoryID, &t.Date,
		&t.Description, &t.IsShared, &t.IsDeleted, &t.DeletedAt, &t.Source, &t.RawText,
		&t.Confidence, &t.CreatedAt, &t.UpdatedAt,
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}
