package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"centime/internal/domain/wallet"
)

type WalletRepository struct {
	db *DB
}

func NewWalletRepository(db *DB) *WalletRepository {
	return &WalletRepository{db: db}
}

const walletColumns = `id, user_id, family_id, name, wallet_type, balance,
       is_active, is_shared, is_default, can_view, can_transact, created_at, updated_at`

func (r *WalletRepository) Create(ctx context.Context, params wallet.CreateParams) (*wallet.Wallet, error) {
	walletType := params.WalletType
	if walletType == "" {
		walletType = "cash"
	}

	query := `
		INSERT INTO wallets (user_id, family_id, name, wallet_type, balance, is_shared, is_default)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + walletColumns

	var w wallet.Wallet
	err := r.db.QueryRowContext(
		ctx, query,
		params.UserID, params.FamilyID, params.Name, walletType, params.Balance,
		params.IsShared, params.IsDefault,
	).Scan(walletScanTargets(&w)...)

	if err != nil {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}

	return &w, nil
}

func (r *WalletRepository) GetByID(ctx context.Context, id string) (*wallet.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = $1
	`

	var w wallet.Wallet
	err := r.db.QueryRowContext(ctx, query, id).Scan(walletScanTargets(&w)...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &w, nil
}

func (r *WalletRepository) ListByUserID(ctx context.Context, userID int64) ([]*wallet.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = $1
		ORDER BY is_default DESC, name ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*wallet.Wallet
	for rows.Next() {
		var w wallet.Wallet
		if err := rows.Scan(walletScanTargets(&w)...); err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}

	return wallets, nil
}

func (r *WalletRepository) GetDefault(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = $1 AND is_default = TRUE AND is_active = TRUE
		LIMIT 1
	`

	var w wallet.Wallet
	err := r.db.QueryRowContext(ctx, query, userID).Scan(walletScanTargets(&w)...)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get default wallet: %w", err)
	}

	return &w, nil
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, id string, balance int64) error {
	query := `
		UPDATE wallets
		SET balance = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, balance, id)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return wallet.ErrWalletNotFound
	}

	return nil
}

func (r *WalletRepository) Update(ctx context.Context, id string, params wallet.UpdateParams) (*wallet.Wallet, error) {
	query := `
		UPDATE wallets
		SET name = COALESCE($1, name),
		    wallet_type = COALESCE($2, wallet_type),
		    is_shared = COALESCE($3, is_shared),
		    is_default = COALESCE($4, is_default),
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $5
		RETURNING ` + walletColumns

	var w wallet.Wallet
	err := r.db.QueryRowContext(
		ctx, query,
		params.Name, params.WalletType, params.IsShared, params.IsDefault, id,
	).Scan(walletScanTargets(&w)...)

	if err == sql.ErrNoRows {
		return nil, wallet.ErrWalletNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update wallet: %w", err)
	}

	return &w, nil
}

func (r *WalletRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := `
		UPDATE wallets
		SET is_active = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2
	`

	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("failed to set wallet active flag: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return wallet.ErrWalletNotFound
	}

	return nil
}

func (r *WalletRepository) SetAccess(ctx context.Context, id string, shared bool, canView, canTransact []int64) error {
	query := `
		UPDATE wallets
		SET is_shared = $1,
		    can_view = $2,
		    can_transact = $3,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, shared, pq.Int64Array(canView), pq.Int64Array(canTransact), id)
	if err != nil {
		return fmt.Errorf("failed to set wallet access: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return wallet.ErrWalletNotFound
	}

	return nil
}

func walletScanTargets(w *wallet.Wallet) []any {
	return []any{
		&w.ID, &w.UserID, &w.FamilyID, &w.Name, &w.WalletType, &w.Balance,
		&w.IsActive, &w.IsShared, &w.IsDefault,
		(*pq.Int64Array)(&w.CanView), (*pq.Int64Array)(&w.CanTransact),
		&w.CreatedAt, &w.UpdatedAt,
	}
}
