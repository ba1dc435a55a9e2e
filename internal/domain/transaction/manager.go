package transaction

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"centime/internal/domain/budget"
	"centime/internal/domain/category"
	"centime/internal/domain/family"
	"centime/internal/domain/goal"
	"centime/internal/domain/wallet"
)

var (
	ledgerTracer     = otel.Tracer("centime/ledger")
	ledgerMeter      = otel.Meter("centime/ledger")
	ledgerOps, _     = ledgerMeter.Int64Counter("ledger.operations.total", metric.WithDescription("Ledger operations by kind"))
	ledgerBlocked, _ = ledgerMeter.Int64Counter("ledger.operations.blocked", metric.WithDescription("Ledger operations blocked by insufficient balance"))
)

// Manager orchestrates the transaction lifecycle: every create, update,
// soft delete and restore keeps the transaction record, the wallet balance,
// the budget accounting and any linked goals mutually consistent.
//
// The reverse-then-reapply sequence on update is a compensating-transaction
// pattern built from individual storage writes, not a multi-document atomic
// commit. Mutations for a wallet are serialized through walletLocks so the
// steps of two concurrent operations cannot interleave.
type Manager struct {
	repo       Repository
	wallets    *wallet.Service
	budgets    *budget.Service
	goals      *goal.Service
	categories category.Repository
	families   family.Repository

	locks walletLocks
	now   func() time.Time
}

// NewManager creates a new transaction manager
func NewManager(
	repo Repository,
	wallets *wallet.Service,
	budgets *budget.Service,
	goals *goal.Service,
	categories category.Repository,
	families family.Repository,
) *Manager {
	return &Manager{
		repo:       repo,
		wallets:    wallets,
		budgets:    budgets,
		goals:      goals,
		categories: categories,
		families:   families,
		now:        time.Now,
	}
}

// Create records a new transaction and applies its full ledger effect.
// Balance insufficiency never blocks creation: an expense beyond the wallet
// balance succeeds with a LOW_BALANCE advisory and a negative balance.
func (m *Manager) Create(ctx context.Context, userID int64, params CreateParams) (*CreateResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.Create")
	defer span.End()

	if err := params.Validate(); err != nil {
		return nil, err
	}
	if err := m.checkCategory(ctx, params.CategoryID); err != nil {
		return nil, err
	}
	if params.Source == "" {
		params.Source = SourceManual
	}
	date := ParseDate(params.Date, m.now)

	var w *wallet.Wallet
	var err error
	if params.WalletID != "" {
		w, err = m.wallets.ResolveForTransact(ctx, params.WalletID, userID)
	} else {
		w, err = m.wallets.ResolveOrCreateDefault(ctx, userID, params.Type)
	}
	if err != nil {
		return nil, err
	}

	unlock := m.locks.lock(w.ID)
	defer unlock()

	// Re-read under the lock so the delta applies against fresh state.
	w, err = m.wallets.ResolveForTransact(ctx, w.ID, userID)
	if err != nil {
		return nil, err
	}

	var low *wallet.LowBalanceWarning
	if params.Type == TypeExpense {
		low = wallet.CheckSufficient(w, params.Amount)
	}

	tx, err := m.repo.Create(ctx, CreateTransactionParams{
		UserID:      userID,
		WalletID:    w.ID,
		Amount:      params.Amount,
		Type:        params.Type,
		CategoryID:  params.CategoryID,
		Date:        date,
		Description: params.Description,
		IsShared:    params.IsShared,
		Source:      params.Source,
		RawText:     params.RawText,
		Confidence:  params.Confidence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	if err := m.wallets.ApplyDelta(ctx, w, tx.Amount, tx.Type); err != nil {
		return nil, err
	}

	familyID, err := m.families.FamilyIDForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve family: %w", err)
	}

	result := &CreateResult{Transaction: tx, Wallet: w, LowBalance: low}
	if tx.Type == TypeExpense {
		// Warnings project against the spent counters as they stood before
		// this transaction; the refresh folds it in afterwards.
		warnings, err := m.budgets.Warnings(ctx, userID, familyID, tx.CategoryID, tx.Date, tx.Amount)
		if err != nil {
			return nil, err
		}
		result.BudgetWarnings = warnings
		if err := m.budgets.RefreshForTransaction(ctx, userID, familyID, tx.CategoryID, tx.Date); err != nil {
			return nil, err
		}
	} else {
		if _, err := m.goals.ApplyIncome(ctx, userID, w.ID, tx.Amount); err != nil {
			return nil, err
		}
	}

	ledgerOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "create")))
	return result, nil
}

// Update amends a transaction. Secondary fields persist directly; a change
// to any critical field (amount, type, wallet) reverses the old ledger
// effect and re-applies the new one. Moving an expense to a different wallet
// that cannot cover it is the one blocking path: the in-progress update is
// compensated away and the original state restored.
func (m *Manager) Update(ctx context.Context, userID int64, id string, params UpdateParams) (*UpdateResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.Update")
	defer span.End()

	tx, err := m.getOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if tx.IsDeleted {
		return nil, ErrTransactionDeleted
	}

	// Normalize the requested fields against current values; a field that
	// does not actually change value is dropped here so the critical path
	// only runs for real changes.
	if params.Amount != nil {
		if *params.Amount <= 0 {
			return nil, ErrInvalidAmount
		}
		if *params.Amount == tx.Amount {
			params.Amount = nil
		}
	}
	if params.Type != nil {
		if *params.Type != TypeIncome && *params.Type != TypeExpense {
			return nil, ErrInvalidType
		}
		if *params.Type == tx.Type {
			params.Type = nil
		}
	}
	if params.WalletID != nil && *params.WalletID == tx.WalletID {
		params.WalletID = nil
	}
	if params.CategoryID != nil {
		if tx.CategoryID != nil && *params.CategoryID == *tx.CategoryID {
			params.CategoryID = nil
		} else if err := m.checkCategory(ctx, params.CategoryID); err != nil {
			return nil, err
		}
	}
	var newDate *time.Time
	if params.Date != nil {
		d := ParseDate(*params.Date, m.now)
		if !d.Equal(tx.Date) {
			newDate = &d
		}
	}
	if params.Description != nil && *params.Description == tx.Description {
		params.Description = nil
	}
	if params.IsShared != nil && *params.IsShared == tx.IsShared {
		params.IsShared = nil
	}

	critical := params.Amount != nil || params.Type != nil || params.WalletID != nil
	secondary := params.CategoryID != nil || newDate != nil || params.Description != nil || params.IsShared != nil

	if !critical && !secondary {
		return &UpdateResult{Transaction: tx, NoOp: true}, nil
	}

	repoParams := UpdateTransactionParams{
		Amount:      params.Amount,
		Type:        params.Type,
		WalletID:    params.WalletID,
		CategoryID:  params.CategoryID,
		Date:        newDate,
		Description: params.Description,
		IsShared:    params.IsShared,
	}

	if !critical {
		updated, err := m.repo.Update(ctx, id, repoParams)
		if err != nil {
			return nil, fmt.Errorf("failed to update transaction: %w", err)
		}
		ledgerOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "update")))
		return &UpdateResult{Transaction: updated}, nil
	}

	familyID, err := m.families.FamilyIDForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve family: %w", err)
	}

	var lockExtra []string
	if params.WalletID != nil {
		lockExtra = append(lockExtra, *params.WalletID)
	}
	tx, unlock, err := m.lockOwned(ctx, id, userID, lockExtra...)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if tx.IsDeleted {
		return nil, ErrTransactionDeleted
	}

	newWalletID := tx.WalletID
	if params.WalletID != nil {
		newWalletID = *params.WalletID
	}
	newType := tx.Type
	if params.Type != nil {
		newType = *params.Type
	}
	newAmount := tx.Amount
	if params.Amount != nil {
		newAmount = *params.Amount
	}

	// Resolve both wallets before any mutation; unknown or unauthorized
	// wallets reject the whole operation up front.
	oldWallet, err := m.wallets.ResolveForTransact(ctx, tx.WalletID, userID)
	if err != nil {
		return nil, err
	}
	targetWallet := oldWallet
	walletChanged := params.WalletID != nil
	if walletChanged {
		targetWallet, err = m.wallets.ResolveForTransact(ctx, newWalletID, userID)
		if err != nil {
			return nil, err
		}
	}

	// (a) reverse the old transaction's effect on its old wallet.
	if err := m.wallets.ApplyDelta(ctx, oldWallet, tx.Amount, inverse(tx.Type)); err != nil {
		return nil, err
	}

	// (b) apply the new field values to the record.
	updated, err := m.repo.Update(ctx, id, repoParams)
	if err != nil {
		return nil, fmt.Errorf("failed to update transaction: %w", err)
	}

	// (c) a wallet switch to an expense the new wallet cannot cover blocks:
	// compensate the partial state away and restore the original ledger.
	if walletChanged && newType == TypeExpense && targetWallet.Balance < newAmount {
		if rbErr := m.rollbackUpdate(ctx, tx, oldWallet); rbErr != nil {
			return nil, fmt.Errorf("rollback after blocked wallet switch failed: %w", rbErr)
		}
		ledgerBlocked.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "update")))
		return nil, &InsufficientBalanceError{
			WalletID:       targetWallet.ID,
			CurrentBalance: targetWallet.Balance,
			Required:       newAmount,
		}
	}

	// (d) apply the new delta and bring the budget counters to the new truth.
	if err := m.wallets.ApplyDelta(ctx, targetWallet, newAmount, newType); err != nil {
		return nil, err
	}
	if err := m.refreshBudgets(ctx, userID, familyID, tx, updated); err != nil {
		return nil, err
	}

	ledgerOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "update")))
	return &UpdateResult{Transaction: updated, Wallet: targetWallet}, nil
}

// rollbackUpdate restores the original record values and re-applies the
// original delta to the old wallet after a blocked wallet switch.
func (m *Manager) rollbackUpdate(ctx context.Context, original *Transaction, oldWallet *wallet.Wallet) error {
	restore := UpdateTransactionParams{
		Amount:        &original.Amount,
		Type:          &original.Type,
		WalletID:      &original.WalletID,
		CategoryID:    original.CategoryID,
		ClearCategory: original.CategoryID == nil,
		Date:          &original.Date,
		Description:   &original.Description,
		IsShared:      &original.IsShared,
	}
	if _, err := m.repo.Update(ctx, original.ID, restore); err != nil {
		return fmt.Errorf("failed to restore transaction record: %w", err)
	}
	if err := m.wallets.ApplyDelta(ctx, oldWallet, original.Amount, original.Type); err != nil {
		return fmt.Errorf("failed to restore wallet balance: %w", err)
	}
	log.Printf("Rolled back blocked update of transaction %s", original.ID)
	return nil
}

// refreshBudgets recomputes the budgets touched by the transaction's state
// before and after a mutation. Recomputation is idempotent, so overlapping
// scopes are simply refreshed twice.
func (m *Manager) refreshBudgets(ctx context.Context, userID int64, familyID *int64, before, after *Transaction) error {
	if before != nil && before.Type == TypeExpense {
		if err := m.budgets.RefreshForTransaction(ctx, userID, familyID, before.CategoryID, before.Date); err != nil {
			return err
		}
	}
	if after != nil && after.Type == TypeExpense {
		if err := m.budgets.RefreshForTransaction(ctx, userID, familyID, after.CategoryID, after.Date); err != nil {
			return err
		}
	}
	return nil
}

// SoftDelete reverses the transaction's wallet delta and budget contribution
// and marks it deleted. Goal progress contributed by an income transaction
// is deliberately not clawed back.
func (m *Manager) SoftDelete(ctx context.Context, userID int64, id string) (*DeleteResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.SoftDelete")
	defer span.End()

	tx, unlock, err := m.lockOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if tx.IsDeleted {
		return nil, ErrTransactionDeleted
	}

	familyID, err := m.families.FamilyIDForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve family: %w", err)
	}

	w, err := m.wallets.ResolveForTransact(ctx, tx.WalletID, userID)
	if err != nil {
		return nil, err
	}

	if err := m.wallets.ApplyDelta(ctx, w, tx.Amount, inverse(tx.Type)); err != nil {
		return nil, err
	}

	deletedAt := m.now()
	if err := m.repo.SetDeleted(ctx, id, true, &deletedAt); err != nil {
		return nil, fmt.Errorf("failed to mark transaction deleted: %w", err)
	}
	tx.IsDeleted = true
	tx.DeletedAt = &deletedAt

	if tx.Type == TypeExpense {
		if err := m.budgets.RefreshForTransaction(ctx, userID, familyID, tx.CategoryID, tx.Date); err != nil {
			return nil, err
		}
	}

	// Removing an income can leave the wallet short; that is advisory here,
	// never blocking.
	low := wallet.CheckSufficient(w, 0)

	ledgerOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "delete")))
	return &DeleteResult{Transaction: tx, Wallet: w, LowBalance: low}, nil
}

// Restore re-applies a soft-deleted transaction. Unlike creation, restoring
// an expense blocks when the same wallet can no longer absorb the amount.
func (m *Manager) Restore(ctx context.Context, userID int64, id string) (*RestoreResult, error) {
	ctx, span := ledgerTracer.Start(ctx, "ledger.Restore")
	defer span.End()

	tx, unlock, err := m.lockOwned(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if !tx.IsDeleted {
		return nil, ErrTransactionNotDeleted
	}

	familyID, err := m.families.FamilyIDForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve family: %w", err)
	}

	w, err := m.wallets.ResolveForTransact(ctx, tx.WalletID, userID)
	if err != nil {
		return nil, err
	}

	if tx.Type == TypeExpense && w.Balance < tx.Amount {
		ledgerBlocked.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "restore")))
		return nil, &InsufficientBalanceError{
			WalletID:       w.ID,
			CurrentBalance: w.Balance,
			Required:       tx.Amount,
		}
	}

	if err := m.wallets.ApplyDelta(ctx, w, tx.Amount, tx.Type); err != nil {
		return nil, err
	}
	if err := m.repo.SetDeleted(ctx, id, false, nil); err != nil {
		return nil, fmt.Errorf("failed to clear soft-delete flag: %w", err)
	}
	tx.IsDeleted = false
	tx.DeletedAt = nil

	if tx.Type == TypeExpense {
		if err := m.budgets.RefreshForTransaction(ctx, userID, familyID, tx.CategoryID, tx.Date); err != nil {
			return nil, err
		}
	} else {
		if _, err := m.goals.ApplyIncome(ctx, userID, w.ID, tx.Amount); err != nil {
			return nil, err
		}
	}

	ledgerOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", "restore")))
	return &RestoreResult{Transaction: tx, Wallet: w}, nil
}

// GetTransaction retrieves a transaction by ID and verifies ownership
func (m *Manager) GetTransaction(ctx context.Context, userID int64, id string) (*Transaction, error) {
	return m.getOwned(ctx, id, userID)
}

// ListTransactions retrieves the user's non-deleted transactions
func (m *Manager) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*Transaction, error) {
	return m.repo.ListByUserID(ctx, userID, limit, offset)
}

func (m *Manager) getOwned(ctx context.Context, id string, userID int64) (*Transaction, error) {
	tx, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	if tx.UserID != userID {
		return nil, ErrForbidden
	}
	return tx, nil
}

// lockOwned acquires the wallet lock for a transaction and re-reads the
// record under it, so lifecycle checks run against state no concurrent
// mutation can still change. The lock key comes from a read taken before
// the lock; when a concurrent wallet switch invalidates it, retake the
// lock with the fresh key. Callers check IsDeleted on the returned record.
func (m *Manager) lockOwned(ctx context.Context, id string, userID int64, extra ...string) (*Transaction, func(), error) {
	tx, err := m.getOwned(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}
	for {
		unlock := m.locks.lock(append([]string{tx.WalletID}, extra...)...)
		fresh, err := m.getOwned(ctx, id, userID)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if fresh.WalletID == tx.WalletID {
			return fresh, unlock, nil
		}
		unlock()
		tx = fresh
	}
}

func (m *Manager) checkCategory(ctx context.Context, categoryID *string) error {
	if categoryID == nil {
		return nil
	}
	ok, err := m.categories.Exists(ctx, *categoryID)
	if err != nil {
		return fmt.Errorf("failed to look up category: %w", err)
	}
	if !ok {
		return category.ErrCategoryNotFound
	}
	return nil
}

// WithClock overrides the manager clock, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}
