package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"centime/internal/domain/budget"
	"centime/internal/domain/category"
	"centime/internal/domain/family"
	"centime/internal/domain/goal"
	"centime/internal/domain/transaction"
	"centime/internal/domain/wallet"
	"centime/internal/shared/middleware"
)

// Handler tests run against a real manager composed over in-memory
// repositories, so a request exercises the full transport -> domain path.

type stubTxRepo struct {
	mu  sync.Mutex
	txs map[string]*transaction.Transaction
	seq int
}

func newStubTxRepo() *stubTxRepo {
	return &stubTxRepo{txs: make(map[string]*transaction.Transaction)}
}

func (r *stubTxRepo) Create(ctx context.Context, params transaction.CreateTransactionParams) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	tx := &transaction.Transaction{
		ID:          fmt.Sprintf("tx-%d", r.seq),
		UserID:      params.UserID,
		WalletID:    params.WalletID,
		Amount:      params.Amount,
		Type:        params.Type,
		CategoryID:  params.CategoryID,
		Date:        params.Date,
		Description: params.Description,
		IsShared:    params.IsShared,
		Source:      params.Source,
		RawText:     params.RawText,
		Confidence:  params.Confidence,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.txs[tx.ID] = tx
	cp := *tx
	return &cp, nil
}

func (r *stubTxRepo) GetByID(ctx context.Context, id string) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (r *stubTxRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, tx := range r.txs {
		if tx.UserID == userID && !tx.IsDeleted {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubTxRepo) ListByWalletID(ctx context.Context, walletID string, limit, offset int) ([]*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*transaction.Transaction
	for _, tx := range r.txs {
		if tx.WalletID == walletID && !tx.IsDeleted {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubTxRepo) Update(ctx context.Context, id string, params transaction.UpdateTransactionParams) (*transaction.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return nil, transaction.ErrTransactionNotFound
	}
	if params.Amount != nil {
		tx.Amount = *params.Amount
	}
	if params.Type != nil {
		tx.Type = *params.Type
	}
	if params.WalletID != nil {
		tx.WalletID = *params.WalletID
	}
	if params.ClearCategory {
		tx.CategoryID = nil
	} else if params.CategoryID != nil {
		tx.CategoryID = params.CategoryID
	}
	if params.Date != nil {
		tx.Date = *params.Date
	}
	if params.Description != nil {
		tx.Description = *params.Description
	}
	if params.IsShared != nil {
		tx.IsShared = *params.IsShared
	}
	tx.UpdatedAt = time.Now()
	cp := *tx
	return &cp, nil
}

func (r *stubTxRepo) SetDeleted(ctx context.Context, id string, deleted bool, deletedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx, ok := r.txs[id]
	if !ok {
		return transaction.ErrTransactionNotFound
	}
	tx.IsDeleted = deleted
	tx.DeletedAt = deletedAt
	return nil
}

func (r *stubTxRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.txs[id]; !ok {
		return transaction.ErrTransactionNotFound
	}
	delete(r.txs, id)
	return nil
}

func (r *stubTxRepo) SumExpenses(ctx context.Context, scope budget.ExpenseScope) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var sum int64
	for _, tx := range r.txs {
		if tx.UserID != scope.UserID || tx.Type != transaction.TypeExpense || tx.IsDeleted {
			continue
		}
		if tx.Date.Before(scope.From) || tx.Date.After(scope.To) {
			continue
		}
		if scope.CategoryID != nil && (tx.CategoryID == nil || *tx.CategoryID != *scope.CategoryID) {
			continue
		}
		sum += tx.Amount
	}
	return sum, nil
}

type stubWalletRepo struct {
	mu      sync.Mutex
	wallets map[string]*wallet.Wallet
	seq     int
}

func newStubWalletRepo() *stubWalletRepo {
	return &stubWalletRepo{wallets: make(map[string]*wallet.Wallet)}
}

func (r *stubWalletRepo) Create(ctx context.Context, params wallet.CreateParams) (*wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	w := &wallet.Wallet{
		ID:         fmt.Sprintf("w-%d", r.seq),
		UserID:     params.UserID,
		FamilyID:   params.FamilyID,
		Name:       params.Name,
		WalletType: params.WalletType,
		Balance:    params.Balance,
		IsActive:   true,
		IsShared:   params.IsShared,
		IsDefault:  params.IsDefault,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	r.wallets[w.ID] = w
	cp := *w
	return &cp, nil
}

func (r *stubWalletRepo) GetByID(ctx context.Context, id string) (*wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *stubWalletRepo) ListByUserID(ctx context.Context, userID int64) ([]*wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*wallet.Wallet
	for _, w := range r.wallets {
		if w.UserID == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubWalletRepo) GetDefault(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.UserID == userID && w.IsDefault && w.IsActive {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *stubWalletRepo) UpdateBalance(ctx context.Context, id string, balance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	w.Balance = balance
	return nil
}

func (r *stubWalletRepo) Update(ctx context.Context, id string, params wallet.UpdateParams) (*wallet.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	if params.Name != nil {
		w.Name = *params.Name
	}
	if params.WalletType != nil {
		w.WalletType = *params.WalletType
	}
	if params.IsShared != nil {
		w.IsShared = *params.IsShared
	}
	if params.IsDefault != nil {
		w.IsDefault = *params.IsDefault
	}
	cp := *w
	return &cp, nil
}

func (r *stubWalletRepo) SetActive(ctx context.Context, id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	w.IsActive = active
	return nil
}

func (r *stubWalletRepo) SetAccess(ctx context.Context, id string, shared bool, canView, canTransact []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	w.IsShared = shared
	w.CanView = canView
	w.CanTransact = canTransact
	return nil
}

type stubBudgetRepo struct{}

func (r *stubBudgetRepo) Create(ctx context.Context, params budget.CreateParams) (*budget.Budget, error) {
	return nil, fmt.Errorf("not supported")
}

func (r *stubBudgetRepo) GetByID(ctx context.Context, id string) (*budget.Budget, error) {
	return nil, nil
}

func (r *stubBudgetRepo) ListByOwner(ctx context.Context, userID int64, familyID *int64) ([]*budget.Budget, error) {
	return nil, nil
}

func (r *stubBudgetRepo) UpdateSpent(ctx context.Context, id string, spent int64) error { return nil }

func (r *stubBudgetRepo) Update(ctx context.Context, id string, params budget.UpdateParams) (*budget.Budget, error) {
	return nil, budget.ErrBudgetNotFound
}

func (r *stubBudgetRepo) SetParent(ctx context.Context, id string, parentID *string) error {
	return nil
}

func (r *stubBudgetRepo) Delete(ctx context.Context, id string) error { return nil }

type stubGoalRepo struct {
	mu    sync.Mutex
	goals map[string]*goal.Goal
	seq   int
}

func newStubGoalRepo() *stubGoalRepo {
	return &stubGoalRepo{goals: make(map[string]*goal.Goal)}
}

func (r *stubGoalRepo) Create(ctx context.Context, params goal.CreateParams) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	g := &goal.Goal{
		ID:                fmt.Sprintf("g-%d", r.seq),
		UserID:            params.UserID,
		Name:              params.Name,
		TargetAmount:      params.TargetAmount,
		Deadline:          params.Deadline,
		Status:            goal.StatusActive,
		AssociatedWallets: params.AssociatedWallets,
		CreatedAt:         time.Now(),
		UpdatedAt:         time.Now(),
	}
	r.goals[g.ID] = g
	cp := *g
	return &cp, nil
}

func (r *stubGoalRepo) GetByID(ctx context.Context, id string) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *stubGoalRepo) ListByUserID(ctx context.Context, userID int64) ([]*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*goal.Goal
	for _, g := range r.goals {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubGoalRepo) ListActiveByWallet(ctx context.Context, userID int64, walletID string) ([]*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*goal.Goal
	for _, g := range r.goals {
		if g.UserID == userID && g.Status == goal.StatusActive && g.LinkedTo(walletID) {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *stubGoalRepo) UpdateProgress(ctx context.Context, id string, progress int64, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok {
		return goal.ErrGoalNotFound
	}
	g.CurrentProgress = progress
	g.Status = status
	return nil
}

func (r *stubGoalRepo) Update(ctx context.Context, id string, params goal.UpdateParams) (*goal.Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok {
		return nil, goal.ErrGoalNotFound
	}
	if params.Name != nil {
		g.Name = *params.Name
	}
	if params.TargetAmount != nil {
		g.TargetAmount = *params.TargetAmount
	}
	if params.Deadline != nil {
		g.Deadline = params.Deadline
	}
	if params.AssociatedWallets != nil {
		g.AssociatedWallets = params.AssociatedWallets
	}
	cp := *g
	return &cp, nil
}

func (r *stubGoalRepo) SetStatus(ctx context.Context, id string, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	g, ok := r.goals[id]
	if !ok {
		return goal.ErrGoalNotFound
	}
	g.Status = status
	return nil
}

func (r *stubGoalRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.goals, id)
	return nil
}

type stubCategoryRepo struct{ ids map[string]string }

func (r *stubCategoryRepo) GetByID(ctx context.Context, id string) (*category.Category, error) {
	name, ok := r.ids[id]
	if !ok {
		return nil, nil
	}
	return &category.Category{ID: id, Name: name, Type: transaction.TypeExpense}, nil
}

func (r *stubCategoryRepo) Exists(ctx context.Context, id string) (bool, error) {
	_, ok := r.ids[id]
	return ok, nil
}

func (r *stubCategoryRepo) List(ctx context.Context) ([]*category.Category, error) {
	out := make([]*category.Category, 0, len(r.ids))
	for id, name := range r.ids {
		out = append(out, &category.Category{ID: id, Name: name})
	}
	return out, nil
}

type stubFamilyRepo struct{}

func (r *stubFamilyRepo) FamilyIDForUser(ctx context.Context, userID int64) (*int64, error) {
	return nil, nil
}

func (r *stubFamilyRepo) IsMember(ctx context.Context, familyID, userID int64) (bool, error) {
	return false, nil
}

var (
	_ family.Repository   = (*stubFamilyRepo)(nil)
	_ category.Repository = (*stubCategoryRepo)(nil)
)

// ledgerEnv wires the stubs into real services and handlers.
type ledgerEnv struct {
	txs     *stubTxRepo
	wallets *stubWalletRepo
	goals   *stubGoalRepo

	walletSvc *wallet.Service
	goalSvc   *goal.Service
	manager   *transaction.Manager
}

func newLedgerEnv() *ledgerEnv {
	txs := newStubTxRepo()
	wallets := newStubWalletRepo()
	goals := newStubGoalRepo()

	walletSvc := wallet.NewService(wallets)
	budgetSvc := budget.NewService(&stubBudgetRepo{}, txs)
	goalSvc := goal.NewService(goals)
	categories := &stubCategoryRepo{ids: map[string]string{"cat-food": "Food"}}

	manager := transaction.NewManager(txs, walletSvc, budgetSvc, goalSvc, categories, &stubFamilyRepo{})

	return &ledgerEnv{
		txs:       txs,
		wallets:   wallets,
		goals:     goals,
		walletSvc: walletSvc,
		goalSvc:   goalSvc,
		manager:   manager,
	}
}

func (e *ledgerEnv) seedWallet(userID, balance int64) *wallet.Wallet {
	w, err := e.wallets.Create(context.Background(), wallet.CreateParams{
		UserID:     userID,
		Name:       "Cash",
		WalletType: "cash",
		Balance:    balance,
	})
	if err != nil {
		panic(err)
	}
	return w
}

// authed attaches the user identity the auth middleware would have added.
func authed(r *http.Request, userID int64) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
	ctx = context.WithValue(ctx, middleware.EmailKey, "user@example.com")
	return r.WithContext(ctx)
}
