package transaction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"centime/internal/domain/budget"
	"centime/internal/domain/category"
	"centime/internal/domain/goal"
	"centime/internal/domain/wallet"
)

// In-memory fakes. The transaction fake implements budget.ExpenseSummer the
// same way the storage layer does, so budget recomputation in these tests
// runs against the real transaction state.

type memTxRepo struct {
	txs map[string]*Transaction
}

func newMemTxRepo() *memTxRepo {
	return &memTxRepo{txs: make(map[string]*Transaction)}
}

func (r *memTxRepo) Create(ctx context.Context, params CreateTransactionParams) (*Transaction, error) {
	tx := &Transaction{
		ID:          uuid.NewString(),
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

func (r *memTxRepo) GetByID(ctx context.Context, id string) (*Transaction, error) {
	tx, ok := r.txs[id]
	if !ok {
		return nil, nil
	}
	cp := *tx
	return &cp, nil
}

func (r *memTxRepo) ListByUserID(ctx context.Context, userID int64, limit, offset int) ([]*Transaction, error) {
	var out []*Transaction
	for _, tx := range r.txs {
		if tx.UserID == userID && !tx.IsDeleted {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTxRepo) ListByWalletID(ctx context.Context, walletID string, limit, offset int) ([]*Transaction, error) {
	var out []*Transaction
	for _, tx := range r.txs {
		if tx.WalletID == walletID && !tx.IsDeleted {
			cp := *tx
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memTxRepo) Update(ctx context.Context, id string, params UpdateTransactionParams) (*Transaction, error) {
	tx, ok := r.txs[id]
	if !ok {
		return nil, ErrTransactionNotFound
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

func (r *memTxRepo) SetDeleted(ctx context.Context, id string, deleted bool, deletedAt *time.Time) error {
	tx, ok := r.txs[id]
	if !ok {
		return ErrTransactionNotFound
	}
	tx.IsDeleted = deleted
	tx.DeletedAt = deletedAt
	return nil
}

func (r *memTxRepo) Delete(ctx context.Context, id string) error {
	delete(r.txs, id)
	return nil
}

func (r *memTxRepo) SumExpenses(ctx context.Context, scope budget.ExpenseScope) (int64, error) {
	var total int64
	for _, tx := range r.txs {
		if tx.IsDeleted || tx.Type != TypeExpense || tx.UserID != scope.UserID {
			continue
		}
		if scope.CategoryID != nil {
			if tx.CategoryID == nil || *tx.CategoryID != *scope.CategoryID {
				continue
			}
		}
		if tx.Date.Before(scope.From) || tx.Date.After(scope.To) {
			continue
		}
		total += tx.Amount
	}
	return total, nil
}

type memWalletRepo struct {
	wallets map[string]*wallet.Wallet
}

func newMemWalletRepo() *memWalletRepo {
	return &memWalletRepo{wallets: make(map[string]*wallet.Wallet)}
}

func (r *memWalletRepo) Create(ctx context.Context, params wallet.CreateParams) (*wallet.Wallet, error) {
	w := &wallet.Wallet{
		ID:         uuid.NewString(),
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

func (r *memWalletRepo) GetByID(ctx context.Context, id string) (*wallet.Wallet, error) {
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *memWalletRepo) ListByUserID(ctx context.Context, userID int64) ([]*wallet.Wallet, error) {
	var out []*wallet.Wallet
	for _, w := range r.wallets {
		if w.UserID == userID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memWalletRepo) GetDefault(ctx context.Context, userID int64) (*wallet.Wallet, error) {
	for _, w := range r.wallets {
		if w.UserID == userID && w.IsDefault {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memWalletRepo) UpdateBalance(ctx context.Context, id string, balance int64) error {
	w, ok := r.wallets[id]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	w.Balance = balance
	return nil
}

func (r *memWalletRepo) Update(ctx context.Context, id string, params wallet.UpdateParams) (*wallet.Wallet, error) {
	w, ok := r.wallets[id]
	if !ok {
		return nil, wallet.ErrWalletNotFound
	}
	if params.Name != nil {
		w.Name = *params.Name
	}
	cp := *w
	return &cp, nil
}

func (r *memWalletRepo) SetActive(ctx context.Context, id string, active bool) error {
	w, ok := r.wallets[id]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	w.IsActive = active
	return nil
}

func (r *memWalletRepo) SetAccess(ctx context.Context, id string, shared bool, canView, canTransact []int64) error {
	w, ok := r.wallets[id]
	if !ok {
		return wallet.ErrWalletNotFound
	}
	w.IsShared = shared
	w.CanView = canView
	w.CanTransact = canTransact
	return nil
}

type memBudgetRepo struct {
	budgets map[string]*budget.Budget
}

func newMemBudgetRepo() *memBudgetRepo {
	return &memBudgetRepo{budgets: make(map[string]*budget.Budget)}
}

func (r *memBudgetRepo) Create(ctx context.Context, params budget.CreateParams) (*budget.Budget, error) {
	b := &budget.Budget{
		ID:          uuid.NewString(),
		UserID:      params.UserID,
		FamilyID:    params.FamilyID,
		Name:        params.Name,
		PeriodType:  params.PeriodType,
		Amount:      params.Amount,
		CategoryID:  params.CategoryID,
		PeriodStart: params.PeriodStart,
		PeriodEnd:   params.PeriodEnd,
		ParentID:    params.ParentID,
		IsActive:    true,
		Goal:        params.Goal,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.budgets[b.ID] = b
	cp := *b
	return &cp, nil
}

func (r *memBudgetRepo) GetByID(ctx context.Context, id string) (*budget.Budget, error) {
	b, ok := r.budgets[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (r *memBudgetRepo) ListByOwner(ctx context.Context, userID int64, familyID *int64) ([]*budget.Budget, error) {
	var out []*budget.Budget
	for _, b := range r.budgets {
		owned := b.UserID == userID
		shared := familyID != nil && b.FamilyID != nil && *b.FamilyID == *familyID
		if owned || shared {
			cp := *b
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memBudgetRepo) UpdateSpent(ctx context.Context, id string, spent int64) error {
	b, ok := r.budgets[id]
	if !ok {
		return budget.ErrBudgetNotFound
	}
	b.Spent = spent
	return nil
}

func (r *memBudgetRepo) Update(ctx context.Context, id string, params budget.UpdateParams) (*budget.Budget, error) {
	b, ok := r.budgets[id]
	if !ok {
		return nil, budget.ErrBudgetNotFound
	}
	if params.Name != nil {
		b.Name = *params.Name
	}
	if params.Amount != nil {
		b.Amount = *params.Amount
	}
	if params.Goal != nil {
		b.Goal = params.Goal
	}
	cp := *b
	return &cp, nil
}

func (r *memBudgetRepo) SetParent(ctx context.Context, id string, parentID *string) error {
	b, ok := r.budgets[id]
	if !ok {
		return budget.ErrBudgetNotFound
	}
	b.ParentID = parentID
	return nil
}

func (r *memBudgetRepo) Delete(ctx context.Context, id string) error {
	delete(r.budgets, id)
	return nil
}

type memGoalRepo struct {
	goals map[string]*goal.Goal
}

func newMemGoalRepo() *memGoalRepo {
	return &memGoalRepo{goals: make(map[string]*goal.Goal)}
}

func (r *memGoalRepo) Create(ctx context.Context, params goal.CreateParams) (*goal.Goal, error) {
	g := &goal.Goal{
		ID:                uuid.NewString(),
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

func (r *memGoalRepo) GetByID(ctx context.Context, id string) (*goal.Goal, error) {
	g, ok := r.goals[id]
	if !ok {
		return nil, nil
	}
	cp := *g
	return &cp, nil
}

func (r *memGoalRepo) ListByUserID(ctx context.Context, userID int64) ([]*goal.Goal, error) {
	var out []*goal.Goal
	for _, g := range r.goals {
		if g.UserID == userID {
			cp := *g
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *memGoalRepo) ListActiveByWallet(ctx context.Context, userID int64, walletID string) ([]*goal.Goal, error) {
	var out []*goal.Goal
	for _, g := range r.goals {
		if g.UserID != userID || g.Status != goal.StatusActive {
			continue
		}
		for _, id := range g.AssociatedWallets {
			if id == walletID {
				cp := *g
				out = append(out, &cp)
				break
			}
		}
	}
	return out, nil
}

func (r *memGoalRepo) UpdateProgress(ctx context.Context, id string, progress int64, status string) error {
	g, ok := r.goals[id]
	if !ok {
		return goal.ErrGoalNotFound
	}
	g.CurrentProgress = progress
	g.Status = status
	return nil
}

func (r *memGoalRepo) Update(ctx context.Context, id string, params goal.UpdateParams) (*goal.Goal, error) {
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
	cp := *g
	return &cp, nil
}

func (r *memGoalRepo) SetStatus(ctx context.Context, id string, status string) error {
	g, ok := r.goals[id]
	if !ok {
		return goal.ErrGoalNotFound
	}
	g.Status = status
	return nil
}

func (r *memGoalRepo) Delete(ctx context.Context, id string) error {
	delete(r.goals, id)
	return nil
}

type staticCategoryRepo struct {
	ids map[string]bool
}

func (r *staticCategoryRepo) GetByID(ctx context.Context, id string) (*category.Category, error) {
	if !r.ids[id] {
		return nil, nil
	}
	return &category.Category{ID: id, Name: id, Type: "expense"}, nil
}

func (r *staticCategoryRepo) Exists(ctx context.Context, id string) (bool, error) {
	return r.ids[id], nil
}

func (r *staticCategoryRepo) List(ctx context.Context) ([]*category.Category, error) {
	return nil, nil
}

type staticFamilyRepo struct {
	families map[int64]int64
}

func (r *staticFamilyRepo) FamilyIDForUser(ctx context.Context, userID int64) (*int64, error) {
	id, ok := r.families[userID]
	if !ok {
		return nil, nil
	}
	return &id, nil
}

func (r *staticFamilyRepo) IsMember(ctx context.Context, familyID, userID int64) (bool, error) {
	return r.families[userID] == familyID, nil
}

type ledgerFixture struct {
	manager *Manager
	txs     *memTxRepo
	wallets *memWalletRepo
	budgets *memBudgetRepo
	goals   *memGoalRepo

	walletSvc *wallet.Service
	budgetSvc *budget.Service
	goalSvc   *goal.Service
}

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func newLedgerFixture() *ledgerFixture {
	clock := func() time.Time { return fixedNow }

	txs := newMemTxRepo()
	wallets := newMemWalletRepo()
	budgets := newMemBudgetRepo()
	goals := newMemGoalRepo()

	walletSvc := wallet.NewService(wallets)
	budgetSvc := budget.NewService(budgets, txs).WithClock(clock)
	goalSvc := goal.NewService(goals).WithClock(clock)

	categories := &staticCategoryRepo{ids: map[string]bool{"food": true, "transport": true}}
	families := &staticFamilyRepo{families: map[int64]int64{}}

	manager := NewManager(txs, walletSvc, budgetSvc, goalSvc, categories, families).WithClock(clock)

	return &ledgerFixture{
		manager:   manager,
		txs:       txs,
		wallets:   wallets,
		budgets:   budgets,
		goals:     goals,
		walletSvc: walletSvc,
		budgetSvc: budgetSvc,
		goalSvc:   goalSvc,
	}
}

func (f *ledgerFixture) seedWallet(t *testing.T, userID, balance int64) *wallet.Wallet {
	t.Helper()
	w, err := f.wallets.Create(context.Background(), wallet.CreateParams{
		UserID:     userID,
		Name:       "Cash",
		WalletType: "cash",
		Balance:    balance,
		IsDefault:  true,
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return w
}

func (f *ledgerFixture) seedBudget(t *testing.T, userID, amount int64, categoryID *string) *budget.Budget {
	t.Helper()
	b, err := f.budgetSvc.CreateBudget(context.Background(), budget.CreateParams{
		UserID:        userID,
		Name:          "Monthly",
		PeriodType:    "monthly",
		Amount:        amount,
		CategoryID:    categoryID,
		ReferenceDate: fixedNow,
	})
	if err != nil {
		t.Fatalf("seed budget: %v", err)
	}
	return b
}

func (f *ledgerFixture) walletBalance(t *testing.T, id string) int64 {
	t.Helper()
	w, ok := f.wallets.wallets[id]
	if !ok {
		t.Fatalf("wallet %s not in store", id)
	}
	return w.Balance
}

func (f *ledgerFixture) budgetSpent(t *testing.T, id string) int64 {
	t.Helper()
	b, ok := f.budgets.budgets[id]
	if !ok {
		t.Fatalf("budget %s not in store", id)
	}
	return b.Spent
}

func strPtr(s string) *string { return &s }

func TestCreateExpenseAppliesFullEffect(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 1000000)
	b := f.seedBudget(t, 1, 500000, strPtr("food"))

	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:     200000,
		Type:       TypeExpense,
		WalletID:   w.ID,
		CategoryID: strPtr("food"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if got := f.walletBalance(t, w.ID); got != 800000 {
		t.Errorf("wallet balance = %d, want 800000", got)
	}
	if got := f.budgetSpent(t, b.ID); got != 200000 {
		t.Errorf("budget spent = %d, want 200000", got)
	}
	if res.LowBalance != nil {
		t.Errorf("expected no low-balance advisory, got %+v", res.LowBalance)
	}
	if len(res.BudgetWarnings) != 0 {
		t.Errorf("expected no budget warnings, got %+v", res.BudgetWarnings)
	}
	if res.Transaction.Source != SourceManual {
		t.Errorf("Source = %q, want %q", res.Transaction.Source, SourceManual)
	}
	if !res.Transaction.Date.Equal(fixedNow) {
		t.Errorf("defaulted date = %v, want %v", res.Transaction.Date, fixedNow)
	}
}

func TestCreateExpenseInsufficientIsAdvisory(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 100000)

	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   500000,
		Type:     TypeExpense,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v, insufficiency must not block creation", err)
	}

	if got := f.walletBalance(t, w.ID); got != -400000 {
		t.Errorf("wallet balance = %d, want -400000", got)
	}
	if res.LowBalance == nil {
		t.Fatal("expected a low-balance advisory")
	}
	if res.LowBalance.Shortfall != 400000 {
		t.Errorf("Shortfall = %d, want 400000", res.LowBalance.Shortfall)
	}
	if res.LowBalance.Code != wallet.LowBalanceCode {
		t.Errorf("Code = %q, want %q", res.LowBalance.Code, wallet.LowBalanceCode)
	}
}

func TestCreateExpenseBudgetWarnings(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 1000000)
	f.seedBudget(t, 1, 100000, strPtr("food"))

	// 85% of cap in one expense: the projected-spend warning plus the
	// large-single-expense warning.
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:     85000,
		Type:       TypeExpense,
		WalletID:   w.ID,
		CategoryID: strPtr("food"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(res.BudgetWarnings) != 2 {
		t.Fatalf("got %d warnings, want 2: %+v", len(res.BudgetWarnings), res.BudgetWarnings)
	}
	if res.BudgetWarnings[0].Level != budget.LevelWarning {
		t.Errorf("warning level = %q, want %q", res.BudgetWarnings[0].Level, budget.LevelWarning)
	}

	// A second expense pushing past the cap escalates to error.
	res, err = f.manager.Create(context.Background(), 1, CreateParams{
		Amount:     20000,
		Type:       TypeExpense,
		WalletID:   w.ID,
		CategoryID: strPtr("food"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(res.BudgetWarnings) != 1 || res.BudgetWarnings[0].Level != budget.LevelError {
		t.Errorf("got %+v, want a single %q warning", res.BudgetWarnings, budget.LevelError)
	}
}

func TestCreateIncomeAdvancesLinkedGoals(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 0)
	g, err := f.goalSvc.CreateGoal(context.Background(), goal.CreateParams{
		UserID:            1,
		Name:              "House",
		TargetAmount:      5000000,
		AssociatedWallets: []string{w.ID},
	})
	if err != nil {
		t.Fatalf("seed goal: %v", err)
	}
	f.goals.goals[g.ID].CurrentProgress = 4500000

	if _, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   2000000,
		Type:     TypeIncome,
		WalletID: w.ID,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if got := f.walletBalance(t, w.ID); got != 2000000 {
		t.Errorf("wallet balance = %d, want 2000000", got)
	}
	stored := f.goals.goals[g.ID]
	if stored.CurrentProgress != 5000000 {
		t.Errorf("goal progress = %d, want clamp at target 5000000", stored.CurrentProgress)
	}
	if stored.Status != goal.StatusCompleted {
		t.Errorf("goal status = %q, want %q", stored.Status, goal.StatusCompleted)
	}
}

func TestCreateProvisionsDefaultWallet(t *testing.T) {
	f := newLedgerFixture()

	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount: 300000,
		Type:   TypeIncome,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if res.Wallet == nil || !res.Wallet.IsDefault {
		t.Fatalf("expected an auto-provisioned default wallet, got %+v", res.Wallet)
	}
	if res.Wallet.Name != "Main" {
		t.Errorf("default wallet name = %q, want %q", res.Wallet.Name, "Main")
	}
	if got := f.walletBalance(t, res.Wallet.ID); got != 300000 {
		t.Errorf("wallet balance = %d, want 300000", got)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 100000)
	other := f.seedWallet(t, 2, 100000)

	tests := []struct {
		name    string
		params  CreateParams
		wantErr error
	}{
		{"zero amount", CreateParams{Amount: 0, Type: TypeExpense}, ErrInvalidAmount},
		{"negative amount", CreateParams{Amount: -500, Type: TypeIncome}, ErrInvalidAmount},
		{"bad type", CreateParams{Amount: 1000, Type: "transfer"}, ErrInvalidType},
		{"unknown category", CreateParams{Amount: 1000, Type: TypeExpense, WalletID: w.ID, CategoryID: strPtr("nope")}, category.ErrCategoryNotFound},
		{"unknown wallet", CreateParams{Amount: 1000, Type: TypeExpense, WalletID: "missing"}, wallet.ErrWalletNotFound},
		{"foreign wallet", CreateParams{Amount: 1000, Type: TypeExpense, WalletID: other.ID}, wallet.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.manager.Create(context.Background(), 1, tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
	if got := f.walletBalance(t, w.ID); got != 100000 {
		t.Errorf("rejected creates must not touch balances, got %d", got)
	}
}

func TestUpdateNoOp(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 1000000)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:      200000,
		Type:        TypeExpense,
		WalletID:    w.ID,
		Description: "groceries",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	amt := int64(200000)
	typ := TypeExpense
	desc := "groceries"
	upd, err := f.manager.Update(context.Background(), 1, res.Transaction.ID, UpdateParams{
		Amount:      &amt,
		Type:        &typ,
		WalletID:    &w.ID,
		Description: &desc,
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if !upd.NoOp {
		t.Error("expected a no-op update")
	}
	if got := f.walletBalance(t, w.ID); got != 800000 {
		t.Errorf("no-op changed balance to %d", got)
	}
}

func TestUpdateSecondaryFieldsOnly(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 1000000)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   200000,
		Type:     TypeExpense,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	desc := "dinner"
	upd, err := f.manager.Update(context.Background(), 1, res.Transaction.ID, UpdateParams{Description: &desc})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if upd.NoOp {
		t.Error("description change must not be a no-op")
	}
	if upd.Transaction.Description != "dinner" {
		t.Errorf("Description = %q, want %q", upd.Transaction.Description, "dinner")
	}
	if got := f.walletBalance(t, w.ID); got != 800000 {
		t.Errorf("secondary update changed balance to %d", got)
	}
}

func TestUpdateAmountReversesAndReapplies(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 1000000)
	b := f.seedBudget(t, 1, 500000, strPtr("food"))
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:     200000,
		Type:       TypeExpense,
		WalletID:   w.ID,
		CategoryID: strPtr("food"),
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	amt := int64(300000)
	upd, err := f.manager.Update(context.Background(), 1, res.Transaction.ID, UpdateParams{Amount: &amt})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if upd.Transaction.Amount != 300000 {
		t.Errorf("Amount = %d, want 300000", upd.Transaction.Amount)
	}
	if got := f.walletBalance(t, w.ID); got != 700000 {
		t.Errorf("wallet balance = %d, want 700000", got)
	}
	if got := f.budgetSpent(t, b.ID); got != 300000 {
		t.Errorf("budget spent = %d, want 300000", got)
	}
}

func TestUpdateTypeFlipMovesBalanceBothWays(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 1000000)
	b := f.seedBudget(t, 1, 500000, nil)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   200000,
		Type:     TypeExpense,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got := f.budgetSpent(t, b.ID); got != 200000 {
		t.Fatalf("budget spent = %d, want 200000", got)
	}

	typ := TypeIncome
	if _, err := f.manager.Update(context.Background(), 1, res.Transaction.ID, UpdateParams{Type: &typ}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if got := f.walletBalance(t, w.ID); got != 1200000 {
		t.Errorf("wallet balance = %d, want 1200000 after expense became income", got)
	}
	if got := f.budgetSpent(t, b.ID); got != 0 {
		t.Errorf("budget spent = %d, want 0 after the expense left the scope", got)
	}
}

func TestUpdateWalletSwitch(t *testing.T) {
	f := newLedgerFixture()
	a := f.seedWallet(t, 1, 1000000)
	bWallet, err := f.wallets.Create(context.Background(), wallet.CreateParams{
		UserID: 1, Name: "Savings", WalletType: "bank", Balance: 500000,
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   200000,
		Type:     TypeExpense,
		WalletID: a.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	upd, err := f.manager.Update(context.Background(), 1, res.Transaction.ID, UpdateParams{WalletID: &bWallet.ID})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if upd.Transaction.WalletID != bWallet.ID {
		t.Errorf("WalletID = %q, want %q", upd.Transaction.WalletID, bWallet.ID)
	}
	if got := f.walletBalance(t, a.ID); got != 1000000 {
		t.Errorf("old wallet balance = %d, want refund to 1000000", got)
	}
	if got := f.walletBalance(t, bWallet.ID); got != 300000 {
		t.Errorf("new wallet balance = %d, want 300000", got)
	}
}

func TestUpdateWalletSwitchBlockedAndRolledBack(t *testing.T) {
	f := newLedgerFixture()
	a := f.seedWallet(t, 1, 1000000)
	bWallet, err := f.wallets.Create(context.Background(), wallet.CreateParams{
		UserID: 1, Name: "Savings", WalletType: "bank", Balance: 100000,
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:      200000,
		Type:        TypeExpense,
		WalletID:    a.ID,
		Description: "original",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	desc := "moved"
	_, err = f.manager.Update(context.Background(), 1, res.Transaction.ID, UpdateParams{
		WalletID:    &bWallet.ID,
		Description: &desc,
	})
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Update() error = %v, want InsufficientBalanceError", err)
	}
	if insufficient.WalletID != bWallet.ID || insufficient.CurrentBalance != 100000 || insufficient.Required != 200000 {
		t.Errorf("unexpected error payload: %+v", insufficient)
	}
	if insufficient.Shortfall() != 100000 {
		t.Errorf("Shortfall() = %d, want 100000", insufficient.Shortfall())
	}

	// The whole update is compensated away: record and both balances as before.
	stored := f.txs.txs[res.Transaction.ID]
	if stored.WalletID != a.ID || stored.Amount != 200000 || stored.Description != "original" {
		t.Errorf("rollback left record %+v", stored)
	}
	if got := f.walletBalance(t, a.ID); got != 800000 {
		t.Errorf("old wallet balance = %d, want 800000", got)
	}
	if got := f.walletBalance(t, bWallet.ID); got != 100000 {
		t.Errorf("new wallet balance = %d, want untouched 100000", got)
	}
}

func TestSoftDeleteAndRestoreRoundTrip(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 1000000)
	b := f.seedBudget(t, 1, 500000, nil)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   200000,
		Type:     TypeExpense,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	id := res.Transaction.ID

	del, err := f.manager.SoftDelete(context.Background(), 1, id)
	if err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	if !del.Transaction.IsDeleted || del.Transaction.DeletedAt == nil {
		t.Error("transaction not marked deleted")
	}
	if got := f.walletBalance(t, w.ID); got != 1000000 {
		t.Errorf("wallet balance = %d, want reversal to 1000000", got)
	}
	if got := f.budgetSpent(t, b.ID); got != 0 {
		t.Errorf("budget spent = %d, want 0 after delete", got)
	}

	if _, err := f.manager.SoftDelete(context.Background(), 1, id); !errors.Is(err, ErrTransactionDeleted) {
		t.Errorf("second delete error = %v, want ErrTransactionDeleted", err)
	}

	rst, err := f.manager.Restore(context.Background(), 1, id)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if rst.Transaction.IsDeleted || rst.Transaction.DeletedAt != nil {
		t.Error("transaction still marked deleted after restore")
	}
	if got := f.walletBalance(t, w.ID); got != 800000 {
		t.Errorf("wallet balance = %d, want 800000 after restore", got)
	}
	if got := f.budgetSpent(t, b.ID); got != 200000 {
		t.Errorf("budget spent = %d, want 200000 after restore", got)
	}

	if _, err := f.manager.Restore(context.Background(), 1, id); !errors.Is(err, ErrTransactionNotDeleted) {
		t.Errorf("second restore error = %v, want ErrTransactionNotDeleted", err)
	}
}

func TestRestoreExpenseBlocksWhenShort(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 600000)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   500000,
		Type:     TypeExpense,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.manager.SoftDelete(context.Background(), 1, res.Transaction.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	// Drain the wallet so the restore can no longer be absorbed.
	if _, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   400000,
		Type:     TypeExpense,
		WalletID: w.ID,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = f.manager.Restore(context.Background(), 1, res.Transaction.ID)
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Restore() error = %v, want InsufficientBalanceError", err)
	}
	if insufficient.CurrentBalance != 200000 || insufficient.Required != 500000 {
		t.Errorf("unexpected error payload: %+v", insufficient)
	}
	if !f.txs.txs[res.Transaction.ID].IsDeleted {
		t.Error("blocked restore must leave the transaction deleted")
	}
	if got := f.walletBalance(t, w.ID); got != 200000 {
		t.Errorf("blocked restore changed balance to %d", got)
	}
}

func TestSoftDeleteIncomeKeepsGoalProgress(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 0)
	g, err := f.goalSvc.CreateGoal(context.Background(), goal.CreateParams{
		UserID:            1,
		Name:              "Trip",
		TargetAmount:      5000000,
		AssociatedWallets: []string{w.ID},
	})
	if err != nil {
		t.Fatalf("seed goal: %v", err)
	}

	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   1000000,
		Type:     TypeIncome,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if f.goals.goals[g.ID].CurrentProgress != 1000000 {
		t.Fatalf("goal progress = %d, want 1000000", f.goals.goals[g.ID].CurrentProgress)
	}

	// Spend most of the income, then delete it: the wallet goes negative
	// (advisory only) and the goal keeps its progress.
	if _, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   800000,
		Type:     TypeExpense,
		WalletID: w.ID,
	}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	del, err := f.manager.SoftDelete(context.Background(), 1, res.Transaction.ID)
	if err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	if got := f.walletBalance(t, w.ID); got != -800000 {
		t.Errorf("wallet balance = %d, want -800000", got)
	}
	if del.LowBalance == nil || del.LowBalance.Shortfall != 800000 {
		t.Errorf("expected a low-balance advisory with shortfall 800000, got %+v", del.LowBalance)
	}
	if f.goals.goals[g.ID].CurrentProgress != 1000000 {
		t.Errorf("goal progress = %d, deleting the income must not claw it back", f.goals.goals[g.ID].CurrentProgress)
	}
}

func TestOwnershipChecks(t *testing.T) {
	f := newLedgerFixture()
	w := f.seedWallet(t, 1, 1000000)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   100000,
		Type:     TypeExpense,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if _, err := f.manager.GetTransaction(context.Background(), 2, res.Transaction.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("GetTransaction() error = %v, want ErrForbidden", err)
	}
	if _, err := f.manager.GetTransaction(context.Background(), 1, "missing"); !errors.Is(err, ErrTransactionNotFound) {
		t.Errorf("GetTransaction() error = %v, want ErrTransactionNotFound", err)
	}
	if _, err := f.manager.SoftDelete(context.Background(), 2, res.Transaction.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("SoftDelete() error = %v, want ErrForbidden", err)
	}
	desc := "x"
	if _, err := f.manager.Update(context.Background(), 2, res.Transaction.ID, UpdateParams{Description: &desc}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Update() error = %v, want ErrForbidden", err)
	}
}

func TestUpdateBlockedRollbackClearsCategory(t *testing.T) {
	f := newLedgerFixture()
	a := f.seedWallet(t, 1, 1000000)
	poor, err := f.wallets.Create(context.Background(), wallet.CreateParams{
		UserID: 1, Name: "Savings", WalletType: "bank", Balance: 50000,
	})
	if err != nil {
		t.Fatalf("seed wallet: %v", err)
	}

	// Uncategorized expense; the blocked update tries to set a category too.
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   200000,
		Type:     TypeExpense,
		WalletID: a.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	_, err = f.manager.Update(context.Background(), 1, res.Transaction.ID, UpdateParams{
		WalletID:   &poor.ID,
		CategoryID: strPtr("food"),
	})
	var insufficient *InsufficientBalanceError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Update() error = %v, want InsufficientBalanceError", err)
	}

	stored := f.txs.txs[res.Transaction.ID]
	if stored.CategoryID != nil {
		t.Errorf("rollback kept category %q, want nil restored", *stored.CategoryID)
	}
	if stored.WalletID != a.ID {
		t.Errorf("rollback left transaction on wallet %s, want %s", stored.WalletID, a.ID)
	}
	if got := f.walletBalance(t, a.ID); got != 800000 {
		t.Errorf("old wallet balance = %d, want 800000", got)
	}
}

// gatedTxRepo parks the first GetByID call after arm() once the read has
// completed, so a test can run a second ledger operation against state the
// parked one has already observed.
type gatedTxRepo struct {
	*memTxRepo
	mu      sync.Mutex
	armed   bool
	entered chan struct{}
	release chan struct{}
}

func (r *gatedTxRepo) arm() {
	r.mu.Lock()
	r.armed = true
	r.entered = make(chan struct{})
	r.release = make(chan struct{})
	r.mu.Unlock()
}

func (r *gatedTxRepo) GetByID(ctx context.Context, id string) (*Transaction, error) {
	tx, err := r.memTxRepo.GetByID(ctx, id)
	r.mu.Lock()
	armed := r.armed
	r.armed = false
	entered, release := r.entered, r.release
	r.mu.Unlock()
	if armed {
		close(entered)
		<-release
	}
	return tx, err
}

func newGatedFixture() (*ledgerFixture, *gatedTxRepo) {
	f := newLedgerFixture()
	gated := &gatedTxRepo{memTxRepo: f.txs}
	categories := &staticCategoryRepo{ids: map[string]bool{"food": true, "transport": true}}
	families := &staticFamilyRepo{families: map[int64]int64{}}
	f.manager = NewManager(gated, f.walletSvc, f.budgetSvc, f.goalSvc, categories, families).
		WithClock(func() time.Time { return fixedNow })
	return f, gated
}

func TestConcurrentSoftDeleteReversesOnce(t *testing.T) {
	f, gated := newGatedFixture()
	w := f.seedWallet(t, 1, 1000000)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   100000,
		Type:     TypeIncome,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Park one delete after its pre-lock read, finish the other, release.
	gated.arm()
	errCh := make(chan error, 1)
	go func() {
		_, err := f.manager.SoftDelete(context.Background(), 1, res.Transaction.ID)
		errCh <- err
	}()
	<-gated.entered
	if _, err := f.manager.SoftDelete(context.Background(), 1, res.Transaction.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	close(gated.release)

	if err := <-errCh; !errors.Is(err, ErrTransactionDeleted) {
		t.Errorf("parked SoftDelete() error = %v, want ErrTransactionDeleted", err)
	}
	if got := f.walletBalance(t, w.ID); got != 1000000 {
		t.Errorf("wallet balance = %d, want income 100000 reversed exactly once to 1000000", got)
	}
}

func TestConcurrentRestoreAppliesOnce(t *testing.T) {
	f, gated := newGatedFixture()
	w := f.seedWallet(t, 1, 1000000)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   100000,
		Type:     TypeIncome,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := f.manager.SoftDelete(context.Background(), 1, res.Transaction.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	gated.arm()
	errCh := make(chan error, 1)
	go func() {
		_, err := f.manager.Restore(context.Background(), 1, res.Transaction.ID)
		errCh <- err
	}()
	<-gated.entered
	if _, err := f.manager.Restore(context.Background(), 1, res.Transaction.ID); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	close(gated.release)

	if err := <-errCh; !errors.Is(err, ErrTransactionNotDeleted) {
		t.Errorf("parked Restore() error = %v, want ErrTransactionNotDeleted", err)
	}
	if got := f.walletBalance(t, w.ID); got != 1100000 {
		t.Errorf("wallet balance = %d, want income applied exactly once to 1100000", got)
	}
}

func TestUpdateRejectsConcurrentlyDeleted(t *testing.T) {
	f, gated := newGatedFixture()
	w := f.seedWallet(t, 1, 1000000)
	res, err := f.manager.Create(context.Background(), 1, CreateParams{
		Amount:   200000,
		Type:     TypeExpense,
		WalletID: w.ID,
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	gated.arm()
	newAmount := int64(300000)
	errCh := make(chan error, 1)
	go func() {
		_, err := f.manager.Update(context.Background(), 1, res.Transaction.ID, UpdateParams{Amount: &newAmount})
		errCh <- err
	}()
	<-gated.entered
	if _, err := f.manager.SoftDelete(context.Background(), 1, res.Transaction.ID); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}
	close(gated.release)

	if err := <-errCh; !errors.Is(err, ErrTransactionDeleted) {
		t.Errorf("parked Update() error = %v, want ErrTransactionDeleted", err)
	}
	if got := f.walletBalance(t, w.ID); got != 1000000 {
		t.Errorf("wallet balance = %d, want the delete's refund untouched at 1000000", got)
	}
}
