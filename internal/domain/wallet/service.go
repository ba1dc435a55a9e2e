package wallet

import (
	"context"
	"fmt"
)

// Service contains the business logic for wallet operations
type Service struct {
	repo Repository
}

// NewService creates a new wallet service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateWallet creates a new wallet with business validation
func (s *Service) CreateWallet(ctx context.Context, params CreateParams) (*Wallet, error) {
	if params.WalletType == "" {
		params.WalletType = "cash"
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, params)
}

// GetWallet retrieves a wallet by ID and verifies view access
func (s *Service) GetWallet(ctx context.Context, walletID string, userID int64) (*Wallet, error) {
	w, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}
	if !CanView(w, userID) {
		return nil, ErrForbidden
	}
	return w, nil
}

// ListWallets retrieves all wallets owned by the user
func (s *Service) ListWallets(ctx context.Context, userID int64) ([]*Wallet, error) {
	return s.repo.ListByUserID(ctx, userID)
}

// ResolveForTransact retrieves a wallet and verifies the user may post
// transactions against it. Inactive wallets are rejected.
func (s *Service) ResolveForTransact(ctx context.Context, walletID string, userID int64) (*Wallet, error) {
	w, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}
	if !CanTransact(w, userID) {
		return nil, ErrForbidden
	}
	if !w.IsActive {
		return nil, ErrWalletInactive
	}
	return w, nil
}

// ResolveOrCreateDefault returns the user's default wallet, creating a
// zero-balance one when absent. The direction only names the auto-provisioned
// wallet; a single default wallet serves both income and expense. Fails only
// on storage errors.
func (s *Service) ResolveOrCreateDefault(ctx context.Context, userID int64, direction string) (*Wallet, error) {
	if !IsValidDirection(direction) {
		return nil, ErrInvalidDirection
	}

	w, err := s.repo.GetDefault(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up default wallet: %w", err)
	}
	if w != nil {
		return w, nil
	}

	name := "Cash"
	if direction == DirectionIncome {
		name = "Main"
	}
	return s.repo.Create(ctx, CreateParams{
		UserID:     userID,
		Name:       name,
		WalletType: "cash",
		Balance:    0,
		IsDefault:  true,
	})
}

// CanView reports whether userID may read the wallet: the owner always can,
// others only when the wallet is shared and they appear in the view list.
func CanView(w *Wallet, userID int64) bool {
	if w.UserID == userID {
		return true
	}
	if !w.IsShared {
		return false
	}
	for _, id := range w.CanView {
		if id == userID {
			return true
		}
	}
	return false
}

// CanTransact reports whether userID may post transactions against the wallet.
func CanTransact(w *Wallet, userID int64) bool {
	if w.UserID == userID {
		return true
	}
	if !w.IsShared {
		return false
	}
	for _, id := range w.CanTransact {
		if id == userID {
			return true
		}
	}
	return false
}

// ApplyDelta adds amount for income and subtracts it for expense, then
// persists the wallet. The operation is not balance-guarded: it always
// succeeds and may drive the balance negative. Callers surface
// CheckSufficient as an advisory warning instead.
func (s *Service) ApplyDelta(ctx context.Context, w *Wallet, amount int64, direction string) error {
	switch direction {
	case DirectionIncome:
		w.Balance += amount
	case DirectionExpense:
		w.Balance -= amount
	default:
		return ErrInvalidDirection
	}

	if err := s.repo.UpdateBalance(ctx, w.ID, w.Balance); err != nil {
		return fmt.Errorf("failed to persist wallet balance: %w", err)
	}
	return nil
}

// CheckSufficient returns an advisory warning when the wallet cannot cover
// amount, or nil when it can.
func CheckSufficient(w *Wallet, amount int64) *LowBalanceWarning {
	if w.Balance >= amount {
		return nil
	}
	return &LowBalanceWarning{
		Code:           LowBalanceCode,
		WalletID:       w.ID,
		CurrentBalance: w.Balance,
		Required:       amount,
		Shortfall:      amount - w.Balance,
	}
}

// UpdateWallet applies partial updates after verifying ownership
func (s *Service) UpdateWallet(ctx context.Context, walletID string, userID int64, params UpdateParams) (*Wallet, error) {
	w, err := s.GetWallet(ctx, walletID, userID)
	if err != nil {
		return nil, err
	}
	if w.UserID != userID {
		return nil, ErrForbidden
	}
	if params.WalletType != nil && !IsValidWalletType(*params.WalletType) {
		return nil, ErrInvalidWalletType
	}
	return s.repo.Update(ctx, walletID, params)
}

// DeactivateWallet marks a wallet inactive after verifying ownership.
// Wallets are deactivated, never force-balanced or hard-deleted.
func (s *Service) DeactivateWallet(ctx context.Context, walletID string, userID int64) error {
	w, err := s.GetWallet(ctx, walletID, userID)
	if err != nil {
		return err
	}
	if w.UserID != userID {
		return ErrForbidden
	}
	return s.repo.SetActive(ctx, walletID, false)
}

// ShareWallet grants view/transact access to other users. Only the owner may share.
func (s *Service) ShareWallet(ctx context.Context, walletID string, userID int64, canView, canTransact []int64) (*Wallet, error) {
	w, err := s.repo.GetByID(ctx, walletID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return nil, ErrWalletNotFound
	}
	if w.UserID != userID {
		return nil, ErrForbidden
	}

	if err := s.repo.SetAccess(ctx, walletID, true, canView, canTransact); err != nil {
		return nil, fmt.Errorf("failed to update wallet access: %w", err)
	}
	return s.repo.GetByID(ctx, walletID)
}
