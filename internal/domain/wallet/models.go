package wallet

import (
	"errors"
	"time"
)

// Wallet types recognized by the API.
var walletTypes = map[string]struct{}{
	"cash":    {},
	"bank":    {},
	"ewallet": {},
	"credit":  {},
	"savings": {},
	"other":   {},
}

// Transaction directions a wallet delta can carry.
const (
	DirectionIncome  = "income"
	DirectionExpense = "expense"
)

// Domain errors
var (
	ErrWalletNotFound    = errors.New("wallet not found")
	ErrForbidden         = errors.New("access forbidden")
	ErrInvalidWalletType = errors.New("invalid wallet type")
	ErrInvalidDirection  = errors.New("invalid transaction direction")
	ErrWalletInactive    = errors.New("wallet is inactive")
)

// Wallet represents an owned running balance against which transactions post.
// Balance is stored in minor currency units to avoid float drift.
type Wallet struct {
	ID          string    `json:"id"`
	UserID      int64     `json:"userId"`
	FamilyID    *int64    `json:"familyId,omitempty"`
	Name        string    `json:"name"`
	WalletType  string    `json:"walletType"`
	Balance     int64     `json:"balance"`
	IsActive    bool      `json:"isActive"`
	IsShared    bool      `json:"isShared"`
	IsDefault   bool      `json:"isDefault"`
	CanView     []int64   `json:"canView"`
	CanTransact []int64   `json:"canTransact"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// LowBalanceWarning is the advisory payload returned when an expense would
// drive (or has driven) a wallet balance below zero. It never blocks.
type LowBalanceWarning struct {
	Code           string `json:"code"`
	WalletID       string `json:"walletId"`
	CurrentBalance int64  `json:"currentBalance"`
	Required       int64  `json:"required"`
	Shortfall      int64  `json:"shortfall"`
}

// LowBalanceCode identifies the advisory insufficiency warning.
const LowBalanceCode = "LOW_BALANCE"

// CreateParams contains parameters for creating a new wallet
type CreateParams struct {
	UserID     int64
	FamilyID   *int64
	Name       string
	WalletType string
	Balance    int64
	IsShared   bool
	IsDefault  bool
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.UserID <= 0 {
		return errors.New("valid user ID is required")
	}
	if p.Name == "" {
		return errors.New("wallet name is required")
	}
	if p.WalletType != "" && !IsValidWalletType(p.WalletType) {
		return ErrInvalidWalletType
	}
	return nil
}

// UpdateParams contains parameters for updating a wallet. Nil fields are left untouched.
type UpdateParams struct {
	Name       *string
	WalletType *string
	IsShared   *bool
	IsDefault  *bool
}

// IsValidWalletType checks if the provided wallet type is recognized.
func IsValidWalletType(t string) bool {
	_, ok := walletTypes[t]
	return ok
}

// IsValidDirection checks if the provided direction is income or expense.
func IsValidDirection(d string) bool {
	return d == DirectionIncome || d == DirectionExpense
}
