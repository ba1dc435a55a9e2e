package transaction

import (
	"errors"
	"fmt"
	"time"

	"centime/internal/domain/budget"
	"centime/internal/domain/wallet"
)

// Transaction types.
const (
	TypeIncome  = "income"
	TypeExpense = "expense"
)

// Input channels a transaction can arrive through.
const (
	SourceManual = "manual"
	SourceChat   = "chat"
	SourceImage  = "image"
	SourceVoice  = "voice"
)

// Domain errors
var (
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrForbidden             = errors.New("access forbidden")
	ErrTransactionDeleted    = errors.New("transaction is deleted")
	ErrTransactionNotDeleted = errors.New("transaction is not deleted")
	ErrInvalidType           = errors.New("invalid transaction type")
	ErrInvalidAmount         = errors.New("transaction amount must be positive")
)

// InsufficientBalanceError blocks an operation when a wallet cannot absorb an
// expense: moving a transaction to a different wallet during update, or
// restoring a soft-deleted expense. Ordinary creation on the same wallet is
// never blocked; that asymmetry is a business decision, not a bug.
type InsufficientBalanceError struct {
	WalletID       string `json:"walletId"`
	CurrentBalance int64  `json:"currentBalance"`
	Required       int64  `json:"required"`
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("wallet %s has insufficient balance: %d available, %d required", e.WalletID, e.CurrentBalance, e.Required)
}

// Shortfall returns the missing amount.
func (e *InsufficientBalanceError) Shortfall() int64 {
	return e.Required - e.CurrentBalance
}

// Transaction is a financial event posted against a wallet. Amounts are in
// minor currency units. A non-deleted transaction is reflected exactly once
// in its wallet's balance and, for expenses, in every budget whose window
// and category scope match.
type Transaction struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"userId"`
	WalletID    string     `json:"walletId"`
	Amount      int64      `json:"amount"`
	Type        string     `json:"type"` // income / expense
	CategoryID  *string    `json:"categoryId,omitempty"`
	Date        time.Time  `json:"date"`
	Description string     `json:"description"`
	IsShared    bool       `json:"isShared"`
	IsDeleted   bool       `json:"isDeleted"`
	DeletedAt   *time.Time `json:"deletedAt,omitempty"`

	// Provenance of the original input.
	Source     string   `json:"source"`
	RawText    *string  `json:"rawText,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CreateParams is the manager-facing create payload.
type CreateParams struct {
	Amount      int64
	Type        string
	WalletID    string // optional; empty auto-provisions the default wallet
	CategoryID  *string
	Date        string // tolerant formats, see ParseDate
	Description string
	IsShared    bool
	Source      string
	RawText     *string
	Confidence  *float64
}

// Validate validates the create parameters
func (p CreateParams) Validate() error {
	if p.Amount <= 0 {
		return ErrInvalidAmount
	}
	if p.Type != TypeIncome && p.Type != TypeExpense {
		return ErrInvalidType
	}
	return nil
}

// UpdateParams is the manager-facing partial-update payload. Nil fields are
// left untouched. Amount, Type and WalletID are the critical fields whose
// change triggers ledger reversal and reapplication.
type UpdateParams struct {
	Amount      *int64
	Type        *string
	WalletID    *string
	CategoryID  *string
	Date        *string
	Description *string
	IsShared    *bool
}

// CreateTransactionParams contains the repository-level insert fields.
type CreateTransactionParams struct {
	UserID      int64
	WalletID    string
	Amount      int64
	Type        string
	CategoryID  *string
	Date        time.Time
	Description string
	IsShared    bool
	Source      string
	RawText     *string
	Confidence  *float64
}

// UpdateTransactionParams contains the repository-level partial-update fields.
type UpdateTransactionParams struct {
	Amount      *int64
	Type        *string
	WalletID    *string
	CategoryID  *string
	Date        *time.Time
	Description *string
	IsShared    *bool

	// ClearCategory writes NULL to the category column; a nil CategoryID
	// alone means "leave untouched". Takes precedence over CategoryID.
	ClearCategory bool
}

// CreateResult is returned by Manager.Create. Creation never fails on
// balance; warnings ride along as additive information.
type CreateResult struct {
	Transaction    *Transaction              `json:"transaction"`
	Wallet         *wallet.Wallet            `json:"wallet"`
	BudgetWarnings []budget.Warning          `json:"budgetWarnings,omitempty"`
	LowBalance     *wallet.LowBalanceWarning `json:"lowBalanceWarning,omitempty"`
}

// UpdateResult is returned by Manager.Update.
type UpdateResult struct {
	Transaction *Transaction   `json:"transaction"`
	Wallet      *wallet.Wallet `json:"wallet,omitempty"`
	// NoOp reports that no field actually changed value and the ledger was
	// left untouched.
	NoOp bool `json:"noOp,omitempty"`
}

// DeleteResult is returned by Manager.SoftDelete.
type DeleteResult struct {
	Transaction *Transaction              `json:"transaction"`
	Wallet      *wallet.Wallet            `json:"wallet,omitempty"`
	LowBalance  *wallet.LowBalanceWarning `json:"lowBalanceWarning,omitempty"`
}

// RestoreResult is returned by Manager.Restore.
type RestoreResult struct {
	Transaction *Transaction   `json:"transaction"`
	Wallet      *wallet.Wallet `json:"wallet"`
}

// inverse returns the opposing transaction type, used for reversal deltas.
func inverse(txType string) string {
	if txType == TypeIncome {
		return TypeExpense
	}
	return TypeIncome
}
