package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"centime/internal/domain/category"
	"centime/internal/domain/transaction"
	"centime/internal/domain/wallet"
	"centime/internal/shared/middleware"
)

// TransactionHandler exposes the ledger engine over HTTP. Every mutation
// goes through the transaction manager so wallet balances, budget spent
// figures and goal progress stay consistent with the records.
type TransactionHandler struct {
	manager *transaction.Manager
}

func NewTransactionHandler(manager *transaction.Manager) *TransactionHandler {
	return &TransactionHandler{manager: manager}
}

// HTTP request types (transport layer concerns)
type CreateTransactionRequest struct {
	Amount      int64    `json:"amount"`
	Type        string   `json:"type"`
	WalletID    string   `json:"walletId,omitempty"`
	CategoryID  *string  `json:"categoryId,omitempty"`
	Date        string   `json:"date,omitempty"`
	Description string   `json:"description"`
	IsShared    bool     `json:"isShared,omitempty"`
	Source      string   `json:"source,omitempty"`
	RawText     *string  `json:"rawText,omitempty"`
	Confidence  *float64 `json:"confidence,omitempty"`
}

type UpdateTransactionRequest struct {
	Amount      *int64  `json:"amount,omitempty"`
	Type        *string `json:"type,omitempty"`
	WalletID    *string `json:"walletId,omitempty"`
	CategoryID  *string `json:"categoryId,omitempty"`
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
	IsShared    *bool   `json:"isShared,omitempty"`
}

// insufficientBalanceResponse is the structured conflict payload for blocked
// wallet switches and restores.
type insufficientBalanceResponse struct {
	Error          string `json:"error"`
	WalletID       string `json:"walletId"`
	CurrentBalance int64  `json:"currentBalance"`
	Required       int64  `json:"required"`
	Shortfall      int64  `json:"shortfall"`
}

// HandleTransactions lists transactions (GET) or records a new one (POST).
func (h *TransactionHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleListTransactions(w, r)
	case http.MethodPost:
		h.handleCreateTransaction(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TransactionHandler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	limit := 50
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = parsedLimit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	transactions, err := h.manager.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		log.Printf("Error listing transactions for user %d: %v", userID, err)
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(transactions)
}

func (h *TransactionHandler) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding create transaction request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.manager.Create(r.Context(), userID, transaction.CreateParams{
		Amount:      req.Amount,
		Type:        req.Type,
		WalletID:    req.WalletID,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
		Description: req.Description,
		IsShared:    req.IsShared,
		Source:      req.Source,
		RawText:     req.RawText,
		Confidence:  req.Confidence,
	})
	if err != nil {
		h.writeLedgerError(w, err, "create transaction", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(result)
}

// HandleTransactionByID dispatches GET, PATCH and DELETE on a single record.
func (h *TransactionHandler) HandleTransactionByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	transactionID := r.PathValue("id")
	if transactionID == "" {
		http.Error(w, "Transaction ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.handleGetTransaction(w, r, userID, transactionID)
	case http.MethodPatch, http.MethodPut:
		h.handleUpdateTransaction(w, r, userID, transactionID)
	case http.MethodDelete:
		h.handleDeleteTransaction(w, r, userID, transactionID)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TransactionHandler) handleGetTransaction(w http.ResponseWriter, r *http.Request, userID int64, transactionID string) {
	tx, err := h.manager.GetTransaction(r.Context(), userID, transactionID)
	if err != nil {
		h.writeLedgerError(w, err, "get transaction", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(tx)
}

func (h *TransactionHandler) handleUpdateTransaction(w http.ResponseWriter, r *http.Request, userID int64, transactionID string) {
	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding update transaction request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.manager.Update(r.Context(), userID, transactionID, transaction.UpdateParams{
		Amount:      req.Amount,
		Type:        req.Type,
		WalletID:    req.WalletID,
		CategoryID:  req.CategoryID,
		Date:        req.Date,
		Description: req.Description,
		IsShared:    req.IsShared,
	})
	if err != nil {
		h.writeLedgerError(w, err, "update transaction", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (h *TransactionHandler) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, userID int64, transactionID string) {
	result, err := h.manager.SoftDelete(r.Context(), userID, transactionID)
	if err != nil {
		h.writeLedgerError(w, err, "delete transaction", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleRestoreTransaction reinstates a soft-deleted record.
func (h *TransactionHandler) HandleRestoreTransaction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	transactionID := r.PathValue("id")
	if transactionID == "" {
		http.Error(w, "Transaction ID is required", http.StatusBadRequest)
		return
	}

	result, err := h.manager.Restore(r.Context(), userID, transactionID)
	if err != nil {
		h.writeLedgerError(w, err, "restore transaction", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// writeLedgerError maps domain errors onto HTTP statuses. Blocking
// insufficiency gets a structured 409 body so clients can show the shortfall.
func (h *TransactionHandler) writeLedgerError(w http.ResponseWriter, err error, op string, userID int64) {
	var insufficientErr *transaction.InsufficientBalanceError
	if errors.As(err, &insufficientErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(insufficientBalanceResponse{
			Error:          "insufficient_balance",
			WalletID:       insufficientErr.WalletID,
			CurrentBalance: insufficientErr.CurrentBalance,
			Required:       insufficientErr.Required,
			Shortfall:      insufficientErr.Shortfall(),
		})
		return
	}

	switch {
	case errors.Is(err, transaction.ErrTransactionNotFound):
		http.Error(w, "Transaction not found", http.StatusNotFound)
	case errors.Is(err, wallet.ErrWalletNotFound):
		http.Error(w, "Wallet not found", http.StatusNotFound)
	case errors.Is(err, transaction.ErrForbidden), errors.Is(err, wallet.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, transaction.ErrTransactionDeleted):
		http.Error(w, "Transaction is deleted", http.StatusConflict)
	case errors.Is(err, transaction.ErrTransactionNotDeleted):
		http.Error(w, "Transaction is not deleted", http.StatusConflict)
	case errors.Is(err, transaction.ErrInvalidAmount),
		errors.Is(err, transaction.ErrInvalidType),
		errors.Is(err, category.ErrCategoryNotFound),
		errors.Is(err, wallet.ErrWalletInactive):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Error during %s for user %d: %v", op, userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
