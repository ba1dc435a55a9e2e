package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"centime/internal/domain/family"
	"centime/internal/domain/wallet"
	"centime/internal/shared/middleware"
)

type WalletHandler struct {
	wallets  *wallet.Service
	families family.Repository
}

func NewWalletHandler(wallets *wallet.Service, families family.Repository) *WalletHandler {
	return &WalletHandler{wallets: wallets, families: families}
}

type CreateWalletRequest struct {
	Name       string `json:"name"`
	WalletType string `json:"walletType,omitempty"`
	Balance    int64  `json:"balance,omitempty"`
	IsShared   bool   `json:"isShared,omitempty"`
	IsDefault  bool   `json:"isDefault,omitempty"`
}

type UpdateWalletRequest struct {
	Name       *string `json:"name,omitempty"`
	WalletType *string `json:"walletType,omitempty"`
	IsShared   *bool   `json:"isShared,omitempty"`
	IsDefault  *bool   `json:"isDefault,omitempty"`
}

type ShareWalletRequest struct {
	CanView     []int64 `json:"canView"`
	CanTransact []int64 `json:"canTransact"`
}

// HandleWallets lists the user's wallets (GET) or creates one (POST).
func (h *WalletHandler) HandleWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		wallets, err := h.wallets.ListWallets(r.Context(), userID)
		if err != nil {
			log.Printf("Error listing wallets for user %d: %v", userID, err)
			http.Error(w, "Failed to list wallets", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(wallets)

	case http.MethodPost:
		var req CreateWalletRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding create wallet request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}

		familyID, err := h.families.FamilyIDForUser(r.Context(), userID)
		if err != nil {
			log.Printf("Error resolving family for user %d: %v", userID, err)
			http.Error(w, "Failed to create wallet", http.StatusInternalServerError)
			return
		}

		created, err := h.wallets.CreateWallet(r.Context(), wallet.CreateParams{
			UserID:     userID,
			FamilyID:   familyID,
			Name:       req.Name,
			WalletType: req.WalletType,
			Balance:    req.Balance,
			IsShared:   req.IsShared,
			IsDefault:  req.IsDefault,
		})
		if err != nil {
			h.writeWalletError(w, err, "create wallet", userID)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleWalletByID dispatches GET, PATCH and DELETE for a single wallet.
// DELETE deactivates; wallet history is never destroyed.
func (h *WalletHandler) HandleWalletByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	walletID := r.PathValue("id")
	if walletID == "" {
		http.Error(w, "Wallet ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		found, err := h.wallets.GetWallet(r.Context(), walletID, userID)
		if err != nil {
			h.writeWalletError(w, err, "get wallet", userID)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(found)

	case http.MethodPatch, http.MethodPut:
		var req UpdateWalletRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding update wallet request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		updated, err := h.wallets.UpdateWallet(r.Context(), walletID, userID, wallet.UpdateParams{
			Name:       req.Name,
			WalletType: req.WalletType,
			IsShared:   req.IsShared,
			IsDefault:  req.IsDefault,
		})
		if err != nil {
			h.writeWalletError(w, err, "update wallet", userID)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)

	case http.MethodDelete:
		if err := h.wallets.DeactivateWallet(r.Context(), walletID, userID); err != nil {
			h.writeWalletError(w, err, "deactivate wallet", userID)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleShareWallet replaces the wallet's access lists.
func (h *WalletHandler) HandleShareWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	walletID := r.PathValue("id")
	if walletID == "" {
		http.Error(w, "Wallet ID is required", http.StatusBadRequest)
		return
	}

	var req ShareWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding share wallet request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	shared, err := h.wallets.ShareWallet(r.Context(), walletID, userID, req.CanView, req.CanTransact)
	if err != nil {
		h.writeWalletError(w, err, "share wallet", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(shared)
}

func (h *WalletHandler) writeWalletError(w http.ResponseWriter, err error, op string, userID int64) {
	switch {
	case errors.Is(err, wallet.ErrWalletNotFound):
		http.Error(w, "Wallet not found", http.StatusNotFound)
	case errors.Is(err, wallet.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, wallet.ErrInvalidWalletType), errors.Is(err, wallet.ErrWalletInactive):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Error during %s for user %d: %v", op, userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
