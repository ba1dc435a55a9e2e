package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"centime/internal/domain/budget"
	"centime/internal/domain/family"
	"centime/internal/domain/period"
	"centime/internal/shared/middleware"
)

type BudgetHandler struct {
	budgets  *budget.Service
	families family.Repository
}

func NewBudgetHandler(budgets *budget.Service, families family.Repository) *BudgetHandler {
	return &BudgetHandler{budgets: budgets, families: families}
}

type BudgetGoalRequest struct {
	Name         string     `json:"name"`
	TargetAmount int64      `json:"targetAmount"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

type CreateBudgetRequest struct {
	Name          string             `json:"name"`
	PeriodType    string             `json:"periodType"`
	Amount        int64              `json:"amount"`
	CategoryID    *string            `json:"categoryId,omitempty"`
	ReferenceDate string             `json:"referenceDate,omitempty"` // YYYY-MM-DD
	Shared        bool               `json:"shared,omitempty"`
	Goal          *BudgetGoalRequest `json:"goal,omitempty"`
}

type UpdateBudgetRequest struct {
	Name   *string            `json:"name,omitempty"`
	Amount *int64             `json:"amount,omitempty"`
	Goal   *BudgetGoalRequest `json:"goal,omitempty"`
}

// HandleBudgets lists the budgets in the user's scope (GET) or creates a new
// one (POST). Listing recomputes nothing; spent figures are maintained by the
// ledger engine on every transaction write.
func (h *BudgetHandler) HandleBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	familyID, err := h.families.FamilyIDForUser(r.Context(), userID)
	if err != nil {
		log.Printf("Error resolving family for user %d: %v", userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		budgets, err := h.budgets.MatchingBudgets(r.Context(), userID, familyID)
		if err != nil {
			log.Printf("Error listing budgets for user %d: %v", userID, err)
			http.Error(w, "Failed to list budgets", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(budgets)

	case http.MethodPost:
		var req CreateBudgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding create budget request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if req.Name == "" || req.Amount <= 0 {
			http.Error(w, "name and a positive amount are required", http.StatusBadRequest)
			return
		}

		var referenceDate time.Time
		if req.ReferenceDate != "" {
			referenceDate, err = time.Parse("2006-01-02", req.ReferenceDate)
			if err != nil {
				http.Error(w, "Invalid referenceDate format (use YYYY-MM-DD)", http.StatusBadRequest)
				return
			}
		}

		params := budget.CreateParams{
			UserID:        userID,
			Name:          req.Name,
			PeriodType:    req.PeriodType,
			Amount:        req.Amount,
			CategoryID:    req.CategoryID,
			ReferenceDate: referenceDate,
			Goal:          toBudgetGoal(req.Goal),
		}
		if req.Shared {
			params.FamilyID = familyID
		}

		created, err := h.budgets.CreateBudget(r.Context(), params)
		if err != nil {
			h.writeBudgetError(w, err, "create budget", userID)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleBudgetByID dispatches GET, PATCH and DELETE for a single budget.
func (h *BudgetHandler) HandleBudgetByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	budgetID := r.PathValue("id")
	if budgetID == "" {
		http.Error(w, "Budget ID is required", http.StatusBadRequest)
		return
	}

	familyID, err := h.families.FamilyIDForUser(r.Context(), userID)
	if err != nil {
		log.Printf("Error resolving family for user %d: %v", userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodGet:
		found, err := h.budgets.GetBudget(r.Context(), budgetID, userID, familyID)
		if err != nil {
			h.writeBudgetError(w, err, "get budget", userID)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(found)

	case http.MethodPatch, http.MethodPut:
		var req UpdateBudgetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding update budget request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		updated, err := h.budgets.UpdateBudget(r.Context(), budgetID, userID, budget.UpdateParams{
			Name:   req.Name,
			Amount: req.Amount,
			Goal:   toBudgetGoal(req.Goal),
		})
		if err != nil {
			h.writeBudgetError(w, err, "update budget", userID)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)

	case http.MethodDelete:
		if err := h.budgets.DeleteBudget(r.Context(), budgetID, userID); err != nil {
			h.writeBudgetError(w, err, "delete budget", userID)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleRenewBudget rolls an elapsed budget into the next period window.
func (h *BudgetHandler) HandleRenewBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	budgetID := r.PathValue("id")
	if budgetID == "" {
		http.Error(w, "Budget ID is required", http.StatusBadRequest)
		return
	}

	familyID, err := h.families.FamilyIDForUser(r.Context(), userID)
	if err != nil {
		log.Printf("Error resolving family for user %d: %v", userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	renewed, err := h.budgets.Renew(r.Context(), budgetID, userID, familyID)
	if err != nil {
		h.writeBudgetError(w, err, "renew budget", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(renewed)
}

func toBudgetGoal(req *BudgetGoalRequest) *budget.Goal {
	if req == nil {
		return nil
	}
	return &budget.Goal{
		Name:         req.Name,
		TargetAmount: req.TargetAmount,
		Deadline:     req.Deadline,
	}
}

func (h *BudgetHandler) writeBudgetError(w http.ResponseWriter, err error, op string, userID int64) {
	switch {
	case errors.Is(err, budget.ErrBudgetNotFound):
		http.Error(w, "Budget not found", http.StatusNotFound)
	case errors.Is(err, budget.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, budget.ErrPeriodNotElapsed):
		http.Error(w, "Budget period has not elapsed yet", http.StatusConflict)
	case errors.Is(err, budget.ErrInvalidInput), errors.Is(err, period.ErrInvalidPeriodType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Error during %s for user %d: %v", op, userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
