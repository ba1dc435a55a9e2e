package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"centime/internal/domain/goal"
	"centime/internal/shared/middleware"
)

type GoalHandler struct {
	goals *goal.Service
}

func NewGoalHandler(goals *goal.Service) *GoalHandler {
	return &GoalHandler{goals: goals}
}

type CreateGoalRequest struct {
	Name              string     `json:"name"`
	TargetAmount      int64      `json:"targetAmount"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	AssociatedWallets []string   `json:"associatedWallets,omitempty"`
}

type UpdateGoalRequest struct {
	Name              *string    `json:"name,omitempty"`
	TargetAmount      *int64     `json:"targetAmount,omitempty"`
	Deadline          *time.Time `json:"deadline,omitempty"`
	AssociatedWallets []string   `json:"associatedWallets,omitempty"`
}

type GoalProgressRequest struct {
	Amount int64 `json:"amount"`
}

// HandleGoals lists the user's goals (GET) or creates one (POST). Listing
// refreshes stale statuses, so an overdue goal flips to expired the first
// time anyone looks at it.
func (h *GoalHandler) HandleGoals(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		goals, err := h.goals.ListGoals(r.Context(), userID)
		if err != nil {
			log.Printf("Error listing goals for user %d: %v", userID, err)
			http.Error(w, "Failed to list goals", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(goals)

	case http.MethodPost:
		var req CreateGoalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding create goal request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		if req.Name == "" || req.TargetAmount <= 0 {
			http.Error(w, "name and a positive targetAmount are required", http.StatusBadRequest)
			return
		}

		created, err := h.goals.CreateGoal(r.Context(), goal.CreateParams{
			UserID:            userID,
			Name:              req.Name,
			TargetAmount:      req.TargetAmount,
			Deadline:          req.Deadline,
			AssociatedWallets: req.AssociatedWallets,
		})
		if err != nil {
			h.writeGoalError(w, err, "create goal", userID)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(created)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGoalByID dispatches GET, PATCH and DELETE for a single goal.
// DELETE cancels; accumulated progress is kept for the record.
func (h *GoalHandler) HandleGoalByID(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	goalID := r.PathValue("id")
	if goalID == "" {
		http.Error(w, "Goal ID is required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		found, err := h.goals.GetGoal(r.Context(), goalID, userID)
		if err != nil {
			h.writeGoalError(w, err, "get goal", userID)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(found)

	case http.MethodPatch, http.MethodPut:
		var req UpdateGoalRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			log.Printf("Error decoding update goal request: %v", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}

		updated, err := h.goals.UpdateGoal(r.Context(), goalID, userID, goal.UpdateParams{
			Name:              req.Name,
			TargetAmount:      req.TargetAmount,
			Deadline:          req.Deadline,
			AssociatedWallets: req.AssociatedWallets,
		})
		if err != nil {
			h.writeGoalError(w, err, "update goal", userID)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(updated)

	case http.MethodDelete:
		if err := h.goals.CancelGoal(r.Context(), goalID, userID); err != nil {
			h.writeGoalError(w, err, "cancel goal", userID)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleGoalProgress adds manual progress to an active goal.
func (h *GoalHandler) HandleGoalProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	goalID := r.PathValue("id")
	if goalID == "" {
		http.Error(w, "Goal ID is required", http.StatusBadRequest)
		return
	}

	var req GoalProgressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("Error decoding goal progress request: %v", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	updated, err := h.goals.AddProgress(r.Context(), goalID, userID, req.Amount)
	if err != nil {
		h.writeGoalError(w, err, "add goal progress", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)
}

// HandleReactivateGoal moves a cancelled or expired goal back to active.
func (h *GoalHandler) HandleReactivateGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	userID, ok := r.Context().Value(middleware.UserIDKey).(int64)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	goalID := r.PathValue("id")
	if goalID == "" {
		http.Error(w, "Goal ID is required", http.StatusBadRequest)
		return
	}

	reactivated, err := h.goals.ReactivateGoal(r.Context(), goalID, userID)
	if err != nil {
		h.writeGoalError(w, err, "reactivate goal", userID)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(reactivated)
}

func (h *GoalHandler) writeGoalError(w http.ResponseWriter, err error, op string, userID int64) {
	switch {
	case errors.Is(err, goal.ErrGoalNotFound):
		http.Error(w, "Goal not found", http.StatusNotFound)
	case errors.Is(err, goal.ErrForbidden):
		http.Error(w, "Forbidden", http.StatusForbidden)
	case errors.Is(err, goal.ErrGoalNotActive):
		http.Error(w, "Goal is not active", http.StatusConflict)
	case errors.Is(err, goal.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		log.Printf("Error during %s for user %d: %v", op, userID, err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
