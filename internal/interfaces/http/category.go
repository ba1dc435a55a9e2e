package http

import (
	"encoding/json"
	"log"
	"net/http"

	"centime/internal/domain/category"
)

type CategoryHandler struct {
	categories category.Repository
}

func NewCategoryHandler(categories category.Repository) *CategoryHandler {
	return &CategoryHandler{categories: categories}
}

// HandleListCategories returns the category catalog. Categories are shared
// reference data, not per-user, so no ownership check applies.
func (h *CategoryHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	categories, err := h.categories.List(r.Context())
	if err != nil {
		log.Printf("Error listing categories: %v", err)
		http.Error(w, "Failed to list categories", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(categories)
}
