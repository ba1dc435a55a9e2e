package category

import (
	"errors"
	"time"
)

// ErrCategoryNotFound is returned when a category lookup misses.
var ErrCategoryNotFound = errors.New("category not found")

// Category is a spending/income classification. The engine only consumes
// lookups; category management lives elsewhere.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // income / expense
	Icon      string    `json:"icon,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
