package categorizer

import (
	"context"

	"fjacquet/notif-ledger/internal/models"
)

// DefaultCategoryStrategy always decides: "Other Income" or "Other Expense" from the store,
// or an in-memory placeholder when the store has no such category.
type DefaultCategoryStrategy struct{}

// Name returns the name of this strategy for logging and debugging.
func (s *DefaultCategoryStrategy) Name() string {
	return "Default"
}

// Categorize never fails.
func (s *DefaultCategoryStrategy) Categorize(_ context.Context, in Input, categories []models.Category) (models.Category, bool, error) {
	if cat, ok := models.FindCategory(categories, in.Direction.DefaultCategoryName(), in.Direction); ok {
		return cat, true, nil
	}
	return models.PlaceholderCategory(in.Direction), true, nil
}
