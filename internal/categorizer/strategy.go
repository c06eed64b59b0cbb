package categorizer

import (
	"context"

	"fjacquet/notif-ledger/internal/models"
)

// Input is the part of a parsed message the strategies look at.
type Input struct {
	// Text is the normalized, lower-cased message surface.
	Text      string
	Merchant  string
	Direction models.Direction
}

// CategorizationStrategy is one step of the classification chain.
// Strategies run in order and the first one reporting found=true decides.
type CategorizationStrategy interface {
	// Categorize returns the category, whether this strategy decided, and any error.
	Categorize(ctx context.Context, in Input, categories []models.Category) (models.Category, bool, error)

	// Name returns the name of this strategy for logging and debugging purposes.
	Name() string
}
