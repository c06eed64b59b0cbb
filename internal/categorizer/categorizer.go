// Package categorizer assigns a Category to a parsed message using an ordered chain of strategies:
// 1. Transfer override for mobile-money and peer transfer notifications
// 2. Keyword scoring against the category vocabulary
// 3. Direction default ("Other Income" / "Other Expense")
package categorizer

import (
	"context"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
)

// Categorizer runs the strategy chain. It holds no vocabulary; callers pass the
// categories of the snapshot they are working with.
type Categorizer struct {
	strategies []CategorizationStrategy
	logger     logging.Logger
}

// NewCategorizer creates a Categorizer with the default strategy chain.
func NewCategorizer(logger logging.Logger) *Categorizer {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return NewCategorizerWithStrategies(logger,
		NewTransferOverrideStrategy(),
		NewKeywordScoringStrategy(logger),
	)
}

// NewCategorizerWithStrategies creates a Categorizer running strategies in order.
// The direction default always runs last.
func NewCategorizerWithStrategies(logger logging.Logger, strategies ...CategorizationStrategy) *Categorizer {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	chain := make([]CategorizationStrategy, 0, len(strategies)+1)
	chain = append(chain, strategies...)
	chain = append(chain, &DefaultCategoryStrategy{})
	return &Categorizer{strategies: chain, logger: logger}
}

// Classify returns the category for a message. It always returns a category.
func (c *Categorizer) Classify(ctx context.Context, text, merchant string, direction models.Direction, categories []models.Category) models.Category {
	_, results := c.ClassifyWithResults(ctx, Input{Text: text, Merchant: merchant, Direction: direction}, categories)
	if cat, _, ok := results.GetBestResult(); ok {
		return cat
	}
	return models.PlaceholderCategory(direction)
}

// ClassifyWithResults runs the chain and reports every attempt made.
// A strategy error is recorded and the chain moves on.
func (c *Categorizer) ClassifyWithResults(ctx context.Context, in Input, categories []models.Category) (models.Category, StrategyResults) {
	var results StrategyResults

	for _, strategy := range c.strategies {
		cat, found, err := strategy.Categorize(ctx, in, categories)
		results.Results = append(results.Results, StrategyResult{
			Strategy: strategy.Name(),
			Category: cat,
			Found:    found,
			Error:    err,
		})
		if err != nil {
			c.logger.WithError(err).Warn("Categorization strategy failed",
				logging.F(logging.FieldStrategy, strategy.Name()))
			continue
		}
		if found {
			c.logger.Debug("Message categorized",
				logging.F(logging.FieldStrategy, strategy.Name()),
				logging.F(logging.FieldCategory, cat.Name),
				logging.F(logging.FieldDirection, in.Direction))
			return cat, results
		}
	}

	return models.PlaceholderCategory(in.Direction), results
}
