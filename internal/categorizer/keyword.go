package categorizer

import (
	"context"
	"strings"
	"unicode/utf8"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
)

// KeywordScoringStrategy picks the category of the message's direction whose keywords
// best cover the text and merchant.
type KeywordScoringStrategy struct {
	logger logging.Logger
}

// NewKeywordScoringStrategy creates a new KeywordScoringStrategy instance.
func NewKeywordScoringStrategy(logger logging.Logger) *KeywordScoringStrategy {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &KeywordScoringStrategy{logger: logger}
}

// Name returns the name of this strategy for logging and debugging.
func (s *KeywordScoringStrategy) Name() string {
	return "KeywordScoring"
}

// Categorize returns the strictly highest-scoring candidate. Ties keep the earlier
// category in store order; a zero best score is not a match.
func (s *KeywordScoringStrategy) Categorize(_ context.Context, in Input, categories []models.Category) (models.Category, bool, error) {
	text := strings.ToLower(in.Text)
	merchant := strings.ToLower(in.Merchant)

	var best models.Category
	bestScore := 0.0
	for _, cat := range categories {
		if cat.Direction != in.Direction {
			continue
		}
		score := Score(cat.Keywords, text, merchant)
		if score > bestScore {
			best, bestScore = cat, score
		}
	}

	if bestScore == 0 {
		return models.Category{}, false, nil
	}

	s.logger.Debug("Message categorized by keyword score",
		logging.F(logging.FieldStrategy, s.Name()),
		logging.F(logging.FieldCategory, best.Name),
		logging.F("score", bestScore))
	return best, true, nil
}

// Score sums keyword hits over text and merchant, both lower-cased:
// +1 per keyword found, +0.5 when the keyword is longer than 5 characters,
// +1 more when a multi-word phrase matched verbatim.
func Score(keywords []string, text, merchant string) float64 {
	score := 0.0
	for _, raw := range keywords {
		kw := strings.ToLower(strings.TrimSpace(raw))
		if kw == "" {
			continue
		}
		if !strings.Contains(text, kw) && !strings.Contains(merchant, kw) {
			continue
		}
		score++
		if utf8.RuneCountInString(kw) > 5 {
			score += 0.5
		}
		if strings.Contains(kw, " ") {
			score++
		}
	}
	return score
}
