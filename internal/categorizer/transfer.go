package categorizer

import (
	"context"
	"strings"

	"fjacquet/notif-ledger/internal/models"
)

var transferMarkers = []string{
	"momo", "mobile money", "mobilemoney", "sent you", "payment received", "payment sent",
}

// TransferOverrideStrategy routes mobile-money and peer transfer notifications straight to
// the "Transfers" category of the message's direction. Generic scoring misfiles these often.
type TransferOverrideStrategy struct{}

// NewTransferOverrideStrategy creates a TransferOverrideStrategy.
func NewTransferOverrideStrategy() *TransferOverrideStrategy {
	return &TransferOverrideStrategy{}
}

// Name returns the name of this strategy for logging and debugging.
func (s *TransferOverrideStrategy) Name() string {
	return "TransferOverride"
}

// Categorize reports found only when a transfer marker is present and the store has a
// "Transfers" category for the direction.
func (s *TransferOverrideStrategy) Categorize(_ context.Context, in Input, categories []models.Category) (models.Category, bool, error) {
	if !HasTransferMarker(in.Text) {
		return models.Category{}, false, nil
	}
	cat, ok := models.FindCategory(categories, models.CategoryTransfers, in.Direction)
	return cat, ok, nil
}

// HasTransferMarker reports whether text carries a mobile-money or peer-transfer marker.
func HasTransferMarker(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range transferMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
