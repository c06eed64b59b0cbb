package models

// Default category names used when nothing in the vocabulary matches.
const (
	CategoryOtherIncome  = "Other Income"
	CategoryOtherExpense = "Other Expense"
	CategoryTransfers    = "Transfers"
)

// Length caps applied to free-text fields before they are persisted.
const (
	MaxDescriptionLength = 200
	MaxMerchantLength    = 50
)

// Alert thresholds.
const (
	DefaultWarningRatio = "0.80"
)

// File permissions
const (
	PermissionConfigFile = 0600
	PermissionDirectory  = 0750
	PermissionExportFile = 0644
)
