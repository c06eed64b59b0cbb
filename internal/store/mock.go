package store

import (
	"fjacquet/notif-ledger/internal/models"
)

// MockVocabularyStore is a mock implementation of VocabularyStore for testing.
type MockVocabularyStore struct {
	Categories []models.Category
	Accounts   []models.Account
	Rules      []models.ExtractionRule

	// Error flags for testing error conditions
	LoadCategoriesError error
	LoadAccountsError   error
	LoadRulesError      error

	// Loads counts completed LoadCategories calls.
	Loads int
}

// LoadCategories returns a copy of the mock categories.
func (m *MockVocabularyStore) LoadCategories() ([]models.Category, error) {
	if m.LoadCategoriesError != nil {
		return nil, m.LoadCategoriesError
	}
	m.Loads++
	return append([]models.Category(nil), m.Categories...), nil
}

// LoadAccounts returns a copy of the mock accounts.
func (m *MockVocabularyStore) LoadAccounts() ([]models.Account, error) {
	if m.LoadAccountsError != nil {
		return nil, m.LoadAccountsError
	}
	return append([]models.Account(nil), m.Accounts...), nil
}

// LoadRules returns a copy of the mock rules.
func (m *MockVocabularyStore) LoadRules() ([]models.ExtractionRule, error) {
	if m.LoadRulesError != nil {
		return nil, m.LoadRulesError
	}
	return append([]models.ExtractionRule(nil), m.Rules...), nil
}
