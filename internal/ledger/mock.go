package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"fjacquet/notif-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockStore is an in-memory Store for tests. Error fields make the matching call fail;
// BudgetErrors fails UpdateBudgetSpent and AddBudgetSpent for specific budget ids.
type MockStore struct {
	mu           sync.Mutex
	ledger       map[string]models.ProcessedMessage
	transactions []models.Transaction
	budgets      map[string]models.Budget

	ShouldProcessError error
	CommitError        error
	ListError          error
	BudgetErrors       map[string]error

	Commits int
}

// NewMockStore returns an empty MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		ledger:       map[string]models.ProcessedMessage{},
		budgets:      map[string]models.Budget{},
		BudgetErrors: map[string]error{},
	}
}

// ShouldProcess reports whether sourceID has no ledger entry yet.
func (m *MockStore) ShouldProcess(_ context.Context, sourceID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldProcessError != nil {
		return false, storeErr("should_process", m.ShouldProcessError)
	}
	_, seen := m.ledger[sourceID]
	return !seen, nil
}

// Commit records the ledger entry and the optional transaction atomically.
func (m *MockStore) Commit(_ context.Context, msg models.ProcessedMessage, tx *models.Transaction) (CommitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CommitError != nil {
		return CommitResult{}, storeErr("commit", m.CommitError)
	}
	if _, seen := m.ledger[msg.SourceMessageID]; seen {
		return CommitResult{AlreadyProcessed: true}, nil
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	result := CommitResult{LedgerID: msg.ID}
	if tx != nil {
		id := tx.ID
		msg.TransactionID = &id
		m.transactions = append(m.transactions, *tx)
		result.TransactionID = tx.ID
	}
	m.ledger[msg.SourceMessageID] = msg
	m.Commits++
	return result, nil
}

// GetProcessedMessage returns the ledger entry for sourceID or ErrNotFound.
func (m *MockStore) GetProcessedMessage(_ context.Context, sourceID string) (models.ProcessedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pm, ok := m.ledger[sourceID]
	if !ok {
		return models.ProcessedMessage{}, fmt.Errorf("processed message %s: %w", sourceID, ErrNotFound)
	}
	return pm, nil
}

// ListTransactions filters the stored transactions.
func (m *MockStore) ListTransactions(_ context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, storeErr("list_transactions", m.ListError)
	}

	var out []models.Transaction
	for _, t := range m.transactions {
		if filter.Category != "" && t.Category != filter.Category {
			continue
		}
		if !filter.Since.IsZero() && t.OccurredAt.Before(filter.Since) {
			continue
		}
		if !filter.Until.IsZero() && t.OccurredAt.After(filter.Until) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountTransactions returns the number of stored transactions.
func (m *MockStore) CountTransactions(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.transactions), nil
}

// SumExpenses adds up expense amounts of category within [start, end].
func (m *MockStore) SumExpenses(_ context.Context, category string, start, end time.Time) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, t := range m.transactions {
		if t.Category != category || !t.IsExpense() {
			continue
		}
		if t.OccurredAt.Before(start) || t.OccurredAt.After(end) {
			continue
		}
		total = total.Add(t.Amount)
	}
	return total, nil
}

// SaveBudget inserts or replaces a budget.
func (m *MockStore) SaveBudget(_ context.Context, b models.Budget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	m.budgets[b.ID] = b
	return nil
}

// ListBudgets returns all budgets ordered by start date then name.
func (m *MockStore) ListBudgets(_ context.Context) ([]models.Budget, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Budget, 0, len(m.budgets))
	for _, b := range m.budgets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// ActiveBudgetsFor returns the active budgets of category whose period contains at.
func (m *MockStore) ActiveBudgetsFor(ctx context.Context, category string, at time.Time) ([]models.Budget, error) {
	all, err := m.ListBudgets(ctx)
	if err != nil {
		return nil, err
	}
	var out []models.Budget
	for _, b := range all {
		if b.Active && b.Category == category && b.Contains(at) {
			out = append(out, b)
		}
	}
	return out, nil
}

// UpdateBudgetSpent persists a new spent value.
func (m *MockStore) UpdateBudgetSpent(_ context.Context, id string, spent decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.BudgetErrors[id]; err != nil {
		return storeErr("update_budget_spent", err)
	}
	b, ok := m.budgets[id]
	if !ok {
		return fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	b.Spent = spent
	m.budgets[id] = b
	return nil
}

// AddBudgetSpent adds delta to the stored spent value under the store lock.
func (m *MockStore) AddBudgetSpent(_ context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.BudgetErrors[id]; err != nil {
		return decimal.Zero, storeErr("add_budget_spent", err)
	}
	b, ok := m.budgets[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	b.Spent = b.Spent.Add(delta)
	m.budgets[id] = b
	return b.Spent, nil
}

// Budget returns the stored budget with id.
func (m *MockStore) Budget(id string) (models.Budget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.budgets[id]
	return b, ok
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)
