// Package ledger persists transactions, the processed-message ledger and budgets.
package ledger

import (
	"context"
	"errors"
	"time"

	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/parsererror"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a looked-up record does not exist.
var ErrNotFound = errors.New("record not found")

// CommitResult reports what Commit wrote.
type CommitResult struct {
	// AlreadyProcessed is set when the source message id was already in the ledger; nothing was written.
	AlreadyProcessed bool
	LedgerID         string
	TransactionID    string
}

// TransactionFilter narrows ListTransactions. Zero values mean no restriction.
type TransactionFilter struct {
	Category string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Store is everything the engine, the budget cascade and the CLI need from persistence.
type Store interface {
	// ShouldProcess reports whether sourceID has no ledger entry yet.
	ShouldProcess(ctx context.Context, sourceID string) (bool, error)
	// Commit writes the ledger entry and, when tx is non-nil, the transaction and the link
	// between them, all or nothing.
	Commit(ctx context.Context, msg models.ProcessedMessage, tx *models.Transaction) (CommitResult, error)
	GetProcessedMessage(ctx context.Context, sourceID string) (models.ProcessedMessage, error)

	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
	CountTransactions(ctx context.Context) (int, error)
	SumExpenses(ctx context.Context, category string, start, end time.Time) (decimal.Decimal, error)

	SaveBudget(ctx context.Context, b models.Budget) error
	ListBudgets(ctx context.Context) ([]models.Budget, error)
	ActiveBudgetsFor(ctx context.Context, category string, at time.Time) ([]models.Budget, error)
	UpdateBudgetSpent(ctx context.Context, id string, spent decimal.Decimal) error
	// AddBudgetSpent adds delta to the stored spent value in one write transaction and
	// returns the new value.
	AddBudgetSpent(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)

	Close() error
}

func storeErr(op string, err error) error {
	return &parsererror.StoreError{Operation: op, Err: err}
}
