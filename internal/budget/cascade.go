// Package budget keeps Budget.Spent in step with expense transactions and raises threshold alerts.
package budget

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/parsererror"

	"github.com/shopspring/decimal"
)

// Store is the persistence the cascade needs.
type Store interface {
	ActiveBudgetsFor(ctx context.Context, category string, at time.Time) ([]models.Budget, error)
	UpdateBudgetSpent(ctx context.Context, id string, spent decimal.Decimal) error
	AddBudgetSpent(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error)
	SumExpenses(ctx context.Context, category string, start, end time.Time) (decimal.Decimal, error)
	ListBudgets(ctx context.Context) ([]models.Budget, error)
}

var hundred = decimal.NewFromInt(100)

// Cascade applies transactions to budgets.
type Cascade struct {
	store        Store
	warningRatio decimal.Decimal
	logger       logging.Logger
}

// NewCascade creates a Cascade. A non-positive warningRatio falls back to 0.80.
func NewCascade(store Store, warningRatio decimal.Decimal, logger logging.Logger) *Cascade {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	if !warningRatio.IsPositive() {
		warningRatio = decimal.RequireFromString(models.DefaultWarningRatio)
	}
	return &Cascade{store: store, warningRatio: warningRatio, logger: logger}
}

// ApplyTransaction adds an expense to every active budget of its category whose period
// contains the transaction date and returns the alerts raised. Income is ignored.
//
// Spent is incremented inside the store, so concurrent runs never lose an update, and
// alerts are evaluated on the value the store returns. A failure on one budget is logged
// and the remaining budgets are still updated; the returned error is non-nil only when
// the matching budgets could not be read.
func (c *Cascade) ApplyTransaction(ctx context.Context, tx models.Transaction) ([]models.AlertEvent, error) {
	if !tx.IsExpense() {
		return nil, nil
	}

	budgets, err := c.store.ActiveBudgetsFor(ctx, tx.Category, tx.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to load budgets for %s: %w", tx.Category, err)
	}

	var (
		alerts   []models.AlertEvent
		failures []error
	)
	for _, b := range budgets {
		if !b.Active || !b.Contains(tx.OccurredAt) {
			continue
		}

		spent, err := c.store.AddBudgetSpent(ctx, b.ID, tx.Amount)
		if err != nil {
			cascadeErr := &parsererror.BudgetCascadeError{BudgetID: b.ID, Err: err}
			failures = append(failures, cascadeErr)
			c.logger.WithError(cascadeErr).Warn("Budget update failed",
				logging.F(logging.FieldBudgetID, b.ID),
				logging.F(logging.FieldTransactionID, tx.ID))
			continue
		}

		b.Spent = spent
		if alert, ok := c.Evaluate(b); ok {
			alerts = append(alerts, alert)
		}
	}

	if len(failures) > 0 {
		c.logger.Warn("Budget cascade finished with failures",
			logging.F(logging.FieldCount, len(failures)),
			logging.F(logging.FieldError, errors.Join(failures...).Error()))
	}
	return alerts, nil
}

// Evaluate returns the alert for b's current spent value, if any: "exceeded" with the
// overspend when spent > amount, else "warning" with the spent percentage when
// spent/amount reaches the warning ratio.
func (c *Cascade) Evaluate(b models.Budget) (models.AlertEvent, bool) {
	if !b.Amount.IsPositive() {
		return models.AlertEvent{}, false
	}

	event := models.AlertEvent{BudgetID: b.ID, BudgetName: b.Name, Category: b.Category}
	if b.Spent.GreaterThan(b.Amount) {
		event.Kind = models.AlertExceeded
		event.Value = b.Spent.Sub(b.Amount)
		return event, true
	}

	ratio := b.Spent.Div(b.Amount)
	if ratio.GreaterThanOrEqual(c.warningRatio) {
		event.Kind = models.AlertWarning
		event.Value = ratio.Mul(hundred).Round(2)
		return event, true
	}
	return models.AlertEvent{}, false
}

// Recompute sets b's spent to the sum of its category's expenses inside its period
// and persists it. The result matches incremental application in any order.
func (c *Cascade) Recompute(ctx context.Context, b models.Budget) (models.Budget, error) {
	total, err := c.store.SumExpenses(ctx, b.Category, b.PeriodStart(), b.PeriodEnd())
	if err != nil {
		return b, fmt.Errorf("failed to sum expenses for budget %s: %w", b.ID, err)
	}
	if err := c.store.UpdateBudgetSpent(ctx, b.ID, total); err != nil {
		return b, &parsererror.BudgetCascadeError{BudgetID: b.ID, Err: err}
	}
	b.Spent = total
	return b, nil
}

// RecomputeAll recomputes every budget. Failures are collected and the loop continues.
func (c *Cascade) RecomputeAll(ctx context.Context) ([]models.Budget, error) {
	budgets, err := c.store.ListBudgets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list budgets: %w", err)
	}

	out := make([]models.Budget, 0, len(budgets))
	var errs []error
	for _, b := range budgets {
		updated, err := c.Recompute(ctx, b)
		if err != nil {
			errs = append(errs, err)
		}
		out = append(out, updated)
	}

	c.logger.Info("Budgets recomputed", logging.F(logging.FieldCount, len(out)))
	return out, errors.Join(errs...)
}
