package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Budget caps spending for one category over a date range.
// Spent is a cache; the source of truth is the sum of matching expense transactions.
type Budget struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Amount    decimal.Decimal `json:"amount"`
	StartDate time.Time       `json:"start_date"`
	EndDate   time.Time       `json:"end_date"`
	Spent     decimal.Decimal `json:"spent"`
	Active    bool            `json:"active"`
}

// PeriodStart is the first instant covered by the budget.
func (b Budget) PeriodStart() time.Time {
	y, m, d := b.StartDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, b.StartDate.Location())
}

// PeriodEnd is the last instant covered by the budget (end of EndDate's day).
func (b Budget) PeriodEnd() time.Time {
	y, m, d := b.EndDate.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, b.EndDate.Location()).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

// Contains reports whether t falls inside [start of StartDate, end of EndDate].
func (b Budget) Contains(t time.Time) bool {
	return !t.Before(b.PeriodStart()) && !t.After(b.PeriodEnd())
}

// AlertKind distinguishes overspend from approaching-limit alerts.
type AlertKind string

const (
	AlertExceeded AlertKind = "exceeded"
	AlertWarning  AlertKind = "warning"
)

// AlertEvent is handed to the notification collaborator.
// Value is the overspend amount for AlertExceeded and the spent percentage for AlertWarning.
type AlertEvent struct {
	Kind       AlertKind       `json:"kind"`
	BudgetID   string          `json:"budget_id"`
	BudgetName string          `json:"budget_name"`
	Category   string          `json:"category"`
	Value      decimal.Decimal `json:"value"`
}
