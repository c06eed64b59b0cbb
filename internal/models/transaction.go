package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ParsedTransaction is the transient result of running the extraction pipeline on one message.
type ParsedTransaction struct {
	Amount      decimal.Decimal
	Currency    string
	Description string
	Merchant    string
	AccountName string
	Direction   Direction
	Category    string
	OccurredAt  time.Time
	RawText     string

	// Rule is the name of the extraction rule that produced this result, empty for the heuristic path.
	Rule string
}

// Transaction is a persisted, categorized financial transaction.
type Transaction struct {
	ID              string          `csv:"id" json:"id"`
	Amount          decimal.Decimal `csv:"amount" json:"amount"`
	Description     string          `csv:"description" json:"description"`
	Category        string          `csv:"category" json:"category"`
	Direction       Direction       `csv:"direction" json:"direction"`
	Source          Source          `csv:"source" json:"source"`
	OccurredAt      time.Time       `csv:"occurred_at" json:"occurred_at"`
	Account         string          `csv:"account" json:"account,omitempty"`
	Merchant        string          `csv:"merchant" json:"merchant,omitempty"`
	SourceMessageID string          `csv:"source_message_id" json:"source_message_id,omitempty"`
	CreatedAt       time.Time       `csv:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `csv:"updated_at" json:"updated_at"`
}

// IsExpense reports whether the transaction counts against budgets.
func (t Transaction) IsExpense() bool {
	return t.Direction == DirectionExpense
}

// ProcessedMessage is the idempotence ledger entry for one source message.
type ProcessedMessage struct {
	ID              string
	SourceMessageID string
	Sender          string
	Body            string
	MessageTime     time.Time
	TransactionID   *string
	CreatedAt       time.Time
}

// Linked reports whether the ledger entry produced a transaction.
func (p ProcessedMessage) Linked() bool {
	return p.TransactionID != nil && *p.TransactionID != ""
}
