package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionBuilder assembles a Transaction from a ParsedTransaction and message metadata.
type TransactionBuilder struct {
	tx  Transaction
	err error
	now func() time.Time
}

// NewTransactionBuilder starts a builder with a fresh id.
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		tx: Transaction{
			ID:     uuid.New().String(),
			Amount: decimal.Zero,
			Source: SourceManual,
		},
		now: time.Now,
	}
}

// WithClock overrides the time source used for CreatedAt/UpdatedAt.
func (b *TransactionBuilder) WithClock(now func() time.Time) *TransactionBuilder {
	if now != nil {
		b.now = now
	}
	return b
}

// FromParsed copies the extracted fields.
func (b *TransactionBuilder) FromParsed(p ParsedTransaction) *TransactionBuilder {
	if b.err != nil {
		return b
	}
	b.tx.Amount = p.Amount
	b.tx.Description = p.Description
	b.tx.Merchant = p.Merchant
	b.tx.Account = p.AccountName
	b.tx.Direction = p.Direction
	b.tx.Category = p.Category
	b.tx.OccurredAt = p.OccurredAt
	return b
}

// WithSource sets the source tag.
func (b *TransactionBuilder) WithSource(s Source) *TransactionBuilder {
	if b.err != nil {
		return b
	}
	b.tx.Source = s
	return b
}

// WithSourceMessage links the transaction to the notification it came from.
func (b *TransactionBuilder) WithSourceMessage(id string) *TransactionBuilder {
	if b.err != nil {
		return b
	}
	b.tx.SourceMessageID = id
	return b
}

// WithAmountString parses amount from a decimal string.
func (b *TransactionBuilder) WithAmountString(amount string) *TransactionBuilder {
	if b.err != nil {
		return b
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		b.err = fmt.Errorf("invalid amount %q: %w", amount, err)
		return b
	}
	b.tx.Amount = d
	return b
}

// Build validates and returns the transaction.
func (b *TransactionBuilder) Build() (Transaction, error) {
	if b.err != nil {
		return Transaction{}, b.err
	}
	if !b.tx.Amount.IsPositive() {
		return Transaction{}, errors.New("transaction amount must be positive")
	}
	if !b.tx.Direction.Valid() {
		return Transaction{}, fmt.Errorf("transaction direction %q is invalid", b.tx.Direction)
	}
	if strings.TrimSpace(b.tx.Category) == "" {
		return Transaction{}, errors.New("transaction category is required")
	}
	b.tx.Description = Truncate(b.tx.Description, MaxDescriptionLength)
	b.tx.Merchant = Truncate(strings.TrimSpace(b.tx.Merchant), MaxMerchantLength)

	now := b.now().UTC()
	if b.tx.OccurredAt.IsZero() {
		b.tx.OccurredAt = now
	}
	b.tx.CreatedAt = now
	b.tx.UpdatedAt = now
	return b.tx, nil
}

// Truncate cuts s to at most max runes.
func Truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}
