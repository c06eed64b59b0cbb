package models

import (
	"fmt"
	"strings"
)

// Direction says whether money came in or went out.
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// ParseDirection accepts "income"/"expense" and the common credit/debit aliases.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "credit", "in":
		return DirectionIncome, nil
	case "expense", "debit", "out":
		return DirectionExpense, nil
	default:
		return "", fmt.Errorf("unknown direction %q", s)
	}
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionIncome || d == DirectionExpense
}

// DefaultCategoryName is the fallback bucket for d.
func (d Direction) DefaultCategoryName() string {
	if d == DirectionIncome {
		return CategoryOtherIncome
	}
	return CategoryOtherExpense
}

// Source tags where a transaction came from.
type Source string

const (
	SourceManual Source = "manual"
	SourceSMS    Source = "sms"
	SourceEmail  Source = "email"
)

// ParseSource accepts "manual", "sms" and "email" in any case.
func ParseSource(s string) (Source, error) {
	src := Source(strings.ToLower(strings.TrimSpace(s)))
	if !src.Valid() {
		return "", fmt.Errorf("unknown source %q", s)
	}
	return src, nil
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	return s == SourceManual || s == SourceSMS || s == SourceEmail
}
