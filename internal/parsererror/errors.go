// Package parsererror defines the typed errors raised while turning notifications into transactions.
package parsererror

import (
	"errors"
	"fmt"
)

// ParseError represents a value that could not be parsed.
type ParseError struct {
	Parser string
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: failed to parse %s='%s': %v",
		e.Parser, e.Field, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StoreError means the persistence collaborator could not be reached or refused a write.
// A message that failed with a StoreError has not been marked processed.
type StoreError struct {
	Operation string
	Err       error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store unavailable during %s: %v", e.Operation, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// IsStoreError reports whether err wraps a StoreError.
func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}

// RuleCompilationError is raised for a stored extraction rule whose pattern does not compile.
type RuleCompilationError struct {
	Rule    string
	Pattern string
	Err     error
}

func (e *RuleCompilationError) Error() string {
	return fmt.Sprintf("rule %q has invalid pattern %q: %v", e.Rule, e.Pattern, e.Err)
}

func (e *RuleCompilationError) Unwrap() error {
	return e.Err
}

// BudgetCascadeError records a failed spent update for one budget.
type BudgetCascadeError struct {
	BudgetID string
	Err      error
}

func (e *BudgetCascadeError) Error() string {
	return fmt.Sprintf("budget %s: cascade failed: %v", e.BudgetID, e.Err)
}

func (e *BudgetCascadeError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid vocabulary or configuration data.
type ValidationError struct {
	Source string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Source, e.Reason)
}
