package pipeline

import (
	"fjacquet/notif-ledger/internal/models"
)

// Status is the result class of processing one message.
type Status string

const (
	StatusCreated          Status = "created"
	StatusNotFinancial     Status = "not_financial"
	StatusNoAmount         Status = "no_amount"
	StatusAlreadyProcessed Status = "already_processed"
	// StatusFailed is only produced by ProcessBatch for messages whose store access failed.
	StatusFailed Status = "failed"
)

// Outcome describes what happened to one message.
type Outcome struct {
	MessageID   string
	Status      Status
	Transaction *models.Transaction
	Alerts      []models.AlertEvent
	// Rule names the extraction rule that matched, empty for the heuristic path.
	Rule string
}

// Summary counts outcomes per status.
type Summary map[Status]int

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) Summary {
	s := Summary{}
	for _, o := range outcomes {
		s[o.Status]++
	}
	return s
}
