// Package common contains shared functionality for command handlers
package common

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/pipeline"
)

// BatchProcessor is the engine surface the commands drive.
type BatchProcessor interface {
	ProcessBatch(ctx context.Context, msgs []models.Message) ([]pipeline.Outcome, error)
}

// ProcessMessages runs msgs through processor and prints a per-message report to w.
// The batch error is returned after the report so partial progress is still visible.
func ProcessMessages(ctx context.Context, processor BatchProcessor, msgs []models.Message, w io.Writer, log logging.Logger) error {
	if len(msgs) == 0 {
		log.Info("No messages to process")
		return nil
	}

	outcomes, err := processor.ProcessBatch(ctx, msgs)
	if werr := WriteOutcomes(w, outcomes); werr != nil {
		log.WithError(werr).Warn("Failed to write report")
	}
	if err != nil {
		return fmt.Errorf("some messages failed: %w", err)
	}
	return nil
}

// WriteOutcomes prints one line per outcome followed by per-status totals.
func WriteOutcomes(w io.Writer, outcomes []pipeline.Outcome) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MESSAGE\tSTATUS\tAMOUNT\tDIRECTION\tCATEGORY\tMERCHANT")
	for _, o := range outcomes {
		if o.Transaction == nil {
			fmt.Fprintf(tw, "%s\t%s\t\t\t\t\n", o.MessageID, o.Status)
			continue
		}
		tx := o.Transaction
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.MessageID, o.Status, tx.Amount.StringFixed(2), tx.Direction, tx.Category, tx.Merchant)
		for _, a := range o.Alerts {
			fmt.Fprintf(tw, "\tbudget %s\t%s\t%s\t\t\n", a.Kind, a.Value.StringFixed(2), a.BudgetName)
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	summary := pipeline.Summarize(outcomes)
	statuses := make([]string, 0, len(summary))
	for s := range summary {
		statuses = append(statuses, string(s))
	}
	sort.Strings(statuses)
	fmt.Fprintf(w, "\n%d messages:", len(outcomes))
	for _, s := range statuses {
		fmt.Fprintf(w, " %s=%d", s, summary[pipeline.Status(s)])
	}
	_, err := fmt.Fprintln(w)
	return err
}
