// Package export writes ledger transactions to CSV
package export

import (
	"context"
	"fmt"
	"io"

	"fjacquet/notif-ledger/cmd/root"
	"fjacquet/notif-ledger/internal/container"
	"fjacquet/notif-ledger/internal/dateutils"
	"fjacquet/notif-ledger/internal/export"
	"fjacquet/notif-ledger/internal/ledger"

	"github.com/spf13/cobra"
)

var (
	category string
	since    string
	until    string
	limit    int
)

// Cmd represents the export command
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export transactions to CSV",
	Long:  `Write stored transactions, oldest first, to --output or to stdout when no output is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := Filter(category, since, until, limit)
		if err != nil {
			return err
		}
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		return Run(cmd.Context(), c, filter, root.SharedFlags.Output, cmd.OutOrStdout())
	},
}

func init() {
	Cmd.Flags().StringVarP(&category, "category", "c", "", "Only this category")
	Cmd.Flags().StringVar(&since, "since", "", "First day (YYYY-MM-DD)")
	Cmd.Flags().StringVar(&until, "until", "", "Last day (YYYY-MM-DD), inclusive")
	Cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows (0 = all)")
}

// Filter builds the ledger filter from command-line values.
func Filter(category, since, until string, limit int) (ledger.TransactionFilter, error) {
	f := ledger.TransactionFilter{Category: category, Limit: limit}
	if since != "" {
		t, err := dateutils.ParseDay(since)
		if err != nil {
			return f, fmt.Errorf("invalid --since date %q: %w", since, err)
		}
		f.Since = t
	}
	if until != "" {
		t, err := dateutils.ParseDay(until)
		if err != nil {
			return f, fmt.Errorf("invalid --until date %q: %w", until, err)
		}
		f.Until = dateutils.EndOfDay(t)
	}
	return f, nil
}

// Run exports the matching transactions to output, or to w when output is empty.
func Run(ctx context.Context, c *container.Container, filter ledger.TransactionFilter, output string, w io.Writer) error {
	txs, err := c.GetLedger().ListTransactions(ctx, filter)
	if err != nil {
		return err
	}
	delim := c.GetConfig().Delimiter()
	if output == "" {
		return export.WriteTransactions(w, txs, delim)
	}
	return export.WriteTransactionsToFile(txs, output, delim, c.GetLogger())
}
