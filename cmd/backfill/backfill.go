// Package backfill imports historical messages and then rebuilds budget totals
package backfill

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"fjacquet/notif-ledger/cmd/common"
	"fjacquet/notif-ledger/cmd/root"
	"fjacquet/notif-ledger/internal/container"
	"fjacquet/notif-ledger/internal/dateutils"
	"fjacquet/notif-ledger/internal/inbox"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"

	"github.com/spf13/cobra"
)

var (
	since     string
	recompute bool
)

// Cmd represents the backfill command
var Cmd = &cobra.Command{
	Use:   "backfill",
	Short: "Import historical messages oldest first and recompute budgets",
	Long: `Read every message under --input, drop those older than --since, process the rest
in timestamp order and finally recompute all budget totals from the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var from time.Time
		if since != "" {
			t, err := dateutils.ParseDay(since)
			if err != nil {
				return fmt.Errorf("invalid --since date %q: %w", since, err)
			}
			from = t
		}
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		return Run(cmd.Context(), c, root.InputPath(), from, recompute, cmd.OutOrStdout())
	},
}

func init() {
	Cmd.Flags().StringVar(&since, "since", "", "Only import messages on or after this date (YYYY-MM-DD)")
	Cmd.Flags().BoolVar(&recompute, "recompute", true, "Recompute all budgets after the import")
}

// Run imports the messages at path sent on or after from (zero means all).
func Run(ctx context.Context, c *container.Container, path string, from time.Time, recompute bool, w io.Writer) error {
	log := c.GetLogger()
	msgs, err := inbox.New(path, c.GetConfig().Delimiter(), log).Read()
	if err != nil {
		return err
	}
	msgs = Select(msgs, from)
	log.Info("Backfill started", logging.F(logging.FieldCount, len(msgs)))

	if err := common.ProcessMessages(ctx, c.GetEngine(), msgs, w, log); err != nil {
		return err
	}
	if !recompute {
		return nil
	}

	budgets, err := c.GetCascade().RecomputeAll(ctx)
	if err != nil {
		return fmt.Errorf("budget recompute failed: %w", err)
	}
	fmt.Fprintf(w, "recomputed %d budgets\n", len(budgets))
	return nil
}

// Select drops messages older than from and orders the rest oldest first.
// Messages without a timestamp are kept and sort first.
func Select(msgs []models.Message, from time.Time) []models.Message {
	out := make([]models.Message, 0, len(msgs))
	for _, m := range msgs {
		if !from.IsZero() && !m.Timestamp.IsZero() && m.Timestamp.Before(from) {
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
