// Package process handles the one-shot processing of an inbox file or directory
package process

import (
	"context"
	"io"

	"fjacquet/notif-ledger/cmd/common"
	"fjacquet/notif-ledger/cmd/root"
	"fjacquet/notif-ledger/internal/container"
	"fjacquet/notif-ledger/internal/inbox"

	"github.com/spf13/cobra"
)

// Cmd represents the process command
var Cmd = &cobra.Command{
	Use:   "process",
	Short: "Process notification messages from a CSV file or directory",
	Long: `Read messages (id, sender, body, subject, timestamp, source) from --input or the
configured inbox and record one transaction per financial notification. Messages
already in the ledger are skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		return Run(cmd.Context(), c, root.InputPath(), cmd.OutOrStdout())
	},
}

// Run processes every message found at path.
func Run(ctx context.Context, c *container.Container, path string, w io.Writer) error {
	in := inbox.New(path, c.GetConfig().Delimiter(), c.GetLogger())
	msgs, err := in.Read()
	if err != nil {
		return err
	}
	return common.ProcessMessages(ctx, c.GetEngine(), msgs, w, c.GetLogger())
}
