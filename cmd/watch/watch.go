// Package watch runs the scheduled inbox poll with vocabulary hot reload
package watch

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"fjacquet/notif-ledger/cmd/root"
	"fjacquet/notif-ledger/internal/container"
	"fjacquet/notif-ledger/internal/inbox"
	"fjacquet/notif-ledger/internal/scheduler"

	"github.com/spf13/cobra"
)

var (
	schedule  string
	immediate bool
)

// Cmd represents the watch command
var Cmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the inbox on a schedule until interrupted",
	Long: `Poll --input (or the configured inbox) on the configured cron schedule and process
new messages. Vocabulary files are reloaded when they change. Stop with Ctrl-C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		c, err := root.GetContainer(ctx)
		if err != nil {
			return err
		}
		spec := schedule
		if spec == "" {
			spec = c.GetConfig().Scheduler.Spec
		}
		return Run(ctx, c, root.InputPath(), spec, immediate)
	},
}

func init() {
	Cmd.Flags().StringVar(&schedule, "schedule", "", "Cron spec overriding scheduler.spec (e.g. \"@every 30s\")")
	Cmd.Flags().BoolVar(&immediate, "now", true, "Poll once immediately before waiting for the schedule")
}

// Run polls path on spec until ctx is cancelled.
func Run(ctx context.Context, c *container.Container, path, spec string, immediate bool) error {
	log := c.GetLogger()

	if c.GetConfig().Vocabulary.Watch {
		w := c.NewVocabularyWatcher()
		if err := w.Start(ctx); err != nil {
			log.WithError(err).Warn("Vocabulary hot reload disabled")
		} else {
			defer w.Wait()
		}
	}

	in := inbox.New(path, c.GetConfig().Delimiter(), log)
	s, err := scheduler.New(spec, scheduler.PollInbox(in, c.GetEngine(), log), log)
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}
	if immediate {
		s.Trigger()
	}
	return s.Run(ctx)
}
