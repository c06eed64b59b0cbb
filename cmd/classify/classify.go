// Package classify runs the extraction pipeline on one message without storing anything
package classify

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"fjacquet/notif-ledger/cmd/root"
	"fjacquet/notif-ledger/internal/config"
	"fjacquet/notif-ledger/internal/currencyutils"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/pipeline"
	"fjacquet/notif-ledger/internal/store"
	"fjacquet/notif-ledger/internal/vocab"

	"github.com/spf13/cobra"
)

var message models.Message

// Cmd represents the classify command
var Cmd = &cobra.Command{
	Use:   "classify",
	Short: "Show what would be extracted from one message (dry run)",
	Long: `Run filtering, extraction and categorization on a single message and print the
result. Nothing is written to the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if root.AppConfig == nil {
			return fmt.Errorf("configuration not loaded")
		}
		return Run(cmd.Context(), root.AppConfig, message, root.Log, cmd.OutOrStdout())
	},
}

func init() {
	Cmd.Flags().StringVarP(&message.Body, "body", "b", "", "Message body")
	Cmd.Flags().StringVarP(&message.Sender, "sender", "s", "", "Sender name, short code or address")
	Cmd.Flags().StringVar(&message.Subject, "subject", "", "Email subject")
	_ = Cmd.MarkFlagRequired("body")
}

// Run classifies msg with the configured vocabulary and prints the parsed fields.
func Run(ctx context.Context, cfg *config.Config, msg models.Message, log logging.Logger, w io.Writer) error {
	vocabStore := store.NewVocabularyStore(cfg.Vocabulary.CategoriesFile, cfg.Vocabulary.AccountsFile, cfg.Vocabulary.RulesFile, log)
	cache := vocab.NewCache(vocabStore, log)
	snap, err := cache.Reload()
	if err != nil {
		return err
	}

	var converter currencyutils.Converter = currencyutils.IdentityConverter{}
	if len(cfg.Pipeline.Rates) > 0 {
		rates, err := currencyutils.NewRateTable(cfg.Pipeline.BaseCurrency, cfg.Pipeline.Rates)
		if err != nil {
			return err
		}
		converter = rates
	}

	engine := pipeline.NewEngine(nil, cache, log, pipeline.Options{
		BaseCurrency:  cfg.Pipeline.BaseCurrency,
		AmountCeiling: cfg.AmountCeiling(),
	}, pipeline.WithConverter(converter))

	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	parsed, status := engine.Parse(ctx, msg)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, ruleErr := range snap.Compiled.Errors() {
		fmt.Fprintf(tw, "rule error\t%v\n", ruleErr)
	}
	fmt.Fprintf(tw, "status\t%s\n", status)
	if parsed != nil {
		fmt.Fprintf(tw, "amount\t%s\n", currencyutils.FormatAmount(parsed.Amount, parsed.Currency))
		fmt.Fprintf(tw, "direction\t%s\n", parsed.Direction)
		fmt.Fprintf(tw, "merchant\t%s\n", parsed.Merchant)
		fmt.Fprintf(tw, "category\t%s\n", parsed.Category)
		fmt.Fprintf(tw, "account\t%s\n", parsed.AccountName)
		fmt.Fprintf(tw, "rule\t%s\n", parsed.Rule)
		fmt.Fprintf(tw, "description\t%s\n", parsed.Description)
	}
	return tw.Flush()
}
