// Package budget manages spending budgets
package budget

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"fjacquet/notif-ledger/cmd/root"
	"fjacquet/notif-ledger/internal/container"
	"fjacquet/notif-ledger/internal/dateutils"
	"fjacquet/notif-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

const dateLayout = dateutils.DateLayoutISO

// AddFlags are the inputs of "budget add".
type AddFlags struct {
	ID       string
	Name     string
	Category string
	Amount   string
	Start    string
	End      string
}

var addFlags AddFlags

// Cmd represents the budget command
var Cmd = &cobra.Command{
	Use:   "budget",
	Short: "Manage category budgets",
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or replace a budget",
	Long: `Create a budget for one category over a date range (default: the current month).
Spent is computed from the expenses already in the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := addFlags.Budget(time.Now())
		if err != nil {
			return err
		}
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		return Add(cmd.Context(), c, b, cmd.OutOrStdout())
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List budgets with their spent amount and alert state",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		return List(cmd.Context(), c, cmd.OutOrStdout())
	},
}

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Rebuild every budget's spent amount from the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := root.GetContainer(cmd.Context())
		if err != nil {
			return err
		}
		budgets, err := c.GetCascade().RecomputeAll(cmd.Context())
		if werr := writeBudgets(cmd.OutOrStdout(), c, budgets); werr != nil {
			return werr
		}
		return err
	},
}

func init() {
	addCmd.Flags().StringVar(&addFlags.ID, "id", "", "Budget id (generated when empty; an existing id is replaced)")
	addCmd.Flags().StringVar(&addFlags.Name, "name", "", "Display name (defaults to the category)")
	addCmd.Flags().StringVarP(&addFlags.Category, "category", "c", "", "Category to cap")
	addCmd.Flags().StringVarP(&addFlags.Amount, "amount", "a", "", "Budget amount")
	addCmd.Flags().StringVar(&addFlags.Start, "start", "", "First day (YYYY-MM-DD)")
	addCmd.Flags().StringVar(&addFlags.End, "end", "", "Last day (YYYY-MM-DD)")
	_ = addCmd.MarkFlagRequired("category")
	_ = addCmd.MarkFlagRequired("amount")

	Cmd.AddCommand(addCmd, listCmd, recomputeCmd)
}

// Budget validates the flags and builds the budget. Missing dates default to the month of now.
func (f AddFlags) Budget(now time.Time) (models.Budget, error) {
	category := strings.TrimSpace(f.Category)
	if category == "" {
		return models.Budget{}, fmt.Errorf("category is required")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(f.Amount))
	if err != nil || !amount.IsPositive() {
		return models.Budget{}, fmt.Errorf("amount must be a positive number, got %q", f.Amount)
	}

	start := dateutils.StartOfMonth(now.UTC())
	end := dateutils.EndOfMonth(start)
	if f.Start != "" {
		if start, err = dateutils.ParseDay(f.Start); err != nil {
			return models.Budget{}, fmt.Errorf("invalid start date %q: %w", f.Start, err)
		}
	}
	if f.End != "" {
		if end, err = dateutils.ParseDay(f.End); err != nil {
			return models.Budget{}, fmt.Errorf("invalid end date %q: %w", f.End, err)
		}
	}
	if end.Before(start) {
		return models.Budget{}, fmt.Errorf("end date %s is before start date %s", end.Format(dateLayout), start.Format(dateLayout))
	}

	id := f.ID
	if id == "" {
		id = uuid.New().String()
	}
	name := f.Name
	if name == "" {
		name = category
	}
	return models.Budget{
		ID:        id,
		Name:      name,
		Category:  category,
		Amount:    amount,
		StartDate: start,
		EndDate:   end,
		Spent:     decimal.Zero,
		Active:    true,
	}, nil
}

// Add saves b, computes its spent amount from the ledger and prints it.
func Add(ctx context.Context, c *container.Container, b models.Budget, w io.Writer) error {
	if err := c.GetLedger().SaveBudget(ctx, b); err != nil {
		return err
	}
	b, err := c.GetCascade().Recompute(ctx, b)
	if err != nil {
		return err
	}
	return writeBudgets(w, c, []models.Budget{b})
}

// List prints every budget.
func List(ctx context.Context, c *container.Container, w io.Writer) error {
	budgets, err := c.GetLedger().ListBudgets(ctx)
	if err != nil {
		return err
	}
	return writeBudgets(w, c, budgets)
}

func writeBudgets(w io.Writer, c *container.Container, budgets []models.Budget) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tAMOUNT\tSPENT\tFROM\tTO\tSTATE")
	for _, b := range budgets {
		state := "ok"
		if !b.Active {
			state = "inactive"
		} else if alert, ok := c.GetCascade().Evaluate(b); ok {
			state = string(alert.Kind)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			b.ID, b.Name, b.Category, b.Amount.StringFixed(2), b.Spent.StringFixed(2),
			b.StartDate.Format(dateLayout), b.EndDate.Format(dateLayout), state)
	}
	return tw.Flush()
}
