package budget

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"fjacquet/notif-ledger/internal/config"
	"fjacquet/notif-ledger/internal/container"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFlags_Budget(t *testing.T) {
	now := time.Date(2024, 2, 14, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		flags   AddFlags
		check   func(t *testing.T, b models.Budget)
		wantErr string
	}{
		{
			name:  "defaults to current month",
			flags: AddFlags{Category: "Shopping", Amount: "1000"},
			check: func(t *testing.T, b models.Budget) {
				assert.Equal(t, "2024-02-01", b.StartDate.Format(dateLayout))
				assert.Equal(t, "2024-02-29", b.EndDate.Format(dateLayout))
				assert.Equal(t, "Shopping", b.Name)
				assert.NotEmpty(t, b.ID)
				assert.True(t, b.Active)
			},
		},
		{
			name:  "explicit range and id",
			flags: AddFlags{ID: "q1", Name: "Q1 food", Category: "Food", Amount: "250.50", Start: "2024-01-01", End: "2024-03-31"},
			check: func(t *testing.T, b models.Budget) {
				assert.Equal(t, "q1", b.ID)
				assert.Equal(t, "Q1 food", b.Name)
				assert.True(t, decimal.RequireFromString("250.50").Equal(b.Amount))
			},
		},
		{name: "missing category", flags: AddFlags{Amount: "10"}, wantErr: "category is required"},
		{name: "negative amount", flags: AddFlags{Category: "x", Amount: "-5"}, wantErr: "amount must be a positive number"},
		{name: "bad date", flags: AddFlags{Category: "x", Amount: "5", Start: "01/02/2024"}, wantErr: "invalid start date"},
		{name: "inverted range", flags: AddFlags{Category: "x", Amount: "5", Start: "2024-03-01", End: "2024-02-01"}, wantErr: "is before start date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := tt.flags.Budget(now)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, b)
		})
	}
}

func TestAddAndList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+filepath.Join(dir, "ledger.db")+"\n"), 0600))
	cfg, err := config.InitializeConfigFile(cfgPath)
	require.NoError(t, err)
	c, err := container.NewContainer(ctx, cfg, container.WithLogger(logging.NewDiscard()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	_, err = c.GetEngine().Process(ctx, models.Message{
		ID: "m-1", Sender: "GCB-BANK", Body: "GHS 90.00 debited at KFC",
		Timestamp: time.Date(2024, 3, 3, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	b, err := AddFlags{ID: "b1", Category: "Other Expense", Amount: "100", Start: "2024-03-01", End: "2024-03-31"}.Budget(time.Now())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Add(ctx, c, b, &buf))
	assert.Contains(t, buf.String(), "90.00")
	assert.Contains(t, buf.String(), "warning")

	buf.Reset()
	require.NoError(t, List(ctx, c, &buf))
	assert.Contains(t, buf.String(), "b1")
}

func TestCommandTree(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range Cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["add"])
	assert.True(t, names["list"])
	assert.True(t, names["recompute"])
}
