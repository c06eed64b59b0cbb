package budget_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"fjacquet/notif-ledger/internal/budget"
	"fjacquet/notif-ledger/internal/ledger"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

func shoppingBudget(id string, amount int64) models.Budget {
	return models.Budget{
		ID:        id,
		Name:      "Shopping " + id,
		Category:  "Shopping",
		Amount:    decimal.NewFromInt(amount),
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Spent:     decimal.Zero,
		Active:    true,
	}
}

func expense(id, category, amount string, at time.Time) models.Transaction {
	return models.Transaction{
		ID:              id,
		Amount:          decimal.RequireFromString(amount),
		Category:        category,
		Direction:       models.DirectionExpense,
		OccurredAt:      at,
		SourceMessageID: id,
	}
}

// record stores tx in the mock ledger so recomputation can see it.
func record(t *testing.T, store *ledger.MockStore, tx models.Transaction) {
	t.Helper()
	_, err := store.Commit(context.Background(), models.ProcessedMessage{SourceMessageID: tx.SourceMessageID}, &tx)
	require.NoError(t, err)
}

func TestApplyTransaction_ExceededAfterSecondExpense(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMockStore()
	require.NoError(t, store.SaveBudget(ctx, shoppingBudget("b1", 1000)))
	cascade := budget.NewCascade(store, decimal.Zero, logging.NewMockLogger())

	alerts, err := cascade.ApplyTransaction(ctx, expense("t1", "Shopping", "500.00", march))
	require.NoError(t, err)
	assert.Empty(t, alerts)
	b, _ := store.Budget("b1")
	assert.True(t, decimal.NewFromInt(500).Equal(b.Spent))

	alerts, err = cascade.ApplyTransaction(ctx, expense("t2", "Shopping", "600.00", march))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertExceeded, alerts[0].Kind)
	assert.Equal(t, "b1", alerts[0].BudgetID)
	assert.True(t, decimal.NewFromInt(100).Equal(alerts[0].Value), "got %s", alerts[0].Value)
	b, _ = store.Budget("b1")
	assert.True(t, decimal.NewFromInt(1100).Equal(b.Spent))
}

func TestApplyTransaction_Warning(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMockStore()
	require.NoError(t, store.SaveBudget(ctx, shoppingBudget("b1", 1000)))
	cascade := budget.NewCascade(store, decimal.Zero, nil)

	alerts, err := cascade.ApplyTransaction(ctx, expense("t1", "Shopping", "800.00", march))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, models.AlertWarning, alerts[0].Kind)
	assert.True(t, decimal.NewFromInt(80).Equal(alerts[0].Value), "got %s", alerts[0].Value)
}

func TestApplyTransaction_Skips(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMockStore()
	require.NoError(t, store.SaveBudget(ctx, shoppingBudget("b1", 1000)))
	cascade := budget.NewCascade(store, decimal.Zero, nil)

	income := expense("i1", "Shopping", "900.00", march)
	income.Direction = models.DirectionIncome

	for _, tx := range []models.Transaction{
		income,
		expense("o1", "Food", "900.00", march),
		expense("p1", "Shopping", "900.00", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
	} {
		alerts, err := cascade.ApplyTransaction(ctx, tx)
		require.NoError(t, err)
		assert.Empty(t, alerts)
	}

	b, _ := store.Budget("b1")
	assert.True(t, b.Spent.IsZero())
}

func TestApplyTransaction_OneFailureDoesNotBlockOthers(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMockStore()
	require.NoError(t, store.SaveBudget(ctx, shoppingBudget("a-broken", 1000)))
	require.NoError(t, store.SaveBudget(ctx, shoppingBudget("b-ok", 100)))
	store.BudgetErrors["a-broken"] = errors.New("disk full")
	logger := logging.NewMockLogger()
	cascade := budget.NewCascade(store, decimal.Zero, logger)

	alerts, err := cascade.ApplyTransaction(ctx, expense("t1", "Shopping", "150.00", march))
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, "b-ok", alerts[0].BudgetID)
	assert.Equal(t, models.AlertExceeded, alerts[0].Kind)

	ok, _ := store.Budget("b-ok")
	assert.True(t, decimal.NewFromInt(150).Equal(ok.Spent))
	assert.True(t, logger.HasEntry("WARN", "Budget update failed"))
}

func TestEvaluate(t *testing.T) {
	cascade := budget.NewCascade(ledger.NewMockStore(), decimal.RequireFromString("0.9"), nil)

	tests := []struct {
		name  string
		spent string
		kind  models.AlertKind
		value string
		alert bool
	}{
		{"below custom ratio", "850", "", "", false},
		{"at custom ratio", "900", models.AlertWarning, "90", true},
		{"exactly at amount", "1000", models.AlertWarning, "100", true},
		{"over", "1000.01", models.AlertExceeded, "0.01", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := shoppingBudget("b", 1000)
			b.Spent = decimal.RequireFromString(tt.spent)
			got, ok := cascade.Evaluate(b)
			require.Equal(t, tt.alert, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.kind, got.Kind)
			assert.True(t, decimal.RequireFromString(tt.value).Equal(got.Value), "got %s", got.Value)
		})
	}
}

func TestRecompute_MatchesIncrementalInAnyOrder(t *testing.T) {
	txs := []models.Transaction{
		expense("t1", "Shopping", "100.00", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		expense("t2", "Shopping", "250.50", march),
		expense("t3", "Shopping", "75.25", time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)),
		expense("t4", "Food", "30.00", march),
		expense("t5", "Shopping", "999.00", time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)),
	}
	orders := [][]int{{0, 1, 2, 3, 4}, {4, 3, 2, 1, 0}, {2, 0, 4, 1, 3}}

	for _, order := range orders {
		ctx := context.Background()
		store := ledger.NewMockStore()
		require.NoError(t, store.SaveBudget(ctx, shoppingBudget("b1", 1000)))
		cascade := budget.NewCascade(store, decimal.Zero, nil)

		for _, i := range order {
			record(t, store, txs[i])
			_, err := cascade.ApplyTransaction(ctx, txs[i])
			require.NoError(t, err)
		}
		incremental, _ := store.Budget("b1")

		recomputed, err := cascade.Recompute(ctx, incremental)
		require.NoError(t, err)

		assert.True(t, incremental.Spent.Equal(recomputed.Spent), "order %v: %s vs %s", order, incremental.Spent, recomputed.Spent)
		assert.Equal(t, "425.75", recomputed.Spent.StringFixed(2))
	}
}

func TestRecomputeAll(t *testing.T) {
	ctx := context.Background()
	store := ledger.NewMockStore()
	stale := shoppingBudget("b1", 1000)
	stale.Spent = decimal.NewFromInt(42)
	require.NoError(t, store.SaveBudget(ctx, stale))
	require.NoError(t, store.SaveBudget(ctx, shoppingBudget("b2", 10)))
	store.BudgetErrors["b2"] = errors.New("locked")
	record(t, store, expense("t1", "Shopping", "12.00", march))

	cascade := budget.NewCascade(store, decimal.Zero, nil)
	out, err := cascade.RecomputeAll(ctx)
	require.Error(t, err)
	require.Len(t, out, 2)

	b1, _ := store.Budget("b1")
	assert.True(t, decimal.NewFromInt(12).Equal(b1.Spent))
}
