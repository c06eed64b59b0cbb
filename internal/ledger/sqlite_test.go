package ledger_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fjacquet/notif-ledger/internal/ledger"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/parsererror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *ledger.SQLiteStore {
	t.Helper()
	s, err := ledger.Open(context.Background(), filepath.Join(t.TempDir(), "db", "ledger.db"), logging.NewMockLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testTransaction(t *testing.T, sourceID, category, amount string, at time.Time) models.Transaction {
	t.Helper()
	tx, err := models.NewTransactionBuilder().
		FromParsed(models.ParsedTransaction{
			Direction:   models.DirectionExpense,
			Category:    category,
			Description: "test " + sourceID,
			OccurredAt:  at,
		}).
		WithAmountString(amount).
		WithSource(models.SourceSMS).
		WithSourceMessage(sourceID).
		Build()
	require.NoError(t, err)
	return tx
}

func ledgerEntry(sourceID string) models.ProcessedMessage {
	return models.ProcessedMessage{
		SourceMessageID: sourceID,
		Sender:          "GCB-BANK",
		Body:            "GHS 500.00 has been debited",
		MessageTime:     time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_CommitAndDuplicate(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	ok, err := s.ShouldProcess(ctx, "msg-1")
	require.NoError(t, err)
	assert.True(t, ok)

	tx := testTransaction(t, "msg-1", "Shopping", "500.00", time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC))
	res, err := s.Commit(ctx, ledgerEntry("msg-1"), &tx)
	require.NoError(t, err)
	assert.False(t, res.AlreadyProcessed)
	assert.Equal(t, tx.ID, res.TransactionID)

	ok, err = s.ShouldProcess(ctx, "msg-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// A second commit for the same source id writes nothing.
	again := testTransaction(t, "msg-1", "Shopping", "500.00", time.Now())
	res, err = s.Commit(ctx, ledgerEntry("msg-1"), &again)
	require.NoError(t, err)
	assert.True(t, res.AlreadyProcessed)

	n, err := s.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pm, err := s.GetProcessedMessage(ctx, "msg-1")
	require.NoError(t, err)
	require.True(t, pm.Linked())
	assert.Equal(t, tx.ID, *pm.TransactionID)
	assert.Equal(t, "GCB-BANK", pm.Sender)
}

func TestSQLiteStore_CommitWithoutTransaction(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	res, err := s.Commit(ctx, ledgerEntry("rejected-1"), nil)
	require.NoError(t, err)
	assert.Empty(t, res.TransactionID)

	pm, err := s.GetProcessedMessage(ctx, "rejected-1")
	require.NoError(t, err)
	assert.False(t, pm.Linked())

	_, err = s.GetProcessedMessage(ctx, "missing")
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestSQLiteStore_ListTransactions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	day := func(d int) time.Time { return time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC) }
	for i, c := range []struct {
		id, category, amount string
		at                   time.Time
	}{
		{"a", "Shopping", "10.00", day(3)},
		{"b", "Food", "20.50", day(1)},
		{"c", "Shopping", "5.25", day(2)},
	} {
		tx := testTransaction(t, c.id, c.category, c.amount, c.at)
		_, err := s.Commit(ctx, ledgerEntry(c.id), &tx)
		require.NoError(t, err, "row %d", i)
	}

	all, err := s.ListTransactions(ctx, ledger.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "b", all[0].SourceMessageID)
	assert.True(t, decimal.RequireFromString("20.50").Equal(all[0].Amount))
	assert.Equal(t, models.DirectionExpense, all[0].Direction)
	assert.Equal(t, models.SourceSMS, all[0].Source)
	assert.True(t, all[0].OccurredAt.Equal(day(1)))

	shopping, err := s.ListTransactions(ctx, ledger.TransactionFilter{Category: "Shopping", Limit: 1})
	require.NoError(t, err)
	require.Len(t, shopping, 1)
	assert.Equal(t, "c", shopping[0].SourceMessageID)

	sum, err := s.SumExpenses(ctx, "Shopping", day(1), day(2))
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("5.25").Equal(sum), "got %s", sum)
}

func TestSQLiteStore_Budgets(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	b := models.Budget{
		ID:        "b1",
		Name:      "March shopping",
		Category:  "Shopping",
		Amount:    decimal.NewFromInt(1000),
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Spent:     decimal.Zero,
		Active:    true,
	}
	require.NoError(t, s.SaveBudget(ctx, b))
	inactive := b
	inactive.ID, inactive.Active = "b2", false
	require.NoError(t, s.SaveBudget(ctx, inactive))

	found, err := s.ActiveBudgetsFor(ctx, "Shopping", time.Date(2024, 3, 31, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "b1", found[0].ID)

	found, err = s.ActiveBudgetsFor(ctx, "Shopping", time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Empty(t, found)

	require.NoError(t, s.UpdateBudgetSpent(ctx, "b1", decimal.RequireFromString("500.00")))
	all, err := s.ListBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, got := range all {
		if got.ID == "b1" {
			assert.True(t, decimal.NewFromInt(500).Equal(got.Spent))
			assert.True(t, got.Active)
		}
	}

	err = s.UpdateBudgetSpent(ctx, "nope", decimal.Zero)
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestSQLiteStore_AddBudgetSpent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ledger.db")
	first, err := ledger.Open(ctx, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Close() })
	second, err := ledger.Open(ctx, path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	require.NoError(t, first.SaveBudget(ctx, models.Budget{
		ID:        "b1",
		Name:      "Shopping",
		Category:  "Shopping",
		Amount:    decimal.NewFromInt(1000),
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Spent:     decimal.RequireFromString("0.50"),
		Active:    true,
	}))

	spent, err := first.AddBudgetSpent(ctx, "b1", decimal.RequireFromString("10.25"))
	require.NoError(t, err)
	assert.Equal(t, "10.75", spent.StringFixed(2))

	// Two handles on one file stand in for two processes sharing the database.
	const perHandle = 40
	var wg sync.WaitGroup
	for _, s := range []*ledger.SQLiteStore{first, second} {
		for i := 0; i < perHandle; i++ {
			wg.Add(1)
			go func(s *ledger.SQLiteStore) {
				defer wg.Done()
				_, err := s.AddBudgetSpent(ctx, "b1", decimal.NewFromInt(5))
				assert.NoError(t, err)
			}(s)
		}
	}
	wg.Wait()

	all, err := second.ListBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "410.75", all[0].Spent.StringFixed(2))

	_, err = first.AddBudgetSpent(ctx, "missing", decimal.NewFromInt(1))
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestSQLiteStore_ClosedIsStoreError(t *testing.T) {
	s, err := ledger.Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.ShouldProcess(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, parsererror.IsStoreError(err))
}

func TestMockStore_ErrorFlags(t *testing.T) {
	ctx := context.Background()
	m := ledger.NewMockStore()
	m.CommitError = errors.New("connection refused")

	_, err := m.Commit(ctx, ledgerEntry("x"), nil)
	assert.True(t, parsererror.IsStoreError(err))

	ok, err := m.ShouldProcess(ctx, "x")
	require.NoError(t, err)
	assert.True(t, ok, "failed commit must not mark the message")
}
