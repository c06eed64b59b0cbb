package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"fjacquet/notif-ledger/internal/budget"
	"fjacquet/notif-ledger/internal/currencyutils"
	"fjacquet/notif-ledger/internal/ledger"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/parsererror"
	"fjacquet/notif-ledger/internal/pipeline"
	"fjacquet/notif-ledger/internal/store"
	"fjacquet/notif-ledger/internal/vocab"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	debitAtShopriteBody = "GHS 500.00 has been debited from your account ending 1234 at SHOPRITE"
	momoReceivedBody    = "Payment received for GHS 123.00 from JANE SMITH"
)

var msgTime = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

func testVocabulary() *store.MockVocabularyStore {
	return &store.MockVocabularyStore{
		Categories: []models.Category{
			{Name: "Shopping", Direction: models.DirectionExpense, Keywords: []string{"shoprite", "melcom", "mall"}},
			{Name: "Groceries", Direction: models.DirectionExpense, Keywords: []string{"market"}},
			{Name: "Transfers", Direction: models.DirectionIncome, Keywords: []string{"transfer"}},
			{Name: "Other Expense", Direction: models.DirectionExpense},
			{Name: "Other Income", Direction: models.DirectionIncome},
		},
		Accounts: []models.Account{
			{Name: "GCB Current", Keywords: []string{"gcb", "1234"}, Active: true},
			{Name: "MTN Wallet", Keywords: []string{"momo", "mtn"}, Active: true},
		},
	}
}

func newCache(t *testing.T, v *store.MockVocabularyStore) *vocab.Cache {
	t.Helper()
	c := vocab.NewCache(v, nil)
	_, err := c.Reload()
	require.NoError(t, err)
	return c
}

type fixture struct {
	engine *pipeline.Engine
	store  *ledger.MockStore
	alerts []models.AlertEvent
	logger *logging.MockLogger
}

func newFixture(t *testing.T, v *store.MockVocabularyStore, opts pipeline.Options, extra ...pipeline.Option) *fixture {
	t.Helper()
	f := &fixture{store: ledger.NewMockStore(), logger: logging.NewMockLogger()}
	options := append([]pipeline.Option{
		pipeline.WithCascade(budget.NewCascade(f.store, decimal.Zero, f.logger)),
		pipeline.WithNotifier(pipeline.NotifierFunc(func(_ context.Context, e models.AlertEvent) {
			f.alerts = append(f.alerts, e)
		})),
	}, extra...)
	f.engine = pipeline.NewEngine(f.store, newCache(t, v), f.logger, opts, options...)
	return f
}

func message(id, sender, body string) models.Message {
	return models.Message{ID: id, Sender: sender, Body: body, Timestamp: msgTime}
}

func TestProcess_DebitAtMerchant(t *testing.T) {
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())

	out, err := f.engine.Process(context.Background(), message("msg-1", "GCB-BANK", debitAtShopriteBody))
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, out.Status)
	require.NotNil(t, out.Transaction)

	tx := out.Transaction
	assert.True(t, decimal.RequireFromString("500.00").Equal(tx.Amount))
	assert.Equal(t, models.DirectionExpense, tx.Direction)
	assert.Equal(t, "SHOPRITE", tx.Merchant)
	assert.Equal(t, "Shopping", tx.Category)
	assert.Equal(t, "GCB Current", tx.Account)
	assert.Equal(t, models.SourceSMS, tx.Source)
	assert.Equal(t, "msg-1", tx.SourceMessageID)
	assert.True(t, tx.OccurredAt.Equal(msgTime))
	assert.Empty(t, out.Rule)

	pm, err := f.store.GetProcessedMessage(context.Background(), "msg-1")
	require.NoError(t, err)
	require.True(t, pm.Linked())
	assert.Equal(t, tx.ID, *pm.TransactionID)
}

func TestProcess_MobileMoneyTransfer(t *testing.T) {
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())

	out, err := f.engine.Process(context.Background(), message("msg-2", "MOMO", momoReceivedBody))
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, out.Status)

	tx := out.Transaction
	assert.True(t, decimal.RequireFromString("123.00").Equal(tx.Amount))
	assert.Equal(t, models.DirectionIncome, tx.Direction)
	assert.Equal(t, "JANE SMITH", tx.Merchant)
	assert.Equal(t, "Transfers", tx.Category)
	assert.Equal(t, "MTN Wallet", tx.Account)
}

func TestProcess_ResubmissionIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())
	msg := message("msg-1", "GCB-BANK", debitAtShopriteBody)

	first, err := f.engine.Process(ctx, msg)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, first.Status)

	for i := 0; i < 3; i++ {
		again, err := f.engine.Process(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusAlreadyProcessed, again.Status)
		assert.Nil(t, again.Transaction)
	}

	n, err := f.store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pm, err := f.store.GetProcessedMessage(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, first.Transaction.ID, *pm.TransactionID)
}

func TestProcess_BudgetExceeded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())
	require.NoError(t, f.store.SaveBudget(ctx, models.Budget{
		ID:        "shopping-march",
		Name:      "Shopping",
		Category:  "Shopping",
		Amount:    decimal.NewFromInt(1000),
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Spent:     decimal.Zero,
		Active:    true,
	}))

	out, err := f.engine.Process(ctx, message("msg-1", "GCB-BANK", debitAtShopriteBody))
	require.NoError(t, err)
	assert.Empty(t, out.Alerts)
	b, _ := f.store.Budget("shopping-march")
	assert.True(t, decimal.NewFromInt(500).Equal(b.Spent))

	out, err = f.engine.Process(ctx, message("msg-3", "GCB-BANK",
		"GHS 600.00 has been debited from your account ending 1234 at SHOPRITE"))
	require.NoError(t, err)
	require.Len(t, out.Alerts, 1)
	assert.Equal(t, models.AlertExceeded, out.Alerts[0].Kind)
	assert.True(t, decimal.NewFromInt(100).Equal(out.Alerts[0].Value))

	b, _ = f.store.Budget("shopping-march")
	assert.True(t, decimal.NewFromInt(1100).Equal(b.Spent))
	require.Len(t, f.alerts, 1)
	assert.Equal(t, "shopping-march", f.alerts[0].BudgetID)
}

func TestProcess_NoAmount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())

	out, err := f.engine.Process(ctx, message("msg-5", "GCB-BANK", "Thank you for banking with us"))
	require.NoError(t, err)
	assert.Equal(t, pipeline.StatusNoAmount, out.Status)
	assert.Nil(t, out.Transaction)

	n, err := f.store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestProcess_NotFinancial(t *testing.T) {
	tests := []struct {
		name           string
		recordRejected bool
	}{
		{"recorded", true},
		{"not recorded", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			opts := pipeline.DefaultOptions()
			opts.RecordRejected = tt.recordRejected
			f := newFixture(t, testVocabulary(), opts)

			out, err := f.engine.Process(ctx, message("chat-1", "Kofi", "see you at dinner"))
			require.NoError(t, err)
			assert.Equal(t, pipeline.StatusNotFinancial, out.Status)
			assert.Nil(t, out.Transaction)

			n, _ := f.store.CountTransactions(ctx)
			assert.Zero(t, n)

			pm, err := f.store.GetProcessedMessage(ctx, "chat-1")
			if !tt.recordRejected {
				assert.True(t, errors.Is(err, ledger.ErrNotFound))
				return
			}
			require.NoError(t, err)
			assert.False(t, pm.Linked())
		})
	}
}

func TestProcess_RuleOverridesHeuristics(t *testing.T) {
	v := testVocabulary()
	v.Rules = []models.ExtractionRule{
		{Name: "broken", Pattern: `(`, AmountGroup: "1", Category: "Shopping", Active: true},
		{
			Name:          "gcb-debit",
			Pattern:       `ghs (?P<amount>[\d,]+\.\d{2}) has been debited.* at (?P<shop>\w+)`,
			AmountGroup:   "amount",
			MerchantGroup: "shop",
			Category:      "Groceries",
			Account:       "Rule Account",
			Active:        true,
		},
	}
	f := newFixture(t, v, pipeline.DefaultOptions())

	out, err := f.engine.Process(context.Background(), message("msg-1", "GCB-BANK", debitAtShopriteBody))
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, out.Status)

	tx := out.Transaction
	assert.Equal(t, "Groceries", tx.Category)
	assert.Equal(t, "Rule Account", tx.Account)
	assert.Equal(t, "SHOPRITE", tx.Merchant)
	assert.Equal(t, models.DirectionExpense, tx.Direction)
	assert.Equal(t, "gcb-debit", out.Rule)
	assert.True(t, decimal.NewFromInt(500).Equal(tx.Amount))
}

func TestProcess_RuleDirectionWithSharedCategoryName(t *testing.T) {
	tests := []struct {
		name      string
		direction models.Direction
		category  string
		body      string
		expected  models.Direction
	}{
		{"rule direction wins over first same-named category", models.DirectionIncome, "Transfers", "MoMo cash in of GHS 80.00 from KOFI", models.DirectionIncome},
		{"unambiguous category decides without rule direction", "", "Shopping", "MoMo cash in of GHS 80.00 from KOFI", models.DirectionExpense},
		{"ambiguous category falls back to the text", "", "Transfers", "MoMo cash in of GHS 80.00 from KOFI. Payment received", models.DirectionIncome},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := testVocabulary()
			v.Categories = append([]models.Category{
				{Name: "Transfers", Direction: models.DirectionExpense, Keywords: []string{"sent to"}},
			}, v.Categories...)
			v.Rules = []models.ExtractionRule{{
				Name:        "momo-cash-in",
				Pattern:     `cash in of ghs ([\d,.]+)`,
				AmountGroup: "1",
				Category:    tt.category,
				Account:     "MTN Wallet",
				Direction:   tt.direction,
				Active:      true,
			}}
			f := newFixture(t, v, pipeline.DefaultOptions())

			out, err := f.engine.Process(context.Background(), message("cash-in", "MOMO", tt.body))
			require.NoError(t, err)
			require.Equal(t, pipeline.StatusCreated, out.Status)
			assert.Equal(t, tt.category, out.Transaction.Category)
			assert.Equal(t, tt.expected, out.Transaction.Direction)
			assert.True(t, decimal.NewFromInt(80).Equal(out.Transaction.Amount))
		})
	}
}

func TestProcess_InvalidRuleFallsBackToHeuristics(t *testing.T) {
	v := testVocabulary()
	v.Rules = []models.ExtractionRule{{Name: "broken", Pattern: `[`, AmountGroup: "1", Category: "Groceries", Active: true}}
	f := newFixture(t, v, pipeline.DefaultOptions())

	out, err := f.engine.Process(context.Background(), message("msg-1", "GCB-BANK", debitAtShopriteBody))
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, out.Status)
	assert.Equal(t, "Shopping", out.Transaction.Category)
}

func TestProcess_StoreUnavailable(t *testing.T) {
	ctx := context.Background()
	msg := message("msg-1", "GCB-BANK", debitAtShopriteBody)

	t.Run("duplicate check fails", func(t *testing.T) {
		f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())
		f.store.ShouldProcessError = errors.New("connection refused")

		_, err := f.engine.Process(ctx, msg)
		require.Error(t, err)
		assert.True(t, parsererror.IsStoreError(err))

		f.store.ShouldProcessError = nil
		ok, err := f.store.ShouldProcess(ctx, "msg-1")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("commit fails", func(t *testing.T) {
		f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())
		f.store.CommitError = errors.New("disk I/O error")

		_, err := f.engine.Process(ctx, msg)
		require.Error(t, err)
		assert.True(t, parsererror.IsStoreError(err))

		f.store.CommitError = nil
		out, err := f.engine.Process(ctx, msg)
		require.NoError(t, err)
		assert.Equal(t, pipeline.StatusCreated, out.Status, "retry must succeed once the store is back")
	})
}

func TestProcess_MissingID(t *testing.T) {
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())
	_, err := f.engine.Process(context.Background(), message("", "GCB-BANK", debitAtShopriteBody))
	assert.Error(t, err)
}

func TestProcess_CurrencyConversion(t *testing.T) {
	rates, err := currencyutils.NewRateTable("GHS", map[string]string{"USD": "12.5"})
	require.NoError(t, err)
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions(), pipeline.WithConverter(rates))
	ctx := context.Background()

	out, err := f.engine.Process(ctx, message("usd-1", "ECOBANK", "USD 10.00 debited at AMAZON"))
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, out.Status)
	assert.True(t, decimal.RequireFromString("125").Equal(out.Transaction.Amount), "got %s", out.Transaction.Amount)

	out, err = f.engine.Process(ctx, message("eur-1", "ECOBANK", "EUR 10.00 debited at AMAZON"))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10).Equal(out.Transaction.Amount))
	assert.True(t, f.logger.HasEntry("WARN", "Currency conversion failed; keeping original amount"))
}

func TestProcess_EmailWithHTMLBody(t *testing.T) {
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())

	out, err := f.engine.Process(context.Background(), models.Message{
		ID:        "email-1",
		Sender:    "Bolt <receipts@bolt.eu>",
		Subject:   "Your receipt from Bolt",
		Body:      "<html><body><p>You paid <b>GHS 35.40</b></p></body></html>",
		Timestamp: msgTime,
	})
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, out.Status)

	tx := out.Transaction
	assert.Equal(t, models.SourceEmail, tx.Source)
	assert.Equal(t, "Bolt", tx.Merchant)
	assert.Equal(t, models.DirectionExpense, tx.Direction)
	assert.Equal(t, "Other Expense", tx.Category)
	assert.NotContains(t, tx.Description, "<p>")
}

func TestProcess_DescriptionSanitized(t *testing.T) {
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())

	out, err := f.engine.Process(context.Background(), message("msg-9", "GCB-BANK",
		"GHS 20.00 debited from acct 0241234567 at MELCOM. Available balance: GHS 1,234.56"))
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, out.Status)
	assert.NotContains(t, out.Transaction.Description, "0241234567")
	assert.NotContains(t, out.Transaction.Description, "1,234.56")
}

func TestParse_DryRun(t *testing.T) {
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions())
	ctx := context.Background()

	parsed, status := f.engine.Parse(ctx, message("dry", "GCB-BANK", debitAtShopriteBody))
	require.Equal(t, pipeline.StatusCreated, status)
	require.NotNil(t, parsed)
	assert.Equal(t, "Shopping", parsed.Category)

	_, status = f.engine.Parse(ctx, message("dry", "Kofi", "see you at dinner"))
	assert.Equal(t, pipeline.StatusNotFinancial, status)

	ok, err := f.store.ShouldProcess(ctx, "dry")
	require.NoError(t, err)
	assert.True(t, ok)
}

// failingLedger fails Commit for selected message ids.
type failingLedger struct {
	*ledger.MockStore
	failIDs map[string]bool
}

func (l *failingLedger) Commit(ctx context.Context, msg models.ProcessedMessage, tx *models.Transaction) (ledger.CommitResult, error) {
	if l.failIDs[msg.SourceMessageID] {
		return ledger.CommitResult{}, &parsererror.StoreError{Operation: "commit", Err: errors.New("timeout")}
	}
	return l.MockStore.Commit(ctx, msg, tx)
}

func TestProcessBatch(t *testing.T) {
	ctx := context.Background()
	l := &failingLedger{MockStore: ledger.NewMockStore(), failIDs: map[string]bool{"b3": true}}
	opts := pipeline.DefaultOptions()
	opts.BatchSize = 2
	opts.BatchPause = time.Millisecond
	engine := pipeline.NewEngine(l, newCache(t, testVocabulary()), nil, opts)

	msgs := []models.Message{
		message("b1", "GCB-BANK", debitAtShopriteBody),
		message("b2", "MOMO", momoReceivedBody),
		message("b3", "GCB-BANK", "GHS 10.00 debited at KFC"),
		message("b4", "Kofi", "see you at dinner"),
		message("b1", "GCB-BANK", debitAtShopriteBody),
	}

	outcomes, err := engine.ProcessBatch(ctx, msgs)
	require.Error(t, err)
	assert.True(t, parsererror.IsStoreError(err))
	require.Len(t, outcomes, 5)

	summary := pipeline.Summarize(outcomes)
	assert.Equal(t, 2, summary[pipeline.StatusCreated])
	assert.Equal(t, 1, summary[pipeline.StatusFailed])
	assert.Equal(t, 1, summary[pipeline.StatusNotFinancial])
	assert.Equal(t, 1, summary[pipeline.StatusAlreadyProcessed])

	ok, err := l.ShouldProcess(ctx, "b3")
	require.NoError(t, err)
	assert.True(t, ok, "failed message stays eligible for retry")
}

func TestProcessBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := pipeline.NewEngine(ledger.NewMockStore(), newCache(t, testVocabulary()), nil, pipeline.DefaultOptions())

	outcomes, err := engine.ProcessBatch(ctx, []models.Message{message("c1", "GCB-BANK", debitAtShopriteBody)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Empty(t, outcomes)
}

func TestProcess_ConcurrentDuplicatesCreateOneTransaction(t *testing.T) {
	ctx := context.Background()
	db, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	engine := pipeline.NewEngine(db, newCache(t, testVocabulary()), nil, pipeline.DefaultOptions())
	msg := message("msg-1", "GCB-BANK", debitAtShopriteBody)

	var wg sync.WaitGroup
	statuses := make([]pipeline.Status, 8)
	for i := range statuses {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := engine.Process(ctx, msg)
			assert.NoError(t, err)
			statuses[i] = out.Status
		}(i)
	}
	wg.Wait()

	created := 0
	for _, s := range statuses {
		if s == pipeline.StatusCreated {
			created++
		}
	}
	assert.Equal(t, 1, created)

	n, err := db.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestProcess_ConcurrentDistinctMessagesKeepBudgetConsistent(t *testing.T) {
	ctx := context.Background()
	db, err := ledger.Open(ctx, filepath.Join(t.TempDir(), "ledger.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	b := models.Budget{
		ID:        "shopping-march",
		Name:      "Shopping",
		Category:  "Shopping",
		Amount:    decimal.NewFromInt(1_000_000),
		StartDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		Spent:     decimal.Zero,
		Active:    true,
	}
	require.NoError(t, db.SaveBudget(ctx, b))

	cascade := budget.NewCascade(db, decimal.Zero, nil)
	engine := pipeline.NewEngine(db, newCache(t, testVocabulary()), nil, pipeline.DefaultOptions(),
		pipeline.WithCascade(cascade))

	const workers = 60
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			out, err := engine.Process(ctx, message(fmt.Sprintf("debit-%d", i), "GCB-BANK", debitAtShopriteBody))
			assert.NoError(t, err)
			assert.Equal(t, pipeline.StatusCreated, out.Status)
		}(i)
	}
	wg.Wait()

	budgets, err := db.ListBudgets(ctx)
	require.NoError(t, err)
	require.Len(t, budgets, 1)
	incremental := budgets[0].Spent
	assert.True(t, decimal.NewFromInt(500*workers).Equal(incremental), "spent %s", incremental)

	recomputed, err := cascade.Recompute(ctx, budgets[0])
	require.NoError(t, err)
	assert.True(t, incremental.Equal(recomputed.Spent), "incremental %s, recomputed %s", incremental, recomputed.Spent)
}

func TestProcess_MissingTimestampUsesProcessingTime(t *testing.T) {
	ctx := context.Background()
	processed := time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)
	f := newFixture(t, testVocabulary(), pipeline.DefaultOptions(),
		pipeline.WithClock(func() time.Time { return processed }))

	created := message("undated", "GCB-BANK", debitAtShopriteBody)
	created.Timestamp = time.Time{}
	out, err := f.engine.Process(ctx, created)
	require.NoError(t, err)
	require.Equal(t, pipeline.StatusCreated, out.Status)
	assert.True(t, processed.Equal(out.Transaction.OccurredAt))

	rejected := message("undated-rejected", "GCB-BANK", "GHS balance enquiry: no amount here")
	rejected.Timestamp = time.Time{}
	_, err = f.engine.Process(ctx, rejected)
	require.NoError(t, err)

	for _, id := range []string{"undated", "undated-rejected"} {
		pm, err := f.store.GetProcessedMessage(ctx, id)
		require.NoError(t, err)
		assert.True(t, processed.Equal(pm.MessageTime), "%s stored %s", id, pm.MessageTime)
	}
}
