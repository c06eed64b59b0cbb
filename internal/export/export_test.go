package export

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fjacquet/notif-ledger/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTransactions() []models.Transaction {
	return []models.Transaction{
		{
			ID:              "tx-1",
			Amount:          decimal.NewFromInt(500),
			Description:     "GHS 500.00 has been debited from your account ending 1234 at SHOPRITE",
			Category:        "Shopping",
			Direction:       models.DirectionExpense,
			Source:          models.SourceSMS,
			OccurredAt:      time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
			Account:         "GCB Current",
			Merchant:        "SHOPRITE",
			SourceMessageID: "msg-1",
		},
		{
			ID:         "tx-2",
			Amount:     decimal.RequireFromString("123.5"),
			Category:   "Transfers",
			Direction:  models.DirectionIncome,
			Source:     models.SourceManual,
			OccurredAt: time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestWriteTransactions(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, sampleTransactions(), ','))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,occurred_at,direction,amount,category,merchant,account,description,source,source_message_id,created_at", lines[0])
	assert.Contains(t, lines[1], "tx-1,2024-03-10T09:30:00Z,expense,500.00,Shopping,SHOPRITE,GCB Current,")
	assert.Contains(t, lines[2], ",123.50,")
}

func TestWriteTransactions_Delimiter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTransactions(&buf, sampleTransactions()[:1], ';'))
	assert.True(t, strings.HasPrefix(buf.String(), "id;occurred_at;"))
}

func TestWriteTransactions_Nil(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteTransactions(&buf, nil, ','))
}

func TestWriteTransactionsToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "nested", "tx.csv")
	require.NoError(t, WriteTransactionsToFile(sampleTransactions(), out, ',', nil))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg-1")
}
