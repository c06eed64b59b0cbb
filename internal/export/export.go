// Package export writes stored transactions to CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"

	"github.com/gocarina/gocsv"
)

// Row is one exported transaction. Amounts carry two decimals; times are RFC 3339 UTC.
type Row struct {
	ID              string `csv:"id"`
	OccurredAt      string `csv:"occurred_at"`
	Direction       string `csv:"direction"`
	Amount          string `csv:"amount"`
	Category        string `csv:"category"`
	Merchant        string `csv:"merchant"`
	Account         string `csv:"account"`
	Description     string `csv:"description"`
	Source          string `csv:"source"`
	SourceMessageID string `csv:"source_message_id"`
	CreatedAt       string `csv:"created_at"`
}

// NewRow flattens tx into its CSV form.
func NewRow(tx models.Transaction) Row {
	return Row{
		ID:              tx.ID,
		OccurredAt:      formatTime(tx.OccurredAt),
		Direction:       string(tx.Direction),
		Amount:          tx.Amount.StringFixed(2),
		Category:        tx.Category,
		Merchant:        tx.Merchant,
		Account:         tx.Account,
		Description:     tx.Description,
		Source:          string(tx.Source),
		SourceMessageID: tx.SourceMessageID,
		CreatedAt:       formatTime(tx.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// WriteTransactions writes the header and one row per transaction to w.
func WriteTransactions(w io.Writer, transactions []models.Transaction, delimiter rune) error {
	if transactions == nil {
		return fmt.Errorf("cannot write nil transactions to CSV")
	}
	if delimiter == 0 {
		delimiter = ','
	}

	rows := make([]Row, 0, len(transactions))
	for _, tx := range transactions {
		rows = append(rows, NewRow(tx))
	}

	csvWriter := csv.NewWriter(w)
	csvWriter.Comma = delimiter
	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		return fmt.Errorf("error writing CSV data: %w", err)
	}
	return nil
}

// WriteTransactionsToFile writes transactions to csvFile, creating its directory.
func WriteTransactionsToFile(transactions []models.Transaction, csvFile string, delimiter rune, logger logging.Logger) error {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	log := logger.WithFields(
		logging.F(logging.FieldFile, csvFile),
		logging.F(logging.FieldCount, len(transactions)))
	log.Info("Writing transactions to CSV file")

	if err := os.MkdirAll(filepath.Dir(csvFile), models.PermissionDirectory); err != nil {
		return fmt.Errorf("error creating directory: %w", err)
	}

	file, err := os.Create(csvFile) // #nosec G304 -- output path is chosen by the user
	if err != nil {
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file")
		}
	}()

	if err := WriteTransactions(file, transactions, delimiter); err != nil {
		log.WithError(err).Error("Failed to marshal transactions to CSV")
		return err
	}
	log.Info("Successfully wrote transactions to CSV file")
	return nil
}
