// Package inbox reads raw notifications dropped as CSV files by an SMS or email connector.
package inbox

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fjacquet/notif-ledger/internal/dateutils"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"

	"github.com/gocarina/gocsv"
)

// Inbox reads Message rows from a CSV file or from every *.csv file of a directory.
type Inbox struct {
	Path      string
	Delimiter rune
	logger    logging.Logger
}

// New creates an Inbox rooted at path. A zero delimiter means comma.
func New(path string, delimiter rune, logger logging.Logger) *Inbox {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	if delimiter == 0 {
		delimiter = ','
	}
	return &Inbox{Path: path, Delimiter: delimiter, logger: logger}
}

// Files lists the CSV files the inbox would read, sorted by name.
func (in *Inbox) Files() ([]string, error) {
	info, err := os.Stat(in.Path)
	if err != nil {
		return nil, fmt.Errorf("inbox %s: %w", in.Path, err)
	}
	if !info.IsDir() {
		return []string{in.Path}, nil
	}

	entries, err := os.ReadDir(in.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list inbox %s: %w", in.Path, err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			continue
		}
		files = append(files, filepath.Join(in.Path, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// Read returns the messages of all inbox files in file order. Rows without an id or
// a body are skipped with a warning.
func (in *Inbox) Read() ([]models.Message, error) {
	files, err := in.Files()
	if err != nil {
		return nil, err
	}

	var out []models.Message
	for _, f := range files {
		msgs, err := in.ReadFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, msgs...)
	}
	in.logger.Debug("Inbox read",
		logging.F(logging.FieldFile, in.Path),
		logging.F(logging.FieldCount, len(out)))
	return out, nil
}

// ReadFile parses one CSV file. The header must name the columns id, sender, body and
// optionally subject, timestamp and source.
func (in *Inbox) ReadFile(path string) ([]models.Message, error) {
	file, err := os.Open(path) // #nosec G304 -- inbox paths come from configuration
	if err != nil {
		return nil, fmt.Errorf("error opening inbox file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			in.logger.WithError(err).Warn("Failed to close file", logging.F(logging.FieldFile, path))
		}
	}()

	reader := csv.NewReader(file)
	reader.Comma = in.Delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows []messageRow
	if err := gocsv.UnmarshalCSV(reader, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("error parsing inbox file %s: %w", path, err)
	}

	msgs := make([]models.Message, 0, len(rows))
	for i, row := range rows {
		line := logging.F("row", i+2)
		id := strings.TrimSpace(row.ID)
		if id == "" || strings.TrimSpace(row.Body) == "" {
			in.logger.Warn("Skipping inbox row without id or body", logging.F(logging.FieldFile, path), line)
			continue
		}
		ts, err := dateutils.ParseTimestamp(row.Timestamp)
		if err != nil {
			in.logger.WithError(err).Warn("Ignoring unparsable inbox timestamp",
				logging.F(logging.FieldFile, path), logging.F(logging.FieldMessageID, id), line)
		}
		var source models.Source
		if raw := strings.TrimSpace(row.Source); raw != "" {
			if source, err = models.ParseSource(raw); err != nil {
				in.logger.WithError(err).Warn("Ignoring unknown inbox source",
					logging.F(logging.FieldFile, path), logging.F(logging.FieldMessageID, id), line)
			}
		}
		msgs = append(msgs, models.Message{
			ID:        id,
			Sender:    strings.TrimSpace(row.Sender),
			Body:      row.Body,
			Subject:   row.Subject,
			Timestamp: ts,
			Source:    source,
		})
	}
	return msgs, nil
}

// messageRow is the on-disk shape; timestamps stay text so blank cells do not fail the file.
type messageRow struct {
	ID        string `csv:"id"`
	Sender    string `csv:"sender"`
	Body      string `csv:"body"`
	Subject   string `csv:"subject"`
	Timestamp string `csv:"timestamp"`
	Source    string `csv:"source"`
}
