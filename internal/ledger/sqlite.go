package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	id TEXT PRIMARY KEY,
	amount TEXT NOT NULL,
	description TEXT NOT NULL,
	category TEXT NOT NULL,
	direction TEXT NOT NULL CHECK (direction IN ('income', 'expense')),
	source TEXT NOT NULL,
	occurred_at INTEGER NOT NULL,
	account TEXT NOT NULL DEFAULT '',
	merchant TEXT NOT NULL DEFAULT '',
	source_message_id TEXT UNIQUE,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transactions_category_time ON transactions (category, occurred_at);

CREATE TABLE IF NOT EXISTS processed_messages (
	id TEXT PRIMARY KEY,
	source_message_id TEXT NOT NULL UNIQUE,
	sender TEXT NOT NULL,
	body TEXT NOT NULL,
	message_time INTEGER NOT NULL,
	transaction_id TEXT REFERENCES transactions (id),
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS budgets (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	category TEXT NOT NULL,
	amount TEXT NOT NULL,
	start_date TEXT NOT NULL,
	end_date TEXT NOT NULL,
	spent TEXT NOT NULL DEFAULT '0',
	active INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_budgets_category ON budgets (category, active);
`

const dateLayout = "2006-01-02"

// SQLiteStore is the Store backed by an embedded SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger logging.Logger
	now    func() time.Time
}

// Open opens (or creates) the database at path and ensures the schema exists.
// Use ":memory:" for a throwaway database.
func Open(ctx context.Context, path string, logger logging.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, models.PermissionDirectory); err != nil {
				return nil, storeErr("open", fmt.Errorf("create directory %s: %w", dir, err))
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storeErr("open", err)
	}
	// SQLite allows one writer; a single connection also keeps ":memory:" databases alive.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeErr("open", err)
	}
	for _, pragma := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, storeErr("open", fmt.Errorf("%s: %w", pragma, err))
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, storeErr("migrate", fmt.Errorf("create schema: %w", err))
	}

	logger.Debug("Ledger opened", logging.F(logging.FieldFile, path))
	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ShouldProcess reports whether sourceID has no ledger entry yet.
func (s *SQLiteStore) ShouldProcess(ctx context.Context, sourceID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM processed_messages WHERE source_message_id = ?`, sourceID).Scan(&n)
	if err != nil {
		return false, storeErr("should_process", err)
	}
	return n == 0, nil
}

// Commit inserts the ledger entry, then the transaction and the link, in one database
// transaction. A ledger entry already present for the source id turns the call into a no-op.
func (s *SQLiteStore) Commit(ctx context.Context, msg models.ProcessedMessage, tx *models.Transaction) (CommitResult, error) {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now().UTC()
	}

	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return CommitResult{}, storeErr("commit", err)
	}
	defer func() { _ = dbtx.Rollback() }()

	res, err := dbtx.ExecContext(ctx, `
		INSERT INTO processed_messages (id, source_message_id, sender, body, message_time, transaction_id, created_at)
		VALUES (?, ?, ?, ?, ?, NULL, ?)
		ON CONFLICT (source_message_id) DO NOTHING`,
		msg.ID, msg.SourceMessageID, msg.Sender, msg.Body, msg.MessageTime.UnixNano(), msg.CreatedAt.UnixNano())
	if err != nil {
		return CommitResult{}, storeErr("commit", fmt.Errorf("insert ledger entry: %w", err))
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return CommitResult{}, storeErr("commit", err)
	}
	if inserted == 0 {
		return CommitResult{AlreadyProcessed: true}, nil
	}

	result := CommitResult{LedgerID: msg.ID}
	if tx != nil {
		if err := insertTransaction(ctx, dbtx, *tx); err != nil {
			return CommitResult{}, storeErr("commit", err)
		}
		if _, err := dbtx.ExecContext(ctx,
			`UPDATE processed_messages SET transaction_id = ? WHERE id = ?`, tx.ID, msg.ID); err != nil {
			return CommitResult{}, storeErr("commit", fmt.Errorf("link ledger entry: %w", err))
		}
		result.TransactionID = tx.ID
	}

	if err := dbtx.Commit(); err != nil {
		return CommitResult{}, storeErr("commit", err)
	}
	return result, nil
}

func insertTransaction(ctx context.Context, dbtx *sql.Tx, t models.Transaction) error {
	var sourceID sql.NullString
	if t.SourceMessageID != "" {
		sourceID = sql.NullString{String: t.SourceMessageID, Valid: true}
	}
	_, err := dbtx.ExecContext(ctx, `
		INSERT INTO transactions (id, amount, description, category, direction, source, occurred_at,
			account, merchant, source_message_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Amount.String(), t.Description, t.Category, string(t.Direction), string(t.Source),
		t.OccurredAt.UnixNano(), t.Account, t.Merchant, sourceID, t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetProcessedMessage returns the ledger entry for sourceID or ErrNotFound.
func (s *SQLiteStore) GetProcessedMessage(ctx context.Context, sourceID string) (models.ProcessedMessage, error) {
	var (
		pm          models.ProcessedMessage
		messageTime int64
		createdAt   int64
		txID        sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_message_id, sender, body, message_time, transaction_id, created_at
		FROM processed_messages WHERE source_message_id = ?`, sourceID).
		Scan(&pm.ID, &pm.SourceMessageID, &pm.Sender, &pm.Body, &messageTime, &txID, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ProcessedMessage{}, fmt.Errorf("processed message %s: %w", sourceID, ErrNotFound)
	}
	if err != nil {
		return models.ProcessedMessage{}, storeErr("get_processed_message", err)
	}

	pm.MessageTime = fromNanos(messageTime)
	pm.CreatedAt = fromNanos(createdAt)
	if txID.Valid {
		id := txID.String
		pm.TransactionID = &id
	}
	return pm, nil
}

// ListTransactions returns transactions ordered by occurrence time, oldest first.
func (s *SQLiteStore) ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
	}
	if !filter.Since.IsZero() {
		where = append(where, "occurred_at >= ?")
		args = append(args, filter.Since.UnixNano())
	}
	if !filter.Until.IsZero() {
		where = append(where, "occurred_at <= ?")
		args = append(args, filter.Until.UnixNano())
	}

	query := `SELECT id, amount, description, category, direction, source, occurred_at,
		account, merchant, source_message_id, created_at, updated_at FROM transactions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY occurred_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("list_transactions", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var (
			t                            models.Transaction
			amount, direction, source    string
			occurredAt, created, updated int64
			sourceID                     sql.NullString
		)
		if err := rows.Scan(&t.ID, &amount, &t.Description, &t.Category, &direction, &source, &occurredAt,
			&t.Account, &t.Merchant, &sourceID, &created, &updated); err != nil {
			return nil, storeErr("list_transactions", fmt.Errorf("scan transaction: %w", err))
		}
		if t.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, storeErr("list_transactions", fmt.Errorf("transaction %s amount: %w", t.ID, err))
		}
		t.Direction = models.Direction(direction)
		t.Source = models.Source(source)
		t.OccurredAt = fromNanos(occurredAt)
		t.CreatedAt = fromNanos(created)
		t.UpdatedAt = fromNanos(updated)
		t.SourceMessageID = sourceID.String
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list_transactions", err)
	}
	return out, nil
}

// CountTransactions returns the number of stored transactions.
func (s *SQLiteStore) CountTransactions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM transactions`).Scan(&n); err != nil {
		return 0, storeErr("count_transactions", err)
	}
	return n, nil
}

// SumExpenses adds up expense amounts of category with occurred_at in [start, end].
// Amounts are stored as decimal text, so the sum is done here rather than in SQL.
func (s *SQLiteStore) SumExpenses(ctx context.Context, category string, start, end time.Time) (decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT amount FROM transactions
		WHERE category = ? AND direction = 'expense' AND occurred_at >= ? AND occurred_at <= ?`,
		category, start.UnixNano(), end.UnixNano())
	if err != nil {
		return decimal.Zero, storeErr("sum_expenses", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, storeErr("sum_expenses", err)
		}
		v, err := decimal.NewFromString(amount)
		if err != nil {
			return decimal.Zero, storeErr("sum_expenses", fmt.Errorf("amount %q: %w", amount, err))
		}
		total = total.Add(v)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, storeErr("sum_expenses", err)
	}
	return total, nil
}

// SaveBudget inserts or replaces a budget. An empty ID gets a fresh one.
func (s *SQLiteStore) SaveBudget(ctx context.Context, b models.Budget) error {
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO budgets (id, name, category, amount, start_date, end_date, spent, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, category = excluded.category, amount = excluded.amount,
			start_date = excluded.start_date, end_date = excluded.end_date,
			spent = excluded.spent, active = excluded.active`,
		b.ID, b.Name, b.Category, b.Amount.String(),
		b.StartDate.Format(dateLayout), b.EndDate.Format(dateLayout), b.Spent.String(), b.Active)
	if err != nil {
		return storeErr("save_budget", err)
	}
	return nil
}

// ListBudgets returns all budgets ordered by start date then name.
func (s *SQLiteStore) ListBudgets(ctx context.Context) ([]models.Budget, error) {
	return s.queryBudgets(ctx, "list_budgets",
		`SELECT id, name, category, amount, start_date, end_date, spent, active FROM budgets
		ORDER BY start_date ASC, name ASC`)
}

// ActiveBudgetsFor returns the active budgets of category whose period contains at.
func (s *SQLiteStore) ActiveBudgetsFor(ctx context.Context, category string, at time.Time) ([]models.Budget, error) {
	candidates, err := s.queryBudgets(ctx, "active_budgets",
		`SELECT id, name, category, amount, start_date, end_date, spent, active FROM budgets
		WHERE category = ? AND active = 1 ORDER BY start_date ASC, name ASC`, category)
	if err != nil {
		return nil, err
	}

	matching := candidates[:0]
	for _, b := range candidates {
		if b.Contains(at) {
			matching = append(matching, b)
		}
	}
	return matching, nil
}

func (s *SQLiteStore) queryBudgets(ctx context.Context, op, query string, args ...interface{}) ([]models.Budget, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var out []models.Budget
	for rows.Next() {
		var (
			b                  models.Budget
			amount, spent      string
			startDate, endDate string
		)
		if err := rows.Scan(&b.ID, &b.Name, &b.Category, &amount, &startDate, &endDate, &spent, &b.Active); err != nil {
			return nil, storeErr(op, fmt.Errorf("scan budget: %w", err))
		}
		if b.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, storeErr(op, fmt.Errorf("budget %s amount: %w", b.ID, err))
		}
		if b.Spent, err = decimal.NewFromString(spent); err != nil {
			return nil, storeErr(op, fmt.Errorf("budget %s spent: %w", b.ID, err))
		}
		if b.StartDate, err = time.Parse(dateLayout, startDate); err != nil {
			return nil, storeErr(op, fmt.Errorf("budget %s start date: %w", b.ID, err))
		}
		if b.EndDate, err = time.Parse(dateLayout, endDate); err != nil {
			return nil, storeErr(op, fmt.Errorf("budget %s end date: %w", b.ID, err))
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}
	return out, nil
}

// UpdateBudgetSpent persists a new spent value.
func (s *SQLiteStore) UpdateBudgetSpent(ctx context.Context, id string, spent decimal.Decimal) error {
	res, err := s.db.ExecContext(ctx, `UPDATE budgets SET spent = ? WHERE id = ?`, spent.String(), id)
	if err != nil {
		return storeErr("update_budget_spent", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("update_budget_spent", err)
	}
	if n == 0 {
		return fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	return nil
}

// AddBudgetSpent reads and rewrites spent under BEGIN IMMEDIATE so concurrent writers,
// including other processes on the same file, serialize on the database write lock.
func (s *SQLiteStore) AddBudgetSpent(ctx context.Context, id string, delta decimal.Decimal) (decimal.Decimal, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return decimal.Zero, storeErr("add_budget_spent", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return decimal.Zero, storeErr("add_budget_spent", fmt.Errorf("begin: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	var raw string
	err = conn.QueryRowContext(ctx, `SELECT spent FROM budgets WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return decimal.Zero, storeErr("add_budget_spent", err)
	}
	current, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, storeErr("add_budget_spent", fmt.Errorf("budget %s spent: %w", id, err))
	}

	spent := current.Add(delta)
	if _, err := conn.ExecContext(ctx, `UPDATE budgets SET spent = ? WHERE id = ?`, spent.String(), id); err != nil {
		return decimal.Zero, storeErr("add_budget_spent", err)
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return decimal.Zero, storeErr("add_budget_spent", fmt.Errorf("commit: %w", err))
	}
	committed = true
	return spent, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
