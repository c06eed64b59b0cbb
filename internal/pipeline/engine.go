// Package pipeline turns notifications into transactions: normalize, filter, guard against
// duplicates, extract (rule fast path or heuristics), convert, sanitize, commit, cascade budgets.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fjacquet/notif-ledger/internal/categorizer"
	"fjacquet/notif-ledger/internal/currencyutils"
	"fjacquet/notif-ledger/internal/extractor"
	"fjacquet/notif-ledger/internal/ledger"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/textutils"
	"fjacquet/notif-ledger/internal/vocab"

	"github.com/shopspring/decimal"
)

// Ledger is the persistence the engine writes through.
type Ledger interface {
	ShouldProcess(ctx context.Context, sourceID string) (bool, error)
	Commit(ctx context.Context, msg models.ProcessedMessage, tx *models.Transaction) (ledger.CommitResult, error)
}

// SnapshotSource hands out the current vocabulary snapshot.
type SnapshotSource interface {
	Snapshot() *vocab.Snapshot
}

// BudgetApplier updates budgets for a committed transaction.
type BudgetApplier interface {
	ApplyTransaction(ctx context.Context, tx models.Transaction) ([]models.AlertEvent, error)
}

// Options tune the engine.
type Options struct {
	BaseCurrency  string
	AmountCeiling decimal.Decimal
	BatchSize     int
	BatchPause    time.Duration
	// RecordRejected writes an unlinked ledger entry for messages that produced no
	// transaction so later polls skip them.
	RecordRejected bool
}

// DefaultOptions returns the engine defaults.
func DefaultOptions() Options {
	return Options{
		BaseCurrency:   "GHS",
		AmountCeiling:  extractor.DefaultAmountCeiling,
		BatchSize:      50,
		BatchPause:     0,
		RecordRejected: true,
	}
}

// Engine runs the extraction pipeline. It is safe for concurrent use as long as its
// collaborators are; the ledger's unique source id makes concurrent runs over the same
// message write at most one transaction, and budget spent is incremented inside the store.
type Engine struct {
	ledger      Ledger
	snapshots   SnapshotSource
	categorizer *categorizer.Categorizer
	cascade     BudgetApplier
	converter   currencyutils.Converter
	notifier    Notifier
	logger      logging.Logger
	opts        Options
	now         func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithCascade sets the budget cascade. Without one, budgets are not touched.
func WithCascade(c BudgetApplier) Option {
	return func(e *Engine) { e.cascade = c }
}

// WithConverter sets the currency converter.
func WithConverter(c currencyutils.Converter) Option {
	return func(e *Engine) { e.converter = c }
}

// WithNotifier sets where budget alerts go.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithCategorizer replaces the default categorizer.
func WithCategorizer(c *categorizer.Categorizer) Option {
	return func(e *Engine) { e.categorizer = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an Engine.
func NewEngine(store Ledger, snapshots SnapshotSource, logger logging.Logger, opts Options, options ...Option) *Engine {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	if !opts.AmountCeiling.IsPositive() {
		opts.AmountCeiling = extractor.DefaultAmountCeiling
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	opts.BaseCurrency = strings.ToUpper(strings.TrimSpace(opts.BaseCurrency))

	e := &Engine{
		ledger:    store,
		snapshots: snapshots,
		converter: currencyutils.IdentityConverter{},
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
	for _, o := range options {
		o(e)
	}
	if e.categorizer == nil {
		e.categorizer = categorizer.NewCategorizer(logger)
	}
	if e.notifier == nil {
		e.notifier = NewLogNotifier(logger)
	}
	return e
}

// Parse runs the extraction stages on msg without touching the store. It returns the
// parsed transaction, or nil with StatusNotFinancial / StatusNoAmount.
func (e *Engine) Parse(ctx context.Context, msg models.Message) (*models.ParsedTransaction, Status) {
	surface := textutils.Normalize(msg)
	if !extractor.IsFinancial(surface.Text, msg.Sender) {
		return nil, StatusNotFinancial
	}
	return e.extract(ctx, msg, surface, e.snapshots.Snapshot())
}

func (e *Engine) extract(ctx context.Context, msg models.Message, surface textutils.Surface, snap *vocab.Snapshot) (*models.ParsedTransaction, Status) {
	parsed := snap.Compiled.Match(surface.Raw, e.opts.AmountCeiling)
	if parsed != nil {
		parsed.Direction = e.ruleDirection(parsed, surface, snap)
	} else {
		amount, ok := extractor.ExtractAmountWithCeiling(surface.Text, e.opts.AmountCeiling)
		if !ok {
			return nil, StatusNoAmount
		}

		direction := extractor.ClassifyDirection(surface.Text)
		merchant := extractor.ExtractMerchant(surface.Body, surface.Subject, msg.Sender)
		parsed = &models.ParsedTransaction{
			Amount:    amount.Value,
			Currency:  amount.Currency,
			Merchant:  merchant,
			Direction: direction,
			Category:  e.categorizer.Classify(ctx, surface.Text, merchant, direction, snap.Categories).Name,
		}
		if account := extractor.MatchAccount(surface.Text, msg.Sender, snap.Accounts); account != nil {
			parsed.AccountName = account.Name
		}
	}

	parsed.Description = textutils.Sanitize(surface.Raw)
	parsed.RawText = surface.Raw
	parsed.OccurredAt = msg.Timestamp
	if parsed.OccurredAt.IsZero() {
		parsed.OccurredAt = e.now()
	}
	e.convert(msg, parsed)
	return parsed, StatusCreated
}

// ruleDirection prefers the rule's own direction. Without one, the rule's category decides
// when its name belongs to a single direction in the vocabulary; otherwise the text does.
func (e *Engine) ruleDirection(parsed *models.ParsedTransaction, surface textutils.Surface, snap *vocab.Snapshot) models.Direction {
	if parsed.Direction.Valid() {
		return parsed.Direction
	}
	if d, ok := models.CategoryDirection(snap.Categories, parsed.Category); ok {
		return d
	}
	return extractor.ClassifyDirection(surface.Text)
}

// convert rewrites the amount into the base currency. Failures keep the original amount.
func (e *Engine) convert(msg models.Message, parsed *models.ParsedTransaction) {
	if parsed.Currency == "" || e.opts.BaseCurrency == "" || strings.EqualFold(parsed.Currency, e.opts.BaseCurrency) {
		return
	}

	converted, err := e.converter.Convert(parsed.Amount, parsed.Currency, e.opts.BaseCurrency)
	if err != nil || !converted.IsPositive() {
		if err == nil {
			err = fmt.Errorf("converted amount %s is not positive", converted)
		}
		e.logger.WithError(err).Warn("Currency conversion failed; keeping original amount",
			logging.F(logging.FieldMessageID, msg.ID),
			logging.F(logging.FieldCurrency, parsed.Currency))
		return
	}
	parsed.Amount = converted
	parsed.Currency = e.opts.BaseCurrency
}

// Process runs the full pipeline for one message.
//
// Not-financial, amount-less and duplicate messages return a soft Outcome with a nil error.
// Store failures are returned as errors and leave the message unmarked so a later run retries it.
func (e *Engine) Process(ctx context.Context, msg models.Message) (Outcome, error) {
	out := Outcome{MessageID: msg.ID}
	if strings.TrimSpace(msg.ID) == "" {
		return out, errors.New("message id is required")
	}
	log := e.logger.WithFields(
		logging.F(logging.FieldMessageID, msg.ID),
		logging.F(logging.FieldSender, msg.Sender))

	surface := textutils.Normalize(msg)
	if !extractor.IsFinancial(surface.Text, msg.Sender) {
		return e.reject(ctx, log, msg, StatusNotFinancial)
	}

	fresh, err := e.ledger.ShouldProcess(ctx, msg.ID)
	if err != nil {
		return out, fmt.Errorf("duplicate check for message %s: %w", msg.ID, err)
	}
	if !fresh {
		log.Debug("Message already processed")
		out.Status = StatusAlreadyProcessed
		return out, nil
	}

	parsed, status := e.extract(ctx, msg, surface, e.snapshots.Snapshot())
	if parsed == nil {
		return e.reject(ctx, log, msg, status)
	}

	tx, err := models.NewTransactionBuilder().
		WithClock(e.now).
		FromParsed(*parsed).
		WithSource(msg.SourceTag()).
		WithSourceMessage(msg.ID).
		Build()
	if err != nil {
		return out, fmt.Errorf("failed to build transaction for message %s: %w", msg.ID, err)
	}

	res, err := e.ledger.Commit(ctx, e.ledgerEntry(msg), &tx)
	if err != nil {
		return out, fmt.Errorf("failed to commit message %s: %w", msg.ID, err)
	}
	if res.AlreadyProcessed {
		log.Debug("Message committed concurrently by another run")
		out.Status = StatusAlreadyProcessed
		return out, nil
	}

	out.Status = StatusCreated
	out.Transaction = &tx
	out.Rule = parsed.Rule
	log.Info("Transaction created",
		logging.F(logging.FieldTransactionID, tx.ID),
		logging.F(logging.FieldAmount, tx.Amount.String()),
		logging.F(logging.FieldDirection, tx.Direction),
		logging.F(logging.FieldCategory, tx.Category),
		logging.F(logging.FieldMerchant, tx.Merchant),
		logging.F(logging.FieldRule, parsed.Rule))

	out.Alerts = e.applyBudgets(ctx, log, tx)
	return out, nil
}

func (e *Engine) applyBudgets(ctx context.Context, log logging.Logger, tx models.Transaction) []models.AlertEvent {
	if e.cascade == nil {
		return nil
	}
	alerts, err := e.cascade.ApplyTransaction(ctx, tx)
	if err != nil {
		log.WithError(err).Warn("Budget cascade failed", logging.F(logging.FieldTransactionID, tx.ID))
		return nil
	}
	for _, alert := range alerts {
		e.notifier.Notify(ctx, alert)
	}
	return alerts
}

// reject records an unlinked ledger entry when configured and returns the soft outcome.
func (e *Engine) reject(ctx context.Context, log logging.Logger, msg models.Message, status Status) (Outcome, error) {
	out := Outcome{MessageID: msg.ID, Status: status}
	log.Debug("Message rejected", logging.F(logging.FieldReason, string(status)))
	if !e.opts.RecordRejected {
		return out, nil
	}
	if _, err := e.ledger.Commit(ctx, e.ledgerEntry(msg), nil); err != nil {
		return out, fmt.Errorf("failed to record rejected message %s: %w", msg.ID, err)
	}
	return out, nil
}

// ledgerEntry builds the processed-message row. A message without a usable timestamp is
// recorded with the time it was processed, as its transaction is.
func (e *Engine) ledgerEntry(msg models.Message) models.ProcessedMessage {
	now := e.now().UTC()
	messageTime := msg.Timestamp
	if messageTime.IsZero() {
		messageTime = now
	}
	return models.ProcessedMessage{
		SourceMessageID: msg.ID,
		Sender:          msg.Sender,
		Body:            textutils.Sanitize(msg.Body),
		MessageTime:     messageTime,
		CreatedAt:       now,
	}
}

// ProcessBatch processes msgs in fixed-size chunks, pausing between chunks when configured.
// Cancellation is honoured between chunks; everything committed before that stays committed.
// Per-message errors are joined and do not stop the batch.
func (e *Engine) ProcessBatch(ctx context.Context, msgs []models.Message) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(msgs))
	var errs []error
	start := e.now()

	for i := 0; i < len(msgs); i += e.opts.BatchSize {
		if i > 0 && e.opts.BatchPause > 0 {
			timer := time.NewTimer(e.opts.BatchPause)
			select {
			case <-ctx.Done():
				timer.Stop()
			case <-timer.C:
			}
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, fmt.Errorf("batch cancelled after %d of %d messages: %w", i, len(msgs), err))
			break
		}

		end := min(i+e.opts.BatchSize, len(msgs))
		for _, msg := range msgs[i:end] {
			out, err := e.Process(ctx, msg)
			if err != nil {
				e.logger.WithError(err).Error("Failed to process message", logging.F(logging.FieldMessageID, msg.ID))
				errs = append(errs, err)
				out = Outcome{MessageID: msg.ID, Status: StatusFailed}
			}
			outcomes = append(outcomes, out)
		}
		e.logger.Debug("Batch chunk processed",
			logging.F(logging.FieldBatch, i/e.opts.BatchSize),
			logging.F(logging.FieldCount, end-i))
	}

	summary := Summarize(outcomes)
	e.logger.Info("Batch processed",
		logging.F(logging.FieldCount, len(outcomes)),
		logging.F("created", summary[StatusCreated]),
		logging.F("duplicates", summary[StatusAlreadyProcessed]),
		logging.F("failed", summary[StatusFailed]),
		logging.F(logging.FieldDuration, e.now().Sub(start).Milliseconds()))
	return outcomes, errors.Join(errs...)
}
