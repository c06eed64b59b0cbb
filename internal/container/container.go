// Package container provides dependency injection for notif-ledger.
// It centralizes the creation and wiring of all application dependencies,
// making them explicit and testable.
package container

import (
	"context"
	"fmt"
	"strings"

	"fjacquet/notif-ledger/internal/budget"
	"fjacquet/notif-ledger/internal/categorizer"
	"fjacquet/notif-ledger/internal/config"
	"fjacquet/notif-ledger/internal/currencyutils"
	"fjacquet/notif-ledger/internal/inbox"
	"fjacquet/notif-ledger/internal/ledger"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/pipeline"
	"fjacquet/notif-ledger/internal/store"
	"fjacquet/notif-ledger/internal/vocab"
)

// Container holds all application dependencies and provides methods to access them.
//
// Container is immutable after creation - all fields are private and can only
// be accessed through getter methods.
type Container struct {
	logger      logging.Logger
	config      *config.Config
	vocabStore  *store.VocabularyStore
	vocabulary  *vocab.Cache
	ledger      *ledger.SQLiteStore
	categorizer *categorizer.Categorizer
	cascade     *budget.Cascade
	engine      *pipeline.Engine
	inbox       *inbox.Inbox
}

// Option customizes container construction.
type Option func(*options)

type options struct {
	logger   logging.Logger
	notifier pipeline.Notifier
}

// WithLogger replaces the logger built from the configuration.
func WithLogger(l logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithNotifier routes budget alerts somewhere other than the log.
func WithNotifier(n pipeline.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// NewContainer creates and wires all application dependencies.
// It opens the ledger and loads the vocabulary once; Close releases the ledger.
func NewContainer(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// Create logger first as it's needed by other components
	logger := o.logger
	if logger == nil {
		logger = logging.NewLogrusAdapter(cfg.Log.Level, cfg.Log.Format)
	}

	vocabStore := store.NewVocabularyStore(
		cfg.Vocabulary.CategoriesFile,
		cfg.Vocabulary.AccountsFile,
		cfg.Vocabulary.RulesFile,
		logger,
	)
	cache := vocab.NewCache(vocabStore, logger)
	if _, err := cache.Reload(); err != nil {
		return nil, fmt.Errorf("failed to load vocabulary: %w", err)
	}

	converter, err := newConverter(cfg)
	if err != nil {
		return nil, err
	}

	db, err := ledger.Open(ctx, cfg.Store.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}

	cat := categorizer.NewCategorizer(logger)
	cascade := budget.NewCascade(db, cfg.WarningRatio(), logger)

	engineOpts := []pipeline.Option{
		pipeline.WithCategorizer(cat),
		pipeline.WithCascade(cascade),
		pipeline.WithConverter(converter),
	}
	if o.notifier != nil {
		engineOpts = append(engineOpts, pipeline.WithNotifier(o.notifier))
	}
	engine := pipeline.NewEngine(db, cache, logger, pipeline.Options{
		BaseCurrency:   cfg.Pipeline.BaseCurrency,
		AmountCeiling:  cfg.AmountCeiling(),
		BatchSize:      cfg.Pipeline.BatchSize,
		BatchPause:     cfg.BatchPause(),
		RecordRejected: cfg.Pipeline.RecordRejected,
	}, engineOpts...)

	logger.Info("Container initialized successfully",
		logging.F(logging.FieldFile, cfg.Store.Path),
		logging.F(logging.FieldCurrency, cfg.Pipeline.BaseCurrency))

	return &Container{
		logger:      logger,
		config:      cfg,
		vocabStore:  vocabStore,
		vocabulary:  cache,
		ledger:      db,
		categorizer: cat,
		cascade:     cascade,
		engine:      engine,
		inbox:       inbox.New(cfg.Inbox.Path, cfg.Delimiter(), logger),
	}, nil
}

// newConverter builds a rate table from pipeline.rates, or the identity converter when none are set.
func newConverter(cfg *config.Config) (currencyutils.Converter, error) {
	if len(cfg.Pipeline.Rates) == 0 {
		return currencyutils.IdentityConverter{}, nil
	}
	rates, err := currencyutils.NewRateTable(strings.ToUpper(cfg.Pipeline.BaseCurrency), cfg.Pipeline.Rates)
	if err != nil {
		return nil, fmt.Errorf("invalid currency rates: %w", err)
	}
	return rates, nil
}

// NewVocabularyWatcher returns a watcher that reloads the vocabulary when its files change.
// Files that do not exist yet are watched by name so creating them triggers a reload.
func (c *Container) NewVocabularyWatcher() *vocab.Watcher {
	var files []string
	for _, f := range []string{c.vocabStore.CategoriesFile, c.vocabStore.AccountsFile, c.vocabStore.RulesFile} {
		if p, err := c.vocabStore.FindConfigFile(f); err == nil {
			f = p
		}
		files = append(files, f)
	}
	return vocab.NewWatcher(c.vocabulary, files, c.config.Debounce(), c.logger)
}

// GetLogger returns the container's logger instance.
func (c *Container) GetLogger() logging.Logger {
	return c.logger
}

// GetConfig returns the container's configuration instance.
func (c *Container) GetConfig() *config.Config {
	return c.config
}

// GetVocabulary returns the vocabulary snapshot cache.
func (c *Container) GetVocabulary() *vocab.Cache {
	return c.vocabulary
}

// GetLedger returns the SQLite ledger.
func (c *Container) GetLedger() *ledger.SQLiteStore {
	return c.ledger
}

// GetCategorizer returns the container's categorizer instance.
func (c *Container) GetCategorizer() *categorizer.Categorizer {
	return c.categorizer
}

// GetCascade returns the budget cascade.
func (c *Container) GetCascade() *budget.Cascade {
	return c.cascade
}

// GetEngine returns the extraction engine.
func (c *Container) GetEngine() *pipeline.Engine {
	return c.engine
}

// GetInbox returns the configured message inbox.
func (c *Container) GetInbox() *inbox.Inbox {
	return c.inbox
}

// Close performs cleanup of container resources.
func (c *Container) Close() error {
	if err := c.ledger.Close(); err != nil {
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	c.logger.Info("Container closed")
	return nil
}
