// Package vocab owns the in-memory vocabulary (categories, accounts, rules) as immutable snapshots.
package vocab

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/rules"
)

// Loader reads the vocabulary from its backing store.
type Loader interface {
	LoadCategories() ([]models.Category, error)
	LoadAccounts() ([]models.Account, error)
	LoadRules() ([]models.ExtractionRule, error)
}

// Snapshot is one consistent view of the vocabulary. It is never modified after
// construction; a reload builds a new one.
type Snapshot struct {
	Categories []models.Category
	Accounts   []models.Account
	Rules      []models.ExtractionRule
	// Compiled holds the active rules with their patterns compiled for this snapshot.
	Compiled *rules.Set
	LoadedAt time.Time
}

// NewSnapshot builds a snapshot and compiles its rules.
func NewSnapshot(categories []models.Category, accounts []models.Account, ruleList []models.ExtractionRule, logger logging.Logger) *Snapshot {
	return &Snapshot{
		Categories: categories,
		Accounts:   accounts,
		Rules:      ruleList,
		Compiled:   rules.NewSet(ruleList, logger),
		LoadedAt:   time.Now(),
	}
}

var emptySnapshot = &Snapshot{Compiled: &rules.Set{}}

// Cache holds the current snapshot behind an atomic pointer. Reads never block;
// reloads are serialized.
type Cache struct {
	loader  Loader
	logger  logging.Logger
	current atomic.Pointer[Snapshot]

	mu        sync.Mutex
	listeners []func(*Snapshot)
}

// NewCache creates a Cache. Nothing is loaded until Reload is called.
func NewCache(loader Loader, logger logging.Logger) *Cache {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &Cache{loader: loader, logger: logger}
}

// Snapshot returns the current snapshot, or an empty one before the first successful load.
func (c *Cache) Snapshot() *Snapshot {
	if s := c.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// OnReload registers fn to be called with every newly installed snapshot.
func (c *Cache) OnReload(fn func(*Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Reload re-reads the vocabulary and swaps it in. On error the previous snapshot stays current.
func (c *Cache) Reload() (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	categories, err := c.loader.LoadCategories()
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	accounts, err := c.loader.LoadAccounts()
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	ruleList, err := c.loader.LoadRules()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	snap := NewSnapshot(categories, accounts, ruleList, c.logger)
	c.current.Store(snap)

	c.logger.Info("Vocabulary loaded",
		logging.F("categories", len(categories)),
		logging.F("accounts", len(accounts)),
		logging.F("rules", snap.Compiled.Len()),
		logging.F("rule_errors", len(snap.Compiled.Errors())))

	for _, fn := range c.listeners {
		fn(snap)
	}
	return snap, nil
}
