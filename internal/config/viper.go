// Package config provides Viper-based hierarchical configuration management
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NOTIF_STORE_PATH.
const EnvPrefix = "NOTIF"

// LogConfig selects the log level and formatter.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// StoreConfig locates the SQLite ledger.
type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// VocabularyConfig locates the YAML vocabulary and controls hot reload.
type VocabularyConfig struct {
	CategoriesFile string `mapstructure:"categories_file" yaml:"categories_file"`
	AccountsFile   string `mapstructure:"accounts_file" yaml:"accounts_file"`
	RulesFile      string `mapstructure:"rules_file" yaml:"rules_file"`
	Watch          bool   `mapstructure:"watch" yaml:"watch"`
	DebounceMS     int    `mapstructure:"debounce_ms" yaml:"debounce_ms"`
}

// PipelineConfig tunes the extraction engine.
type PipelineConfig struct {
	BaseCurrency   string            `mapstructure:"base_currency" yaml:"base_currency"`
	AmountCeiling  string            `mapstructure:"amount_ceiling" yaml:"amount_ceiling"`
	BatchSize      int               `mapstructure:"batch_size" yaml:"batch_size"`
	BatchPauseMS   int               `mapstructure:"batch_pause_ms" yaml:"batch_pause_ms"`
	RecordRejected bool              `mapstructure:"record_rejected" yaml:"record_rejected"`
	Rates          map[string]string `mapstructure:"rates" yaml:"rates"`
}

// BudgetConfig holds the alert threshold.
type BudgetConfig struct {
	WarningRatio string `mapstructure:"warning_ratio" yaml:"warning_ratio"`
}

// SchedulerConfig holds the poll schedule.
type SchedulerConfig struct {
	Spec string `mapstructure:"spec" yaml:"spec"`
}

// InboxConfig locates the CSV message drop.
type InboxConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// CSVConfig is shared by the inbox reader and the exporter.
type CSVConfig struct {
	Delimiter string `mapstructure:"delimiter" yaml:"delimiter"`
}

// Config represents the complete application configuration
type Config struct {
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	Store      StoreConfig      `mapstructure:"store" yaml:"store"`
	Vocabulary VocabularyConfig `mapstructure:"vocabulary" yaml:"vocabulary"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline" yaml:"pipeline"`
	Budget     BudgetConfig     `mapstructure:"budget" yaml:"budget"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler" yaml:"scheduler"`
	Inbox      InboxConfig      `mapstructure:"inbox" yaml:"inbox"`
	CSV        CSVConfig        `mapstructure:"csv" yaml:"csv"`
}

// InitializeConfig initializes Viper configuration with hierarchical loading
func InitializeConfig() (*Config, error) {
	return InitializeConfigFile("")
}

// InitializeConfigFile is InitializeConfig with an explicit config file. An empty path
// searches $HOME/.notif-ledger, ./.notif-ledger and the working directory.
func InitializeConfigFile(path string) (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME/.notif-ledger")
		v.AddConfigPath(".notif-ledger")
		v.AddConfigPath(".")
	}

	// 3. Environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional unless named explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file %s: %w", v.ConfigFileUsed(), err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 5. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("store.path", "notif-ledger.db")

	v.SetDefault("vocabulary.categories_file", "categories.yaml")
	v.SetDefault("vocabulary.accounts_file", "accounts.yaml")
	v.SetDefault("vocabulary.rules_file", "rules.yaml")
	v.SetDefault("vocabulary.watch", true)
	v.SetDefault("vocabulary.debounce_ms", 250)

	v.SetDefault("pipeline.base_currency", "GHS")
	v.SetDefault("pipeline.amount_ceiling", "100000000")
	v.SetDefault("pipeline.batch_size", 50)
	v.SetDefault("pipeline.batch_pause_ms", 0)
	v.SetDefault("pipeline.record_rejected", true)
	v.SetDefault("pipeline.rates", map[string]string{})

	v.SetDefault("budget.warning_ratio", "0.80")

	v.SetDefault("scheduler.spec", "@every 1m")
	v.SetDefault("inbox.path", "inbox")
	v.SetDefault("csv.delimiter", ",")
}

// validateConfig validates the configuration values
func validateConfig(config *Config) error {
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if len([]rune(config.CSV.Delimiter)) != 1 {
		return fmt.Errorf("CSV delimiter must be a single character, got: %s", config.CSV.Delimiter)
	}

	if strings.TrimSpace(config.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}

	if len(strings.TrimSpace(config.Pipeline.BaseCurrency)) != 3 {
		return fmt.Errorf("pipeline.base_currency must be a 3-letter code, got: %s", config.Pipeline.BaseCurrency)
	}

	if ceiling, err := decimal.NewFromString(config.Pipeline.AmountCeiling); err != nil || !ceiling.IsPositive() {
		return fmt.Errorf("pipeline.amount_ceiling must be a positive number, got: %s", config.Pipeline.AmountCeiling)
	}

	if config.Pipeline.BatchSize < 1 || config.Pipeline.BatchSize > 10000 {
		return fmt.Errorf("pipeline.batch_size must be between 1 and 10000, got: %d", config.Pipeline.BatchSize)
	}

	if config.Pipeline.BatchPauseMS < 0 {
		return fmt.Errorf("pipeline.batch_pause_ms must not be negative, got: %d", config.Pipeline.BatchPauseMS)
	}

	for code, raw := range config.Pipeline.Rates {
		if rate, err := decimal.NewFromString(raw); err != nil || !rate.IsPositive() {
			return fmt.Errorf("pipeline.rates.%s must be a positive number, got: %s", code, raw)
		}
	}

	ratio, err := decimal.NewFromString(config.Budget.WarningRatio)
	if err != nil || !ratio.IsPositive() || ratio.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("budget.warning_ratio must be in (0, 1], got: %s", config.Budget.WarningRatio)
	}

	if _, err := cron.ParseStandard(config.Scheduler.Spec); err != nil {
		return fmt.Errorf("scheduler.spec is invalid: %w", err)
	}

	if config.Vocabulary.DebounceMS < 0 {
		return fmt.Errorf("vocabulary.debounce_ms must not be negative, got: %d", config.Vocabulary.DebounceMS)
	}

	return nil
}

// AmountCeiling returns the parsed extraction ceiling.
func (c *Config) AmountCeiling() decimal.Decimal {
	d, err := decimal.NewFromString(c.Pipeline.AmountCeiling)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// WarningRatio returns the parsed budget warning ratio.
func (c *Config) WarningRatio() decimal.Decimal {
	d, err := decimal.NewFromString(c.Budget.WarningRatio)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Delimiter returns the CSV delimiter as a rune.
func (c *Config) Delimiter() rune {
	r := []rune(c.CSV.Delimiter)
	if len(r) == 0 {
		return ','
	}
	return r[0]
}

// BatchPause returns the pause between batch chunks.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.Pipeline.BatchPauseMS) * time.Millisecond
}

// Debounce returns the vocabulary reload debounce.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Vocabulary.DebounceMS) * time.Millisecond
}
