// Package store loads the user vocabulary (categories, accounts and extraction rules) from YAML files.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/parsererror"

	"gopkg.in/yaml.v3"
)

// Default vocabulary file names.
const (
	DefaultCategoriesFile = "categories.yaml"
	DefaultAccountsFile   = "accounts.yaml"
	DefaultRulesFile      = "rules.yaml"
)

// VocabularyStore reads the vocabulary files. Missing files yield empty vocabularies.
type VocabularyStore struct {
	CategoriesFile string
	AccountsFile   string
	RulesFile      string
	logger         logging.Logger
}

// NewVocabularyStore creates a store for the given files; empty names fall back to the defaults.
func NewVocabularyStore(categoriesFile, accountsFile, rulesFile string, logger logging.Logger) *VocabularyStore {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	return &VocabularyStore{
		CategoriesFile: orDefault(categoriesFile, DefaultCategoriesFile),
		AccountsFile:   orDefault(accountsFile, DefaultAccountsFile),
		RulesFile:      orDefault(rulesFile, DefaultRulesFile),
		logger:         logger,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// FindConfigFile looks for a vocabulary file in standard locations
func (s *VocabularyStore) FindConfigFile(filename string) (string, error) {
	if filepath.IsAbs(filename) {
		if _, err := os.Stat(filename); err == nil {
			return filename, nil
		}
		return "", os.ErrNotExist
	}

	locations := []string{
		filename,
		filepath.Join("config", filename),
		filepath.Join("database", filename),
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location, nil
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		configPath := filepath.Join(homeDir, ".config", "notif-ledger", filename)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
	}

	return "", os.ErrNotExist
}

// Paths returns the resolved paths of the vocabulary files that currently exist.
func (s *VocabularyStore) Paths() []string {
	var paths []string
	for _, f := range []string{s.CategoriesFile, s.AccountsFile, s.RulesFile} {
		if p, err := s.FindConfigFile(f); err == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// readFile returns nil data and no error when the file does not exist.
func (s *VocabularyStore) readFile(filename, kind string) ([]byte, string, error) {
	path, err := s.FindConfigFile(filename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Vocabulary file not found", logging.F(logging.FieldFile, filename), logging.F("kind", kind))
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("error resolving %s file: %w", kind, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("error reading %s file: %w", kind, err)
	}
	return data, path, nil
}

type rawCategory struct {
	Name      string   `yaml:"name"`
	Direction string   `yaml:"direction"`
	Keywords  []string `yaml:"keywords"`
	Color     string   `yaml:"color"`
	Icon      string   `yaml:"icon"`
}

type rawAccount struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	Active   *bool    `yaml:"active"`
}

type rawRule struct {
	Name          string `yaml:"name"`
	Pattern       string `yaml:"pattern"`
	AmountGroup   string `yaml:"amount_group"`
	MerchantGroup string `yaml:"merchant_group"`
	Category      string `yaml:"category"`
	Account       string `yaml:"account"`
	Direction     string `yaml:"direction"`
	Active        *bool  `yaml:"active"`
}

// decodeList accepts both a top-level "<key>: [...]" mapping and a bare list.
func decodeList[T any](data []byte, key string) ([]T, error) {
	var wrapped map[string][]T
	if err := yaml.Unmarshal(data, &wrapped); err == nil {
		if items, ok := wrapped[key]; ok {
			return items, nil
		}
	}

	var items []T
	if err := yaml.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// LoadCategories loads and validates categories in file order.
func (s *VocabularyStore) LoadCategories() ([]models.Category, error) {
	data, path, err := s.readFile(s.CategoriesFile, "categories")
	if err != nil || data == nil {
		return []models.Category{}, err
	}

	raw, err := decodeList[rawCategory](data, "categories")
	if err != nil {
		return nil, fmt.Errorf("error parsing categories file: %w", err)
	}

	categories := make([]models.Category, 0, len(raw))
	for i, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, &parsererror.ValidationError{Source: path, Reason: fmt.Sprintf("category #%d has no name", i+1)}
		}
		direction, err := models.ParseDirection(r.Direction)
		if err != nil {
			return nil, &parsererror.ValidationError{Source: path, Reason: fmt.Sprintf("category %q: %v", name, err)}
		}
		categories = append(categories, models.Category{
			Name:      name,
			Direction: direction,
			Keywords:  normalizeKeywords(r.Keywords),
			Color:     r.Color,
			Icon:      r.Icon,
		})
	}

	s.logger.Debug("Loaded categories", logging.F(logging.FieldCount, len(categories)), logging.F(logging.FieldFile, path))
	return categories, nil
}

// LoadAccounts loads accounts; "active" defaults to true when omitted.
func (s *VocabularyStore) LoadAccounts() ([]models.Account, error) {
	data, path, err := s.readFile(s.AccountsFile, "accounts")
	if err != nil || data == nil {
		return []models.Account{}, err
	}

	raw, err := decodeList[rawAccount](data, "accounts")
	if err != nil {
		return nil, fmt.Errorf("error parsing accounts file: %w", err)
	}

	accounts := make([]models.Account, 0, len(raw))
	for i, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			return nil, &parsererror.ValidationError{Source: path, Reason: fmt.Sprintf("account #%d has no name", i+1)}
		}
		accounts = append(accounts, models.Account{
			Name:     name,
			Keywords: normalizeKeywords(r.Keywords),
			Active:   r.Active == nil || *r.Active,
		})
	}

	s.logger.Debug("Loaded accounts", logging.F(logging.FieldCount, len(accounts)), logging.F(logging.FieldFile, path))
	return accounts, nil
}

// LoadRules loads extraction rules in file order. Patterns are not compiled here.
func (s *VocabularyStore) LoadRules() ([]models.ExtractionRule, error) {
	data, path, err := s.readFile(s.RulesFile, "rules")
	if err != nil || data == nil {
		return []models.ExtractionRule{}, err
	}

	raw, err := decodeList[rawRule](data, "rules")
	if err != nil {
		return nil, fmt.Errorf("error parsing rules file: %w", err)
	}

	rules := make([]models.ExtractionRule, 0, len(raw))
	for i, r := range raw {
		name := strings.TrimSpace(r.Name)
		if name == "" {
			name = fmt.Sprintf("rule-%d", i+1)
		}
		if strings.TrimSpace(r.Pattern) == "" {
			return nil, &parsererror.ValidationError{Source: path, Reason: fmt.Sprintf("rule %q has no pattern", name)}
		}
		if strings.TrimSpace(r.Category) == "" {
			return nil, &parsererror.ValidationError{Source: path, Reason: fmt.Sprintf("rule %q has no category", name)}
		}

		var direction models.Direction
		if strings.TrimSpace(r.Direction) != "" {
			direction, err = models.ParseDirection(r.Direction)
			if err != nil {
				return nil, &parsererror.ValidationError{Source: path, Reason: fmt.Sprintf("rule %q: %v", name, err)}
			}
		}

		rules = append(rules, models.ExtractionRule{
			Name:          name,
			Pattern:       r.Pattern,
			AmountGroup:   strings.TrimSpace(r.AmountGroup),
			MerchantGroup: strings.TrimSpace(r.MerchantGroup),
			Category:      strings.TrimSpace(r.Category),
			Account:       strings.TrimSpace(r.Account),
			Direction:     direction,
			Active:        r.Active == nil || *r.Active,
		})
	}

	s.logger.Debug("Loaded extraction rules", logging.F(logging.FieldCount, len(rules)), logging.F(logging.FieldFile, path))
	return rules, nil
}

func normalizeKeywords(in []string) []string {
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
