// Package rules implements the user-authored regex fast path. A rule that matches a message
// decides amount, merchant, category and account on its own; the heuristics never run.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"fjacquet/notif-ledger/internal/extractor"
	"fjacquet/notif-ledger/internal/logging"
	"fjacquet/notif-ledger/internal/models"
	"fjacquet/notif-ledger/internal/parsererror"

	"github.com/shopspring/decimal"
)

// Compiled is a rule with its pattern compiled and capture groups resolved.
type Compiled struct {
	Rule          models.ExtractionRule
	re            *regexp.Regexp
	amountGroup   int
	merchantGroup int // -1 when the rule has no merchant group
}

// Compile compiles rule's pattern case-insensitively and resolves its group references.
// Any failure is returned as a *parsererror.RuleCompilationError.
func Compile(rule models.ExtractionRule) (*Compiled, error) {
	re, err := regexp.Compile("(?i)" + rule.Pattern)
	if err != nil {
		return nil, &parsererror.RuleCompilationError{Rule: rule.Name, Pattern: rule.Pattern, Err: err}
	}

	amountRef := rule.AmountGroup
	if strings.TrimSpace(amountRef) == "" {
		amountRef = "1"
	}
	amountGroup, err := resolveGroup(re, amountRef)
	if err != nil {
		return nil, &parsererror.RuleCompilationError{Rule: rule.Name, Pattern: rule.Pattern, Err: fmt.Errorf("amount group: %w", err)}
	}

	merchantGroup := -1
	if strings.TrimSpace(rule.MerchantGroup) != "" {
		merchantGroup, err = resolveGroup(re, rule.MerchantGroup)
		if err != nil {
			return nil, &parsererror.RuleCompilationError{Rule: rule.Name, Pattern: rule.Pattern, Err: fmt.Errorf("merchant group: %w", err)}
		}
	}

	return &Compiled{Rule: rule, re: re, amountGroup: amountGroup, merchantGroup: merchantGroup}, nil
}

var errUnknownGroup = errors.New("unknown capture group")

// resolveGroup accepts a numeric index ("2") or a group name ("amount").
func resolveGroup(re *regexp.Regexp, ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > re.NumSubexp() {
			return 0, fmt.Errorf("%w: index %d, pattern has %d", errUnknownGroup, n, re.NumSubexp())
		}
		return n, nil
	}
	if idx := re.SubexpIndex(ref); idx > 0 {
		return idx, nil
	}
	return 0, fmt.Errorf("%w: %q", errUnknownGroup, ref)
}

// Match applies the compiled rule to text. It returns nil when the pattern does not match
// or the amount group does not hold a positive number below ceiling.
func (c *Compiled) Match(text string, ceiling decimal.Decimal) *models.ParsedTransaction {
	m := c.re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	amount, ok := extractor.ParseValue(m[c.amountGroup], ceiling)
	if !ok {
		return nil
	}

	parsed := &models.ParsedTransaction{
		Amount:      amount,
		Category:    c.Rule.Category,
		AccountName: c.Rule.Account,
		Direction:   c.Rule.Direction,
		RawText:     text,
		Rule:        c.Rule.Name,
	}
	if c.merchantGroup > 0 {
		parsed.Merchant = models.Truncate(strings.TrimSpace(m[c.merchantGroup]), models.MaxMerchantLength)
	}
	if found, ok := extractor.ExtractAmountWithCeiling(m[0], ceiling); ok {
		parsed.Currency = found.Currency
	}
	return parsed
}

// TryRule compiles rule and applies it to text in one step.
// A nil result with a nil error means the rule did not match.
func TryRule(text string, rule models.ExtractionRule) (*models.ParsedTransaction, error) {
	c, err := Compile(rule)
	if err != nil {
		return nil, err
	}
	return c.Match(text, extractor.DefaultAmountCeiling), nil
}

// Set is the compiled, ordered rule list of one vocabulary snapshot. Inactive rules and
// rules that failed to compile are left out; the failures are kept for reporting.
type Set struct {
	compiled []*Compiled
	errs     []error
}

// NewSet compiles rules in order. Compilation failures are logged and skipped.
func NewSet(rules []models.ExtractionRule, logger logging.Logger) *Set {
	if logger == nil {
		logger = logging.NewDiscard()
	}
	s := &Set{}
	for _, r := range rules {
		if !r.Active {
			continue
		}
		c, err := Compile(r)
		if err != nil {
			logger.WithError(err).Warn("Skipping extraction rule",
				logging.F(logging.FieldRule, r.Name))
			s.errs = append(s.errs, err)
			continue
		}
		s.compiled = append(s.compiled, c)
	}
	return s
}

// Len returns the number of usable rules.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.compiled)
}

// Errors returns the compilation failures found when the set was built.
func (s *Set) Errors() []error {
	if s == nil {
		return nil
	}
	return s.errs
}

// Match returns the result of the first rule that structurally matches text.
func (s *Set) Match(text string, ceiling decimal.Decimal) *models.ParsedTransaction {
	if s == nil {
		return nil
	}
	for _, c := range s.compiled {
		if parsed := c.Match(text, ceiling); parsed != nil {
			return parsed
		}
	}
	return nil
}
