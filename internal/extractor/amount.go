package extractor

import (
	"regexp"
	"strings"

	"fjacquet/notif-ledger/internal/currencyutils"

	"github.com/shopspring/decimal"
)

// DefaultAmountCeiling rejects phone and account numbers that slip through as amounts.
var DefaultAmountCeiling = decimal.NewFromInt(100_000_000)

// Amount is a monetary value found in text. Currency is empty when the text carried no marker.
type Amount struct {
	Value    decimal.Decimal
	Currency string
}

// Codes must start a word so "takes 24" is not read as KES 24. After a number the code
// may follow directly, as in "500.00GHS".
const (
	currencyCodes    = `us\$|gh₵|ghs|ghc|usd|eur|gbp|ngn|kes|kshs|ksh|zar|ugx|tzs|xof|cfa`
	currencySymbols  = `\$|€|£|₦|₵`
	currencyPattern  = `(?P<cur>\b(?:` + currencyCodes + `)|` + currencySymbols + `)`
	trailingCurrency = `(?P<cur>` + currencyCodes + `|` + currencySymbols + `)`
	numberPattern    = `(?P<amt>\d{1,3}(?:,\d{3})+(?:\.\d{1,2})?|\d+(?:\.\d{1,2})?)`
)

var (
	currencyAffix = regexp.MustCompile(`(?i)^(?:` + currencyCodes + `|` + currencySymbols + `)\s*|\s*(?:` + currencyCodes + `|` + currencySymbols + `)$`)
	amountShape   = regexp.MustCompile(`^\d[\d\s.,']*$`)
)

// amountPatterns are tried in order; the first pattern with a valid match wins.
var amountPatterns = []*regexp.Regexp{
	// "received for GHS 123.00", "payment of USD 40"
	regexp.MustCompile(`(?:receiv|sent|paid|pay|debit|credit|transfer|purchas|withdr|deposit|refund|charg)\w*\s+(?:of|for)\s+` + currencyPattern + `\s*` + numberPattern),
	// "GHS 500.00", "$12"
	regexp.MustCompile(currencyPattern + `\s?` + numberPattern),
	// "500.00 GHS"
	regexp.MustCompile(numberPattern + `\s?` + trailingCurrency + `(?:\W|$)`),
	// "amount: 45.00"
	regexp.MustCompile(`(?:amount|amt)\.?\s*(?:of\s+)?[:=]?\s*` + currencyPattern + `?\s*` + numberPattern),
	// last resort: bare "1,234.56"
	regexp.MustCompile(`\b(?P<amt>\d{1,3}(?:,\d{3})+\.\d{2}|\d+\.\d{2})\b`),
}

// ExtractAmount returns the first valid amount in text using DefaultAmountCeiling.
func ExtractAmount(text string) (Amount, bool) {
	return ExtractAmountWithCeiling(text, DefaultAmountCeiling)
}

// ExtractAmountWithCeiling returns the first amount that is > 0 and < ceiling.
// Pattern order is the tie-break: an earlier pattern always wins over a later one.
func ExtractAmountWithCeiling(text string, ceiling decimal.Decimal) (Amount, bool) {
	lower := strings.ToLower(text)
	for _, re := range amountPatterns {
		amtIdx := re.SubexpIndex("amt")
		curIdx := re.SubexpIndex("cur")

		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			value, ok := ParseValue(m[amtIdx], ceiling)
			if !ok {
				continue
			}
			a := Amount{Value: value}
			if curIdx >= 0 {
				a.Currency = currencyutils.NormalizeCode(m[curIdx])
			}
			return a, true
		}
	}
	return Amount{}, false
}

// ParseValue parses a captured amount such as "1,234.56", "1.234,56", "1 234.00" or
// "GHS 80" and validates the range (0, ceiling). Anything but digits, separators and a
// leading or trailing currency marker is rejected.
func ParseValue(raw string, ceiling decimal.Decimal) (decimal.Decimal, bool) {
	cleaned := currencyAffix.ReplaceAllString(strings.TrimSpace(raw), "")
	if !amountShape.MatchString(cleaned) {
		return decimal.Zero, false
	}
	v, err := currencyutils.ParseAmount(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if !v.IsPositive() || v.GreaterThanOrEqual(ceiling) {
		return decimal.Zero, false
	}
	return v, true
}
