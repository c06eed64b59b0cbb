// Package currencyutils normalizes monetary strings and converts between currencies.
package currencyutils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var nonNumeric = regexp.MustCompile(`[^0-9.,'\-]`)

// ParseAmount parses a locale-formatted amount such as "1,234.56", "1.234,56" or "GHS 1 234.00".
// An empty string parses to zero.
func ParseAmount(amountStr string) (decimal.Decimal, error) {
	if strings.TrimSpace(amountStr) == "" {
		return decimal.Zero, nil
	}

	standardized := StandardizeAmount(amountStr)
	amount, err := decimal.NewFromString(standardized)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
	}
	return amount, nil
}

// StandardizeAmount strips currency markers and thousands separators so the result
// can be handed to decimal.NewFromString.
func StandardizeAmount(amountStr string) string {
	s := nonNumeric.ReplaceAllString(amountStr, "")
	s = strings.ReplaceAll(s, "'", "")

	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		parts := strings.Split(s, ",")
		if len(parts) == 2 && len(parts[1]) <= 2 {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasDot && strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	return s
}

// FormatAmount renders amount with two decimals, prefixed by the currency code.
func FormatAmount(amount decimal.Decimal, currency string) string {
	formatted := amount.StringFixed(2)
	if currency == "" {
		return formatted
	}
	return strings.ToUpper(currency) + " " + formatted
}

// IsPositive checks if an amount is strictly greater than zero.
func IsPositive(amount decimal.Decimal) bool {
	return amount.GreaterThan(decimal.Zero)
}

// symbolCodes maps currency symbols and local spellings found in notifications to ISO codes.
var symbolCodes = map[string]string{
	"$":    "USD",
	"us$":  "USD",
	"€":    "EUR",
	"£":    "GBP",
	"₦":    "NGN",
	"₵":    "GHS",
	"gh₵":  "GHS",
	"ghc":  "GHS",
	"ghs":  "GHS",
	"ksh":  "KES",
	"kshs": "KES",
	"cfa":  "XOF",
}

// NormalizeCode maps a symbol or code seen in text ("gh₵", "$", "ksh") to an ISO 4217 code.
func NormalizeCode(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if key == "" {
		return ""
	}
	if code, ok := symbolCodes[key]; ok {
		return code
	}
	return strings.ToUpper(key)
}
