// Package extractor holds the heuristics that pull structured fields out of a
// normalized notification: financial filter, amount, direction, counterparty and account.
//
// All functions are pure and safe for concurrent use.
package extractor

import "strings"

var financialKeywords = []string{
	"debit", "credit", "payment", "paid", "balance", "bal:", "transfer", "transaction",
	"received", "sent", "withdraw", "deposit", "purchase", "refund", "cash in", "cash out",
	"momo", "mobile money", "txn", "trxn", "acct", "a/c", "account", "amount", "amt",
	"ghs", "gh₵", "ghc", "usd", "eur", "gbp", "ngn", "kes", "ksh",
	"$", "€", "£", "₦", "₵",
}

var trustedSenders = []string{
	"mtn", "momo", "mobilemoney", "vodafone", "telecel", "airteltigo", "airtel", "mpesa", "m-pesa",
	"ecobank", "gcb", "stanbic", "absa", "fidelity", "zenith", "uba", "calbank", "cbg",
	"access", "standard chartered", "stanchart", "republic", "prudential", "gtbank",
	"bank", "paypal", "stripe", "payoneer", "wise", "revolut",
}

// IsFinancial reports whether a message looks like a financial notification.
// False positives are fine: messages without an amount are dropped later.
func IsFinancial(text, sender string) bool {
	lower := strings.ToLower(text)
	for _, kw := range financialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	from := strings.ToLower(sender)
	for _, s := range trustedSenders {
		if strings.Contains(from, s) {
			return true
		}
	}
	return false
}
