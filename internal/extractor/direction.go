package extractor

import (
	"regexp"
	"strings"

	"fjacquet/notif-ledger/internal/models"
)

type indicator struct {
	phrase    string
	direction models.Direction
}

// strongIndicators is a priority list: the first phrase present decides the direction.
// Debit confirmations often also say "credited to <beneficiary>", so "debited" sits above "credited".
var strongIndicators = []indicator{
	{"has sent you", models.DirectionIncome},
	{"you have received", models.DirectionIncome},
	{"payment received", models.DirectionIncome},
	{"received from", models.DirectionIncome},
	{"you have sent", models.DirectionExpense},
	{"you have paid", models.DirectionExpense},
	{"payment sent", models.DirectionExpense},
	{"payment made", models.DirectionExpense},
	{"debited", models.DirectionExpense},
	{"credited", models.DirectionIncome},
	{"withdrawn", models.DirectionExpense},
	{"withdrawal", models.DirectionExpense},
	{"deposit of", models.DirectionIncome},
	{"cash in", models.DirectionIncome},
	{"cash out", models.DirectionExpense},
	{"purchase", models.DirectionExpense},
	{"paid to", models.DirectionExpense},
	{"transfer to", models.DirectionExpense},
	{"refund", models.DirectionIncome},
}

var (
	incomeKeywords  = wordMatchers("credit", "receiv", "deposit", "salary", "incoming", "reversal", "refund", "earned", "inflow")
	expenseKeywords = wordMatchers("debit", "paid", "payment", "sent", "purchase", "withdraw", "charge", "fee", "bill", "spent", "transfer", "pos", "airtime", "outflow")
)

// wordMatchers builds prefix-anchored matchers so "debit" matches "debited" but not "undebited".
func wordMatchers(words ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		out = append(out, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)))
	}
	return out
}

// ClassifyDirection decides income vs expense. Strong phrases are checked first in
// priority order; otherwise general keywords are counted and ties go to expense.
func ClassifyDirection(text string) models.Direction {
	lower := strings.ToLower(text)
	for _, ind := range strongIndicators {
		if strings.Contains(lower, ind.phrase) {
			return ind.direction
		}
	}

	income := countMatches(lower, incomeKeywords)
	expense := countMatches(lower, expenseKeywords)
	if income > expense {
		return models.DirectionIncome
	}
	return models.DirectionExpense
}

func countMatches(text string, matchers []*regexp.Regexp) int {
	n := 0
	for _, re := range matchers {
		if re.MatchString(text) {
			n++
		}
	}
	return n
}
