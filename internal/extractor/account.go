package extractor

import (
	"regexp"
	"strings"

	"fjacquet/notif-ledger/internal/models"
)

// accountFragment captures masked or partial account numbers: "acct: 1234**34", "a/c ending 5678".
var accountFragment = regexp.MustCompile(`(?i)\b(?:acct|account|a/c|card)(?:\s*(?:no|number|#))?\.?\s*(?:ending(?:\s+(?:in|with))?)?\s*[:#]?\s*([0-9x*]*\d[0-9x*]*)`)

// MatchAccount finds the account a message belongs to. Sender keywords are tried first,
// then account-number fragments and keywords in the text. Returns nil when nothing overlaps.
func MatchAccount(text, sender string, accounts []models.Account) *models.Account {
	from := strings.ToLower(sender)
	for i := range accounts {
		if !accounts[i].Active {
			continue
		}
		for _, kw := range accounts[i].Keywords {
			if kw != "" && strings.Contains(from, strings.ToLower(kw)) {
				return &accounts[i]
			}
		}
	}

	lower := strings.ToLower(text)
	for _, m := range accountFragment.FindAllStringSubmatch(lower, -1) {
		for i := range accounts {
			if !accounts[i].Active {
				continue
			}
			for _, kw := range accounts[i].Keywords {
				if fragmentMatches(m[1], kw) {
					return &accounts[i]
				}
			}
		}
	}

	for i := range accounts {
		if !accounts[i].Active {
			continue
		}
		for _, kw := range accounts[i].Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				return &accounts[i]
			}
		}
	}
	return nil
}

// fragmentMatches compares a possibly masked fragment ("1234**34") with a keyword holding
// account digits. Visible leading digits must prefix the keyword and trailing digits suffix it;
// an unmasked fragment must end the keyword.
func fragmentMatches(fragment, keyword string) bool {
	digits := onlyDigits(keyword)
	if len(digits) < 2 {
		return false
	}

	mask := strings.IndexAny(fragment, "x*")
	if mask < 0 {
		return len(fragment) >= 3 && strings.HasSuffix(digits, fragment)
	}

	lead := fragment[:mask]
	trail := fragment[strings.LastIndexAny(fragment, "x*")+1:]
	if len(lead)+len(trail) < 2 || len(digits) < len(lead)+len(trail) {
		return false
	}
	return strings.HasPrefix(digits, lead) && strings.HasSuffix(digits, trail)
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
