package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"fjacquet/notif-ledger/internal/models"
)

// merchantPatterns run against original-case text; the capture is the tail to tokenize.
var merchantPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:desc|description|narration|merchant|payee|beneficiary)\s*[:\-]\s*([^\n]+)`),
	regexp.MustCompile(`(?i)\bto\s+([^\n]+)`),
	regexp.MustCompile(`(?i)\bfrom\s+([^\n]+)`),
	regexp.MustCompile(`(?i)\bat\s+([^\n]+)`),
}

var merchantStopWords = map[string]bool{
	"on": true, "ref": true, "reference": true, "for": true, "via": true, "with": true,
	"at": true, "to": true, "from": true, "and": true, "balance": true, "bal": true,
	"avail": true, "available": true, "is": true, "was": true, "has": true, "have": true,
	"trans": true, "txn": true, "id": true, "date": true, "new": true, "current": true,
	"fee": true, "charge": true, "of": true, "in": true, "using": true, "by": true,
	"your": true, "please": true, "thank": true, "transaction": true,
}

// Candidates starting with these words describe the user's own account, not a counterparty.
var merchantRejectPrefixes = map[string]bool{
	"your": true, "my": true, "the": true, "you": true, "account": true, "acct": true,
	"a/c": true, "wallet": true, "this": true,
}

var senderMetadataSuffixes = []string{
	"noreply", "no-reply", "donotreply", "do-not-reply", "alerts", "alert", "notifications",
	"notification", "notify", "info", "sms", "mail", "service", "services",
}

// ExtractMerchant finds the counterparty: contextual patterns on the body, then the
// subject, then the sender name. An empty result is a normal outcome.
func ExtractMerchant(body, subject, sender string) string {
	for _, text := range []string{body, subject} {
		if m := merchantFromText(text); m != "" {
			return models.Truncate(m, models.MaxMerchantLength)
		}
	}
	return models.Truncate(MerchantFromSender(sender), models.MaxMerchantLength)
}

func merchantFromText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	for _, re := range merchantPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			if name := takeName(m[1]); name != "" {
				return name
			}
		}
	}
	return ""
}

// takeName keeps leading name-like words and stops at stop words, amounts and punctuation.
func takeName(tail string) string {
	var words []string
	for _, raw := range strings.Fields(tail) {
		w := strings.TrimRight(raw, ".,;:!)")
		closes := w != raw
		key := strings.ToLower(w)

		if w == "" || merchantStopWords[key] || isAmountToken(key) {
			break
		}
		if len(words) == 0 && (merchantRejectPrefixes[key] || !startsWithLetter(w)) {
			return ""
		}
		words = append(words, w)
		if closes {
			break
		}
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func isAmountToken(w string) bool {
	if _, ok := currencyTokens[w]; ok {
		return true
	}
	for _, r := range w {
		if !unicode.IsDigit(r) && r != ',' && r != '.' && r != '-' && r != '/' {
			return false
		}
	}
	return true
}

var currencyTokens = map[string]struct{}{
	"ghs": {}, "gh₵": {}, "ghc": {}, "usd": {}, "eur": {}, "gbp": {}, "ngn": {}, "kes": {}, "ksh": {},
}

func startsWithLetter(s string) bool {
	for _, r := range s {
		return unicode.IsLetter(r)
	}
	return false
}

// MerchantFromSender turns a sender into a display name: the part before "<",
// else the local part before "@" with metadata suffixes such as "-alerts" removed.
func MerchantFromSender(sender string) string {
	s := strings.TrimSpace(sender)
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "<"); i >= 0 {
		display := strings.Trim(strings.TrimSpace(s[:i]), `"'`)
		if display != "" {
			return display
		}
		s = strings.Trim(s[i+1:], "<> ")
	}

	domain := ""
	if i := strings.Index(s, "@"); i >= 0 {
		s, domain = s[:i], s[i+1:]
	}

	local := stripMetadataSuffix(s)
	if local == "" && domain != "" {
		local = strings.SplitN(domain, ".", 2)[0]
	}
	return strings.TrimSpace(local)
}

func stripMetadataSuffix(s string) string {
	for {
		lower := strings.ToLower(s)
		trimmed := false
		for _, suffix := range senderMetadataSuffixes {
			if lower == suffix {
				return ""
			}
			for _, sep := range []string{"-", "_", "."} {
				if strings.HasSuffix(lower, sep+suffix) {
					s = s[:len(s)-len(sep+suffix)]
					trimmed = true
					break
				}
			}
			if trimmed {
				break
			}
		}
		if !trimmed {
			return s
		}
	}
}
