package textutils

import (
	"regexp"

	"fjacquet/notif-ledger/internal/models"
)

const currencyMarker = `(?:\b(?:ghs|gh₵|ghc|usd|eur|gbp|ngn|kes|ksh|zar)|[$€£₦₵])`

type replacement struct {
	re   *regexp.Regexp
	with string
}

// Applied in order: card groups must be masked before the long-digit rule sees them.
var sanitizers = []replacement{
	{regexp.MustCompile(`\b\d{4}[ \-]\d{4}(?:[ \-]\d{4}){0,2}\b`), "****-****"},
	{regexp.MustCompile(`\b\d{10,}\b`), "**********"},
	{regexp.MustCompile(`(?i)\bref(?:erence)?\b\.?\s*(?:number|num|no|#)?\.?\s*[:#]?\s*[a-z0-9][a-z0-9\-/]*`), ""},
	{regexp.MustCompile(`(?i)\b(?:(?:available|avail\.?|actual|current|new)\s+)?bal(?:ance)?\b\.?\s*(?:is\s*)?[:=]?\s*` + currencyMarker + `?\s*-?[\d,]+(?:\.\d{1,2})?`), ""},
}

// Sanitize masks card and account numbers, drops reference and balance tokens,
// collapses whitespace and caps the result at 200 characters.
func Sanitize(text string) string {
	out := text
	for _, r := range sanitizers {
		out = r.re.ReplaceAllString(out, r.with)
	}
	out = CollapseWhitespace(out)
	return models.Truncate(out, models.MaxDescriptionLength)
}
