// Package textutils turns raw notification text into the searchable surface used by the
// extractors and produces the sanitized description that gets persisted.
package textutils

import (
	"regexp"
	"strings"

	"fjacquet/notif-ledger/internal/models"

	"golang.org/x/net/html"
)

// Surface is the text a message exposes to the extractors.
type Surface struct {
	// Text is lower-cased and whitespace-collapsed; all keyword matching runs against it.
	Text string
	// Raw keeps original casing for merchant extraction and the description.
	Raw string
	// Body and Subject are the plain-text parts, original casing.
	Body    string
	Subject string
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	htmlMarker    = regexp.MustCompile(`(?i)<\s*(html|body|div|p|br|table|td|span|a)\b`)
)

// Normalize builds the Surface for msg. Email surfaces are subject + body; SMS is the body.
func Normalize(msg models.Message) Surface {
	body := msg.Body
	if LooksLikeHTML(body) {
		body = HTMLToText(body)
	}
	body = CollapseWhitespace(body)
	subject := CollapseWhitespace(msg.Subject)

	raw := body
	if subject != "" {
		raw = subject + "\n" + body
	}

	return Surface{
		Text:    strings.ToLower(CollapseWhitespace(raw)),
		Raw:     raw,
		Body:    body,
		Subject: subject,
	}
}

// CollapseWhitespace folds runs of whitespace into one space and trims the ends.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// LooksLikeHTML reports whether s carries HTML markup worth flattening.
func LooksLikeHTML(s string) bool {
	return htmlMarker.MatchString(s)
}

// HTMLToText returns the visible text of an HTML fragment. Script and style contents are dropped.
// Block-level elements are separated by spaces so adjacent cells do not run together.
func HTMLToText(s string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return CollapseWhitespace(b.String())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "head":
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skip > 0 {
					skip--
				}
			}
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}
