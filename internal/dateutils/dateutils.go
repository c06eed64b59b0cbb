// Package dateutils provides the date handling shared by the inbox reader and the CLI commands.
package dateutils

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateLayoutISO is the day layout accepted on the command line and shown in listings.
const DateLayoutISO = "2006-01-02"

// TimestampLayouts are the layouts SMS and email connectors emit, tried in order.
var TimestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	DateLayoutISO,
}

var spaces = regexp.MustCompile(`\s+`)

// CleanDateString trims and collapses internal whitespace.
func CleanDateString(dateStr string) string {
	return spaces.ReplaceAllString(strings.TrimSpace(dateStr), " ")
}

// ParseTimestamp parses a connector timestamp. A blank value is not an error and yields the zero time.
func ParseTimestamp(raw string) (time.Time, error) {
	raw = CleanDateString(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range TimestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp %q", raw)
}

// ParseDay parses a YYYY-MM-DD day in UTC.
func ParseDay(dateStr string) (time.Time, error) {
	t, err := time.Parse(DateLayoutISO, CleanDateString(dateStr))
	if err != nil {
		return time.Time{}, fmt.Errorf("unable to parse date %q, expected YYYY-MM-DD", dateStr)
	}
	return t, nil
}

// ToISODate formats a time.Time value as an ISO date (YYYY-MM-DD)
func ToISODate(date time.Time) string {
	return date.Format(DateLayoutISO)
}

// StartOfMonth returns the first day of the month for a given date
func StartOfMonth(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), 1, 0, 0, 0, 0, date.Location())
}

// EndOfMonth returns the last day of the month for a given date
func EndOfMonth(date time.Time) time.Time {
	return StartOfMonth(date).AddDate(0, 1, -1)
}

// EndOfDay returns the last instant of the day that starts at date.
func EndOfDay(date time.Time) time.Time {
	return date.AddDate(0, 0, 1).Add(-time.Nanosecond)
}
