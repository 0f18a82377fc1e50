package seo

import (
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"
)

// DateLayout is ISO-8601 with a numeric UTC offset.
const DateLayout = "2006-01-02T15:04:05-07:00"

// unknownDate stands in for timestamps the page store could not supply.
const unknownDate = "0"

var stripPolicy = bluemonday.StrictPolicy()

// Clean trims s and normalises it to NFC.
func Clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// PlainText strips markup from s and collapses runs of whitespace into single spaces.
func PlainText(s string) string {
	if s == "" {
		return ""
	}
	stripped := html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(stripped), " ")
}

// Keywords joins category keys with ", " and removes every occurrence of the
// namespace prefix from the result.
func Keywords(categories []string, prefix string) string {
	joined := strings.Join(categories, ", ")
	if prefix != "" {
		joined = strings.ReplaceAll(joined, prefix, "")
	}
	return Clean(joined)
}

// FormatDate renders t with DateLayout, or "0" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return unknownDate
	}
	return t.Format(DateLayout)
}

// Present reports whether v should produce a tag. Empty values and the "0" date
// placeholder are absent.
func Present(v string) bool {
	return v != "" && v != unknownDate
}
