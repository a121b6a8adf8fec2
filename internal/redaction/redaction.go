// Package redaction masks PII in free text before it reaches any display
// surface. Detection is a deterministic ordered rule list, not a model.
package redaction

import (
	"regexp"
	"unicode/utf8"

	"github.com/unionhall/triage-service/internal/domain"
	apperrors "github.com/unionhall/triage-service/pkg/util/errorutil"
)

// Category names appear verbatim inside redaction markers.
const (
	CategoryName    = "NAME"
	CategoryID      = "ID"
	CategoryAddress = "ADDRESS"
	CategoryPhone   = "PHONE"
	CategoryEmail   = "EMAIL"
)

// Result bundles the masked text with its per-category counts.
type Result struct {
	RedactedText string
	Summary      domain.RedactionSummary
}

type rule struct {
	category string
	pattern  *regexp.Regexp
	count    func(*domain.RedactionSummary, int)
}

// Rules run in priority order. Narrow, structured patterns (emails, ids,
// phones, addresses) run before the broad capitalized-name pattern so a span is
// consumed exactly once, and every marker is written in a form no rule can
// re-match: patterns either require an "@", a digit, or a lowercase letter,
// and markers contain none of those.
var rules = []rule{
	{
		category: CategoryEmail,
		pattern:  regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`),
		count:    func(s *domain.RedactionSummary, n int) { s.Emails += n },
	},
	{
		category: CategoryID,
		pattern:  regexp.MustCompile(`\b(?:UM-?\d{4,}|\d{3}-\d{2}-\d{4})\b`),
		count:    func(s *domain.RedactionSummary, n int) { s.IDs += n },
	},
	{
		category: CategoryPhone,
		pattern:  regexp.MustCompile(`\+?\d[\d\-\s().]{7,}\d`),
		count:    func(s *domain.RedactionSummary, n int) { s.Phones += n },
	},
	{
		category: CategoryAddress,
		pattern:  regexp.MustCompile(`\b\d{1,5}\s+[A-Z][a-z]+(?:\s[A-Z][a-z]+)*\s(?:Street|St|Avenue|Ave|Road|Rd|Boulevard|Blvd|Lane|Ln|Drive|Dr)\b\.?`),
		count:    func(s *domain.RedactionSummary, n int) { s.Addresses += n },
	},
	{
		category: CategoryName,
		pattern:  regexp.MustCompile(`\b[A-Z][a-z]+\s[A-Z][a-z]+(?:\s[A-Z][a-z]+)?\b`),
		count:    func(s *domain.RedactionSummary, n int) { s.Names += n },
	},
}

var markerPattern = regexp.MustCompile(`\[REDACTED: [A-Z]+\]`)

// Marker returns the inline placeholder for a category.
func Marker(category string) string {
	return "[REDACTED: " + category + "]"
}

// Redact masks every detected PII span in text with a category marker and
// returns the masked text plus a count summary. Redact is idempotent: running
// it over its own output yields the same text and an all-zero summary.
func Redact(text string) (Result, error) {
	if !utf8.ValidString(text) {
		return Result{}, apperrors.NewInvalidInput("text is not valid UTF-8", nil)
	}

	out := text
	var summary domain.RedactionSummary
	for _, r := range rules {
		matches := len(r.pattern.FindAllStringIndex(out, -1))
		if matches == 0 {
			continue
		}
		r.count(&summary, matches)
		out = r.pattern.ReplaceAllString(out, Marker(r.category))
	}

	return Result{RedactedText: out, Summary: summary}, nil
}

// CountMarkers returns the number of redaction markers present in text.
func CountMarkers(text string) int {
	return len(markerPattern.FindAllStringIndex(text, -1))
}
