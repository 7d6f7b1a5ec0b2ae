// Package merchant canonicalizes free-text transaction descriptions into
// stable grouping keys.
package merchant

import (
	"regexp"
	"strings"
)

// Unknown is the key for blank descriptions.
const Unknown = "UNKNOWN"

var (
	whitespace  = regexp.MustCompile(`[\s\p{Z}]+`)
	punctuation = regexp.MustCompile(`[*#\-_:]`)
	digitRuns   = regexp.MustCompile(`\d{2,}`)
)

// Normalize uppercases text, turns the separators * # - _ : into spaces,
// removes card and reference numbers (digit runs of two or more) and
// collapses whitespace. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	s := strings.ToUpper(text)
	s = whitespace.ReplaceAllString(s, " ")
	s = punctuation.ReplaceAllString(s, " ")
	s = digitRuns.ReplaceAllString(s, "")
	s = whitespace.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return Unknown
	}
	return s
}
