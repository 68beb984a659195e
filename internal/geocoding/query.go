package geocoding

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// MinQueryLength is the shortest query, in characters, that triggers a lookup.
const MinQueryLength = 3

// NormalizeQuery applies NFC, collapses runs of whitespace and trims.
// "Rue de la Paix" typed with combining accents and with precomposed
// accents normalize to the same string.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(norm.NFC.String(query)), " ")
}

// IsSearchable reports whether a normalized query is long enough to look up.
func IsSearchable(normalized string) bool {
	return utf8.RuneCountInString(normalized) >= MinQueryLength
}
