// Package strings holds small slice-of-string helpers.
package strings

import (
	"strings"
)

// Dedupe trims each value, applies normalize (when non-nil), drops empties and
// keeps the first occurrence of each result. Order is preserved.
func Dedupe(values []string, normalize func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if normalize != nil {
			v = normalize(v)
		}
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// DedupeAndTrim removes duplicates and blanks.
//
//	DedupeAndTrim([]string{"  pep ", "sanctions", "pep", ""}) // ["pep", "sanctions"]
func DedupeAndTrim(values []string) []string {
	return Dedupe(values, nil)
}

// DedupeAndTrimLower is DedupeAndTrim with case folding, used for reason codes
// and consent purposes that arrive in mixed case.
func DedupeAndTrimLower(values []string) []string {
	return Dedupe(values, strings.ToLower)
}
