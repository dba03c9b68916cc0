// Package strings provides string helpers for multi-value CSV cells and
// request normalization.
package strings

import (
	"strings"
)

// DedupeAndTrim removes duplicates and empty strings from a slice,
// trimming whitespace from each element. Order is preserved.
//
//	DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "})
//	// []string{"foo", "bar"}
func DedupeAndTrim(values []string) []string {
	return dedupe(values, strings.TrimSpace)
}

// DedupeAndTrimLower is DedupeAndTrim with lowercasing; used for emails.
func DedupeAndTrimLower(values []string) []string {
	return dedupe(values, func(s string) string {
		return strings.ToLower(strings.TrimSpace(s))
	})
}

func dedupe(values []string, norm func(string) string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))

	for _, v := range values {
		n := norm(v)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			result = append(result, n)
		}
	}

	return result
}

// SplitMultiValue splits a newline separated CSV cell ("a@x.com\nb@x.com")
// into trimmed, de-duplicated values. CRLF line endings are accepted.
func SplitMultiValue(cell string) []string {
	cell = strings.ReplaceAll(cell, "\r\n", "\n")
	return DedupeAndTrim(strings.Split(cell, "\n"))
}

// JoinMultiValue renders values into a single newline separated cell.
func JoinMultiValue(values []string) string {
	return strings.Join(values, "\n")
}
