package utils

import "strings"

// NormalizeSKU returns the merge key for a raw SKU: surrounding whitespace is
// trimmed and every internal whitespace run (NBSP included) becomes one ASCII space.
// "ABC  123", "ABC 123" and " ABC 123 " all normalize to "ABC 123".
func NormalizeSKU(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
