// Package redact masks secrets for log and config display.
package redact

import "strings"

// String keeps roughly the first and last quarter of s and masks the middle,
// so an operator can still recognize which credential is configured without
// the log leaking it.
func String(s string) string {
	head := len(s) / 4
	tail := len(s) - len(s)/4

	return s[:head] + strings.Repeat("*", tail-head) + s[tail:]
}
