// Package redact masks matched values so reports never carry a full secret.
package redact

// Placeholder replaces values too short to show any part of.
const Placeholder = "***REDACTED***"

// Threshold is the length (in characters) a value must exceed before a
// prefix and suffix are revealed.
const Threshold = 20

const (
	keepPrefix = 8
	keepSuffix = 4
)

// Mask returns the first 8 and last 4 characters of values longer than
// Threshold, and Placeholder otherwise. It counts runes, not bytes.
func Mask(s string) string {
	r := []rune(s)
	if len(r) <= Threshold {
		return Placeholder
	}
	return string(r[:keepPrefix]) + "..." + string(r[len(r)-keepSuffix:])
}
