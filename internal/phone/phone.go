// Package phone canonicalizes free-form phone number strings into a
// consistent dialable form.
//
// Normalization is purely syntactic: no carrier lookup, no locale
// validation. The rules favor the local-number convention of the
// configured default country (e.g. "0412 345 678" with "+61" becomes
// "+61412345678").
package phone

import (
	"strings"
)

// Normalize converts input into an E.164-like number always prefixed with
// "+", or returns the empty string when no digits are present.
func Normalize(input, defaultCountryCode string) string {
	trimmed := strings.TrimSpace(input)
	digits := digitsOnly(trimmed)
	if digits == "" {
		return ""
	}

	if strings.HasPrefix(trimmed, "+") {
		return "+" + digits
	}

	// International dialing prefix: 0061... -> +61...
	if strings.HasPrefix(trimmed, "00") {
		return "+" + digits[2:]
	}

	// Local-number convention: 04xxxxxxxx -> +614xxxxxxxx
	if strings.HasPrefix(digits, "0") && strings.HasPrefix(defaultCountryCode, "+") {
		return defaultCountryCode + digits[1:]
	}

	// Assume already country-prefixed digits.
	return "+" + digits
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
