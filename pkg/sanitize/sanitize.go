// Package sanitize normalizes client-supplied form values before anything
// else looks at them: angle brackets are stripped so stored values can never
// carry markup, and every value is cut at a fixed bound.
package sanitize

import (
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxFieldLength is the storage bound for a single form field value.
const MaxFieldLength = 500

// Field strips '<' and '>' and truncates the result to MaxFieldLength. The
// cut never splits a multi-byte rune.
func Field(value string) string {
	value = strings.ReplaceAll(value, "<", "")
	value = strings.ReplaceAll(value, ">", "")
	if len(value) > MaxFieldLength {
		cut := MaxFieldLength
		for cut > 0 && !utf8.RuneStart(value[cut]) {
			cut--
		}
		value = value[:cut]
	}
	return value
}

// Form sanitizes the first value of every submitted field, skipping the
// listed control keys.
func Form(values url.Values, skip ...string) map[string]string {
	skipSet := make(map[string]struct{}, len(skip))
	for _, k := range skip {
		skipSet[k] = struct{}{}
	}
	out := make(map[string]string, len(values))
	for key, vals := range values {
		if _, ok := skipSet[key]; ok {
			continue
		}
		if len(vals) == 0 {
			continue
		}
		out[key] = Field(vals[0])
	}
	return out
}

var paymentNumberRe = regexp.MustCompile(`^[\d](?:[\d \-]{11,17})[\d]$`)

// RedactNumber collapses anything resembling a payment card number to its
// last four digits for display. Non-matching values pass through unchanged.
func RedactNumber(value string) string {
	trimmed := strings.TrimSpace(value)
	if !paymentNumberRe.MatchString(trimmed) {
		return value
	}
	digits := make([]byte, 0, len(trimmed))
	for i := 0; i < len(trimmed); i++ {
		if trimmed[i] >= '0' && trimmed[i] <= '9' {
			digits = append(digits, trimmed[i])
		}
	}
	if len(digits) < 13 || len(digits) > 19 {
		return value
	}
	return "**** " + string(digits[len(digits)-4:])
}
