package service

import (
	"regexp"
	"strings"
)

var (
	whitespaceRegex = regexp.MustCompile(`\s+`)
	nonDigitRegex   = regexp.MustCompile(`\D+`)
)

// normalizeEmail lowercases and trims the provided email.
func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// normalizeMobile keeps the digits of a mobile number. Ten digit numbers are
// national and get the +91 prefix.
func normalizeMobile(mobile string) string {
	digits := nonDigitRegex.ReplaceAllString(strings.TrimSpace(mobile), "")
	digits = strings.TrimPrefix(digits, "00")
	switch {
	case digits == "":
		return ""
	case len(digits) == 10:
		return "+91" + digits
	default:
		return "+" + digits
	}
}

// sanitizeName collapses whitespace and trims the result.
func sanitizeName(value string) string {
	value = whitespaceRegex.ReplaceAllString(value, " ")
	return strings.TrimSpace(value)
}
