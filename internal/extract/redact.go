package extract

import "regexp"

// High-risk PII patterns removed from statement text before it leaves the
// process. Only applied on the text-dominant path; image payloads carry the
// raw page pixels by necessity.
var (
	// National identity numbers: one letter, a 1/2 digit, eight digits.
	reNationalID = regexp.MustCompile(`\b[A-Z][12]\d{8}\b`)

	// Payment card numbers, with or without grouping separators.
	reCardNumber = regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{3,4}\b`)

	// Mobile phone numbers.
	rePhone = regexp.MustCompile(`\b09\d{2}[- ]?\d{3}[- ]?\d{3}\b`)
)

const redactedMark = "[REDACTED]"

// Redact replaces high-risk personally identifying substrings.
func Redact(s string) string {
	s = reNationalID.ReplaceAllString(s, redactedMark)
	s = reCardNumber.ReplaceAllString(s, redactedMark)
	s = rePhone.ReplaceAllString(s, redactedMark)
	return s
}
