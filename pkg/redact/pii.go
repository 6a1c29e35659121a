// Package redact masks personal data in document text and model traffic, and
// scrubs credentials from strings headed for logs.
package redact

import (
	"regexp"
	"strings"
	"unicode"
)

// Replacement markers.
const (
	EmailMarker  = "[REDACTED_EMAIL]"
	NumberMarker = "[REDACTED_NUMBER]"
	PhoneMarker  = "[REDACTED_PHONE]"
	NameMarker   = "[REDACTED_NAME]"
)

// minPhoneDigits keeps short numeric terms ("24 months", "$1,200") intact.
const minPhoneDigits = 9

var (
	emailPattern      = regexp.MustCompile(`(?i)\b[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,}\b`)
	longDigitsPattern = regexp.MustCompile(`\b\d{9,}\b`)
	phonePattern      = regexp.MustCompile(`\b(?:\+?\d{1,3}[\s-]?)?(?:\(?\d{2,4}\)?[\s-]?)?\d{3,4}[\s-]?\d{3,4}\b`)
	namePattern       = regexp.MustCompile(`\b([A-Z][a-z]{2,})(\s+[A-Z][a-z]{2,}){1,2}\b`)

	controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F]`)
	wideSpacePattern   = regexp.MustCompile(`[ \t]{3,}`)
)

// PII masks emails, long digit runs, phone numbers and two-to-three word
// capitalised names. It is heuristic: it reduces exposure, it does not
// guarantee it.
func PII(text string) string {
	if text == "" {
		return text
	}

	out := emailPattern.ReplaceAllString(text, EmailMarker)
	out = longDigitsPattern.ReplaceAllString(out, NumberMarker)
	out = phonePattern.ReplaceAllStringFunc(out, func(match string) string {
		if countDigits(match) < minPhoneDigits {
			return match
		}
		return PhoneMarker
	})
	out = namePattern.ReplaceAllString(out, NameMarker)
	return out
}

// Strings applies PII to every element, returning a new slice.
func Strings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = PII(s)
	}
	return out
}

// Sanitize replaces control characters (other than newline, carriage return
// and tab) with spaces, shrinks runs of three or more spaces or tabs to two
// spaces, and trims the result.
func Sanitize(text string) string {
	if text == "" {
		return text
	}
	out := controlCharPattern.ReplaceAllString(text, " ")
	out = wideSpacePattern.ReplaceAllString(out, "  ")
	return strings.TrimSpace(out)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
