package extraction

import (
	"regexp"
	"strings"
	"unicode/utf8"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/ekaya-inc/deal-triage/pkg/redact"
)

// MaxSnippetLength bounds a citation excerpt, in characters.
const MaxSnippetLength = 200

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanSnippet collapses whitespace, truncates, and redacts a citation
// excerpt. It returns false when the excerpt is empty or carries markup that
// libinjection recognises as XSS, since snippets are rendered in the UI and
// the export.
func cleanSnippet(s string) (string, bool) {
	s = strings.ToValidUTF8(s, "")
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	s = truncateRunes(s, MaxSnippetLength)
	s = redact.PII(s)
	if s == "" || libinjection.IsXSS(s) {
		return "", false
	}
	return s, true
}

// cleanSnippets applies cleanSnippet to every excerpt, dropping rejected ones.
func cleanSnippets(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if cleaned, ok := cleanSnippet(s); ok {
			out = append(out, cleaned)
		}
	}
	return out
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

// contextSnippet returns the text around text[start:end] with pad characters
// of context on each side.
func contextSnippet(text string, start, end, pad int) string {
	from := max(0, start-pad)
	to := min(len(text), end+pad)
	return text[from:to]
}
