package redact

import (
	"regexp"
)

// Marker replaces credentials in log output.
const Marker = "[REDACTED]"

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Bearer tokens (three base64url segments)
	jwtPattern = regexp.MustCompile(`Bearer\s+[A-Za-z0-9-_]+\.[A-Za-z0-9-_]+\.[A-Za-z0-9-_]*`)

	// api_key=..., key=... with a long value
	apiKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|apikey|key)=[A-Za-z0-9-_]{20,}`)

	// provider-style secret keys such as sk-... or sk-ant-...
	secretKeyPattern = regexp.MustCompile(`\bsk-[A-Za-z0-9-_]{16,}`)

	// user:pass@host
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)
)

// ConnectionString removes credentials from a connection string or URL.
func ConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	out := passwordPattern.ReplaceAllString(connStr, "${1}="+Marker)
	return connStringPattern.ReplaceAllString(out, "://"+Marker+"@"+Marker)
}

// Error renders err with credentials, bearer tokens and API keys removed.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return Secrets(err.Error())
}

// Secrets removes every credential pattern from s.
func Secrets(s string) string {
	out := passwordPattern.ReplaceAllString(s, "${1}="+Marker)
	out = jwtPattern.ReplaceAllString(out, "Bearer "+Marker)
	out = apiKeyPattern.ReplaceAllString(out, "${1}="+Marker)
	out = secretKeyPattern.ReplaceAllString(out, Marker)
	return connStringPattern.ReplaceAllString(out, "://"+Marker+"@"+Marker)
}

// Truncate shortens s to maxLen bytes plus an ellipsis.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
