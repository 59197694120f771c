// Package logging redacts credentials before values reach the log stream.
// The engine handles two kinds of secrets: warehouse connection passwords
// and completion-service API keys, either of which can surface inside
// connection strings, error messages or logged SQL.
package logging

import "regexp"

// Redacted replaces any credential found by the sanitizers.
const Redacted = "[REDACTED]"

// MaxQueryLogLength caps SQL text in log output.
const MaxQueryLogLength = 120

var (
	// password=..., pwd=..., pass=... up to the next delimiter
	credentialRe = regexp.MustCompile(`(?i)(password|pwd|pass|secret)=[^;&\s]+`)

	// user:pass@host inside a URL
	userInfoRe = regexp.MustCompile(`://[^:/\s]+:[^@\s]+@[^/\s]+`)

	// api_key=..., apikey=..., token=... with a plausible key length
	apiKeyRe = regexp.MustCompile(`(?i)(api[_-]?key|apikey|token)=[A-Za-z0-9._-]{16,}`)

	// Authorization header values echoed back in client errors
	bearerRe = regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9._-]+`)
)

// SanitizeConnectionString strips the password from a warehouse URL or
// key=value connection string so it can be logged at startup.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	out := credentialRe.ReplaceAllString(connStr, "${1}="+Redacted)
	return userInfoRe.ReplaceAllString(out, "://"+Redacted+"@"+Redacted)
}

// SanitizeError renders an error for logging with any embedded
// credentials removed. Pool creation and completion-client errors often
// echo the DSN or the Authorization header back verbatim.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	out := credentialRe.ReplaceAllString(err.Error(), "${1}="+Redacted)
	out = userInfoRe.ReplaceAllString(out, "://"+Redacted+"@"+Redacted)
	out = apiKeyRe.ReplaceAllString(out, "${1}="+Redacted)
	return bearerRe.ReplaceAllString(out, "Bearer "+Redacted)
}

// SanitizeQuery truncates SQL text for logging and scrubs anything that
// looks like an inlined credential.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}
	out := query
	if len(out) > MaxQueryLogLength {
		out = out[:MaxQueryLogLength] + "..."
	}
	out = credentialRe.ReplaceAllString(out, "${1}="+Redacted)
	return apiKeyRe.ReplaceAllString(out, "${1}="+Redacted)
}
