// Package redact strips credentials from strings before they are logged or
// echoed back to clients. Submitted audio URLs, database URLs and recognizer
// API keys all end up inside error messages, so anything that crosses a
// process boundary goes through String or Error first.
package redact

import "regexp"

// Placeholders substituted for each class of secret.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedJWTPlaceholder        = "[REDACTED_JWT]"
)

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Rules run in order; earlier rules see the unmodified input.
var rules = []rule{
	// user:pass@ in any scheme://, covers postgres DSNs and audio URLs alike
	{
		regexp.MustCompile(`([a-zA-Z][a-zA-Z0-9+.-]*://)[^/@\s]+@`),
		"${1}" + RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedJWTPlaceholder,
	},
	// Google API keys, e.g. the Gemini key
	{
		regexp.MustCompile(`AIza[0-9A-Za-z_-]{35}`),
		RedactedKeyPlaceholder,
	},
	// signed URL and query-string secrets
	{
		regexp.MustCompile(`(?i)([?&](?:x-amz-signature|x-goog-signature|signature|sig|token|access_token|api_key|apikey|key)=)[^&\s"']+`),
		"${1}" + RedactionPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(password|passwd|pwd|secret|api[_-]?key|jwt_secret)(\s*[=:]\s*['"]?)[^'"&\s]{3,}`),
		"${1}${2}" + RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)\b(bearer)\s+[A-Za-z0-9_\-.~+/]{8,}=*`),
		"${1} " + RedactedKeyPlaceholder,
	},
}

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, r := range rules {
		result = r.pattern.ReplaceAllString(result, r.replacement)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
