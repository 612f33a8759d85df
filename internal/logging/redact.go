package logging

import "strings"

// RedactedValue replaces the value of every sensitive context field.
const RedactedValue = "[REDACTED]"

// Matched anywhere in the lowercased key.
var sensitiveSubstrings = []string{
	"password",
	"token",
	"secret",
	"apikey",
	"api_key",
	"authorization",
	"auth",
	"key",
	"credential",
}

// Known non-secret fields that would otherwise match a substring above.
var allowedKeys = map[string]bool{
	"authmethod":  true,
	"auth_method": true,
}

// IsSensitiveKey reports whether a context key names a value that must never reach the log sink.
func IsSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	if allowedKeys[lower] {
		return false
	}
	for _, s := range sensitiveSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Redact returns a copy of fields with sensitive values replaced. The input is never modified.
func Redact(fields Fields) Fields {
	if fields == nil {
		return Fields{}
	}

	out := make(Fields, len(fields))
	for k, v := range fields {
		if IsSensitiveKey(k) {
			out[k] = RedactedValue
			continue
		}
		out[k] = v
	}
	return out
}
