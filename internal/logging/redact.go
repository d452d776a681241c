package logging

import (
	"regexp"
	"strings"
)

// RedactedValue replaces anything that looks like a credential.
const RedactedValue = "[REDACTED]"

// Key fragments that mark a setting or field as secret.
var sensitiveKeys = []string{"password", "secret", "token", "authorization", "credential", "private_key"}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+[a-z0-9._-]{20,}`),
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]{8,}\.[a-zA-Z0-9_-]+`), // JWT
	regexp.MustCompile(`\$2[abxy]?\$\d{2}\$[./a-zA-Z0-9]{53}`),                    // bcrypt
	regexp.MustCompile(`(?i)(secret|password|token)[=:]["']?[a-z0-9+/=_-]{8,}["']?`),
}

// Redact masks tokens, password hashes and inline credentials in s.
func Redact(s string) string {
	for _, p := range secretPatterns {
		s = p.ReplaceAllString(s, RedactedValue)
	}
	return s
}

// IsSensitiveField reports whether a key names a secret, e.g. "jwt_secret".
func IsSensitiveField(name string) bool {
	name = strings.ToLower(name)
	for _, k := range sensitiveKeys {
		if strings.Contains(name, k) {
			return true
		}
	}
	return false
}

// RedactMap returns a deep copy of settings safe to print. Values under
// sensitive keys are masked unless empty; other strings pass through Redact.
func RedactMap(settings map[string]any) map[string]any {
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		out[k] = redactValue(IsSensitiveField(k), v)
	}
	return out
}

func redactValue(sensitive bool, v any) any {
	switch value := v.(type) {
	case map[string]any:
		return RedactMap(value)
	case []any:
		items := make([]any, len(value))
		for i, item := range value {
			items[i] = redactValue(sensitive, item)
		}
		return items
	case string:
		if !sensitive {
			return Redact(value)
		}
		if value == "" {
			return ""
		}
		return RedactedValue
	case nil:
		return nil
	default:
		if sensitive {
			return RedactedValue
		}
		return v
	}
}
