package logging

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"mercator-hq/prognos/pkg/config"
)

// Redactor redacts PHI and credentials from log fields.
type Redactor struct {
	// patterns are applied in order; earlier patterns win on overlap
	patterns []*redactPattern
}

// redactPattern contains a compiled regex and replacement string.
type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// Built-in pattern names.
const (
	PatternBearerToken = "bearer_token"
	PatternAPIKey      = "api_key"
	PatternPassword    = "password"
	PatternEmail       = "email"
	PatternSSN         = "ssn"
	PatternMRN         = "mrn"
	PatternDOB         = "dob"
	PatternPhone       = "phone"
)

var defaultPatterns = []struct {
	name        string
	regex       string
	replacement string
}{
	{PatternBearerToken, `Bearer\s+[a-zA-Z0-9\-._~+/]+=*`, "Bearer ***"},
	{PatternAPIKey, `(?i)(sk-[a-zA-Z0-9]+|api[-_]?key[-_:=]\s*[a-zA-Z0-9]+)`, "[REDACTED:API_KEY]"},
	{PatternPassword, `(?i)(password|passwd|pwd)[:=]\s*[^\s]+`, "$1: ***"},
	{PatternEmail, `[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`, "[REDACTED:EMAIL]"},
	{PatternSSN, `\b\d{3}-\d{2}-\d{4}\b`, "[REDACTED:SSN]"},
	{PatternMRN, `(?i)\bMRN[:#\s-]*\d{5,10}\b`, "[REDACTED:MRN]"},
	{PatternDOB, `(?i)\b(?:DOB|date of birth)[:\s]*\d{1,4}[-/]\d{1,2}[-/]\d{1,4}\b`, "[REDACTED:DOB]"},
	{PatternPhone, `\(?\b\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`, "[REDACTED:PHONE]"},
}

// credentialKeys mark a field as secret when they appear anywhere in its key.
var credentialKeys = []string{
	"password", "passwd", "secret", "token",
	"api_key", "apikey", "authorization",
	"private_key", "connection_string", "dsn",
}

// phiKeys mark a field as PHI when the key matches exactly.
var phiKeys = map[string]bool{
	"ssn": true, "social_security": true, "social_security_number": true,
	"name": true, "patient_name": true, "first_name": true, "last_name": true, "full_name": true,
	"dob": true, "date_of_birth": true, "birth_date": true,
	"address": true, "street": true, "street_address": true,
	"email": true, "phone": true, "phone_number": true,
	"mrn": true, "medical_record_number": true,
}

// NewRedactor creates a new Redactor with default and custom patterns.
// Invalid custom patterns are skipped; config.Validate rejects them earlier.
func NewRedactor(customPatterns []config.RedactPattern) *Redactor {
	r := &Redactor{}

	for _, p := range defaultPatterns {
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.name,
			regex:       regexp.MustCompile(p.regex),
			replacement: p.replacement,
		})
	}

	for _, p := range customPatterns {
		regex, err := regexp.Compile(p.Pattern)
		if err != nil {
			continue
		}
		replacement := p.Replacement
		if replacement == "" {
			replacement = "***"
		}
		r.patterns = append(r.patterns, &redactPattern{
			name:        p.Name,
			regex:       regex,
			replacement: replacement,
		})
	}

	return r
}

// RedactString redacts PHI and credentials from a string value.
func (r *Redactor) RedactString(value string) string {
	if value == "" {
		return value
	}

	redacted := value
	for _, pattern := range r.patterns {
		redacted = pattern.regex.ReplaceAllString(redacted, pattern.replacement)
	}
	return redacted
}

// RedactAttr returns a copy of a with sensitive content removed. Groups and
// map values are redacted recursively.
func (r *Redactor) RedactAttr(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()

	if r.isSensitiveKey(a.Key) {
		return slog.Any(a.Key, r.redactValue(v.Any()))
	}

	switch v.Kind() {
	case slog.KindString:
		return slog.String(a.Key, r.RedactString(v.String()))
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, len(group))
		for i, ga := range group {
			out[i] = r.RedactAttr(ga)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	case slog.KindAny:
		switch x := v.Any().(type) {
		case error:
			return slog.String(a.Key, r.RedactString(x.Error()))
		case map[string]any:
			return slog.Any(a.Key, r.redactMap(x))
		case []string:
			out := make([]string, len(x))
			for i, s := range x {
				out[i] = r.RedactString(s)
			}
			return slog.Any(a.Key, out)
		case fmt.Stringer:
			return slog.String(a.Key, r.RedactString(x.String()))
		}
	}

	return slog.Attr{Key: a.Key, Value: v}
}

func (r *Redactor) redactMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if r.isSensitiveKey(k) {
			out[k] = r.redactValue(v)
			continue
		}
		out[k] = r.redactAny(v)
	}
	return out
}

func (r *Redactor) redactAny(v any) any {
	switch x := v.(type) {
	case string:
		return r.RedactString(x)
	case map[string]any:
		return r.redactMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = r.redactAny(e)
		}
		return out
	case []string:
		out := make([]string, len(x))
		for i, s := range x {
			out[i] = r.RedactString(s)
		}
		return out
	default:
		return v
	}
}

// isSensitiveKey checks if a key name indicates sensitive data.
func (r *Redactor) isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)

	if phiKeys[lowerKey] {
		return true
	}
	for _, sensitive := range credentialKeys {
		if strings.Contains(lowerKey, sensitive) {
			return true
		}
	}
	return false
}

// redactValue redacts a sensitive value completely.
func (r *Redactor) redactValue(value any) any {
	if s, ok := value.(string); ok && s == "" {
		return ""
	}
	return "***"
}

// RedactAPIKey redacts an API key, keeping only a prefix.
func RedactAPIKey(apiKey string) string {
	if apiKey == "" {
		return ""
	}
	if len(apiKey) <= 4 {
		return "***"
	}

	// Keep first 4 characters for identification
	return apiKey[:4] + "***"
}
