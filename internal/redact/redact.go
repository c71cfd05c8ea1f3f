// Package redact provides utilities for scrubbing sensitive information from
// error strings before they are logged. Raw errors can carry connection
// strings, credentials, SQL fragments, or file paths that must never reach a
// log aggregator or, worse, an API response.
package redact

import (
	"regexp"
)

// RedactionPlaceholder replaces any matched sensitive fragment.
const RedactionPlaceholder = "[REDACTED]"

// Precompiled patterns for the classes of secrets this service can
// realistically leak: database URLs, API keys and JWTs, SQL text, and
// filesystem paths.
var patterns = []*regexp.Regexp{
	// Connection strings with embedded credentials.
	regexp.MustCompile(`(?i)(postgres|postgresql|redis|mysql)://[^@\s]+@[^\s]+`),

	// Keys, tokens, secrets assigned inline.
	regexp.MustCompile(`(?i)(api[_-]?key|token|secret|password|passwd)['"\s:=]+[^\s'"&]{4,}`),

	// JWTs (three base64url segments starting with eyJ).
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),

	// SQL statements surfacing through driver errors.
	regexp.MustCompile(`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)\s+[\s\w,*()='"$.]+`),

	// Absolute unix paths (two or more segments).
	regexp.MustCompile(`(/[\w.-]+){2,}`),
}

// String scrubs sensitive fragments from s.
func String(s string) string {
	for _, p := range patterns {
		s = p.ReplaceAllString(s, RedactionPlaceholder)
	}
	return s
}

// Error scrubs sensitive fragments from an error's message. Returns the
// empty string for a nil error.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
