// Package suspect scores a request against a fixed list of signatures:
// automation clients, well-known attack tools, and inline script injection.
package suspect

import "strings"

// Patterns are matched case-insensitively, in order, as plain substrings.
// Order matters only for which pattern is reported on a hit.
var patterns = []string{
	// automation and tooling
	"curl",
	"wget",
	"python-requests",
	"go-http-client",
	"headless",
	"phantomjs",
	"selenium",
	"bot",
	"crawler",
	"spider",
	"scrapy",
	// attack tools
	"sqlmap",
	"nikto",
	"nmap",
	"masscan",
	"hydra",
	"metasploit",
	// inline script injection
	"<script",
	"</script",
	"javascript:",
	"onerror=",
	"onload=",
	"eval(",
	"document.cookie",
}

// Match reports whether the user agent or any field value carries one of
// the signatures, and which signature hit first.
func Match(userAgent string, fields map[string]string) (bool, string) {
	if pattern, ok := scan(userAgent); ok {
		return true, pattern
	}
	for _, value := range fields {
		if pattern, ok := scan(value); ok {
			return true, pattern
		}
	}
	return false, ""
}

func scan(value string) (string, bool) {
	if value == "" {
		return "", false
	}
	lower := strings.ToLower(value)
	for _, pattern := range patterns {
		if strings.Contains(lower, pattern) {
			return pattern, true
		}
	}
	return "", false
}
