package sanitize

import (
	"regexp"
	"strings"
)

var (
	// nonSlugRegex matches characters not allowed in slugs
	nonSlugRegex = regexp.MustCompile(`[^a-z0-9-]+`)

	// multiDashRegex matches multiple consecutive dashes
	multiDashRegex = regexp.MustCompile(`-+`)
)

// Slug converts a free-form title into a lowercase kebab-case identifier.
// Branch names like "feat/login-form" become "feat-login-form".
func Slug(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("/", "-", "_", "-", " ", "-", ".", "-").Replace(s)
	s = nonSlugRegex.ReplaceAllString(s, "-")
	s = multiDashRegex.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > 50 {
		s = s[:50]
		s = strings.Trim(s, "-")
	}
	return s
}

// ForTitle strips control characters from a title and bounds its length.
func ForTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if len(s) > 100 {
		s = strings.TrimSpace(s[:100])
	}
	return s
}
