package sanitize

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Anything outside a conservative filename alphabet.
var reUnsafe = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SafeFilename strips path components and collapses unsafe characters so the
// result can be embedded in an object-store key.
func SafeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	name = reUnsafe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}

// Summary truncates s for listings, cutting at a word boundary when possible.
func Summary(s string, max int) string {
	if len(s) <= max {
		return s
	}
	i := max
	for i > 0 && i < len(s) && s[i] != ' ' {
		i--
	}
	if i <= 0 {
		i = max
	}
	return s[:i] + "…"
}
