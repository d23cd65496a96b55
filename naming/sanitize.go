package naming

import (
	"strings"
	"unicode/utf8"
)

var stripChars = strings.NewReplacer("(", "", ")", "", `"`, "", "'", "")

// Sanitizer turns free text such as a plugin instance into a token that is
// safe inside a metric name.
type Sanitizer struct {
	Separator string // replaces spaces and dots, "." if empty
	Lowercase bool
}

func (s Sanitizer) Sanitize(field string) string {
	field = strings.TrimSpace(stripChars.Replace(field))
	sep := s.Separator
	if sep == "" {
		sep = "."
	}
	field = strings.NewReplacer(" ", sep, ".", sep).Replace(field)
	if s.Lowercase {
		field = strings.ToLower(field)
	}
	return field
}

// ValidSeparator reports whether sep can be used as a Sanitizer separator
// without breaking idempotence: a single character that Sanitize neither
// strips nor replaces, or "." itself.
func ValidSeparator(sep string) bool {
	if utf8.RuneCountInString(sep) != 1 {
		return false
	}
	return !strings.ContainsAny(sep, " \t\r\n()\"'")
}
