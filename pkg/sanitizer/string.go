package sanitizer

import (
	"strings"
	"unicode"
)

func TrimAndNormalize(s string) string {
	s = strings.TrimSpace(s)

	if s == "" {
		return ""
	}

	var result strings.Builder
	var lastWasSpace bool

	for _, r := range s {
		if unicode.IsSpace(r) {
			if !lastWasSpace {
				result.WriteRune(' ')
				lastWasSpace = true
			}
		} else {
			result.WriteRune(r)
			lastWasSpace = false
		}
	}

	return result.String()
}

// NormalizeTitle collapses whitespace in user-supplied event titles.
func NormalizeTitle(title string) string {
	return TrimAndNormalize(title)
}

// NormalizeDescription collapses whitespace in free-text descriptions.
func NormalizeDescription(description string) string {
	return TrimAndNormalize(description)
}
