package validation

import (
	"strings"
	"unicode/utf8"
)

// ValidateTitle validates a goal title
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)

	if trimmed == "" {
		return invalid("title is required")
	}

	if utf8.RuneCountInString(trimmed) > 200 {
		return invalid("title is too long (max 200 characters)")
	}

	return nil
}
