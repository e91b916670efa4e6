package validation

import (
	"strings"
	"unicode/utf8"
)

// ValidateName validates a contact or display name
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)

	if trimmed == "" {
		return invalid("name is required")
	}

	if utf8.RuneCountInString(trimmed) > 100 {
		return invalid("name is too long (max 100 characters)")
	}

	return nil
}
