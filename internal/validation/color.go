package validation

import (
	"regexp"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidateColor accepts an empty color or a #rrggbb hex value
func ValidateColor(color string) error {
	if color == "" {
		return nil
	}

	if !colorPattern.MatchString(color) {
		return invalid("color must be a hex value like #a1b2c3")
	}

	return nil
}
