package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Length limits for free text, counted in code points after NFC normalization
const (
	MaxUnitNameLength        = 120
	MaxUnitDescriptionLength = 4000
	MaxDisplayNameLength     = 80
	MaxPitchLength           = 2000
)

// NormalizeText trims, NFC-normalizes and length-checks a free-text field.
// Control characters other than newlines and tabs are rejected.
func NormalizeText(field, value string, required bool, maxRunes int) (string, error) {
	s := strings.TrimSpace(norm.NFC.String(value))
	if s == "" {
		if required {
			return "", ErrInvalidInput.Withf("%s is required", field)
		}
		return "", nil
	}
	if !utf8.ValidString(s) {
		return "", ErrInvalidInput.Withf("%s is not valid UTF-8", field)
	}
	for _, r := range s {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return "", ErrInvalidInput.Withf("%s contains control characters", field)
		}
	}
	if n := utf8.RuneCountInString(s); n > maxRunes {
		return "", ErrInvalidInput.Withf("%s must not exceed %d characters (got %d)", field, maxRunes, n)
	}
	return s, nil
}
