package validation

import (
	"strings"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	MinNameLength = 2
	MaxNameLength = 30
)

var lower = cases.Lower(language.Und)

// NormalizeName folds compatibility forms (fullwidth letters, ligatures) and
// case so lookalike spellings compare equal.
func NormalizeName(name string) string {
	return lower.String(strings.TrimSpace(norm.NFKC.String(name)))
}

// IsValidName reports whether a proposed crow name is acceptable: between
// MinNameLength and MaxNameLength runes after normalisation, and not profane.
func IsValidName(name string) bool {
	normalized := NormalizeName(name)

	n := utf8.RuneCountInString(normalized)
	if n < MinNameLength || n > MaxNameLength {
		return false
	}

	return !goaway.IsProfane(normalized)
}
