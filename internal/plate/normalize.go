// Package plate turns noisy OCR text into canonical bus plate strings.
//
// Plates follow the regional grammar REGION NUMBER IDENTIFIER, e.g. "B 7566 PAA":
// one or two region letters, one to four digits and one to three identifier
// letters. Normalize yields the comparison key used everywhere else.
package plate

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/width"
)

var validPlate = regexp.MustCompile(`^[A-Z]{1,2}\s?\d{1,4}\s?[A-Z]{1,3}$`)

// Normalize upper-cases raw and drops every rune that is not a letter or digit.
// Full-width OCR glyphs are folded to their ASCII forms first.
func Normalize(raw string) string {
	folded := width.Fold.String(raw)
	upper := cases.Upper(language.Und).String(folded)

	var b strings.Builder
	b.Grow(len(upper))
	for _, r := range upper {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Equal reports whether two raw plates share a normalized form.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}

// Parts splits a plate into its greedy letter/digit/letter runs. Whitespace is
// ignored and anything after the identifier is dropped. ok is false unless
// both a region and a number were found.
func Parts(raw string) (region, number, identifier string, ok bool) {
	runes := []rune(strings.ToUpper(strings.Join(strings.Fields(raw), "")))

	i := 0
	start := i
	for i < len(runes) && unicode.IsLetter(runes[i]) {
		i++
	}
	region = string(runes[start:i])

	start = i
	for i < len(runes) && unicode.IsDigit(runes[i]) {
		i++
	}
	number = string(runes[start:i])

	start = i
	for i < len(runes) && unicode.IsLetter(runes[i]) {
		i++
	}
	identifier = string(runes[start:i])

	return region, number, identifier, region != "" && number != ""
}

// FormatForDisplay renders a plate as "REGION NUMBER IDENTIFIER". Input that
// already contains a space, or that has no region+number prefix, is returned
// unchanged.
func FormatForDisplay(raw string) string {
	if strings.Contains(raw, " ") {
		return raw
	}

	region, number, identifier, ok := Parts(raw)
	if !ok {
		return raw
	}
	if identifier == "" {
		return region + " " + number
	}
	return region + " " + number + " " + identifier
}

// IsValid reports whether text is exactly one plate in the regional grammar.
func IsValid(text string) bool {
	return validPlate.MatchString(text)
}
