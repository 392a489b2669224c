package sluggable

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxFragmentLength bounds the slug produced for one source field.
const MaxFragmentLength = 45

var (
	invalidChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	spaceRuns    = regexp.MustCompile(`\s+`)
	space        = regexp.MustCompile(`\s`)
)

// GenerateSlug turns text into a lower-case, URL-safe fragment:
// diacritics are removed, every Unicode space becomes ' ', anything outside
// [a-z0-9], whitespace and '-' is dropped, whitespace runs collapse to one,
// the result is cut to MaxFragmentLength characters and the remaining spaces
// become hyphens.
func GenerateSlug(text string) string {
	s := strings.ToLower(RemoveDiacritics(text))
	s = strings.Map(normalizeSpace, s)
	s = invalidChars.ReplaceAllString(s, "")
	s = strings.TrimSpace(spaceRuns.ReplaceAllString(s, " "))
	if len(s) > MaxFragmentLength {
		s = s[:MaxFragmentLength]
	}
	s = strings.TrimSpace(s)
	return space.ReplaceAllString(s, "-")
}

// normalizeSpace folds spaces the regexp \s class misses (NBSP, em space,
// vertical tab) into ' '.
func normalizeSpace(r rune) rune {
	if unicode.IsSpace(r) {
		return ' '
	}
	return r
}

// RemoveDiacritics decomposes text, drops nonspacing marks and recomposes
// what is left, so "Café" becomes "Cafe".
func RemoveDiacritics(text string) string {
	// transform.Chain keeps state between calls; build one per call.
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, text)
	if err != nil {
		return text
	}
	return out
}
