package model

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var reNoSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify turns a name into a URL path segment: "Food Investigation" -> "food-investigation".
func Slugify(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, name)
	if err != nil {
		plain = name
	}
	slug := reNoSlug.ReplaceAllLiteralString(strings.ToLower(plain), "-")
	return strings.Trim(slug, "-")
}
