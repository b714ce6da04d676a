package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	slugSeparatorPattern = regexp.MustCompile(`[^a-z0-9]+`)

	umlautReplacer = strings.NewReplacer(
		"ä", "ae",
		"ö", "oe",
		"ü", "ue",
		"ß", "ss",
	)
)

// Slugify converts free text into a lowercase ASCII slug made of [a-z0-9]
// runs joined by single hyphens. It returns an empty string when nothing
// usable remains.
func Slugify(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	value = umlautReplacer.Replace(value)
	value = stripDiacritics(value)
	value = slugSeparatorPattern.ReplaceAllString(value, "-")
	return strings.Trim(value, "-")
}

// SlugOr returns Slugify(value), or fallback when the slug would be empty.
func SlugOr(value, fallback string) string {
	if slug := Slugify(value); slug != "" {
		return slug
	}
	return fallback
}

func stripDiacritics(value string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		return value
	}
	return out
}
