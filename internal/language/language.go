package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps spelled-out language names, English and native, to a base tag.
var words = map[string]string{
	"english":    "en",
	"german":     "de",
	"deutsch":    "de",
	"french":     "fr",
	"français":   "fr",
	"spanish":    "es",
	"español":    "es",
	"italian":    "it",
	"italiano":   "it",
	"dutch":      "nl",
	"nederlands": "nl",
	"polish":     "pl",
	"polski":     "pl",
	"portuguese": "pt",
	"português":  "pt",
	"swedish":    "sv",
	"svenska":    "sv",
	"danish":     "da",
	"dansk":      "da",
	"norwegian":  "no",
	"norsk":      "no",
	"finnish":    "fi",
	"suomi":      "fi",
	"turkish":    "tr",
	"türkçe":     "tr",
}

// Normalize parses a language code, tag or spelled-out name and returns its
// canonical lower-case tag. ok is false for empty, unknown or undetermined input.
func Normalize(value string) (string, bool) {
	tag, ok := parse(value)
	if !ok {
		return "", false
	}
	return strings.ToLower(tag.String()), true
}

// DisplayName returns the English name of a language, or the upper-cased
// input when it cannot be parsed.
func DisplayName(value string) string {
	tag, ok := parse(value)
	if !ok {
		if strings.TrimSpace(value) == "" {
			return "Unknown"
		}
		return strings.ToUpper(strings.TrimSpace(value))
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

func parse(value string) (language.Tag, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return language.Und, false
	}
	if mapped, ok := words[value]; ok {
		value = mapped
	}
	value = strings.ReplaceAll(value, "_", "-")
	tag, err := language.Parse(value)
	if err != nil || tag == language.Und {
		return language.Und, false
	}
	return tag, true
}
