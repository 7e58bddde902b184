package engine

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Modifier transforms the expansion of a #rule.modifier# token.
// A returned error leaves the text as it was before the modifier.
type Modifier interface {
	Apply(text string) (string, error)
}

// ModifierFunc adapts a function to Modifier.
type ModifierFunc func(text string) (string, error)

func (f ModifierFunc) Apply(text string) (string, error) { return f(text) }

func infallible(f func(string) string) Modifier {
	return ModifierFunc(func(s string) (string, error) { return f(s), nil })
}

// builtinModifiers returns a fresh registry for one engine.
func builtinModifiers() map[string]Modifier {
	return map[string]Modifier{
		"capitalize": infallible(Capitalize),
		"a_an":       infallible(IndefiniteArticle),
		"plural":     infallible(Plural),
		"title":      infallible(func(s string) string { return cases.Title(language.Und).String(s) }),
		"upper":      infallible(func(s string) string { return cases.Upper(language.Und).String(s) }),
		"lower":      infallible(func(s string) string { return cases.Lower(language.Und).String(s) }),
	}
}

// Capitalize upper-cases the first character.
func Capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// IndefiniteArticle prefixes "an " when the text starts with a vowel and
// "a " otherwise. Empty text counts as starting with "a".
func IndefiniteArticle(s string) string {
	first, size := utf8.DecodeRuneInString(strings.TrimSpace(s))
	if size == 0 {
		first = 'a'
	}
	switch unicode.ToLower(first) {
	case 'a', 'e', 'i', 'o', 'u':
		return "an " + s
	}
	return "a " + s
}

// Plural is a naive English plural: words ending in "s" are kept, a "y"
// after a consonant becomes "ies", everything else gains an "s".
func Plural(s string) string {
	if strings.HasSuffix(s, "s") {
		return s
	}
	if strings.HasSuffix(s, "y") {
		prev, _ := utf8.DecodeLastRuneInString(s[:len(s)-1])
		switch unicode.ToLower(prev) {
		case 'a', 'e', 'i', 'o', 'u':
		default:
			return s[:len(s)-1] + "ies"
		}
	}
	return s + "s"
}
