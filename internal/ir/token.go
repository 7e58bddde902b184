package ir

import (
	"regexp"
	"strings"
)

// TokenPattern matches #name# and #name.mod1.mod2# tokens.
// Group 1 is the identifier, group 2 the dotted modifier chain.
var TokenPattern = regexp.MustCompile(`#([A-Za-z_][A-Za-z0-9_]*)(?:\.([A-Za-z0-9_.]+))?#`)

// VariablePattern matches bare #name# tokens.
var VariablePattern = regexp.MustCompile(`#([A-Za-z_][A-Za-z0-9_]*)#`)

// Token is one reference found in a template.
type Token struct {
	Name      string
	Modifiers []string
}

// Tokens lists the references in text, in order of appearance.
func Tokens(text string) []Token {
	var out []Token
	for _, m := range TokenPattern.FindAllStringSubmatch(text, -1) {
		tok := Token{Name: m[1]}
		if m[2] != "" {
			tok.Modifiers = SplitModifiers(m[2])
		}
		out = append(out, tok)
	}
	return out
}

// SplitModifiers splits a dotted modifier chain, dropping empty names.
func SplitModifiers(chain string) []string {
	var mods []string
	for _, m := range strings.Split(chain, ".") {
		if m != "" {
			mods = append(mods, m)
		}
	}
	return mods
}
