package engine

import (
	"github.com/roach88/promptforge/internal/ir"
)

// DefaultPassLimit caps rule-expansion passes over one string. Deeper
// indirection is left unexpanded.
const DefaultPassLimit = 10

// substitute resolves tokens in text.
//
// Phase 1 repeatedly expands #rule# and #rule.mod1.mod2# tokens that name
// grammar rules, until a pass changes nothing or the pass limit is hit.
// Phase 2 replaces the remaining bare #name# tokens from variables once.
// Tokens that match neither stay verbatim.
func (g *generation) substitute(text string) string {
	if text == "" {
		return ""
	}

	for pass := 0; pass < g.engine.passLimit; pass++ {
		next := ir.TokenPattern.ReplaceAllStringFunc(text, g.expandToken)
		if next == text {
			break
		}
		text = next
	}

	return ir.VariablePattern.ReplaceAllStringFunc(text, func(token string) string {
		name := token[1 : len(token)-1]
		if v, ok := g.Lookup(name); ok && v != nil {
			return v.String()
		}
		return token
	})
}

func (g *generation) expandToken(token string) string {
	m := ir.TokenPattern.FindStringSubmatch(token)
	name := m[1]
	if _, ok := g.bundle.Rule(name); !ok {
		return token
	}
	text := g.expand(name)
	if m[2] != "" {
		text = g.applyModifiers(name, text, ir.SplitModifiers(m[2]))
	}
	return text
}

// applyModifiers runs mods left to right. Unknown modifiers are skipped;
// a failing modifier leaves the text as it was before it ran.
func (g *generation) applyModifiers(rule, text string, mods []string) string {
	for _, name := range mods {
		mod, ok := g.engine.modifiers[name]
		if !ok {
			g.engine.logger.Warn("modifier not found", "bundle", g.bundle.Name, "rule", rule, "modifier", name)
			continue
		}
		out, err := mod.Apply(text)
		if err != nil {
			g.engine.logger.Warn("modifier failed", "bundle", g.bundle.Name, "rule", rule, "modifier", name, "error", err)
			continue
		}
		text = out
	}
	return text
}
