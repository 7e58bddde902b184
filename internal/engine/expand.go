package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/promptforge/internal/ir"
)

// expand produces the text for one rule.
//
// Order of checks: override, missing rule, cycle guard. The segment is
// opened before the rule body runs so nested rules land after it, and is
// back-filled once the text is known.
func (g *generation) expand(name string) string {
	e := g.engine
	rule, exists := g.bundle.Rule(name)

	if locked, ok := e.overrides[name]; ok {
		var meta *ir.Meta
		if exists {
			meta = rule.Meta()
		}
		g.fill(g.open(name, meta), locked)
		return locked
	}

	if !exists {
		e.logger.Warn("missing rule", "bundle", g.bundle.Name, "rule", name)
		return fmt.Sprintf(placeholderMissingRule, name)
	}

	leave, ok := e.stack.enter(name)
	if !ok {
		e.logger.Warn("cycle detected",
			"bundle", g.bundle.Name,
			"rule", name,
			"limit", e.stack.limit,
			"stack", e.stack.path())
		return fmt.Sprintf(placeholderCycle, name)
	}
	defer leave()

	idx := g.open(name, rule.Meta())
	text := g.dispatch(name, rule)
	g.fill(idx, text)
	return text
}

func (g *generation) dispatch(name string, rule ir.Rule) string {
	switch r := rule.(type) {
	case ir.Literal:
		return g.substitute(r.Text)
	case ir.OptionList:
		return g.selectFrom(name, r.Options)
	case ir.FieldWrapped:
		return g.selectFrom(name, r.List.Options)
	case ir.Complex:
		return g.complex(name, r)
	}
	g.engine.logger.Warn("invalid rule format", "bundle", g.bundle.Name, "rule", name)
	return placeholderInvalidRule
}

func (g *generation) complex(name string, c ir.Complex) string {
	switch c.Kind {
	case ir.KindWeighted, ir.KindMarkov:
		return g.selectFrom(name, c.Options)
	case ir.KindConditional:
		return g.conditional(name, c)
	case ir.KindSequential:
		return g.sequential(c)
	}
	g.engine.logger.Warn("unknown rule type", "bundle", g.bundle.Name, "rule", name, "type", string(c.Kind))
	return fmt.Sprintf(placeholderUnknownType, c.Kind)
}

// conditional picks the first option whose conditions hold.
func (g *generation) conditional(name string, c ir.Complex) string {
	for i := range c.Options {
		opt := &c.Options[i]
		if opt.Malformed || !Evaluate(opt.Conditions, g.Lookup) {
			continue
		}
		Apply(opt.Actions, g)
		return g.substitute(opt.Text)
	}
	if c.Fallback != nil {
		return g.substitute(*c.Fallback)
	}
	g.engine.logger.Warn("no conditions met", "bundle", g.bundle.Name, "rule", name)
	return placeholderNoConditions
}

// sequential joins every option in order. Each item is trimmed and items
// that expand to nothing are dropped; the joiner after an item is its own
// joiner, or a single space.
func (g *generation) sequential(c ir.Complex) string {
	var b strings.Builder
	joiner := ""
	for i := range c.Options {
		opt := &c.Options[i]
		text := placeholderInvalidSeq
		if !opt.Malformed {
			text = strings.TrimSpace(g.substitute(opt.Text))
		}
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString(joiner)
		}
		b.WriteString(text)
		joiner = " "
		if opt.Joiner != nil {
			joiner = *opt.Joiner
		}
	}
	return b.String()
}
