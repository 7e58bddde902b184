package engine

import (
	"strings"

	"github.com/roach88/promptforge/internal/ir"
)

// generateTarget renders a targeting template. Each distinct #rule# is
// expanded once, mapped through the target's parameterMap when an entry
// exists for the expanded value, and substituted for every occurrence.
// Targets bypass segments and slot ordering.
func (g *generation) generateTarget(name string) (string, error) {
	target, ok := g.bundle.Targeting[name]
	if !ok {
		return "", errTargetNotFound(g.bundle.Name, name)
	}

	values := make(map[string]string)
	var order []string
	for _, m := range ir.VariablePattern.FindAllStringSubmatch(target.Template, -1) {
		rule := m[1]
		if _, seen := values[rule]; seen {
			continue
		}
		values[rule] = g.expand(rule)
		order = append(order, rule)
	}

	for rule, mapping := range target.ParameterMap {
		v, ok := values[rule]
		if !ok {
			continue
		}
		if mapped, ok := mapping[v]; ok {
			values[rule] = mapped
		}
	}

	out := target.Template
	for _, rule := range order {
		out = strings.ReplaceAll(out, "#"+rule+"#", values[rule])
	}
	return out, nil
}
