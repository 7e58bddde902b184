package engine

import "github.com/roach88/promptforge/internal/ir"

// selectFrom makes a weighted draw among the options whose conditions
// hold, fires the winner's actions and substitutes its text.
func (g *generation) selectFrom(name string, options []ir.Option) string {
	var candidates []*ir.Option
	total := 0.0
	for i := range options {
		opt := &options[i]
		if opt.Malformed {
			continue
		}
		if !opt.Plain && !Evaluate(opt.Conditions, g.Lookup) {
			continue
		}
		candidates = append(candidates, opt)
		total += opt.Weight
	}
	if len(candidates) == 0 {
		g.engine.logger.Warn("no valid options", "bundle", g.bundle.Name, "rule", name)
		return placeholderNoOptions
	}

	chosen := pick(candidates, g.engine.src.Float64()*total)
	Apply(chosen.Actions, g)
	return g.substitute(chosen.Text)
}

// pick walks candidates subtracting weights from r; the first candidate
// that brings r to zero or below wins. Zero-weight candidates never win
// the walk. When the walk runs out (rounding, or no positive weight) the
// first positive-weight candidate is used, else the first candidate.
func pick(candidates []*ir.Option, r float64) *ir.Option {
	for _, c := range candidates {
		if c.Weight <= 0 {
			continue
		}
		r -= c.Weight
		if r <= 0 {
			return c
		}
	}
	for _, c := range candidates {
		if c.Weight > 0 {
			return c
		}
	}
	return candidates[0]
}
